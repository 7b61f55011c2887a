// Package audit records every upstream agent exchange: the request we
// sent, the response we got, and any failure in between. The relay's
// behavior never depends on the audit trail; recording failures are
// logged and swallowed so a broken audit table cannot break chat.
package audit

import (
	"encoding/json"
	"time"
)

// Kind categorizes an audit entry
const (
	KindRequest  = "request"
	KindResponse = "response"
	KindError    = "error"
)

// MaxPayloadBytes caps stored request and response payloads. Larger
// payloads are truncated to a JSON note so a runaway response cannot
// bloat the table.
const MaxPayloadBytes = 64 * 1024

// Entry is one audit record of an upstream exchange
type Entry struct {
	ID           int64           `json:"id"`
	Timestamp    time.Time       `json:"timestamp"`
	Kind         string          `json:"kind"`
	Provider     string          `json:"provider"`
	SessionID    string          `json:"session_id,omitempty"`
	Endpoint     string          `json:"endpoint,omitempty"`
	RequestData  json.RawMessage `json:"request_data,omitempty"`
	ResponseData json.RawMessage `json:"response_data,omitempty"`
	StatusCode   int             `json:"status_code,omitempty"`
	DurationMS   int64           `json:"duration_ms,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// Filter selects audit entries for querying
type Filter struct {
	Provider  string
	Kind      string
	SessionID string
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

// Page is one page of audit entries, newest first
type Page struct {
	Entries  []*Entry `json:"entries"`
	Total    int      `json:"total"`
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
	HasNext  bool     `json:"has_next"`
	HasPrev  bool     `json:"has_prev"`
}
