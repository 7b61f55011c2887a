package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/opschat/opschat/pkg/observability"
)

// Recorder writes audit entries without ever failing its caller. A
// chat request must succeed or fail on its own terms; the audit trail
// is strictly best-effort.
type Recorder struct {
	store   *Store
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewRecorder creates a new audit recorder. Metrics may be nil.
func NewRecorder(store *Store, logger *observability.Logger, metrics *observability.Metrics) *Recorder {
	return &Recorder{store: store, logger: logger, metrics: metrics}
}

// Record persists an entry, filling defaults for missing fields and
// capping payload sizes. On persistence failure it logs, bumps the
// failure counter and returns nil; callers never see an error.
func (r *Recorder) Record(ctx context.Context, entry *Entry) *int64 {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Kind == "" {
		entry.Kind = KindError
	}
	if entry.Provider == "" {
		entry.Provider = "unknown"
	}
	entry.RequestData = capPayload(entry.RequestData)
	entry.ResponseData = capPayload(entry.ResponseData)

	if err := r.store.Insert(ctx, entry); err != nil {
		r.logger.WithError(err).WithFields(map[string]interface{}{
			"kind":     entry.Kind,
			"provider": entry.Provider,
		}).Error("failed to record audit entry")
		if r.metrics != nil {
			r.metrics.AuditWriteFailuresTotal.Inc()
		}
		return nil
	}

	if r.metrics != nil {
		r.metrics.AuditEntriesTotal.WithLabelValues(entry.Kind, entry.Provider).Inc()
	}
	return &entry.ID
}

func capPayload(data json.RawMessage) json.RawMessage {
	if len(data) <= MaxPayloadBytes {
		return data
	}
	note, _ := json.Marshal(map[string]interface{}{
		"truncated":      true,
		"original_bytes": len(data),
	})
	return note
}
