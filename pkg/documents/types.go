// Package documents stores user-uploaded files: blob content in a
// pluggable backend, metadata in Postgres.
package documents

import "time"

// Document is the metadata record for one uploaded file.
type Document struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Filename   string    `json:"filename"`
	URL        string    `json:"url"`
	StorageKey string    `json:"-"`
	UploadedAt time.Time `json:"uploaded_at"`
}
