package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/opschat/opschat/pkg/apperr"
)

// Store handles document metadata persistence. Like threads, every
// query is scoped to the owning user.
type Store struct {
	db *sql.DB
}

// NewStore creates a new document store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const documentColumns = "id, user_id, filename, url, storage_key, uploaded_at"

func scanDocument(row interface{ Scan(...interface{}) error }) (*Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.UserID, &d.Filename, &d.URL, &d.StorageKey, &d.UploadedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Create inserts a metadata record for an uploaded file.
func (s *Store) Create(ctx context.Context, doc *Document) error {
	query := `
		INSERT INTO documents (user_id, filename, url, storage_key, uploaded_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	doc.UploadedAt = time.Now()
	err := s.db.QueryRowContext(ctx, query,
		doc.UserID, doc.Filename, doc.URL, doc.StorageKey, doc.UploadedAt,
	).Scan(&doc.ID)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// Get returns one of the user's documents.
func (s *Store) Get(ctx context.Context, userID, docID int64) (*Document, error) {
	query := fmt.Sprintf("SELECT %s FROM documents WHERE id = $1 AND user_id = $2", documentColumns)

	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, docID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %d: %w", docID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// ListByUser returns the user's documents, newest upload first.
func (s *Store) ListByUser(ctx context.Context, userID int64) ([]*Document, error) {
	query := fmt.Sprintf("SELECT %s FROM documents WHERE user_id = $1 ORDER BY uploaded_at DESC, id DESC", documentColumns)

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Delete removes one of the user's document records.
func (s *Store) Delete(ctx context.Context, userID, docID int64) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE id = $1 AND user_id = $2", docID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("document %d: %w", docID, apperr.ErrNotFound)
	}
	return nil
}

// Schema creates the documents table.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	filename TEXT NOT NULL,
	url TEXT NOT NULL,
	storage_key TEXT NOT NULL,
	uploaded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_documents_user ON documents (user_id);
`
