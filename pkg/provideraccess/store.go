package provideraccess

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/opschat/opschat/pkg/apperr"
)

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}

// Store handles provider access persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new provider access store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const accessColumns = "id, user_id, provider, has_access, is_active, created_at, updated_at"

func scanAccess(row interface{ Scan(...interface{}) error }) (*Access, error) {
	var a Access
	err := row.Scan(&a.ID, &a.UserID, &a.Provider, &a.HasAccess, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts an access record. A duplicate (user, provider) pair
// yields Conflict.
func (s *Store) Create(ctx context.Context, access *Access) error {
	query := `
		INSERT INTO provider_access (user_id, provider, has_access, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	now := time.Now()
	err := s.db.QueryRowContext(ctx, query,
		access.UserID, access.Provider, access.HasAccess, access.IsActive, now, now,
	).Scan(&access.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("access for user %d on %s: %w", access.UserID, access.Provider, apperr.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create provider access: %w", err)
	}

	access.CreatedAt = now
	access.UpdatedAt = now
	return nil
}

// Get retrieves the record for one user and provider
func (s *Store) Get(ctx context.Context, userID int64, provider string) (*Access, error) {
	query := "SELECT " + accessColumns + " FROM provider_access WHERE user_id = $1 AND provider = $2"

	access, err := scanAccess(s.db.QueryRowContext(ctx, query, userID, provider))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("access for user %d on %s: %w", userID, provider, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provider access: %w", err)
	}
	return access, nil
}

// ListByUser returns every access record a user has
func (s *Store) ListByUser(ctx context.Context, userID int64) ([]*Access, error) {
	query := "SELECT " + accessColumns + " FROM provider_access WHERE user_id = $1 ORDER BY provider"

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list provider access: %w", err)
	}
	defer rows.Close()

	var out []*Access
	for rows.Next() {
		access, err := scanAccess(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan provider access: %w", err)
		}
		out = append(out, access)
	}
	return out, rows.Err()
}

// Update sets the grant and active flags on an existing record
func (s *Store) Update(ctx context.Context, userID int64, provider string, hasAccess, isActive bool) (*Access, error) {
	query := `
		UPDATE provider_access
		SET has_access = $1, is_active = $2, updated_at = $3
		WHERE user_id = $4 AND provider = $5
		RETURNING ` + accessColumns

	access, err := scanAccess(s.db.QueryRowContext(ctx, query, hasAccess, isActive, time.Now(), userID, provider))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("access for user %d on %s: %w", userID, provider, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update provider access: %w", err)
	}
	return access, nil
}

// Delete removes an access record
func (s *Store) Delete(ctx context.Context, userID int64, provider string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM provider_access WHERE user_id = $1 AND provider = $2", userID, provider)
	if err != nil {
		return fmt.Errorf("failed to delete provider access: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("access for user %d on %s: %w", userID, provider, apperr.ErrNotFound)
	}
	return nil
}

// Schema creates the provider_access table
const Schema = `
	CREATE TABLE IF NOT EXISTS provider_access (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		provider VARCHAR(50) NOT NULL,
		has_access BOOLEAN NOT NULL DEFAULT FALSE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
		UNIQUE(user_id, provider)
	);

	CREATE INDEX IF NOT EXISTS idx_provider_access_user_id ON provider_access(user_id);
`
