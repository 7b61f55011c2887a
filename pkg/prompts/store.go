package prompts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/opschat/opschat/pkg/apperr"
)

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}

// Store handles prompt and favorite persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new prompt store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const promptColumns = "id, title, description, category, command, cloud_provider, user_id, is_system, created_at, updated_at"

func scanPrompt(row interface{ Scan(...interface{}) error }) (*Prompt, error) {
	var p Prompt
	var userID sql.NullInt64
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Category, &p.Command,
		&p.CloudProvider, &userID, &p.IsSystem, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		p.UserID = &userID.Int64
	}
	return &p, nil
}

// Create inserts a prompt. A duplicate id yields Conflict.
func (s *Store) Create(ctx context.Context, prompt *Prompt) error {
	query := `
		INSERT INTO prompts (id, title, description, category, command, cloud_provider, user_id, is_system, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	var userID sql.NullInt64
	if prompt.UserID != nil {
		userID = sql.NullInt64{Int64: *prompt.UserID, Valid: true}
	}

	now := time.Now()
	prompt.CreatedAt = now
	prompt.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, query,
		prompt.ID, prompt.Title, prompt.Description, prompt.Category, prompt.Command,
		prompt.CloudProvider, userID, prompt.IsSystem, now, now,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("prompt %s: %w", prompt.ID, apperr.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create prompt: %w", err)
	}
	return nil
}

// Get returns one prompt by id.
func (s *Store) Get(ctx context.Context, id string) (*Prompt, error) {
	query := fmt.Sprintf("SELECT %s FROM prompts WHERE id = $1", promptColumns)

	prompt, err := scanPrompt(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("prompt %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prompt: %w", err)
	}
	return prompt, nil
}

// ListVisible returns the prompts a user can see: every system prompt
// plus the user's own.
func (s *Store) ListVisible(ctx context.Context, userID int64, filter Filter) ([]*Prompt, error) {
	return s.list(ctx, "(is_system OR user_id = $1)", []interface{}{userID}, filter)
}

// ListAll returns every prompt in the system.
func (s *Store) ListAll(ctx context.Context, filter Filter) ([]*Prompt, error) {
	return s.list(ctx, "", nil, filter)
}

// ListSystem returns only system prompts.
func (s *Store) ListSystem(ctx context.Context, filter Filter) ([]*Prompt, error) {
	return s.list(ctx, "is_system", nil, filter)
}

// ListByUser returns only the prompts authored by one user.
func (s *Store) ListByUser(ctx context.Context, userID int64, filter Filter) ([]*Prompt, error) {
	return s.list(ctx, "user_id = $1", []interface{}{userID}, filter)
}

func (s *Store) list(ctx context.Context, where string, args []interface{}, filter Filter) ([]*Prompt, error) {
	conditions := ""
	if where != "" {
		conditions = " WHERE " + where
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = appendCondition(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.CloudProvider != "" {
		args = append(args, filter.CloudProvider)
		conditions = appendCondition(conditions, fmt.Sprintf("cloud_provider = $%d", len(args)))
	}

	query := fmt.Sprintf("SELECT %s FROM prompts%s ORDER BY created_at, id", promptColumns, conditions)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}
	defer rows.Close()

	var prompts []*Prompt
	for rows.Next() {
		prompt, err := scanPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prompt: %w", err)
		}
		prompts = append(prompts, prompt)
	}
	return prompts, rows.Err()
}

func appendCondition(conditions, clause string) string {
	if conditions == "" {
		return " WHERE " + clause
	}
	return conditions + " AND " + clause
}

// Update rewrites a prompt's editable fields.
func (s *Store) Update(ctx context.Context, id, title, description, category, command, cloudProvider string) (*Prompt, error) {
	query := fmt.Sprintf(`
		UPDATE prompts
		SET title = $2, description = $3, category = $4, command = $5, cloud_provider = $6, updated_at = $7
		WHERE id = $1
		RETURNING %s
	`, promptColumns)

	prompt, err := scanPrompt(s.db.QueryRowContext(ctx, query, id, title, description, category, command, cloudProvider, time.Now()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("prompt %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update prompt: %w", err)
	}
	return prompt, nil
}

// Delete removes a prompt and its favorites.
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM prompts WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete prompt: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete prompt: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("prompt %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// AddFavorite marks a prompt as a favorite. A duplicate pair yields
// Conflict.
func (s *Store) AddFavorite(ctx context.Context, userID int64, promptID string) (*Favorite, error) {
	query := `
		INSERT INTO favorite_prompts (user_id, prompt_id, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	favorite := &Favorite{UserID: userID, PromptID: promptID, CreatedAt: time.Now()}
	err := s.db.QueryRowContext(ctx, query, userID, promptID, favorite.CreatedAt).Scan(&favorite.ID)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("favorite %s for user %d: %w", promptID, userID, apperr.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add favorite: %w", err)
	}
	return favorite, nil
}

// RemoveFavorite unmarks a favorite.
func (s *Store) RemoveFavorite(ctx context.Context, userID int64, promptID string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM favorite_prompts WHERE user_id = $1 AND prompt_id = $2", userID, promptID)
	if err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("favorite %s for user %d: %w", promptID, userID, apperr.ErrNotFound)
	}
	return nil
}

// IsFavorite reports whether a user favorited a prompt.
func (s *Store) IsFavorite(ctx context.Context, userID int64, promptID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM favorite_prompts WHERE user_id = $1 AND prompt_id = $2)",
		userID, promptID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check favorite: %w", err)
	}
	return exists, nil
}

// ListFavorites returns a user's favorite prompts with full details.
func (s *Store) ListFavorites(ctx context.Context, userID int64) ([]*Prompt, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM prompts p
		JOIN favorite_prompts f ON f.prompt_id = p.id
		WHERE f.user_id = $1
		ORDER BY f.created_at, f.id
	`, prefixColumns("p", promptColumns))

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	defer rows.Close()

	var prompts []*Prompt
	for rows.Next() {
		prompt, err := scanPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		prompts = append(prompts, prompt)
	}
	return prompts, rows.Err()
}

func prefixColumns(alias, columns string) string {
	return alias + "." + strings.ReplaceAll(columns, ", ", ", "+alias+".")
}

// Schema creates the prompt library tables.
const Schema = `
CREATE TABLE IF NOT EXISTS prompts (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	command TEXT NOT NULL,
	cloud_provider TEXT NOT NULL DEFAULT '',
	user_id BIGINT REFERENCES users(id) ON DELETE CASCADE,
	is_system BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_prompts_category ON prompts (category);
CREATE INDEX IF NOT EXISTS idx_prompts_cloud_provider ON prompts (cloud_provider);

CREATE TABLE IF NOT EXISTS favorite_prompts (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	prompt_id TEXT NOT NULL REFERENCES prompts(id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (user_id, prompt_id)
);
`
