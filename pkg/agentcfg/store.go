// Package agentcfg persists upstream agent configuration. Records are
// append-only; activating a new record deactivates the previous ones in
// the same transaction, and the newest active record wins. Callers fall
// back to environment defaults when no active record exists.
package agentcfg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/opschat/opschat/pkg/apperr"
)

// BedrockSettings identifies which Bedrock agent to invoke
type BedrockSettings struct {
	ID           int64     `json:"id"`
	AgentID      string    `json:"agent_id"`
	AgentAliasID string    `json:"agent_alias_id"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// ADKSettings holds the session and run endpoints of the ADK agent
type ADKSettings struct {
	ID              int64     `json:"id"`
	SessionEndpoint string    `json:"session_endpoint"`
	RunEndpoint     string    `json:"run_endpoint"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

// Store handles agent configuration persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new agent configuration store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateBedrock inserts a Bedrock configuration record. When the new
// record is active, all prior records are deactivated in the same
// transaction so exactly one active record remains.
func (s *Store) CreateBedrock(ctx context.Context, settings *BedrockSettings) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if settings.IsActive {
		if _, err := tx.ExecContext(ctx, "UPDATE bedrock_settings SET is_active = FALSE WHERE is_active"); err != nil {
			return fmt.Errorf("failed to deactivate prior bedrock settings: %w", err)
		}
	}

	now := time.Now()
	err = tx.QueryRowContext(ctx, `
		INSERT INTO bedrock_settings (agent_id, agent_alias_id, is_active, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, settings.AgentID, settings.AgentAliasID, settings.IsActive, now).Scan(&settings.ID)
	if err != nil {
		return fmt.Errorf("failed to create bedrock settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bedrock settings: %w", err)
	}

	settings.CreatedAt = now
	return nil
}

// ActiveBedrock returns the newest active Bedrock record, or ErrNotFound
// when none is configured.
func (s *Store) ActiveBedrock(ctx context.Context) (*BedrockSettings, error) {
	query := `
		SELECT id, agent_id, agent_alias_id, is_active, created_at
		FROM bedrock_settings
		WHERE is_active
		ORDER BY id DESC
		LIMIT 1
	`

	var b BedrockSettings
	err := s.db.QueryRowContext(ctx, query).Scan(&b.ID, &b.AgentID, &b.AgentAliasID, &b.IsActive, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("active bedrock settings: %w", apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active bedrock settings: %w", err)
	}
	return &b, nil
}

// ListBedrock returns every Bedrock record, newest first
func (s *Store) ListBedrock(ctx context.Context) ([]*BedrockSettings, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_id, agent_alias_id, is_active, created_at
		FROM bedrock_settings
		ORDER BY id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list bedrock settings: %w", err)
	}
	defer rows.Close()

	var out []*BedrockSettings
	for rows.Next() {
		var b BedrockSettings
		if err := rows.Scan(&b.ID, &b.AgentID, &b.AgentAliasID, &b.IsActive, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bedrock settings: %w", err)
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

// CreateADK inserts an ADK configuration record with the same
// single-active-record discipline as CreateBedrock.
func (s *Store) CreateADK(ctx context.Context, settings *ADKSettings) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if settings.IsActive {
		if _, err := tx.ExecContext(ctx, "UPDATE adk_settings SET is_active = FALSE WHERE is_active"); err != nil {
			return fmt.Errorf("failed to deactivate prior adk settings: %w", err)
		}
	}

	now := time.Now()
	err = tx.QueryRowContext(ctx, `
		INSERT INTO adk_settings (session_endpoint, run_endpoint, is_active, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, settings.SessionEndpoint, settings.RunEndpoint, settings.IsActive, now).Scan(&settings.ID)
	if err != nil {
		return fmt.Errorf("failed to create adk settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit adk settings: %w", err)
	}

	settings.CreatedAt = now
	return nil
}

// ActiveADK returns the newest active ADK record, or ErrNotFound
func (s *Store) ActiveADK(ctx context.Context) (*ADKSettings, error) {
	query := `
		SELECT id, session_endpoint, run_endpoint, is_active, created_at
		FROM adk_settings
		WHERE is_active
		ORDER BY id DESC
		LIMIT 1
	`

	var a ADKSettings
	err := s.db.QueryRowContext(ctx, query).Scan(&a.ID, &a.SessionEndpoint, &a.RunEndpoint, &a.IsActive, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("active adk settings: %w", apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active adk settings: %w", err)
	}
	return &a, nil
}

// ListADK returns every ADK record, newest first
func (s *Store) ListADK(ctx context.Context) ([]*ADKSettings, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_endpoint, run_endpoint, is_active, created_at
		FROM adk_settings
		ORDER BY id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list adk settings: %w", err)
	}
	defer rows.Close()

	var out []*ADKSettings
	for rows.Next() {
		var a ADKSettings
		if err := rows.Scan(&a.ID, &a.SessionEndpoint, &a.RunEndpoint, &a.IsActive, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan adk settings: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// Schema creates the agent configuration tables
const Schema = `
	CREATE TABLE IF NOT EXISTS bedrock_settings (
		id BIGSERIAL PRIMARY KEY,
		agent_id VARCHAR(255) NOT NULL,
		agent_alias_id VARCHAR(255) NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS adk_settings (
		id BIGSERIAL PRIMARY KEY,
		session_endpoint TEXT NOT NULL,
		run_endpoint TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);
`
