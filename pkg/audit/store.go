package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/opschat/opschat/pkg/apperr"
)

// Store handles audit entry persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new audit store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Insert writes one entry and fills its ID
func (s *Store) Insert(ctx context.Context, entry *Entry) error {
	query := `
		INSERT INTO audit_entries (timestamp, kind, provider, session_id, endpoint,
			request_data, response_data, status_code, duration_ms, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query,
		entry.Timestamp,
		entry.Kind,
		entry.Provider,
		entry.SessionID,
		entry.Endpoint,
		nullableJSON(entry.RequestData),
		nullableJSON(entry.ResponseData),
		entry.StatusCode,
		entry.DurationMS,
		entry.ErrorMessage,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

func nullableJSON(data []byte) interface{} {
	if len(data) == 0 {
		return nil
	}
	return string(data)
}

// Get retrieves one entry by ID
func (s *Store) Get(ctx context.Context, id int64) (*Entry, error) {
	query := `
		SELECT id, timestamp, kind, provider, session_id, endpoint,
			request_data, response_data, status_code, duration_ms, error_message
		FROM audit_entries
		WHERE id = $1
	`

	entry, err := scanEntry(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("audit entry %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audit entry: %w", err)
	}
	return entry, nil
}

func scanEntry(row interface{ Scan(...interface{}) error }) (*Entry, error) {
	var e Entry
	var sessionID, endpoint, errorMessage sql.NullString
	var requestData, responseData sql.NullString
	var statusCode, durationMS sql.NullInt64

	err := row.Scan(
		&e.ID, &e.Timestamp, &e.Kind, &e.Provider, &sessionID, &endpoint,
		&requestData, &responseData, &statusCode, &durationMS, &errorMessage,
	)
	if err != nil {
		return nil, err
	}

	e.SessionID = sessionID.String
	e.Endpoint = endpoint.String
	e.ErrorMessage = errorMessage.String
	if requestData.Valid {
		e.RequestData = []byte(requestData.String)
	}
	if responseData.Valid {
		e.ResponseData = []byte(responseData.String)
	}
	e.StatusCode = int(statusCode.Int64)
	e.DurationMS = durationMS.Int64
	return &e, nil
}

// Query returns a newest-first page of entries matching the filter
func (s *Store) Query(ctx context.Context, filter Filter) (*Page, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 200 {
		filter.PageSize = 50
	}

	var conditions []string
	var args []interface{}

	addCondition := func(clause string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if filter.Provider != "" {
		addCondition("provider = $%d", filter.Provider)
	}
	if filter.Kind != "" {
		addCondition("kind = $%d", filter.Kind)
	}
	if filter.SessionID != "" {
		addCondition("session_id = $%d", filter.SessionID)
	}
	if filter.From != nil {
		addCondition("timestamp >= $%d", *filter.From)
	}
	if filter.To != nil {
		addCondition("timestamp <= $%d", *filter.To)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM audit_entries" + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count audit entries: %w", err)
	}

	offset := (filter.Page - 1) * filter.PageSize
	listQuery := fmt.Sprintf(`
		SELECT id, timestamp, kind, provider, session_id, endpoint,
			request_data, response_data, status_code, duration_ms, error_message
		FROM audit_entries%s
		ORDER BY timestamp DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)
	args = append(args, filter.PageSize, offset)

	rows, err := s.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &Page{
		Entries:  entries,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
		HasNext:  offset+len(entries) < total,
		HasPrev:  filter.Page > 1,
	}, nil
}

// Schema creates the audit_entries table
const Schema = `
	CREATE TABLE IF NOT EXISTS audit_entries (
		id BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMP NOT NULL DEFAULT NOW(),
		kind VARCHAR(20) NOT NULL,
		provider VARCHAR(50) NOT NULL,
		session_id VARCHAR(255),
		endpoint TEXT,
		request_data JSONB,
		response_data JSONB,
		status_code INT,
		duration_ms BIGINT,
		error_message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_entries_timestamp ON audit_entries(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_entries_provider ON audit_entries(provider);
	CREATE INDEX IF NOT EXISTS idx_audit_entries_session_id ON audit_entries(session_id);
`
