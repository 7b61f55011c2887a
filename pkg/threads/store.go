package threads

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/opschat/opschat/pkg/apperr"
)

// Store handles chat thread persistence. Every query is scoped to the
// owning user so another user's threads are indistinguishable from
// missing ones.
type Store struct {
	db *sql.DB
}

// NewStore creates a new thread store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const threadColumns = "id, user_id, title, cloud_provider, created_at, updated_at"

func scanThread(row interface{ Scan(...interface{}) error }) (*Thread, error) {
	var t Thread
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.CloudProvider, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateThread starts a new conversation for a user.
func (s *Store) CreateThread(ctx context.Context, userID int64, title, cloudProvider string) (*Thread, error) {
	query := `
		INSERT INTO chat_threads (user_id, title, cloud_provider, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING id
	`

	now := time.Now()
	thread := &Thread{UserID: userID, Title: title, CloudProvider: cloudProvider, CreatedAt: now, UpdatedAt: now}
	err := s.db.QueryRowContext(ctx, query, userID, title, cloudProvider, now).Scan(&thread.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create thread: %w", err)
	}
	return thread, nil
}

// GetThread returns one of the user's threads.
func (s *Store) GetThread(ctx context.Context, userID, threadID int64) (*Thread, error) {
	query := fmt.Sprintf("SELECT %s FROM chat_threads WHERE id = $1 AND user_id = $2", threadColumns)

	thread, err := scanThread(s.db.QueryRowContext(ctx, query, threadID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("thread %d: %w", threadID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}
	return thread, nil
}

// ListThreads returns the user's threads, most recently touched first.
// An empty cloudProvider matches all of them.
func (s *Store) ListThreads(ctx context.Context, userID int64, cloudProvider string) ([]*Thread, error) {
	query := fmt.Sprintf("SELECT %s FROM chat_threads WHERE user_id = $1", threadColumns)
	args := []interface{}{userID}
	if cloudProvider != "" {
		args = append(args, cloudProvider)
		query += " AND cloud_provider = $2"
	}
	query += " ORDER BY updated_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	defer rows.Close()

	var threads []*Thread
	for rows.Next() {
		thread, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan thread: %w", err)
		}
		threads = append(threads, thread)
	}
	return threads, rows.Err()
}

// UpdateThread renames one of the user's threads.
func (s *Store) UpdateThread(ctx context.Context, userID, threadID int64, title string) (*Thread, error) {
	query := fmt.Sprintf(`
		UPDATE chat_threads
		SET title = $3, updated_at = $4
		WHERE id = $1 AND user_id = $2
		RETURNING %s
	`, threadColumns)

	thread, err := scanThread(s.db.QueryRowContext(ctx, query, threadID, userID, title, time.Now()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("thread %d: %w", threadID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update thread: %w", err)
	}
	return thread, nil
}

// DeleteThread removes one of the user's threads and its messages.
func (s *Store) DeleteThread(ctx context.Context, userID, threadID int64) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM chat_threads WHERE id = $1 AND user_id = $2", threadID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete thread: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete thread: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("thread %d: %w", threadID, apperr.ErrNotFound)
	}
	return nil
}

const messageColumns = "id, thread_id, role, content, created_at"

func scanMessage(row interface{ Scan(...interface{}) error }) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.ThreadID, &m.Role, &m.Content, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMessages returns a thread's messages oldest first. Ownership of
// the thread must be checked by the caller.
func (s *Store) ListMessages(ctx context.Context, threadID int64) ([]*Message, error) {
	query := fmt.Sprintf("SELECT %s FROM chat_messages WHERE thread_id = $1 ORDER BY created_at, id", messageColumns)

	rows, err := s.db.QueryContext(ctx, query, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, message)
	}
	return messages, rows.Err()
}

// AddMessage appends one turn to a thread and bumps the thread's
// updated_at so listings sort it to the top.
func (s *Store) AddMessage(ctx context.Context, threadID int64, role, content string) (*Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to add message: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	message := &Message{ThreadID: threadID, Role: role, Content: content, CreatedAt: now}
	err = tx.QueryRowContext(ctx,
		"INSERT INTO chat_messages (thread_id, role, content, created_at) VALUES ($1, $2, $3, $4) RETURNING id",
		threadID, role, content, now,
	).Scan(&message.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to add message: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE chat_threads SET updated_at = $2 WHERE id = $1", threadID, now); err != nil {
		return nil, fmt.Errorf("failed to touch thread: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to add message: %w", err)
	}
	return message, nil
}

// DeleteMessage removes a message, but only from a thread the user
// owns.
func (s *Store) DeleteMessage(ctx context.Context, userID, messageID int64) error {
	query := `
		DELETE FROM chat_messages m
		USING chat_threads t
		WHERE m.id = $1 AND m.thread_id = t.id AND t.user_id = $2
	`

	result, err := s.db.ExecContext(ctx, query, messageID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("message %d: %w", messageID, apperr.ErrNotFound)
	}
	return nil
}

// Schema creates the chat history tables.
const Schema = `
CREATE TABLE IF NOT EXISTS chat_threads (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	title TEXT NOT NULL DEFAULT '',
	cloud_provider TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_chat_threads_user ON chat_threads (user_id);
CREATE INDEX IF NOT EXISTS idx_chat_threads_provider ON chat_threads (cloud_provider);

CREATE TABLE IF NOT EXISTS chat_messages (
	id BIGSERIAL PRIMARY KEY,
	thread_id BIGINT NOT NULL REFERENCES chat_threads(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_thread ON chat_messages (thread_id);
`
