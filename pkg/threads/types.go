// Package threads stores per-user chat history: threads and the
// messages inside them.
package threads

import "time"

// Roles a chat message can carry.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Thread is one conversation owned by a user.
type Thread struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	Title         string    `json:"title"`
	CloudProvider string    `json:"cloud_provider"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Message is one turn inside a thread.
type Message struct {
	ID        int64     `json:"id"`
	ThreadID  int64     `json:"thread_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidRole reports whether role is one a message may carry.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAssistant
}
