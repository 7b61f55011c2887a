// Package prompts holds the prompt library: curated system prompts,
// user-authored prompts and per-user favorites.
package prompts

import "time"

// Prompt is one reusable chat command. System prompts are shipped with
// the product and owned by nobody; user prompts belong to their author.
type Prompt struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	Command       string    `json:"command"`
	CloudProvider string    `json:"cloud_provider"`
	UserID        *int64    `json:"user_id,omitempty"`
	IsSystem      bool      `json:"is_system"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Favorite marks a prompt as a favorite of one user.
type Favorite struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	PromptID  string    `json:"prompt_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter narrows prompt listings.
type Filter struct {
	Category      string
	CloudProvider string
	Limit         int
	Offset        int
}
