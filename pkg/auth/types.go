// Package auth provides user accounts, password hashing and JWT issuance.
package auth

import "time"

// User represents a user account
type User struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	HashedPassword  string    `json:"-"` // Never expose hash
	IsAdmin         bool      `json:"is_admin"`
	IsAuthenticated bool      `json:"is_authenticated"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CanAuthenticate reports whether the account may hold a session.
// Deactivated accounts and accounts flagged out of authentication
// are both rejected at login and on every authenticated request.
func (u *User) CanAuthenticate() bool {
	return u.IsActive && u.IsAuthenticated
}
