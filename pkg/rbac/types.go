// Package rbac implements role-based access control with per-user
// permission overrides.
//
// Permissions are opaque strings like "threads:write" or "admin:users".
// A user's effective permission set is the union of the permissions of
// every role assigned to them, with overrides applied afterwards in the
// order they were created: a granted override adds a permission, a
// revoked override removes it, whatever roles say.
//
// Admin accounts bypass the set entirely; that short-circuit lives in
// Resolver.HasPermission, not in the resolved set itself.
package rbac

import (
	"sort"
	"time"
)

// Role is a named bundle of permissions
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RolePermission attaches one permission string to a role
type RolePermission struct {
	ID         int64  `json:"id"`
	RoleID     int64  `json:"role_id"`
	Permission string `json:"permission"`
}

// UserRole assigns a role to a user
type UserRole struct {
	ID     int64 `json:"id"`
	UserID int64 `json:"user_id"`
	RoleID int64 `json:"role_id"`
}

// PermissionOverride grants or revokes a single permission for a single
// user, independent of their roles. Overrides are applied in creation
// order, so a later override wins over an earlier one for the same
// permission.
type PermissionOverride struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Permission string    `json:"permission"`
	Granted    bool      `json:"granted"`
	CreatedAt  time.Time `json:"created_at"`
}

// PermissionSet is a user's resolved set of permission strings
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from a list of permissions
func NewPermissionSet(perms ...string) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Has reports whether the set contains a permission
func (s PermissionSet) Has(perm string) bool {
	_, ok := s[perm]
	return ok
}

// Add inserts a permission into the set
func (s PermissionSet) Add(perm string) {
	s[perm] = struct{}{}
}

// Remove deletes a permission from the set
func (s PermissionSet) Remove(perm string) {
	delete(s, perm)
}

// Slice returns the permissions sorted for stable output
func (s PermissionSet) Slice() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
