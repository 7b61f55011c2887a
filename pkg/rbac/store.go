package rbac

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

// Store handles RBAC data persistence. Every mutation invalidates the
// optional resolved-permission cache so stale grants never linger.
type Store struct {
	db    *sql.DB
	cache *Cache
}

// NewStore creates a new RBAC store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// WithCache attaches a resolved-permission cache to invalidate on writes
func (s *Store) WithCache(cache *Cache) *Store {
	s.cache = cache
	return s
}

// CreateRole creates a new role. A duplicate name yields Conflict.
func (s *Store) CreateRole(ctx context.Context, role *Role) error {
	query := `
		INSERT INTO roles (name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	now := time.Now()
	err := s.db.QueryRowContext(ctx, query, role.Name, role.Description, now, now).Scan(&role.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("role %s: %w", role.Name, apperr.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}

	role.CreatedAt = now
	role.UpdatedAt = now
	return nil
}

// GetRole retrieves a role by ID
func (s *Store) GetRole(ctx context.Context, roleID int64) (*Role, error) {
	query := "SELECT id, name, description, created_at, updated_at FROM roles WHERE id = $1"

	var role Role
	err := s.db.QueryRowContext(ctx, query, roleID).Scan(
		&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("role %d: %w", roleID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return &role, nil
}

// GetRoleByName retrieves a role by name
func (s *Store) GetRoleByName(ctx context.Context, name string) (*Role, error) {
	query := "SELECT id, name, description, created_at, updated_at FROM roles WHERE name = $1"

	var role Role
	err := s.db.QueryRowContext(ctx, query, name).Scan(
		&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("role %s: %w", name, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return &role, nil
}

// ListRoles returns all roles ordered by name
func (s *Store) ListRoles(ctx context.Context) ([]*Role, error) {
	query := "SELECT id, name, description, created_at, updated_at FROM roles ORDER BY name"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []*Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, &role)
	}
	return roles, rows.Err()
}

// UpdateRole updates a role's name and description
func (s *Store) UpdateRole(ctx context.Context, role *Role) error {
	query := "UPDATE roles SET name = $1, description = $2, updated_at = $3 WHERE id = $4"

	now := time.Now()
	result, err := s.db.ExecContext(ctx, query, role.Name, role.Description, now, role.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("role %s: %w", role.Name, apperr.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("role %d: %w", role.ID, apperr.ErrNotFound)
	}

	role.UpdatedAt = now
	s.cache.InvalidateAll(ctx)
	return nil
}

// DeleteRole removes a role and its assignments
func (s *Store) DeleteRole(ctx context.Context, roleID int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM roles WHERE id = $1", roleID)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("role %d: %w", roleID, apperr.ErrNotFound)
	}
	s.cache.InvalidateAll(ctx)
	return nil
}

// AddRolePermission attaches a permission to a role. A duplicate pair
// yields Conflict.
func (s *Store) AddRolePermission(ctx context.Context, roleID int64, permission string) (*RolePermission, error) {
	query := `
		INSERT INTO role_permissions (role_id, permission)
		VALUES ($1, $2)
		RETURNING id
	`

	rp := &RolePermission{RoleID: roleID, Permission: permission}
	err := s.db.QueryRowContext(ctx, query, roleID, permission).Scan(&rp.ID)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("permission %s on role %d: %w", permission, roleID, apperr.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add role permission: %w", err)
	}
	s.cache.InvalidateAll(ctx)
	return rp, nil
}

// RemoveRolePermission detaches a permission from a role
func (s *Store) RemoveRolePermission(ctx context.Context, roleID int64, permission string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM role_permissions WHERE role_id = $1 AND permission = $2", roleID, permission)
	if err != nil {
		return fmt.Errorf("failed to remove role permission: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("permission %s on role %d: %w", permission, roleID, apperr.ErrNotFound)
	}
	s.cache.InvalidateAll(ctx)
	return nil
}

// ListRolePermissions returns a role's permissions ordered by name
func (s *Store) ListRolePermissions(ctx context.Context, roleID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT permission FROM role_permissions WHERE role_id = $1 ORDER BY permission", roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role permissions: %w", err)
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// AssignRole assigns a role to a user. A duplicate pair yields Conflict.
func (s *Store) AssignRole(ctx context.Context, userID, roleID int64) (*UserRole, error) {
	query := `
		INSERT INTO user_roles (user_id, role_id)
		VALUES ($1, $2)
		RETURNING id
	`

	ur := &UserRole{UserID: userID, RoleID: roleID}
	err := s.db.QueryRowContext(ctx, query, userID, roleID).Scan(&ur.ID)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("role %d for user %d: %w", roleID, userID, apperr.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to assign role: %w", err)
	}
	s.cache.Invalidate(ctx, userID)
	return ur, nil
}

// RemoveUserRole removes a role assignment from a user
func (s *Store) RemoveUserRole(ctx context.Context, userID, roleID int64) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2", userID, roleID)
	if err != nil {
		return fmt.Errorf("failed to remove user role: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("role %d for user %d: %w", roleID, userID, apperr.ErrNotFound)
	}
	s.cache.Invalidate(ctx, userID)
	return nil
}

// ListUserRoles returns the roles assigned to a user
func (s *Store) ListUserRoles(ctx context.Context, userID int64) ([]*Role, error) {
	query := `
		SELECT r.id, r.name, r.description, r.created_at, r.updated_at
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.name
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user roles: %w", err)
	}
	defer rows.Close()

	var roles []*Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, &role)
	}
	return roles, rows.Err()
}

// ListUserPermissions returns the union of permissions across all roles
// assigned to a user, before overrides.
func (s *Store) ListUserPermissions(ctx context.Context, userID int64) ([]string, error) {
	query := `
		SELECT DISTINCT rp.permission
		FROM role_permissions rp
		JOIN user_roles ur ON ur.role_id = rp.role_id
		WHERE ur.user_id = $1
		ORDER BY rp.permission
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user permissions: %w", err)
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// AddOverride records a per-user grant or revoke. Overrides accumulate;
// the newest row for a permission wins when the set is resolved.
func (s *Store) AddOverride(ctx context.Context, override *PermissionOverride) error {
	query := `
		INSERT INTO permission_overrides (user_id, permission, granted, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	now := time.Now()
	err := s.db.QueryRowContext(ctx, query,
		override.UserID, override.Permission, override.Granted, now,
	).Scan(&override.ID)
	if err != nil {
		return fmt.Errorf("failed to add override: %w", err)
	}

	override.CreatedAt = now
	s.cache.Invalidate(ctx, override.UserID)
	return nil
}

// ClearOverrides deletes every override a user has for a permission
func (s *Store) ClearOverrides(ctx context.Context, userID int64, permission string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM permission_overrides WHERE user_id = $1 AND permission = $2", userID, permission)
	if err != nil {
		return fmt.Errorf("failed to clear overrides: %w", err)
	}
	s.cache.Invalidate(ctx, userID)
	return nil
}

// ListOverrides returns a user's overrides in insertion order. Resolution
// depends on this ordering.
func (s *Store) ListOverrides(ctx context.Context, userID int64) ([]*PermissionOverride, error) {
	query := `
		SELECT id, user_id, permission, granted, created_at
		FROM permission_overrides
		WHERE user_id = $1
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list overrides: %w", err)
	}
	defer rows.Close()

	var overrides []*PermissionOverride
	for rows.Next() {
		var o PermissionOverride
		if err := rows.Scan(&o.ID, &o.UserID, &o.Permission, &o.Granted, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan override: %w", err)
		}
		overrides = append(overrides, &o)
	}
	return overrides, rows.Err()
}
