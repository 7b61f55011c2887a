package rbac

import (
	"context"
	"fmt"

	"github.com/opschat/opschat/pkg/auth"
)

// Resolver computes effective permission sets
type Resolver struct {
	store *Store
	cache *Cache
}

// NewResolver creates a resolver. The cache may be nil to disable
// caching.
func NewResolver(store *Store, cache *Cache) *Resolver {
	return &Resolver{store: store, cache: cache}
}

// Resolve returns a user's effective non-admin permission set: the union
// of all role permissions, with overrides applied in insertion order.
// Admin bypass is deliberately not part of the set; see HasPermission.
func (r *Resolver) Resolve(ctx context.Context, userID int64) (PermissionSet, error) {
	if cached, ok := r.cache.Get(ctx, userID); ok {
		return cached, nil
	}

	perms, err := r.store.ListUserPermissions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve permissions: %w", err)
	}
	set := NewPermissionSet(perms...)

	overrides, err := r.store.ListOverrides(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve overrides: %w", err)
	}
	for _, o := range overrides {
		if o.Granted {
			set.Add(o.Permission)
		} else {
			set.Remove(o.Permission)
		}
	}

	r.cache.Set(ctx, userID, set)
	return set, nil
}

// HasPermission reports whether a user holds a permission. Admin
// accounts hold every permission.
func (r *Resolver) HasPermission(ctx context.Context, user *auth.User, permission string) (bool, error) {
	if user.IsAdmin {
		return true, nil
	}

	set, err := r.Resolve(ctx, user.ID)
	if err != nil {
		return false, err
	}
	return set.Has(permission), nil
}
