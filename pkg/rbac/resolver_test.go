package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opschat/opschat/pkg/auth"
)

func expectResolveQueries(mock sqlmock.Sqlmock, userID int64, perms []string, overrides []*PermissionOverride) {
	permRows := sqlmock.NewRows([]string{"permission"})
	for _, p := range perms {
		permRows.AddRow(p)
	}
	mock.ExpectQuery("SELECT DISTINCT rp.permission").
		WithArgs(userID).
		WillReturnRows(permRows)

	overrideRows := sqlmock.NewRows([]string{"id", "user_id", "permission", "granted", "created_at"})
	for _, o := range overrides {
		overrideRows.AddRow(o.ID, o.UserID, o.Permission, o.Granted, time.Now())
	}
	mock.ExpectQuery("SELECT (.+) FROM permission_overrides").
		WithArgs(userID).
		WillReturnRows(overrideRows)
}

func TestResolveUnionOfRoles(t *testing.T) {
	store, mock := newMockStore(t)
	resolver := NewResolver(store, nil)

	expectResolveQueries(mock, 7, []string{"threads:read", "threads:write"}, nil)

	set, err := resolver.Resolve(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, set.Has("threads:read"))
	assert.True(t, set.Has("threads:write"))
	assert.False(t, set.Has("admin:users"))
}

func TestResolveOverrideRevokeBeatsRoleGrants(t *testing.T) {
	store, mock := newMockStore(t)
	resolver := NewResolver(store, nil)

	// Two roles both grant threads:write; a single revoke override
	// still removes it from the effective set.
	expectResolveQueries(mock, 7,
		[]string{"threads:write"},
		[]*PermissionOverride{
			{ID: 1, UserID: 7, Permission: "threads:write", Granted: false},
		})

	set, err := resolver.Resolve(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, set.Has("threads:write"))
}

func TestResolveOverridesApplyInInsertionOrder(t *testing.T) {
	store, mock := newMockStore(t)
	resolver := NewResolver(store, nil)

	expectResolveQueries(mock, 7,
		nil,
		[]*PermissionOverride{
			{ID: 1, UserID: 7, Permission: "agents:bedrock", Granted: false},
			{ID: 2, UserID: 7, Permission: "agents:bedrock", Granted: true},
		})

	set, err := resolver.Resolve(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, set.Has("agents:bedrock"), "later grant should win over earlier revoke")
}

func TestResolveOverrideGrantAddsNewPermission(t *testing.T) {
	store, mock := newMockStore(t)
	resolver := NewResolver(store, nil)

	expectResolveQueries(mock, 7,
		[]string{"threads:read"},
		[]*PermissionOverride{
			{ID: 1, UserID: 7, Permission: "documents:write", Granted: true},
		})

	set, err := resolver.Resolve(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, set.Has("documents:write"))
	assert.True(t, set.Has("threads:read"))
}

func TestHasPermissionAdminBypass(t *testing.T) {
	store, _ := newMockStore(t)
	resolver := NewResolver(store, nil)

	// No query expectations: the admin check must short-circuit
	// before touching the database.
	admin := &auth.User{ID: 1, IsAdmin: true}
	ok, err := resolver.HasPermission(context.Background(), admin, "anything:at-all")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHasPermissionNonAdmin(t *testing.T) {
	store, mock := newMockStore(t)
	resolver := NewResolver(store, nil)

	expectResolveQueries(mock, 7, []string{"threads:read"}, nil)

	user := &auth.User{ID: 7}
	ok, err := resolver.HasPermission(context.Background(), user, "threads:read")
	require.NoError(t, err)
	assert.True(t, ok)

	expectResolveQueries(mock, 7, []string{"threads:read"}, nil)
	ok, err = resolver.HasPermission(context.Background(), user, "threads:write")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCache(client, time.Minute)

	store, mock := newMockStore(t)
	resolver := NewResolver(store, cache)

	expectResolveQueries(mock, 7, []string{"threads:read"}, nil)

	// First call hits the database and fills the cache.
	set, err := resolver.Resolve(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, set.Has("threads:read"))

	// Second call must be served from the cache; no further query
	// expectations are registered so a DB hit would fail the test.
	set, err = resolver.Resolve(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, set.Has("threads:read"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreMutationInvalidatesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCache(client, time.Minute)

	store, mock := newMockStore(t)
	store.WithCache(cache)
	resolver := NewResolver(store, cache)

	expectResolveQueries(mock, 7, []string{"threads:read"}, nil)
	_, err := resolver.Resolve(context.Background(), 7)
	require.NoError(t, err)

	// A new override invalidates the user's cached set.
	mock.ExpectQuery("INSERT INTO permission_overrides").
		WithArgs(int64(7), "threads:read", false, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	require.NoError(t, store.AddOverride(context.Background(),
		&PermissionOverride{UserID: 7, Permission: "threads:read", Granted: false}))

	expectResolveQueries(mock, 7,
		[]string{"threads:read"},
		[]*PermissionOverride{
			{ID: 1, UserID: 7, Permission: "threads:read", Granted: false},
		})

	set, err := resolver.Resolve(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, set.Has("threads:read"))
}
