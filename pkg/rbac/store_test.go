package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opschat/opschat/pkg/apperr"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func TestCreateRole(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO roles").
		WithArgs("operator", "Handles day-to-day ops", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))

	role := &Role{Name: "operator", Description: "Handles day-to-day ops"}
	require.NoError(t, store.CreateRole(context.Background(), role))
	assert.Equal(t, int64(3), role.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRoleDuplicateName(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO roles").
		WillReturnError(&pq.Error{Code: "23505"})

	err := store.CreateRole(context.Background(), &Role{Name: "operator"})
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))
}

func TestGetRoleNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM roles WHERE id").
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "created_at", "updated_at"}))

	_, err := store.GetRole(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

func TestAddRolePermissionDuplicate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO role_permissions").
		WithArgs(int64(3), "threads:write").
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := store.AddRolePermission(context.Background(), 3, "threads:write")
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))
}

func TestAssignRoleDuplicate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO user_roles").
		WithArgs(int64(7), int64(3)).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := store.AssignRole(context.Background(), 7, 3)
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))
}

func TestRemoveUserRoleNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM user_roles").
		WithArgs(int64(7), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.RemoveUserRole(context.Background(), 7, 3)
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

func TestListOverridesInsertionOrder(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM permission_overrides (.+) ORDER BY id").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "permission", "granted", "created_at"}).
			AddRow(1, 7, "threads:write", true, now).
			AddRow(2, 7, "threads:write", false, now))

	overrides, err := store.ListOverrides(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, overrides, 2)
	assert.True(t, overrides[0].Granted)
	assert.False(t, overrides[1].Granted)
}

func TestAddOverride(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO permission_overrides").
		WithArgs(int64(7), "agents:bedrock", false, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

	o := &PermissionOverride{UserID: 7, Permission: "agents:bedrock", Granted: false}
	require.NoError(t, store.AddOverride(context.Background(), o))
	assert.Equal(t, int64(11), o.ID)
}

func TestListUserPermissionsUnion(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT DISTINCT rp.permission").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"permission"}).
			AddRow("threads:read").
			AddRow("threads:write"))

	perms, err := store.ListUserPermissions(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"threads:read", "threads:write"}, perms)
}
