package auth

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

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "email", "hashed_password", "is_admin",
		"is_authenticated", "is_active", "created_at", "updated_at",
	})
}

func TestCreateUser(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("Alice", "alice@example.com", "hash", false, true, true,
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	user := &User{
		Name:            "Alice",
		Email:           "alice@example.com",
		HashedPassword:  "hash",
		IsAuthenticated: true,
		IsActive:        true,
	}
	require.NoError(t, store.CreateUser(context.Background(), user))
	assert.Equal(t, int64(7), user.ID)
	assert.False(t, user.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505"})

	err := store.CreateUser(context.Background(), &User{Email: "dup@example.com"})
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))
}

func TestGetUserByEmail(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM users WHERE email").
		WithArgs("alice@example.com").
		WillReturnRows(userRows().AddRow(7, "Alice", "alice@example.com", "hash", false, true, true, now, now))

	user, err := store.GetUserByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(7), user.ID)
	assert.True(t, user.CanAuthenticate())
}

func TestGetUserNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE id").
		WithArgs(int64(99)).
		WillReturnRows(userRows())

	_, err := store.GetUser(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

func TestSetActive(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE users SET is_active").
		WithArgs(false, sqlmock.AnyArg(), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.SetActive(context.Background(), 7, false))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetAdminMissingUser(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE users SET is_admin").
		WithArgs(true, sqlmock.AnyArg(), int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.SetAdmin(context.Background(), 42, true)
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

func TestUpdatePassword(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE users SET hashed_password").
		WithArgs("newhash", sqlmock.AnyArg(), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.UpdatePassword(context.Background(), 7, "newhash"))
}

func TestListUsers(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM users ORDER BY created_at").
		WillReturnRows(userRows().
			AddRow(1, "Alice", "alice@example.com", "h1", true, true, true, now, now).
			AddRow(2, "Bob", "bob@example.com", "h2", false, true, false, now, now))

	users, err := store.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.True(t, users[0].IsAdmin)
	assert.False(t, users[1].CanAuthenticate())
}
