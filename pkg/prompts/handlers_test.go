package prompts

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opschat/opschat/pkg/auth"
	"github.com/opschat/opschat/pkg/contextkeys"
)

func newTestHandlers(t *testing.T) (sqlmock.Sqlmock, *mux.Router) {
	t.Helper()
	store, mock := newMockStore(t)
	router := mux.NewRouter()
	NewHandlers(store).RegisterRoutes(router)
	return mock, router
}

func doAs(router *mux.Router, user *auth.User, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if user != nil {
		req = req.WithContext(contextkeys.WithUser(req.Context(), user))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func regularUser() *auth.User {
	return &auth.User{ID: 7, Email: "user@example.com", IsAdmin: false, IsActive: true, IsAuthenticated: true}
}

func adminUser() *auth.User {
	return &auth.User{ID: 1, Email: "admin@example.com", IsAdmin: true, IsActive: true, IsAuthenticated: true}
}

func TestListRequiresUser(t *testing.T) {
	_, router := newTestHandlers(t)

	rec := doAs(router, nil, http.MethodGet, "/api/prompts", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListVisiblePrompts(t *testing.T) {
	mock, router := newTestHandlers(t)

	mock.ExpectQuery("SELECT (.+) FROM prompts WHERE").
		WithArgs(int64(7)).
		WillReturnRows(promptRows("p1"))

	rec := doAs(router, regularUser(), http.MethodGet, "/api/prompts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "p1")
}

func TestListEmptyIsJSONArray(t *testing.T) {
	mock, router := newTestHandlers(t)

	mock.ExpectQuery("SELECT (.+) FROM prompts WHERE").
		WithArgs(int64(7)).
		WillReturnRows(promptRows())

	rec := doAs(router, regularUser(), http.MethodGet, "/api/prompts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestCreatePromptOwnedByCaller(t *testing.T) {
	mock, router := newTestHandlers(t)

	mock.ExpectExec("INSERT INTO prompts").
		WithArgs("my-prompt", "My Prompt", "", "", "do it", "aws",
			sqlmock.AnyArg(), false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := `{"id": "my-prompt", "title": "My Prompt", "command": "do it", "cloud_provider": "aws"}`
	rec := doAs(router, regularUser(), http.MethodPost, "/api/prompts", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"user_id":7`)
}

func TestCreateSystemPromptRequiresAdmin(t *testing.T) {
	_, router := newTestHandlers(t)

	body := `{"id": "sys", "title": "Sys", "command": "c", "is_system": true}`
	rec := doAs(router, regularUser(), http.MethodPost, "/api/prompts", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateSystemPromptAsAdminHasNoOwner(t *testing.T) {
	mock, router := newTestHandlers(t)

	mock.ExpectExec("INSERT INTO prompts").
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := `{"id": "sys", "title": "Sys", "command": "c", "is_system": true}`
	rec := doAs(router, adminUser(), http.MethodPost, "/api/prompts", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"user_id"`)
}

func TestCreatePromptMissingFields(t *testing.T) {
	_, router := newTestHandlers(t)

	rec := doAs(router, regularUser(), http.MethodPost, "/api/prompts", `{"id": "x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateForeignPromptForbidden(t *testing.T) {
	mock, router := newTestHandlers(t)

	mock.ExpectQuery("SELECT (.+) FROM prompts WHERE id").
		WithArgs("p1").
		WillReturnRows(foreignPromptRows("p1", 99))

	body := `{"title": "new", "command": "cmd"}`
	rec := doAs(router, regularUser(), http.MethodPut, "/api/prompts/p1", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func foreignPromptRows(id string, ownerID int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "title", "description", "category", "command",
		"cloud_provider", "user_id", "is_system", "created_at", "updated_at",
	}).AddRow(id, "t", "d", "c", "cmd", "aws", ownerID, false, time.Now(), time.Now())
}

func TestUpdateSystemPromptRequiresAdmin(t *testing.T) {
	mock, router := newTestHandlers(t)

	mock.ExpectQuery("SELECT (.+) FROM prompts WHERE id").
		WithArgs("sys").
		WillReturnRows(promptRows("sys"))

	body := `{"title": "new", "command": "cmd"}`
	rec := doAs(router, regularUser(), http.MethodPut, "/api/prompts/sys", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminCanUpdateAnyPrompt(t *testing.T) {
	mock, router := newTestHandlers(t)

	mock.ExpectQuery("SELECT (.+) FROM prompts WHERE id").
		WithArgs("p1").
		WillReturnRows(foreignPromptRows("p1", 99))
	mock.ExpectQuery("UPDATE prompts").
		WillReturnRows(foreignPromptRows("p1", 99))

	body := `{"title": "new", "command": "cmd"}`
	rec := doAs(router, adminUser(), http.MethodPut, "/api/prompts/p1", body)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeleteOwnPrompt(t *testing.T) {
	mock, router := newTestHandlers(t)

	mock.ExpectQuery("SELECT (.+) FROM prompts WHERE id").
		WithArgs("p1").
		WillReturnRows(foreignPromptRows("p1", 7))
	mock.ExpectExec("DELETE FROM prompts").
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := doAs(router, regularUser(), http.MethodDelete, "/api/prompts/p1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestGetPromptIncludesFavoriteFlag(t *testing.T) {
	mock, router := newTestHandlers(t)

	mock.ExpectQuery("SELECT (.+) FROM prompts WHERE id").
		WithArgs("p1").
		WillReturnRows(promptRows("p1"))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(7), "p1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	rec := doAs(router, regularUser(), http.MethodGet, "/api/prompts/p1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"is_favorite":true`)
}

func TestAddFavoriteMissingPrompt(t *testing.T) {
	mock, router := newTestHandlers(t)

	mock.ExpectQuery("SELECT (.+) FROM prompts WHERE id").
		WithArgs("nope").
		WillReturnRows(promptRows())

	rec := doAs(router, regularUser(), http.MethodPost, "/api/prompts/favorites", `{"prompt_id": "nope"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRemoveFavorite(t *testing.T) {
	mock, router := newTestHandlers(t)

	mock.ExpectExec("DELETE FROM favorite_prompts").
		WithArgs(int64(7), "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := doAs(router, regularUser(), http.MethodDelete, "/api/prompts/favorites/p1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAdminListAllForbiddenForRegularUser(t *testing.T) {
	_, router := newTestHandlers(t)

	rec := doAs(router, regularUser(), http.MethodGet, "/api/prompts/admin/all", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
