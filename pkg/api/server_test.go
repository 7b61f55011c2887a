package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opschat/opschat/pkg/auth"
	"github.com/opschat/opschat/pkg/config"
	"github.com/opschat/opschat/pkg/documents"
	"github.com/opschat/opschat/pkg/observability"
)

const testJWTSecret = "server-test-secret"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			AllowedOrigins: []string{"*"},
		},
		Database: config.DatabaseConfig{URL: "postgres://test"},
		Auth: config.AuthConfig{
			JWTSecret:         testJWTSecret,
			AccessTokenExpiry: time.Minute,
			BcryptCost:        4,
		},
		Agents: config.AgentsConfig{
			AWSRegion:  "us-east-1",
			ADKBaseURL: "http://adk.local",
			ADKAppName: "opschat",
			ADKTimeout: time.Minute,
		},
		Storage: config.StorageConfig{
			Type:           "filesystem",
			FilesystemRoot: t.TempDir(),
		},
		Observability: config.ObservabilityConfig{MetricsEnabled: true},
	}
}

func newTestServer(t *testing.T) (*Server, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := testConfig(t)
	blobs, err := documents.NewFilesystemBlobStore(cfg.Storage.FilesystemRoot)
	require.NoError(t, err)

	logger := observability.NewLogger(observability.ErrorLevel, &bytes.Buffer{})
	return NewServer(cfg, db, nil, blobs, logger, observability.NewMetrics()), mock
}

func bearerToken(t *testing.T, email string) string {
	t.Helper()
	token, err := auth.NewTokenIssuer(testJWTSecret, time.Minute).Issue(email, 0)
	require.NoError(t, err)
	return "Bearer " + token
}

func userRow(email string, admin, active bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "email", "hashed_password", "is_admin",
		"is_authenticated", "is_active", "created_at", "updated_at",
	}).AddRow(7, "Test User", email, "x", admin, true, active, time.Now(), time.Now())
}

func expectUserLookup(mock sqlmock.Sqlmock, email string, admin, active bool) {
	mock.ExpectQuery("SELECT (.+) FROM users WHERE email").
		WithArgs(email).
		WillReturnRows(userRow(email, admin, active))
}

func do(server *Server, method, target, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

func TestHealthNeedsNoAuth(t *testing.T) {
	server, _ := newTestServer(t)

	rec := do(server, http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpointExposed(t *testing.T) {
	server, _ := newTestServer(t)

	rec := do(server, http.MethodGet, "/metrics", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestResponsesCarryRequestID(t *testing.T) {
	server, _ := newTestServer(t)

	rec := do(server, http.MethodGet, "/health", "", "")

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestCallerRequestIDIsEchoed(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "trace-me-123")
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	assert.Equal(t, "trace-me-123", rec.Header().Get("X-Request-ID"))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	server, _ := newTestServer(t)

	for _, target := range []string{
		"/api/auth/me",
		"/api/prompts",
		"/api/chat/threads",
		"/api/documents",
		"/api/rbac/roles",
	} {
		rec := do(server, http.MethodGet, target, "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
	}
}

func TestAuthenticatedMe(t *testing.T) {
	server, mock := newTestServer(t)

	expectUserLookup(mock, "me@example.com", false, true)

	rec := do(server, http.MethodGet, "/api/auth/me", bearerToken(t, "me@example.com"), "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "me@example.com")
}

func TestDeactivatedUserRejectedBeforeAnyHandler(t *testing.T) {
	server, mock := newTestServer(t)

	expectUserLookup(mock, "gone@example.com", false, false)

	body := `{"message": "list instances"}`
	rec := do(server, http.MethodPost, "/api/aws-bedrock/chat", bearerToken(t, "gone@example.com"), body)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "deactivated")
	// The user lookup must be the only query; no access check, no
	// upstream call, no audit write.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChatRequiresProviderAccess(t *testing.T) {
	server, mock := newTestServer(t)

	expectUserLookup(mock, "user@example.com", false, true)
	mock.ExpectQuery("SELECT (.+) FROM provider_access WHERE user_id").
		WithArgs(int64(7), "aws").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	body := `{"message": "list instances"}`
	rec := do(server, http.MethodPost, "/api/aws-bedrock/chat", bearerToken(t, "user@example.com"), body)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "no access to provider: aws")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminBypassesProviderGate(t *testing.T) {
	server, mock := newTestServer(t)

	// Admins skip the provider_access lookup entirely. The request
	// reaches the handler and fails validation instead.
	expectUserLookup(mock, "admin@example.com", true, true)

	rec := do(server, http.MethodPost, "/api/aws-bedrock/chat", bearerToken(t, "admin@example.com"), `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminSurfaceForbiddenForRegulars(t *testing.T) {
	server, mock := newTestServer(t)

	for _, target := range []string{
		"/api/audit",
		"/api/rbac/roles",
		"/api/agent-config/bedrock",
		"/api/users",
	} {
		expectUserLookup(mock, "user@example.com", false, true)
		rec := do(server, http.MethodGet, target, bearerToken(t, "user@example.com"), "")
		assert.Equal(t, http.StatusForbidden, rec.Code, target)
	}
}

func TestAdminCanListAudit(t *testing.T) {
	server, mock := newTestServer(t)

	expectUserLookup(mock, "admin@example.com", true, true)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audit_entries`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT (.+) FROM audit_entries").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "timestamp", "kind", "provider", "session_id", "endpoint",
			"request_data", "response_data", "status_code", "duration_ms", "error_message",
		}))

	rec := do(server, http.MethodGet, "/api/audit", bearerToken(t, "admin@example.com"), "")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProviderAccessSelfRoute(t *testing.T) {
	server, mock := newTestServer(t)

	expectUserLookup(mock, "user@example.com", false, true)
	mock.ExpectQuery("SELECT (.+) FROM provider_access WHERE user_id").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "provider", "has_access", "is_active", "created_at", "updated_at",
		}).AddRow(1, 7, "aws", true, true, time.Now(), time.Now()))

	rec := do(server, http.MethodGet, "/api/provider-access/me", bearerToken(t, "user@example.com"), "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"provider":"aws"`)
}

func TestUnknownRouteIs404(t *testing.T) {
	server, _ := newTestServer(t)

	rec := do(server, http.MethodGet, "/api/nope", "", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
