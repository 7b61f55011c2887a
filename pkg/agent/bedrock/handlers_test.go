package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opschat/opschat/pkg/agent"
	"github.com/opschat/opschat/pkg/observability"
)

func newTestHandlers(t *testing.T) (*Handlers, *Client, sqlmock.Sqlmock, *mux.Router) {
	t.Helper()
	client, mock := newTestClient(t)
	logger := observability.NewLogger(observability.ErrorLevel, nil)
	h := NewHandlers(client, logger)
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	return h, client, mock, router
}

func TestChatSuccess(t *testing.T) {
	_, client, mock, router := newTestHandlers(t)

	mock.ExpectQuery("SELECT (.+) FROM bedrock_settings").
		WillReturnRows(activeBedrockRows("a", "b"))
	expectAuditInsert(mock, 1)
	expectAuditInsert(mock, 2)

	client.invoke = func(ctx context.Context, region string, creds *Credentials, identity Identity, sessionID, message string) (string, error) {
		return "hello from bedrock", nil
	}

	body := `{"message": "hi", "session_id": "sess-9"}`
	req := httptest.NewRequest(http.MethodPost, "/api/aws-bedrock/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sess-9", resp.SessionID)
	assert.Equal(t, "hello from bedrock", resp.Response)
}

func TestChatUpstreamFailureSoftFallback(t *testing.T) {
	_, client, mock, router := newTestHandlers(t)

	mock.ExpectQuery("SELECT (.+) FROM bedrock_settings").
		WillReturnRows(activeBedrockRows("a", "b"))
	expectAuditInsert(mock, 1)
	expectAuditInsert(mock, 2)

	client.invoke = func(ctx context.Context, region string, creds *Credentials, identity Identity, sessionID, message string) (string, error) {
		return "", errors.New("access denied")
	}

	body := `{"message": "hi", "session_id": "sess-9"}`
	req := httptest.NewRequest(http.MethodPost, "/api/aws-bedrock/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sess-9", resp.SessionID)
	assert.Equal(t, agent.FallbackText, resp.Response)
}

func TestChatRequiresMessage(t *testing.T) {
	_, _, _, router := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/api/aws-bedrock/chat", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatRejectsBadJSON(t *testing.T) {
	_, _, _, router := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/api/aws-bedrock/chat", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfigReturnsIdentityWithoutSecrets(t *testing.T) {
	_, _, mock, router := newTestHandlers(t)

	mock.ExpectQuery("SELECT (.+) FROM bedrock_settings").
		WillReturnRows(activeBedrockRows("stored-agent", "stored-alias"))

	req := httptest.NewRequest(http.MethodGet, "/api/aws-bedrock/config", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "stored-agent", resp["agent_id"])
	assert.Equal(t, "stored-alias", resp["agent_alias_id"])
	assert.Equal(t, "us-east-1", resp["region"])
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestPromptsList(t *testing.T) {
	_, _, _, router := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/api/aws-bedrock/prompts", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var prompts []CannedPrompt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prompts))
	assert.NotEmpty(t, prompts)
	for _, p := range prompts {
		assert.NotEmpty(t, p.Title)
		assert.NotEmpty(t, p.Command)
	}
}
