package provideraccess

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opschat/opschat/pkg/auth"
	"github.com/opschat/opschat/pkg/contextkeys"
)

func TestRequireProviderDenied(t *testing.T) {
	gate, mock := newMockGate(t)
	gm := NewGateMiddleware(gate, nil)

	mock.ExpectQuery("SELECT (.+) FROM provider_access").
		WithArgs(int64(7), ProviderGCP).
		WillReturnRows(emptyAccessRows())

	handler := gm.RequireProvider(ProviderGCP)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest("POST", "/api/gcp-chat", nil)
	ctx := contextkeys.WithUser(req.Context(), &auth.User{ID: 7})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req.WithContext(ctx))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "no access to provider: gcp")
}

func TestRequireProviderAllowed(t *testing.T) {
	gate, mock := newMockGate(t)
	gm := NewGateMiddleware(gate, nil)

	mock.ExpectQuery("SELECT (.+) FROM provider_access").
		WithArgs(int64(7), ProviderAWS).
		WillReturnRows(accessRow(true, true))

	called := false
	handler := gm.RequireProvider(ProviderAWS)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest("POST", "/api/aws-bedrock/chat", nil)
	ctx := contextkeys.WithUser(req.Context(), &auth.User{ID: 7})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req.WithContext(ctx))

	assert.True(t, called)
}

func TestRequireProviderNoUser(t *testing.T) {
	gate, _ := newMockGate(t)
	gm := NewGateMiddleware(gate, nil)

	handler := gm.RequireProvider(ProviderAWS)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/api/aws-bedrock/chat", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
