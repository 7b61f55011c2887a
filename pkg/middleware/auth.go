// Package middleware provides request authentication and admin gating.
package middleware

import (
	"net/http"
	"strings"

	"github.com/opschat/opschat/pkg/apperr"
	"github.com/opschat/opschat/pkg/auth"
	"github.com/opschat/opschat/pkg/contextkeys"
	"github.com/opschat/opschat/pkg/httputil"
)

// AuthMiddleware authenticates requests with a Bearer JWT
type AuthMiddleware struct {
	issuer   *auth.TokenIssuer
	users    *auth.Store
	optional bool // If true, allow requests without auth
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(issuer *auth.TokenIssuer, users *auth.Store, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		issuer:   issuer,
		users:    users,
		optional: optional,
	}
}

// Handler wraps an HTTP handler with authentication. The authenticated
// user is placed in the request context; deactivated accounts are
// rejected here, before any handler runs.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, apperr.CodeInvalidCredentials, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			httputil.WriteUnauthorized(w, apperr.CodeInvalidCredentials, "invalid authorization header format")
			return
		}

		email, err := m.issuer.Parse(parts[1])
		if err != nil {
			httputil.WriteError(w, err)
			return
		}

		user, err := m.users.GetUserByEmail(r.Context(), email)
		if err != nil {
			if apperr.IsNotFound(err) {
				httputil.WriteUnauthorized(w, apperr.CodeInvalidCredentials, "could not validate credentials")
				return
			}
			httputil.WriteInternalError(w, err)
			return
		}

		if !user.CanAuthenticate() {
			httputil.WriteForbidden(w, "account deactivated")
			return
		}

		ctx := contextkeys.WithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUser extracts the authenticated user from request context
func GetUser(r *http.Request) *auth.User {
	user, ok := r.Context().Value(contextkeys.UserKey).(*auth.User)
	if !ok {
		return nil
	}
	return user
}

// RequireAdmin creates middleware that only passes admin accounts
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUser(r)
		if user == nil {
			httputil.WriteUnauthorized(w, apperr.CodeInvalidCredentials, "authentication required")
			return
		}
		if !user.IsAdmin {
			httputil.WriteForbidden(w, "admin privileges required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
