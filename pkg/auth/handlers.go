package auth

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/opschat/opschat/pkg/apperr"
	"github.com/opschat/opschat/pkg/contextkeys"
	"github.com/opschat/opschat/pkg/httputil"
)

// Handlers exposes registration and token issuance over HTTP.
type Handlers struct {
	store  *Store
	hasher *PasswordHasher
	issuer *TokenIssuer
}

func NewHandlers(store *Store, hasher *PasswordHasher, issuer *TokenIssuer) *Handlers {
	return &Handlers{store: store, hasher: hasher, issuer: issuer}
}

// RegisterPublicRoutes mounts the routes that need no token.
func (h *Handlers) RegisterPublicRoutes(router *mux.Router) {
	router.HandleFunc("/api/auth/register", h.Register).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/login", h.Login).Methods(http.MethodPost)
}

// RegisterProtectedRoutes mounts the routes that expect an
// authenticated user in the request context.
func (h *Handlers) RegisterProtectedRoutes(router *mux.Router) {
	router.HandleFunc("/api/auth/refresh", h.Refresh).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/me", h.Me).Methods(http.MethodGet)
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		httputil.WriteBadRequest(w, "a valid email is required")
		return
	}
	if len(req.Password) < 8 {
		httputil.WriteBadRequest(w, "password must be at least 8 characters")
		return
	}

	hashed, err := h.hasher.Hash(req.Password)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	user := &User{
		Name:            req.Name,
		Email:           req.Email,
		HashedPassword:  hashed,
		IsAuthenticated: true,
		IsActive:        true,
	}
	if err := h.store.CreateUser(r.Context(), user); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteCreated(w, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        *User  `json:"user,omitempty"`
}

// Login exchanges credentials for a bearer token. A wrong email and a
// wrong password produce the same answer.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil || !h.hasher.Verify(user.HashedPassword, req.Password) {
		httputil.WriteUnauthorized(w, apperr.CodeInvalidCredentials, "incorrect email or password")
		return
	}
	if !user.IsActive {
		httputil.WriteForbidden(w, "account has been deactivated")
		return
	}

	token, err := h.issuer.Issue(user.Email, 0)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, tokenResponse{AccessToken: token, TokenType: "bearer", User: user})
}

// Refresh issues a fresh token for the already-authenticated caller.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(contextkeys.UserKey).(*User)
	if !ok || user == nil {
		httputil.WriteUnauthorized(w, apperr.CodeInvalidCredentials, "authentication required")
		return
	}

	token, err := h.issuer.Issue(user.Email, 0)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

// Me returns the caller's own account.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(contextkeys.UserKey).(*User)
	if !ok || user == nil {
		httputil.WriteUnauthorized(w, apperr.CodeInvalidCredentials, "authentication required")
		return
	}
	httputil.WriteSuccess(w, user)
}
