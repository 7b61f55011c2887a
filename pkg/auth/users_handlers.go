package auth

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/opschat/opschat/pkg/apperr"
	"github.com/opschat/opschat/pkg/contextkeys"
	"github.com/opschat/opschat/pkg/httputil"
)

// primaryAdminID is the seed account created at install time. It can
// never be deleted or demoted so the deployment always keeps at least
// one working admin.
const primaryAdminID = 1

// RegisterUserRoutes mounts profile self-service for any
// authenticated user.
func (h *Handlers) RegisterUserRoutes(router *mux.Router) {
	router.HandleFunc("/api/users/me", h.Me).Methods(http.MethodGet)
	router.HandleFunc("/api/users/me", h.UpdateMe).Methods(http.MethodPut)
	router.HandleFunc("/api/users/me/password", h.ChangePassword).Methods(http.MethodPut)
}

// RegisterAdminUserRoutes mounts the account management surface. The
// caller is expected to wrap the router in an admin gate.
func (h *Handlers) RegisterAdminUserRoutes(router *mux.Router) {
	router.HandleFunc("/api/users", h.ListUsers).Methods(http.MethodGet)
	router.HandleFunc("/api/users/{id}", h.GetUser).Methods(http.MethodGet)
	router.HandleFunc("/api/users/{id}", h.UpdateUser).Methods(http.MethodPut)
	router.HandleFunc("/api/users/{id}", h.DeactivateUser).Methods(http.MethodDelete)
}

func (h *Handlers) currentUser(w http.ResponseWriter, r *http.Request) *User {
	user, ok := r.Context().Value(contextkeys.UserKey).(*User)
	if !ok || user == nil {
		httputil.WriteUnauthorized(w, apperr.CodeInvalidCredentials, "authentication required")
		return nil
	}
	return user
}

type userUpdateRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	IsAdmin  *bool   `json:"is_admin"`
	IsActive *bool   `json:"is_active"`
}

func applyProfileFields(user *User, req *userUpdateRequest) bool {
	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*req.Email))
		if email == "" || !strings.Contains(email, "@") {
			return false
		}
		user.Email = email
	}
	return true
}

// UpdateMe lets the caller change their own name and email. Role and
// activation flags are ignored here.
func (h *Handlers) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}

	var req userUpdateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !applyProfileFields(user, &req) {
		httputil.WriteBadRequest(w, "a valid email is required")
		return
	}

	if err := h.store.UpdateUser(r.Context(), user); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

type passwordUpdateRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword verifies the current password before storing
// a hash of the new one.
func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}

	var req passwordUpdateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !h.hasher.Verify(user.HashedPassword, req.CurrentPassword) {
		httputil.WriteBadRequest(w, "incorrect current password")
		return
	}
	if len(req.NewPassword) < 8 {
		httputil.WriteBadRequest(w, "password must be at least 8 characters")
		return
	}

	hashed, err := h.hasher.Hash(req.NewPassword)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if err := h.store.UpdatePassword(r.Context(), user.ID, hashed); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]string{"message": "password updated"})
}

func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if users == nil {
		users = []*User{}
	}
	httputil.WriteSuccess(w, users)
}

func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	user, err := h.store.GetUser(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// UpdateUser edits any account, including the admin and active flags.
// The primary admin can never lose its admin bit.
func (h *Handlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req userUpdateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := h.store.GetUser(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if userID == primaryAdminID && req.IsAdmin != nil && !*req.IsAdmin {
		httputil.WriteBadRequest(w, "cannot remove admin status from the primary admin user")
		return
	}

	if !applyProfileFields(user, &req) {
		httputil.WriteBadRequest(w, "a valid email is required")
		return
	}
	if err := h.store.UpdateUser(r.Context(), user); err != nil {
		httputil.WriteError(w, err)
		return
	}

	if req.IsAdmin != nil && *req.IsAdmin != user.IsAdmin {
		if err := h.store.SetAdmin(r.Context(), userID, *req.IsAdmin); err != nil {
			httputil.WriteError(w, err)
			return
		}
		user.IsAdmin = *req.IsAdmin
	}
	if req.IsActive != nil && *req.IsActive != user.IsActive {
		if err := h.store.SetActive(r.Context(), userID, *req.IsActive); err != nil {
			httputil.WriteError(w, err)
			return
		}
		user.IsActive = *req.IsActive
	}

	httputil.WriteSuccess(w, user)
}

// DeactivateUser soft-deletes an account. The row is kept so audit
// entries and owned resources stay attributable.
func (h *Handlers) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	caller := h.currentUser(w, r)
	if caller == nil {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if userID == primaryAdminID {
		httputil.WriteBadRequest(w, "cannot delete the primary admin user")
		return
	}
	if userID == caller.ID {
		httputil.WriteBadRequest(w, "cannot delete your own account")
		return
	}

	if err := h.store.SetActive(r.Context(), userID, false); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
