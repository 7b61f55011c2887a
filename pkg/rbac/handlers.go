package rbac

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/opschat/opschat/pkg/httputil"
)

// Handlers provides HTTP handlers for RBAC administration. All routes
// are admin-gated by the server that mounts them.
type Handlers struct {
	store    *Store
	resolver *Resolver
}

// NewHandlers creates new RBAC handlers
func NewHandlers(store *Store, resolver *Resolver) *Handlers {
	return &Handlers{store: store, resolver: resolver}
}

// RegisterRoutes registers all RBAC routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	// Role management
	router.HandleFunc("/rbac/roles", h.CreateRole).Methods("POST")
	router.HandleFunc("/rbac/roles", h.ListRoles).Methods("GET")
	router.HandleFunc("/rbac/roles/{id}", h.GetRole).Methods("GET")
	router.HandleFunc("/rbac/roles/{id}", h.UpdateRole).Methods("PUT")
	router.HandleFunc("/rbac/roles/{id}", h.DeleteRole).Methods("DELETE")

	// Role permissions
	router.HandleFunc("/rbac/roles/{id}/permissions", h.AddRolePermission).Methods("POST")
	router.HandleFunc("/rbac/roles/{id}/permissions", h.ListRolePermissions).Methods("GET")
	router.HandleFunc("/rbac/roles/{id}/permissions", h.RemoveRolePermission).Methods("DELETE")

	// User role assignments
	router.HandleFunc("/rbac/users/{id}/roles", h.AssignRole).Methods("POST")
	router.HandleFunc("/rbac/users/{id}/roles", h.GetUserRoles).Methods("GET")
	router.HandleFunc("/rbac/users/{id}/roles/{role_id}", h.RemoveUserRole).Methods("DELETE")

	// Overrides and effective permissions
	router.HandleFunc("/rbac/users/{id}/overrides", h.AddOverride).Methods("POST")
	router.HandleFunc("/rbac/users/{id}/overrides", h.ListOverrides).Methods("GET")
	router.HandleFunc("/rbac/users/{id}/overrides", h.ClearOverrides).Methods("DELETE")
	router.HandleFunc("/rbac/users/{id}/permissions", h.GetUserPermissions).Methods("GET")
}

// CreateRole creates a new role
func (h *Handlers) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}

	role := &Role{Name: req.Name, Description: req.Description}
	if err := h.store.CreateRole(r.Context(), role); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteCreated(w, role)
}

// ListRoles lists all roles
func (h *Handlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.store.ListRoles(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, roles)
}

// GetRole returns one role
func (h *Handlers) GetRole(w http.ResponseWriter, r *http.Request) {
	roleID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	role, err := h.store.GetRole(r.Context(), roleID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, role)
}

// UpdateRole updates a role's name and description
func (h *Handlers) UpdateRole(w http.ResponseWriter, r *http.Request) {
	roleID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}

	role := &Role{ID: roleID, Name: req.Name, Description: req.Description}
	if err := h.store.UpdateRole(r.Context(), role); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, role)
}

// DeleteRole removes a role
func (h *Handlers) DeleteRole(w http.ResponseWriter, r *http.Request) {
	roleID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.store.DeleteRole(r.Context(), roleID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// AddRolePermission attaches a permission to a role
func (h *Handlers) AddRolePermission(w http.ResponseWriter, r *http.Request) {
	roleID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Permission string `json:"permission"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Permission == "" {
		httputil.WriteBadRequest(w, "permission is required")
		return
	}

	rp, err := h.store.AddRolePermission(r.Context(), roleID, req.Permission)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteCreated(w, rp)
}

// ListRolePermissions lists a role's permissions
func (h *Handlers) ListRolePermissions(w http.ResponseWriter, r *http.Request) {
	roleID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	perms, err := h.store.ListRolePermissions(r.Context(), roleID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"role_id": roleID, "permissions": perms})
}

// RemoveRolePermission detaches a permission from a role
func (h *Handlers) RemoveRolePermission(w http.ResponseWriter, r *http.Request) {
	roleID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	permission := r.URL.Query().Get("permission")
	if permission == "" {
		httputil.WriteBadRequest(w, "permission query parameter is required")
		return
	}

	if err := h.store.RemoveRolePermission(r.Context(), roleID, permission); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// AssignRole assigns a role to a user
func (h *Handlers) AssignRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		RoleID int64 `json:"role_id"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.RoleID == 0 {
		httputil.WriteBadRequest(w, "role_id is required")
		return
	}

	ur, err := h.store.AssignRole(r.Context(), userID, req.RoleID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteCreated(w, ur)
}

// GetUserRoles lists the roles assigned to a user
func (h *Handlers) GetUserRoles(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	roles, err := h.store.ListUserRoles(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, roles)
}

// RemoveUserRole removes a role assignment from a user
func (h *Handlers) RemoveUserRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	roleID, ok := httputil.ParsePathInt64OrError(w, r, "role_id")
	if !ok {
		return
	}

	if err := h.store.RemoveUserRole(r.Context(), userID, roleID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// AddOverride records a per-user permission grant or revoke
func (h *Handlers) AddOverride(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Permission string `json:"permission"`
		Granted    *bool  `json:"granted"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Permission == "" {
		httputil.WriteBadRequest(w, "permission is required")
		return
	}
	if req.Granted == nil {
		httputil.WriteBadRequest(w, "granted is required")
		return
	}

	override := &PermissionOverride{
		UserID:     userID,
		Permission: req.Permission,
		Granted:    *req.Granted,
	}
	if err := h.store.AddOverride(r.Context(), override); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteCreated(w, override)
}

// ListOverrides lists a user's overrides in insertion order
func (h *Handlers) ListOverrides(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	overrides, err := h.store.ListOverrides(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, overrides)
}

// ClearOverrides deletes a user's overrides for one permission
func (h *Handlers) ClearOverrides(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	permission := r.URL.Query().Get("permission")
	if permission == "" {
		httputil.WriteBadRequest(w, "permission query parameter is required")
		return
	}

	if err := h.store.ClearOverrides(r.Context(), userID, permission); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// GetUserPermissions returns a user's effective permission set
func (h *Handlers) GetUserPermissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	set, err := h.resolver.Resolve(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"user_id":     userID,
		"permissions": set.Slice(),
	})
}
