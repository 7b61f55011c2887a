package provideraccess

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/opschat/opschat/pkg/httputil"
	"github.com/opschat/opschat/pkg/middleware"
)

// Handlers provides HTTP handlers for provider access administration.
// Mutating routes are admin-gated by the server that mounts them.
type Handlers struct {
	store *Store
}

// NewHandlers creates new provider access handlers
func NewHandlers(store *Store) *Handlers {
	return &Handlers{store: store}
}

// RegisterRoutes registers admin routes for managing access records
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/provider-access", h.Create).Methods("POST")
	router.HandleFunc("/provider-access/users/{id}", h.ListByUser).Methods("GET")
	router.HandleFunc("/provider-access/users/{id}/{provider}", h.Update).Methods("PUT")
	router.HandleFunc("/provider-access/users/{id}/{provider}", h.Delete).Methods("DELETE")
}

// RegisterSelfRoutes registers the non-admin route for a user to see
// their own provider standing.
func (h *Handlers) RegisterSelfRoutes(router *mux.Router) {
	router.HandleFunc("/provider-access/me", h.ListMine).Methods("GET")
}

// Create inserts an access record
func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID    int64  `json:"user_id"`
		Provider  string `json:"provider"`
		HasAccess bool   `json:"has_access"`
		IsActive  bool   `json:"is_active"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.UserID == 0 || req.Provider == "" {
		httputil.WriteBadRequest(w, "user_id and provider are required")
		return
	}

	access := &Access{
		UserID:    req.UserID,
		Provider:  req.Provider,
		HasAccess: req.HasAccess,
		IsActive:  req.IsActive,
	}
	if err := h.store.Create(r.Context(), access); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteCreated(w, access)
}

// ListByUser lists one user's access records
func (h *Handlers) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	records, err := h.store.ListByUser(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, records)
}

// ListMine lists the calling user's access records
func (h *Handlers) ListMine(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		httputil.WriteForbidden(w, "authentication required")
		return
	}

	records, err := h.store.ListByUser(r.Context(), user.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, records)
}

// Update adjusts the grant and active flags on a record
func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	provider := mux.Vars(r)["provider"]

	var req struct {
		HasAccess bool `json:"has_access"`
		IsActive  bool `json:"is_active"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	access, err := h.store.Update(r.Context(), userID, provider, req.HasAccess, req.IsActive)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, access)
}

// Delete removes a record
func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	provider := mux.Vars(r)["provider"]

	if err := h.store.Delete(r.Context(), userID, provider); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
