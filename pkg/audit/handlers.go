package audit

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/opschat/opschat/pkg/httputil"
)

// Handlers provides admin read access to the audit trail
type Handlers struct {
	store *Store
}

// NewHandlers creates new audit handlers
func NewHandlers(store *Store) *Handlers {
	return &Handlers{store: store}
}

// RegisterRoutes registers the audit routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/audit", h.List).Methods("GET")
	router.HandleFunc("/audit/{id}", h.Get).Methods("GET")
}

// List returns a filtered, newest-first page of audit entries
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	filter := Filter{
		Provider:  r.URL.Query().Get("provider"),
		Kind:      r.URL.Query().Get("kind"),
		SessionID: r.URL.Query().Get("session_id"),
		Page:      httputil.QueryInt(r, "page", 1),
		PageSize:  httputil.QueryIntBounded(r, "page_size", 50, 1, 200),
	}

	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			httputil.WriteBadRequest(w, "from must be RFC3339")
			return
		}
		filter.From = &t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			httputil.WriteBadRequest(w, "to must be RFC3339")
			return
		}
		filter.To = &t
	}

	page, err := h.store.Query(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, page)
}

// Get returns one audit entry by ID
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	entry, err := h.store.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, entry)
}
