package agentcfg

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/opschat/opschat/pkg/httputil"
)

// Handlers provides admin HTTP handlers for agent configuration
type Handlers struct {
	store *Store
}

// NewHandlers creates new agent configuration handlers
func NewHandlers(store *Store) *Handlers {
	return &Handlers{store: store}
}

// RegisterRoutes registers all agent configuration routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/agent-config/bedrock", h.CreateBedrock).Methods("POST")
	router.HandleFunc("/agent-config/bedrock", h.ListBedrock).Methods("GET")
	router.HandleFunc("/agent-config/bedrock/active", h.GetActiveBedrock).Methods("GET")

	router.HandleFunc("/agent-config/adk", h.CreateADK).Methods("POST")
	router.HandleFunc("/agent-config/adk", h.ListADK).Methods("GET")
	router.HandleFunc("/agent-config/adk/active", h.GetActiveADK).Methods("GET")
}

// CreateBedrock records a new Bedrock configuration
func (h *Handlers) CreateBedrock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgentID      string `json:"agent_id"`
		AgentAliasID string `json:"agent_alias_id"`
		IsActive     bool   `json:"is_active"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.AgentID == "" || req.AgentAliasID == "" {
		httputil.WriteBadRequest(w, "agent_id and agent_alias_id are required")
		return
	}

	settings := &BedrockSettings{
		AgentID:      req.AgentID,
		AgentAliasID: req.AgentAliasID,
		IsActive:     req.IsActive,
	}
	if err := h.store.CreateBedrock(r.Context(), settings); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteCreated(w, settings)
}

// ListBedrock lists all Bedrock configuration records
func (h *Handlers) ListBedrock(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.ListBedrock(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, settings)
}

// GetActiveBedrock returns the currently active Bedrock configuration
func (h *Handlers) GetActiveBedrock(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.ActiveBedrock(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, settings)
}

// CreateADK records a new ADK configuration
func (h *Handlers) CreateADK(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionEndpoint string `json:"session_endpoint"`
		RunEndpoint     string `json:"run_endpoint"`
		IsActive        bool   `json:"is_active"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.SessionEndpoint == "" || req.RunEndpoint == "" {
		httputil.WriteBadRequest(w, "session_endpoint and run_endpoint are required")
		return
	}

	settings := &ADKSettings{
		SessionEndpoint: req.SessionEndpoint,
		RunEndpoint:     req.RunEndpoint,
		IsActive:        req.IsActive,
	}
	if err := h.store.CreateADK(r.Context(), settings); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteCreated(w, settings)
}

// ListADK lists all ADK configuration records
func (h *Handlers) ListADK(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.ListADK(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, settings)
}

// GetActiveADK returns the currently active ADK configuration
func (h *Handlers) GetActiveADK(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.ActiveADK(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, settings)
}
