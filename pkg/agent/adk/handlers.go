package adk

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/opschat/opschat/pkg/agent"
	"github.com/opschat/opschat/pkg/httputil"
	"github.com/opschat/opschat/pkg/observability"
)

// Handlers exposes the ADK chat relay over HTTP.
type Handlers struct {
	client *Client
	logger *observability.Logger
}

func NewHandlers(client *Client, logger *observability.Logger) *Handlers {
	return &Handlers{client: client, logger: logger}
}

// RegisterRoutes mounts the ADK chat routes. The caller is expected to
// wrap the router with authentication and the "gcp" provider gate.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/gcp-chat", h.Chat).Methods(http.MethodPost)
}

type chatRequest struct {
	SessionID  string          `json:"session_id"`
	NewMessage json.RawMessage `json:"new_message"`
	AppName    string          `json:"app_name"`
	UserID     string          `json:"user_id"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	Response  string `json:"response"`
}

// Chat relays one message to the ADK agent. The session is bootstrapped
// optimistically: a bootstrap failure is only a warning because the
// session may already exist upstream. Send failures and unrecognizable
// payloads both come back as a canned apology with a 200, keeping the
// conversation alive; the failure itself is audited and logged.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.NewMessage) == 0 {
		httputil.WriteBadRequest(w, "new_message is required")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx := r.Context()
	if err := h.client.EnsureSession(ctx, sessionID); err != nil {
		h.logger.WithError(err).WithField("session_id", sessionID).Warn("session bootstrap failed, sending anyway")
	}

	message := NormalizeMessage(req.NewMessage)
	raw, err := h.client.Send(ctx, sessionID, message, req.AppName, req.UserID)
	if err != nil {
		httputil.WriteSuccess(w, chatResponse{SessionID: sessionID, Response: agent.FallbackText})
		return
	}

	text, ok := ExtractText(raw)
	if !ok {
		h.logger.WithField("session_id", sessionID).Warn("unrecognized adk response shape")
		text = agent.FallbackText
	} else {
		text = ReflowTables(text)
	}

	httputil.WriteSuccess(w, chatResponse{SessionID: sessionID, Response: text})
}
