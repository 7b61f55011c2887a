package bedrock

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/opschat/opschat/pkg/agent"
	"github.com/opschat/opschat/pkg/apperr"
	"github.com/opschat/opschat/pkg/httputil"
	"github.com/opschat/opschat/pkg/observability"
)

// CannedPrompt is a ready-made starting point shown in the chat UI.
type CannedPrompt struct {
	Title   string `json:"title"`
	Command string `json:"command"`
}

var cannedPrompts = []CannedPrompt{
	{Title: "List EC2 instances", Command: "List all EC2 instances in my account with their state and instance type"},
	{Title: "S3 bucket inventory", Command: "Show me all S3 buckets and their sizes"},
	{Title: "IAM users", Command: "List IAM users and when their access keys were last used"},
	{Title: "Cost overview", Command: "Summarize my AWS spend for the current month by service"},
	{Title: "Security groups", Command: "Find security groups that allow inbound traffic from 0.0.0.0/0"},
	{Title: "Lambda functions", Command: "List Lambda functions with their runtime and last modified date"},
}

// Handlers exposes the Bedrock chat relay over HTTP.
type Handlers struct {
	client *Client
	logger *observability.Logger
}

func NewHandlers(client *Client, logger *observability.Logger) *Handlers {
	return &Handlers{client: client, logger: logger}
}

// RegisterRoutes mounts the Bedrock chat routes. The caller is expected
// to wrap the router with authentication and the "aws" provider gate.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/aws-bedrock/chat", h.Chat).Methods(http.MethodPost)
	router.HandleFunc("/api/aws-bedrock/config", h.Config).Methods(http.MethodGet)
	router.HandleFunc("/api/aws-bedrock/prompts", h.Prompts).Methods(http.MethodGet)
}

type chatRequest struct {
	Message         string `json:"message"`
	SessionID       string `json:"session_id"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	SessionToken    string `json:"session_token"`
	AgentID         string `json:"agent_id"`
	AgentAliasID    string `json:"agent_alias_id"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	Response  string `json:"response"`
}

// Chat relays one message to the Bedrock agent. Upstream failures do
// not bubble up as 5xx: the user gets a canned apology with a 200 and
// the failure is recorded in the audit trail.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Message == "" {
		httputil.WriteBadRequest(w, "message is required")
		return
	}

	invokeReq := InvokeRequest{
		Message:   req.Message,
		SessionID: req.SessionID,
	}
	if req.AccessKeyID != "" && req.SecretAccessKey != "" {
		invokeReq.Credentials = &Credentials{
			AccessKeyID:     req.AccessKeyID,
			SecretAccessKey: req.SecretAccessKey,
			SessionToken:    req.SessionToken,
		}
	}
	if req.AgentID != "" || req.AgentAliasID != "" {
		invokeReq.Identity = &Identity{AgentID: req.AgentID, AgentAliasID: req.AgentAliasID}
	}

	sessionID, text, err := h.client.Invoke(r.Context(), invokeReq)
	if err != nil {
		if _, ok := apperr.AsAgentError(err); !ok {
			httputil.WriteError(w, err)
			return
		}
		text = agent.FallbackText
	}

	httputil.WriteSuccess(w, chatResponse{SessionID: sessionID, Response: text})
}

// Config reports the agent identity currently in effect. Credentials
// are never part of the response.
func (h *Handlers) Config(w http.ResponseWriter, r *http.Request) {
	identity := h.client.ResolveIdentity(r.Context(), nil)
	httputil.WriteSuccess(w, map[string]string{
		"agent_id":       identity.AgentID,
		"agent_alias_id": identity.AgentAliasID,
		"region":         h.client.cfg.AWSRegion,
	})
}

func (h *Handlers) Prompts(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, cannedPrompts)
}
