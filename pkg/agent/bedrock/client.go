// Package bedrock relays chat messages to an AWS Bedrock agent over the
// InvokeAgent event stream API.
package bedrock

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/opschat/opschat/pkg/agentcfg"
	"github.com/opschat/opschat/pkg/apperr"
	"github.com/opschat/opschat/pkg/audit"
	"github.com/opschat/opschat/pkg/config"
	"github.com/opschat/opschat/pkg/observability"
)

const providerName = "aws"

// Identity names which Bedrock agent to invoke
type Identity struct {
	AgentID      string `json:"agent_id"`
	AgentAliasID string `json:"agent_alias_id"`
}

// Credentials are optional static AWS credentials supplied per request.
// When absent the default AWS credential chain is used.
type Credentials struct {
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	SessionToken    string `json:"session_token,omitempty"`
}

// InvokeRequest is one chat turn to relay
type InvokeRequest struct {
	Message     string
	SessionID   string
	Credentials *Credentials
	Identity    *Identity
}

// invokeFunc performs the raw upstream call and returns the
// concatenated stream text. Swappable in tests.
type invokeFunc func(ctx context.Context, region string, creds *Credentials, identity Identity, sessionID, message string) (string, error)

// Client relays chat messages to a Bedrock agent
type Client struct {
	cfg      config.AgentsConfig
	settings *agentcfg.Store
	recorder *audit.Recorder
	logger   *observability.Logger
	metrics  *observability.Metrics
	invoke   invokeFunc
}

// NewClient creates a Bedrock client. Metrics may be nil.
func NewClient(cfg config.AgentsConfig, settings *agentcfg.Store, recorder *audit.Recorder, logger *observability.Logger, metrics *observability.Metrics) *Client {
	c := &Client{
		cfg:      cfg,
		settings: settings,
		recorder: recorder,
		logger:   logger,
		metrics:  metrics,
	}
	c.invoke = c.sdkInvoke
	return c
}

// ResolveIdentity returns the agent identity to use: an explicit
// identity wins, then the active persisted configuration, then the
// environment defaults.
func (c *Client) ResolveIdentity(ctx context.Context, explicit *Identity) Identity {
	if explicit != nil && explicit.AgentID != "" && explicit.AgentAliasID != "" {
		return *explicit
	}

	if c.settings != nil {
		if active, err := c.settings.ActiveBedrock(ctx); err == nil {
			return Identity{AgentID: active.AgentID, AgentAliasID: active.AgentAliasID}
		} else if !apperr.IsNotFound(err) {
			c.logger.WithError(err).Warn("failed to load active bedrock settings, using defaults")
		}
	}

	return Identity{AgentID: c.cfg.BedrockAgentID, AgentAliasID: c.cfg.BedrockAgentAlias}
}

// Invoke relays one message. A missing session ID starts a fresh
// session. Every exchange is audited; all failures come back as
// AgentInvocationError.
func (c *Client) Invoke(ctx context.Context, req InvokeRequest) (string, string, error) {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	identity := c.ResolveIdentity(ctx, req.Identity)

	requestData, _ := json.Marshal(map[string]interface{}{
		"message":        req.Message,
		"agent_id":       identity.AgentID,
		"agent_alias_id": identity.AgentAliasID,
	})
	c.recorder.Record(ctx, &audit.Entry{
		Kind:        audit.KindRequest,
		Provider:    providerName,
		SessionID:   sessionID,
		Endpoint:    "InvokeAgent",
		RequestData: requestData,
	})

	start := time.Now()
	text, err := c.invoke(ctx, c.cfg.AWSRegion, req.Credentials, identity, sessionID, req.Message)
	duration := time.Since(start)
	if c.metrics != nil {
		c.metrics.ObserveAgentCall(providerName, "invoke", err, duration)
	}

	if err != nil {
		agentErr, ok := apperr.AsAgentError(err)
		if !ok {
			agentErr = apperr.AgentError(providerName, 0, "bedrock agent invocation failed", err)
		}
		c.recorder.Record(ctx, &audit.Entry{
			Kind:         audit.KindError,
			Provider:     providerName,
			SessionID:    sessionID,
			Endpoint:     "InvokeAgent",
			DurationMS:   duration.Milliseconds(),
			ErrorMessage: agentErr.Error(),
		})
		c.logger.WithError(agentErr).WithField("session_id", sessionID).Error("bedrock invocation failed")
		return sessionID, "", agentErr
	}

	if text == "" {
		agentErr := apperr.AgentError(providerName, 0, "bedrock agent returned an empty response", nil)
		c.recorder.Record(ctx, &audit.Entry{
			Kind:         audit.KindError,
			Provider:     providerName,
			SessionID:    sessionID,
			Endpoint:     "InvokeAgent",
			DurationMS:   duration.Milliseconds(),
			ErrorMessage: agentErr.Error(),
		})
		return sessionID, "", agentErr
	}

	responseData, _ := json.Marshal(map[string]string{"text": text})
	c.recorder.Record(ctx, &audit.Entry{
		Kind:         audit.KindResponse,
		Provider:     providerName,
		SessionID:    sessionID,
		Endpoint:     "InvokeAgent",
		ResponseData: responseData,
		StatusCode:   200,
		DurationMS:   duration.Milliseconds(),
	})
	return sessionID, text, nil
}
