// Package adk relays chat messages to a Google ADK style agent over its
// session and run HTTP endpoints.
package adk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/opschat/opschat/pkg/agentcfg"
	"github.com/opschat/opschat/pkg/apperr"
	"github.com/opschat/opschat/pkg/audit"
	"github.com/opschat/opschat/pkg/config"
	"github.com/opschat/opschat/pkg/observability"
)

const providerName = "gcp"

// sendTimeout bounds the message call itself, separate from the
// transport client's overall timeout.
const sendTimeout = 30 * time.Second

// HTTPClient is the transport surface the client needs. *http.Client
// satisfies it; tests substitute their own.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Endpoints are the two upstream URLs the relay talks to.
type Endpoints struct {
	SessionEndpoint string
	RunEndpoint     string
}

// Client relays chat messages to an ADK agent.
type Client struct {
	cfg      config.AgentsConfig
	settings *agentcfg.Store
	recorder *audit.Recorder
	logger   *observability.Logger
	metrics  *observability.Metrics
	http     HTTPClient
}

// NewClient creates an ADK client. Metrics may be nil.
func NewClient(cfg config.AgentsConfig, settings *agentcfg.Store, recorder *audit.Recorder, logger *observability.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		cfg:      cfg,
		settings: settings,
		recorder: recorder,
		logger:   logger,
		metrics:  metrics,
		http:     &http.Client{Timeout: cfg.ADKTimeout},
	}
}

// ResolveEndpoints returns the upstream URLs to use: the active
// persisted configuration wins, then the explicit endpoint settings,
// then URLs derived from the base URL.
func (c *Client) ResolveEndpoints(ctx context.Context) Endpoints {
	if c.settings != nil {
		if active, err := c.settings.ActiveADK(ctx); err == nil {
			return Endpoints{SessionEndpoint: active.SessionEndpoint, RunEndpoint: active.RunEndpoint}
		} else if !apperr.IsNotFound(err) {
			c.logger.WithError(err).Warn("failed to load active adk settings, using defaults")
		}
	}

	ep := Endpoints{
		SessionEndpoint: c.cfg.ADKSessionEndpoint,
		RunEndpoint:     c.cfg.ADKRunEndpoint,
	}
	base := strings.TrimRight(c.cfg.ADKBaseURL, "/")
	if ep.SessionEndpoint == "" && base != "" {
		ep.SessionEndpoint = base + "/sessions"
	}
	if ep.RunEndpoint == "" && base != "" {
		ep.RunEndpoint = base + "/run"
	}
	return ep
}

// EnsureSession posts to the session endpoint so the remote session
// exists before the first message. It is idempotent from the caller's
// perspective; chat callers treat a failure here as a warning because
// the session may already exist server-side.
func (c *Client) EnsureSession(ctx context.Context, sessionID string) error {
	endpoints := c.ResolveEndpoints(ctx)
	if endpoints.SessionEndpoint == "" {
		return apperr.AgentError(providerName, 0, "no session endpoint configured", nil)
	}

	target := endpoints.SessionEndpoint
	if !strings.HasSuffix(strings.TrimRight(target, "/"), "/"+sessionID) {
		target = strings.TrimRight(target, "/") + "/" + sessionID
	}

	requestData, _ := json.Marshal(map[string]string{"url": target})
	c.recorder.Record(ctx, &audit.Entry{
		Kind:        audit.KindRequest,
		Provider:    providerName,
		SessionID:   sessionID,
		Endpoint:    "EnsureSession",
		RequestData: requestData,
	})

	start := time.Now()
	status, body, err := c.post(ctx, target, []byte("{}"))
	duration := time.Since(start)
	if err == nil && status >= 400 {
		err = apperr.AgentError(providerName, status, truncateBody(body), nil)
	}
	if c.metrics != nil {
		c.metrics.ObserveAgentCall(providerName, "ensure_session", err, duration)
	}

	if err != nil {
		c.recorder.Record(ctx, &audit.Entry{
			Kind:         audit.KindError,
			Provider:     providerName,
			SessionID:    sessionID,
			Endpoint:     "EnsureSession",
			StatusCode:   status,
			DurationMS:   duration.Milliseconds(),
			ErrorMessage: err.Error(),
		})
		return err
	}

	c.recorder.Record(ctx, &audit.Entry{
		Kind:       audit.KindResponse,
		Provider:   providerName,
		SessionID:  sessionID,
		Endpoint:   "EnsureSession",
		StatusCode: status,
		DurationMS: duration.Milliseconds(),
	})
	return nil
}

// Send posts one normalized message to the run endpoint and returns the
// raw upstream payload. The caller decides how to interpret it.
func (c *Client) Send(ctx context.Context, sessionID string, message Message, appName, userID string) (json.RawMessage, error) {
	endpoints := c.ResolveEndpoints(ctx)
	if endpoints.RunEndpoint == "" {
		return nil, apperr.AgentError(providerName, 0, "no run endpoint configured", nil)
	}

	appName, userID = c.resolveIdentity(endpoints.SessionEndpoint, appName, userID)

	payload, err := json.Marshal(map[string]interface{}{
		"session_id":    sessionID,
		"new_message":   message,
		"app_name":      appName,
		"user_id":       userID,
		"start_session": false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode message payload: %w", err)
	}

	c.recorder.Record(ctx, &audit.Entry{
		Kind:        audit.KindRequest,
		Provider:    providerName,
		SessionID:   sessionID,
		Endpoint:    "Send",
		RequestData: payload,
	})

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	start := time.Now()
	status, body, err := c.post(sendCtx, endpoints.RunEndpoint, payload)
	duration := time.Since(start)
	if err == nil && status >= 400 {
		err = apperr.AgentError(providerName, status, truncateBody(body), nil)
	}
	if c.metrics != nil {
		c.metrics.ObserveAgentCall(providerName, "send", err, duration)
	}

	if err != nil {
		c.recorder.Record(ctx, &audit.Entry{
			Kind:         audit.KindError,
			Provider:     providerName,
			SessionID:    sessionID,
			Endpoint:     "Send",
			StatusCode:   status,
			DurationMS:   duration.Milliseconds(),
			ErrorMessage: err.Error(),
		})
		c.logger.WithError(err).WithField("session_id", sessionID).Error("adk send failed")
		return nil, err
	}

	if !json.Valid(body) {
		// Some deployments answer plain text; hand it up as a JSON string
		// so the normalizer's response-field path can still work.
		body, _ = json.Marshal(map[string]string{"response": string(body)})
	}

	c.recorder.Record(ctx, &audit.Entry{
		Kind:         audit.KindResponse,
		Provider:     providerName,
		SessionID:    sessionID,
		Endpoint:     "Send",
		ResponseData: body,
		StatusCode:   status,
		DurationMS:   duration.Milliseconds(),
	})
	return body, nil
}

// resolveIdentity decides the app and user identity for a send. Values
// parsed from the session endpoint path win over explicit arguments so
// messages always land in the same app and user scope the session was
// created under.
func (c *Client) resolveIdentity(sessionEndpoint, appName, userID string) (string, string) {
	parsedApp, parsedUser := parseIdentityFromURL(sessionEndpoint)
	if parsedApp != "" {
		appName = parsedApp
	}
	if parsedUser != "" {
		userID = parsedUser
	}
	if appName == "" {
		appName = c.cfg.ADKAppName
	}
	if userID == "" {
		userID = fmt.Sprintf("u_%d", time.Now().Unix())
	}
	return appName, userID
}

// parseIdentityFromURL pulls the path segments following "apps" and
// "users" out of an ADK session URL such as
// http://host/apps/opschat/users/u_123/sessions.
func parseIdentityFromURL(rawURL string) (appName, userID string) {
	if rawURL == "" {
		return "", ""
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", ""
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i := 0; i < len(segments)-1; i++ {
		switch segments[i] {
		case "apps":
			appName = segments[i+1]
		case "users":
			userID = segments[i+1]
		}
	}
	return appName, userID
}

func (c *Client) post(ctx context.Context, target string, payload []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

func truncateBody(body []byte) string {
	const max = 512
	text := strings.TrimSpace(string(body))
	if len(text) > max {
		return text[:max]
	}
	return text
}
