// Package apperr defines the error taxonomy shared across the service.
//
// Handlers map these errors onto HTTP status codes via pkg/httputil; stores
// and services return them so the mapping happens in exactly one place.
package apperr

import (
	"errors"
	"fmt"
)

// Sentinel errors for the common storage outcomes.
var (
	// ErrNotFound indicates a referenced entity is absent.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a unique-key violation (duplicate role name,
	// duplicate favorite, duplicate role-permission pair, ...).
	ErrConflict = errors.New("already exists")
)

// Auth failure codes carried by UnauthorizedError so clients can
// distinguish an expired session from other credential problems.
const (
	CodeTokenExpired       = "token_expired"
	CodeInvalidCredentials = "invalid_credentials"
)

// UnauthorizedError indicates missing, invalid or expired credentials.
type UnauthorizedError struct {
	Code    string
	Message string
}

func (e *UnauthorizedError) Error() string {
	return e.Message
}

// Unauthorized builds an UnauthorizedError with the given machine code.
func Unauthorized(code, message string) *UnauthorizedError {
	return &UnauthorizedError{Code: code, Message: message}
}

// ForbiddenError indicates an authenticated caller lacking permission,
// lacking provider access, or using a deactivated account.
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	return e.Reason
}

// Forbidden builds a ForbiddenError.
func Forbidden(format string, args ...interface{}) *ForbiddenError {
	return &ForbiddenError{Reason: fmt.Sprintf(format, args...)}
}

// AgentInvocationError wraps any failure talking to an upstream agent:
// network errors, non-2xx responses, malformed payloads or empty results.
type AgentInvocationError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *AgentInvocationError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s agent invocation failed (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s agent invocation failed: %s", e.Provider, e.Message)
}

func (e *AgentInvocationError) Unwrap() error {
	return e.Err
}

// AgentError builds an AgentInvocationError for the given provider.
func AgentError(provider string, statusCode int, message string, err error) *AgentInvocationError {
	return &AgentInvocationError{Provider: provider, StatusCode: statusCode, Message: message, Err: err}
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether err wraps ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// AsUnauthorized extracts an UnauthorizedError if err carries one.
func AsUnauthorized(err error) (*UnauthorizedError, bool) {
	var ue *UnauthorizedError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// AsForbidden extracts a ForbiddenError if err carries one.
func AsForbidden(err error) (*ForbiddenError, bool) {
	var fe *ForbiddenError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// AsAgentError extracts an AgentInvocationError if err carries one.
func AsAgentError(err error) (*AgentInvocationError, bool) {
	var ae *AgentInvocationError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
