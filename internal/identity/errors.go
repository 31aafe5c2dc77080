// Package identity implements the client side of the tavo identity service:
// the three login grants (browser, device, API key), session refresh with
// single-flight serialization, quota queries, and the facade the rest of the
// CLI consumes.
package identity

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for failure classification.
// Use errors.Is(err, identity.ErrNotAuthenticated) to check.
var (
	// ErrNotAuthenticated means no usable session exists. The remedy is a
	// fresh login.
	ErrNotAuthenticated = errors.New("identity: not authenticated")

	// ErrInvalidGrant means the service rejected a code, state, or key.
	// The grant must be restarted from scratch, never retried as-is.
	ErrInvalidGrant = errors.New("identity: invalid grant")

	// ErrRemoteUnavailable covers network failures and 5xx responses.
	ErrRemoteUnavailable = errors.New("identity: service unavailable")

	// ErrRefreshUnavailable means the session has no refresh token
	// (API-key sessions are never refreshable).
	ErrRefreshUnavailable = errors.New("identity: no refresh token")

	// ErrQuotaExceeded is a business-rule failure, not a fetch failure:
	// the quota was fetched fine and shows zero remaining requests.
	ErrQuotaExceeded = errors.New("identity: quota exceeded")

	// ErrTimeout means an interactive flow exceeded its window (browser
	// callback deadline or device poll cap).
	ErrTimeout = errors.New("identity: authorization timed out")
)

// APIError wraps a sentinel error with the HTTP status code and the service's
// error message body for debugging.
type APIError struct {
	StatusCode int
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	return fmt.Sprintf("identity: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for 2xx success codes.
func classifyStatus(code int) error {
	switch {
	case code >= http.StatusOK && code < http.StatusMultipleChoices:
		return nil
	case code == http.StatusUnauthorized:
		return ErrNotAuthenticated
	case code >= http.StatusInternalServerError:
		return ErrRemoteUnavailable
	default:
		return ErrInvalidGrant
	}
}
