package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const userAgent = "tavo-cli/0.1"

// Config carries the identity service coordinates. It is passed explicitly
// into every component at construction instead of living in globals.
type Config struct {
	// APIBaseURL is the identity service root, e.g. "https://api.tavo.ai".
	APIBaseURL string

	// ClientID identifies this CLI to the service. Public identifier, not
	// a secret.
	ClientID string

	// Scope is the space-separated scope string requested by the
	// interactive grants.
	Scope string
}

// Client is an HTTP client for the identity service. It handles request
// construction, bearer authentication, and error classification. Tokens are
// opaque strings to the client; it never inspects or verifies them.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger

	// sleepFunc is called to wait between device-flow polls. Defaults to
	// timeSleep. Tests override this to avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewClient creates an identity service client.
func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger,
		sleepFunc:  timeSleep,
	}
}

// AuthorizationURL builds the browser authorization page URL for the
// authorization-code grant.
func (c *Client) AuthorizationURL(state, redirectURI string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", c.cfg.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("state", state)
	q.Set("scope", c.cfg.Scope)

	return c.cfg.APIBaseURL + authorizePath + "?" + q.Encode()
}

// doJSON executes a single JSON request and decodes the response into out.
// bearer, when non-empty, is sent as an Authorization header. There is no
// automatic retry: a failed grant exchange must be restarted by the caller,
// not silently replayed.
func (c *Client) doJSON(ctx context.Context, method, path, bearer string, body, out any) error {
	var reqBody io.Reader

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("identity: encoding request: %w", err)
		}

		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIBaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("identity: creating request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("identity: request canceled: %w", ctx.Err())
		}

		return fmt.Errorf("%w: %s %s: %v", ErrRemoteUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if sentinel := classifyStatus(resp.StatusCode); sentinel != nil {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    readErrorMessage(resp.Body),
			Err:        sentinel,
		}
	}

	c.logger.Debug("request succeeded",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
	)

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("identity: decoding %s response: %w", path, err)
	}

	return nil
}

// readErrorMessage extracts a human-readable message from an error response
// body. Prefers the service's structured error fields, falls back to the raw
// body.
func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return "(no response body)"
	}

	var parsed struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}

	if json.Unmarshal(data, &parsed) == nil && parsed.Error != "" {
		if parsed.ErrorDescription != "" {
			return parsed.Error + ": " + parsed.ErrorDescription
		}

		return parsed.Error
	}

	return string(data)
}

// timeSleep waits for the given duration or until the context is canceled.
// It is the default sleepFunc for Client.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
