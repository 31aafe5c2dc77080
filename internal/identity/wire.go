package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/tavoai/tavo-cli/internal/sessionfile"
)

// Identity service endpoint paths, relative to Config.APIBaseURL.
const (
	authorizePath   = "/auth/authorize"
	tokenPath       = "/auth/token"
	deviceCodePath  = "/auth/device/code"
	deviceTokenPath = "/auth/device/token"
	usagePath       = "/api/usage"
	providerKeyPath = "/auth/provider-key"
)

// Device poll headers.
const (
	headerDeviceCode = "X-Device-Code"
	headerClientID   = "X-Client-Id"
)

// tokenGrant is the success shape shared by the code exchange and refresh
// actions on the token endpoint.
type tokenGrant struct {
	AccessToken  string                   `json:"access_token"`
	RefreshToken string                   `json:"refresh_token"`
	ExpiresAt    time.Time                `json:"expires_at"`
	User         *sessionfile.UserProfile `json:"user"`
}

// ExchangeCode trades an authorization code from the browser callback for
// bearer tokens.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*tokenGrant, error) {
	req := struct {
		Action      string `json:"action"`
		GrantType   string `json:"grant_type"`
		ClientID    string `json:"client_id"`
		Code        string `json:"code"`
		RedirectURI string `json:"redirect_uri"`
	}{
		Action:      "exchange_code",
		GrantType:   "authorization_code",
		ClientID:    c.cfg.ClientID,
		Code:        code,
		RedirectURI: redirectURI,
	}

	var grant tokenGrant
	if err := c.doJSON(ctx, http.MethodPost, tokenPath, "", req, &grant); err != nil {
		return nil, err
	}

	return &grant, nil
}

// RefreshToken trades a refresh token for a fresh access token. The service
// may rotate the refresh token; a missing refresh_token in the response means
// the old one remains valid.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*tokenGrant, error) {
	req := struct {
		Action       string `json:"action"`
		RefreshToken string `json:"refresh_token"`
		ClientID     string `json:"client_id"`
	}{
		Action:       "refresh_token",
		RefreshToken: refreshToken,
		ClientID:     c.cfg.ClientID,
	}

	var grant tokenGrant
	if err := c.doJSON(ctx, http.MethodPost, tokenPath, "", req, &grant); err != nil {
		return nil, err
	}

	return &grant, nil
}

// ValidateAPIKey asks the service whether a raw API key is valid and, if so,
// which user it belongs to.
func (c *Client) ValidateAPIKey(ctx context.Context, key string) (*sessionfile.UserProfile, error) {
	req := struct {
		Action string `json:"action"`
		Token  string `json:"token"`
	}{
		Action: "validate_token",
		Token:  key,
	}

	var resp struct {
		User *sessionfile.UserProfile `json:"user"`
	}

	if err := c.doJSON(ctx, http.MethodPost, tokenPath, "", req, &resp); err != nil {
		return nil, err
	}

	return resp.User, nil
}

// RevokeToken tells the service to invalidate a token. Best-effort: callers
// treat failures as advisory.
func (c *Client) RevokeToken(ctx context.Context, token string) error {
	req := struct {
		Action string `json:"action"`
		Token  string `json:"token"`
	}{
		Action: "revoke_token",
		Token:  token,
	}

	return c.doJSON(ctx, http.MethodPost, tokenPath, "", req, nil)
}

// DeviceAuth holds the device code response fields that the CLI displays to
// the user, plus the polling parameters.
type DeviceAuth struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	Interval                int    `json:"interval"`
}

// RequestDeviceCode starts the device authorization grant by requesting a
// device/user code pair.
func (c *Client) RequestDeviceCode(ctx context.Context) (*DeviceAuth, error) {
	hostname, _ := os.Hostname()

	req := struct {
		ClientID   string `json:"client_id"`
		Scope      string `json:"scope"`
		DeviceInfo struct {
			Platform string `json:"platform"`
			Hostname string `json:"hostname"`
		} `json:"deviceInfo"`
	}{
		ClientID: c.cfg.ClientID,
		Scope:    c.cfg.Scope,
	}
	req.DeviceInfo.Platform = runtime.GOOS
	req.DeviceInfo.Hostname = hostname

	var da DeviceAuth
	if err := c.doJSON(ctx, http.MethodPost, deviceCodePath, "", req, &da); err != nil {
		return nil, err
	}

	return &da, nil
}

// devicePoll is one poll response from the device token endpoint. Exactly one
// of Token, Error, or Status is populated.
type devicePoll struct {
	Token *struct {
		AccessToken  string    `json:"accessToken"`
		RefreshToken string    `json:"refreshToken"`
		ExpiresAt    time.Time `json:"expiresAt"`
	} `json:"token"`
	User   *sessionfile.UserProfile `json:"user"`
	Error  string                   `json:"error"`
	Status string                   `json:"status"`
}

// pollDeviceToken performs a single device-flow poll.
func (c *Client) pollDeviceToken(ctx context.Context, deviceCode string) (*devicePoll, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIBaseURL+deviceTokenPath, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(headerDeviceCode, deviceCode)
	req.Header.Set(headerClientID, c.cfg.ClientID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, fmt.Errorf("%w: device poll: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	// The poll endpoint reports pending/denied in the body with non-2xx
	// statuses, so decode the body regardless of status code.
	var p devicePoll
	if decodeErr := json.NewDecoder(resp.Body).Decode(&p); decodeErr != nil {
		if sentinel := classifyStatus(resp.StatusCode); sentinel != nil {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: "(unparsable poll response)", Err: sentinel}
		}

		return nil, fmt.Errorf("identity: decoding device poll response: %w", decodeErr)
	}

	return &p, nil
}

// Usage fetches the live quota for the bearer token.
func (c *Client) Usage(ctx context.Context, accessToken string) (*sessionfile.QuotaSnapshot, error) {
	var resp struct {
		Data struct {
			RequestsRemaining int       `json:"requests_remaining"`
			RequestsLimit     int       `json:"requests_limit"`
			ResetDate         time.Time `json:"reset_date"`
		} `json:"data"`
	}

	if err := c.doJSON(ctx, http.MethodGet, usagePath, accessToken, nil, &resp); err != nil {
		return nil, err
	}

	return &sessionfile.QuotaSnapshot{
		RequestsRemaining: resp.Data.RequestsRemaining,
		RequestsLimit:     resp.Data.RequestsLimit,
		ResetDate:         resp.Data.ResetDate,
	}, nil
}

// SaveProviderKey registers a personal AI-provider key with the service for
// the authenticated user.
func (c *Client) SaveProviderKey(ctx context.Context, accessToken, providerKey string) error {
	req := struct {
		ProviderKey string `json:"provider_key"`
	}{ProviderKey: providerKey}

	return c.doJSON(ctx, http.MethodPost, providerKeyPath, accessToken, req, nil)
}
