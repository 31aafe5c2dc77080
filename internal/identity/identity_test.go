package identity

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/tavoai/tavo-cli/internal/sessionfile"
)

// testLogger discards all output so test runs stay quiet.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestService wires a Service against a mock identity server and a
// session file in a temp dir. Browser-flow knobs are reset to test-friendly
// values (ephemeral port, short deadline).
func newTestService(t *testing.T, handler http.Handler) (*Service, sessionfile.Store) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := sessionfile.Store{Path: filepath.Join(t.TempDir(), "session.json")}

	cfg := Config{
		APIBaseURL: srv.URL,
		ClientID:   "tavo-cli",
		Scope:      "openid profile email",
	}

	svc := NewService(cfg, store, srv.Client(), testLogger())
	svc.listenAddr = "127.0.0.1:0"
	svc.browserTimeout = 5 * time.Second

	return svc, store
}

// testUser is the canonical user profile returned by mock servers.
func testUser() sessionfile.UserProfile {
	return sessionfile.UserProfile{
		ID:               "user-1",
		Email:            "alice@example.com",
		Name:             "Alice",
		SubscriptionPlan: sessionfile.PlanPro,
		Quota: sessionfile.QuotaSnapshot{
			RequestsRemaining: 42,
			RequestsLimit:     100,
			ResetDate:         time.Date(2099, 2, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

// validSession returns an unexpired session as a grant would persist it.
func validSession() *sessionfile.Session {
	u := testUser()

	return &sessionfile.Session{
		UserID:       u.ID,
		AccessToken:  "access-123",
		RefreshToken: "refresh-456",
		ExpiresAt:    time.Now().Add(time.Hour).UTC(),
		User:         u,
	}
}

// expiredSession returns a session whose access token lapsed an hour ago.
func expiredSession() *sessionfile.Session {
	s := validSession()
	s.ExpiresAt = time.Now().Add(-time.Hour).UTC()

	return s
}

// writeJSON encodes v onto a test response.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// decodeAction reads the action field (and the rest of the body) from a
// token-endpoint request.
func decodeAction(r *http.Request) map[string]any {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	return body
}

// decodeBody decodes a JSON request body into out.
func decodeBody(r *http.Request, out any) error {
	return json.NewDecoder(r.Body).Decode(out)
}

// grantResponse builds the success body for exchange_code/refresh_token.
func grantResponse(accessToken, refreshToken string, expiresAt time.Time, withUser bool) map[string]any {
	resp := map[string]any{
		"access_token": accessToken,
		"expires_at":   expiresAt.Format(time.RFC3339),
	}

	if refreshToken != "" {
		resp["refresh_token"] = refreshToken
	}

	if withUser {
		resp["user"] = testUser()
	}

	return resp
}

// noSleep replaces the poll sleep so device-flow tests run instantly.
func noSleep(svc *Service) {
	svc.client.sleepFunc = func(ctx context.Context, _ time.Duration) error {
		return ctx.Err()
	}
}
