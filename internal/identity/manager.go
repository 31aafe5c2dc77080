package identity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tavoai/tavo-cli/internal/sessionfile"
)

// ExpirySkew is the safety margin before expiry within which a token is
// proactively refreshed, so callers never hand out a token that lapses
// mid-request.
const ExpirySkew = 5 * time.Minute

// SessionStore persists the session. Defined at the consumer (identity
// package) per Go convention "accept interfaces, return structs";
// sessionfile.Store is the real implementation. Read returns (nil, nil)
// when no usable session exists.
type SessionStore interface {
	Read() (*sessionfile.Session, error)
	Write(*sessionfile.Session) error
	Delete() error
}

// Manager keeps the stored access token continuously valid. It decides when
// a refresh is needed, serializes refresh calls so concurrent callers share
// one remote request, and is the only writer of refreshed credentials.
type Manager struct {
	store  SessionStore
	client *Client
	logger *slog.Logger

	// refreshGroup collapses concurrent refreshes into a single in-flight
	// call. Two refreshes racing on the same refresh token would each
	// invalidate the other's token at the service.
	refreshGroup singleflight.Group
}

// NewManager creates a token lifecycle manager over the given store and
// identity client.
func NewManager(store SessionStore, client *Client, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{store: store, client: client, logger: logger}
}

// IsAuthenticated reports whether a usable session exists. An expired
// session counts if a refresh succeeds. Never returns an error: refresh
// failure, a missing file, and a corrupt file all read as "not logged in".
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	s, err := m.store.Read()
	if err != nil || s == nil {
		return false
	}

	if !s.Expired(0) {
		return true
	}

	if err := m.Refresh(ctx); err != nil {
		m.logger.Debug("refresh during auth check failed", slog.String("error", err.Error()))
		return false
	}

	return true
}

// AccessToken returns a currently valid access token, refreshing first when
// the stored one expires within the skew window. Returns ErrNotAuthenticated
// when no session exists; refresh failures are returned as-is so callers can
// distinguish "re-login needed" from a transient outage.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	s, err := m.store.Read()
	if err != nil {
		return "", err
	}

	if s == nil {
		return "", ErrNotAuthenticated
	}

	if !s.Expired(ExpirySkew) {
		return s.AccessToken, nil
	}

	if err := m.Refresh(ctx); err != nil {
		return "", err
	}

	s, err = m.store.Read()
	if err != nil || s == nil {
		return "", ErrNotAuthenticated
	}

	return s.AccessToken, nil
}

// Refresh exchanges the stored refresh token for fresh credentials and
// persists them. Concurrent callers attach to the single in-flight attempt
// instead of issuing duplicate refresh requests. The session is never
// deleted on failure: a transient network error must not force a re-login.
func (m *Manager) Refresh(ctx context.Context) error {
	_, err, shared := m.refreshGroup.Do("refresh", func() (any, error) {
		return nil, m.doRefresh(ctx)
	})

	if shared {
		m.logger.Debug("refresh result shared with concurrent caller")
	}

	return err
}

func (m *Manager) doRefresh(ctx context.Context) error {
	s, err := m.store.Read()
	if err != nil {
		return err
	}

	if s == nil {
		return ErrNotAuthenticated
	}

	if s.RefreshToken == "" {
		return fmt.Errorf("%w: session was created from an API key", ErrRefreshUnavailable)
	}

	// A caller that raced a just-completed refresh lands here after the
	// flight group drained; the re-read session is already fresh and a
	// second remote call would invalidate the rotated refresh token.
	if !s.Expired(ExpirySkew) {
		return nil
	}

	grant, err := m.client.RefreshToken(ctx, s.RefreshToken)
	if err != nil {
		return fmt.Errorf("refreshing session: %w", err)
	}

	s.AccessToken = grant.AccessToken

	// The service may rotate the refresh token; absence means keep the old one.
	if grant.RefreshToken != "" {
		s.RefreshToken = grant.RefreshToken
	}

	// Expiry only ever moves forward.
	if grant.ExpiresAt.After(s.ExpiresAt) {
		s.ExpiresAt = grant.ExpiresAt
	}

	if err := m.store.Write(s); err != nil {
		return err
	}

	m.logger.Info("session refreshed", slog.Time("expires_at", s.ExpiresAt))

	return nil
}

// PatchHasOwnProviderKey rewrites the one profile field that records whether
// the user registered a personal provider key, preserving all tokens.
func (m *Manager) PatchHasOwnProviderKey(v bool) error {
	s, err := m.store.Read()
	if err != nil {
		return err
	}

	if s == nil {
		return ErrNotAuthenticated
	}

	s.User.HasOwnProviderKey = v

	return m.store.Write(s)
}
