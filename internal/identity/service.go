package identity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tavoai/tavo-cli/internal/sessionfile"
)

// Service is the entry point the rest of the CLI consumes. It wires the
// store, the HTTP client, the lifecycle manager, and the quota client
// together; other subsystems never touch those directly.
type Service struct {
	cfg     Config
	store   SessionStore
	client  *Client
	manager *Manager
	quota   *QuotaClient
	logger  *slog.Logger

	// Browser flow knobs. Fixed in production; tests shrink the timeout
	// and bind an ephemeral port.
	listenAddr     string
	browserTimeout time.Duration
}

// NewService assembles the identity subsystem. httpClient may be nil, in
// which case http.DefaultClient is used.
func NewService(cfg Config, store SessionStore, httpClient *http.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	client := NewClient(cfg, httpClient, logger)
	manager := NewManager(store, client, logger)

	return &Service{
		cfg:            cfg,
		store:          store,
		client:         client,
		manager:        manager,
		quota:          NewQuotaClient(manager, client, logger),
		logger:         logger,
		listenAddr:     defaultListenAddr,
		browserTimeout: browserFlowTimeout,
	}
}

// IsAuthenticated reports whether a usable session exists, refreshing an
// expired one if possible. Never errors.
func (s *Service) IsAuthenticated(ctx context.Context) bool {
	return s.manager.IsAuthenticated(ctx)
}

// AccessToken returns a currently valid bearer token for authenticated
// requests. This is the only token accessor other subsystems should use.
func (s *Service) AccessToken(ctx context.Context) (string, error) {
	return s.manager.AccessToken(ctx)
}

// User returns the stored user profile. The profile is a cache from the last
// grant; it is not re-fetched here.
func (s *Service) User() (*sessionfile.UserProfile, error) {
	sess, err := s.store.Read()
	if err != nil {
		return nil, err
	}

	if sess == nil {
		return nil, ErrNotAuthenticated
	}

	return &sess.User, nil
}

// Quota fetches the live request quota.
func (s *Service) Quota(ctx context.Context) (*sessionfile.QuotaSnapshot, error) {
	return s.quota.Quota(ctx)
}

// CheckQuota reports whether the user may issue further requests.
func (s *Service) CheckQuota(ctx context.Context) (bool, error) {
	return s.quota.Check(ctx)
}

// Logout revokes the session remotely (best effort) and deletes the local
// session file. The local delete always happens: a stuck local session is
// worse than an unrevoked-but-expiring remote token.
func (s *Service) Logout(ctx context.Context) error {
	sess, err := s.store.Read()
	if err != nil {
		return err
	}

	if sess != nil {
		token := sess.RefreshToken
		if token == "" {
			token = sess.AccessToken
		}

		if revokeErr := s.client.RevokeToken(ctx, token); revokeErr != nil {
			s.logger.Warn("remote revoke failed, deleting local session anyway",
				slog.String("error", revokeErr.Error()),
			)
		}
	}

	if err := s.store.Delete(); err != nil {
		return fmt.Errorf("removing session: %w", err)
	}

	s.logger.Info("logged out")

	return nil
}

// SetProviderAPIKey registers a personal AI-provider key with the service,
// then records the registration in the stored profile.
func (s *Service) SetProviderAPIKey(ctx context.Context, key string) error {
	token, err := s.manager.AccessToken(ctx)
	if err != nil {
		return err
	}

	if err := s.client.SaveProviderKey(ctx, token, key); err != nil {
		return fmt.Errorf("registering provider key: %w", err)
	}

	return s.manager.PatchHasOwnProviderKey(true)
}
