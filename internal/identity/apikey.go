package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tavoai/tavo-cli/internal/sessionfile"
)

// apiKeyTTL is the sentinel expiry for API-key sessions. API keys are not
// refreshed by this subsystem, so the session is stamped a year out rather
// than carrying a real expiry.
const apiKeyTTL = 365 * 24 * time.Hour

// LoginWithAPIKey validates a caller-supplied API key against the service
// and persists a session whose access token is the raw key itself. The
// session has no refresh token; a later Refresh on it fails with
// ErrRefreshUnavailable.
func (s *Service) LoginWithAPIKey(ctx context.Context, rawKey string) error {
	s.logger.Info("starting API key login")

	user, err := s.client.ValidateAPIKey(ctx, rawKey)
	if err != nil {
		// The validate action reports a bad key as 401; to the caller
		// that is a rejected grant, not a missing session.
		if errors.Is(err, ErrNotAuthenticated) {
			return fmt.Errorf("%w: API key rejected", ErrInvalidGrant)
		}

		return err
	}

	if user == nil {
		return fmt.Errorf("%w: validate response missing user", ErrInvalidGrant)
	}

	sess := &sessionfile.Session{
		UserID:      user.ID,
		AccessToken: rawKey,
		ExpiresAt:   time.Now().UTC().Add(apiKeyTTL),
		User:        *user,
	}

	if err := s.store.Write(sess); err != nil {
		return err
	}

	s.logger.Info("API key login successful", slog.String("user_id", user.ID))

	return nil
}
