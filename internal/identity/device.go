package identity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tavoai/tavo-cli/internal/sessionfile"
)

// devicePollFallbackInterval applies when the service omits a poll interval.
const devicePollFallbackInterval = 5 * time.Second

// devicePollMaxAttempts caps polling at 180 attempts — a 15-minute
// authorization window at the 5-second interval. The flow fails as expired
// after the cap regardless of what the server keeps answering.
const devicePollMaxAttempts = 180

// LoginWithDeviceFlow performs the headless device authorization grant:
//  1. Requests a device/user code pair from the service
//  2. Calls display so the CLI can show the user code and verification URL
//  3. Polls the token endpoint at the server-specified interval until the
//     user approves, the service denies, or the attempt cap is reached
//  4. Persists the session
//
// This flow never opens a browser itself; display gets everything the user
// needs to authorize from another machine. Cancelling ctx abandons polling
// without writing anything — no partial session is ever persisted mid-poll.
func (s *Service) LoginWithDeviceFlow(ctx context.Context, display func(DeviceAuth)) error {
	s.logger.Info("starting device auth flow")

	da, err := s.client.RequestDeviceCode(ctx)
	if err != nil {
		return fmt.Errorf("device code request failed: %w", err)
	}

	s.logger.Info("device code received, waiting for user authorization",
		slog.Int("interval", da.Interval),
	)

	display(*da)

	interval := time.Duration(da.Interval) * time.Second
	if interval <= 0 {
		interval = devicePollFallbackInterval
	}

	for attempt := 0; attempt < devicePollMaxAttempts; attempt++ {
		if err := s.client.sleepFunc(ctx, interval); err != nil {
			return fmt.Errorf("device auth canceled: %w", err)
		}

		poll, err := s.client.pollDeviceToken(ctx, da.DeviceCode)
		if err != nil {
			return err
		}

		switch {
		case poll.Token != nil:
			return s.finishDeviceLogin(poll)
		case poll.Error == "authorization_pending":
			continue
		case poll.Status == "denied":
			return fmt.Errorf("%w: authorization denied", ErrInvalidGrant)
		default:
			return fmt.Errorf("%w: unexpected poll response %q", ErrInvalidGrant, poll.Error)
		}
	}

	return fmt.Errorf("%w: device code expired after %d polls", ErrTimeout, devicePollMaxAttempts)
}

// finishDeviceLogin persists the session from an approved poll response.
func (s *Service) finishDeviceLogin(poll *devicePoll) error {
	if poll.User == nil {
		return fmt.Errorf("%w: poll response missing user", ErrInvalidGrant)
	}

	sess := &sessionfile.Session{
		UserID:       poll.User.ID,
		AccessToken:  poll.Token.AccessToken,
		RefreshToken: poll.Token.RefreshToken,
		ExpiresAt:    poll.Token.ExpiresAt,
		User:         *poll.User,
	}

	if err := s.store.Write(sess); err != nil {
		return err
	}

	s.logger.Info("device login successful",
		slog.String("user_id", sess.UserID),
		slog.Time("expires_at", sess.ExpiresAt),
	)

	return nil
}
