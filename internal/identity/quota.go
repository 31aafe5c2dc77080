package identity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tavoai/tavo-cli/internal/sessionfile"
)

// QuotaClient answers usage questions against the live usage endpoint. It
// obtains tokens exclusively through the lifecycle manager — it is the
// canonical downstream consumer of Manager.AccessToken.
type QuotaClient struct {
	manager *Manager
	client  *Client
	logger  *slog.Logger
}

// NewQuotaClient creates a quota client over the given manager and identity
// client.
func NewQuotaClient(manager *Manager, client *Client, logger *slog.Logger) *QuotaClient {
	if logger == nil {
		logger = slog.Default()
	}

	return &QuotaClient{manager: manager, client: client, logger: logger}
}

// Quota fetches the current request quota. Errors mean the quota could not
// be fetched; callers that only display quota treat any error as "unknown".
func (q *QuotaClient) Quota(ctx context.Context) (*sessionfile.QuotaSnapshot, error) {
	token, err := q.manager.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	snap, err := q.client.Usage(ctx, token)
	if err != nil {
		q.logger.Debug("quota fetch failed", slog.String("error", err.Error()))
		return nil, err
	}

	return snap, nil
}

// Check reports whether the user may issue further requests. Exhaustion is
// reported as ErrQuotaExceeded so callers can tell a business-rule denial
// apart from a fetch failure.
func (q *QuotaClient) Check(ctx context.Context) (bool, error) {
	snap, err := q.Quota(ctx)
	if err != nil {
		return false, err
	}

	if snap.RequestsRemaining <= 0 {
		return false, fmt.Errorf("%w: 0 of %d requests remaining", ErrQuotaExceeded, snap.RequestsLimit)
	}

	return true, nil
}
