package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tavoai/tavo-cli/internal/identity"
)

func newQuotaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Show the remaining request quota",
		Long: `Show the remaining request quota for the current billing period.

With --check, exits non-zero when the quota is exhausted. This is meant for
scripting: "tavo quota --check && run-expensive-thing".`,
		RunE: runQuota,
	}

	cmd.Flags().Bool("check", false, "exit non-zero if the quota is exhausted")

	return cmd
}

// quotaOutput is the JSON schema for `quota --json`.
type quotaOutput struct {
	RequestsRemaining int       `json:"requests_remaining"`
	RequestsLimit     int       `json:"requests_limit"`
	ResetDate         time.Time `json:"reset_date"`
}

func runQuota(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := context.Background()
	svc := newService(logger)

	check, err := cmd.Flags().GetBool("check")
	if err != nil {
		return err
	}

	if check {
		if _, err := svc.CheckQuota(ctx); err != nil {
			return remediate(err)
		}

		statusf("Quota available.\n")

		return nil
	}

	snap, err := svc.Quota(ctx)
	if err != nil {
		if errors.Is(err, identity.ErrNotAuthenticated) || errors.Is(err, identity.ErrRefreshUnavailable) {
			return remediate(err)
		}

		// A fetch failure is not fatal for display purposes — the quota is
		// simply unknown right now.
		statusf("Quota currently unavailable: %v\n", err)

		return nil
	}

	if jsonOutput() {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(quotaOutput{
			RequestsRemaining: snap.RequestsRemaining,
			RequestsLimit:     snap.RequestsLimit,
			ResetDate:         snap.ResetDate,
		})
	}

	fmt.Printf("Requests: %d of %d remaining\n", snap.RequestsRemaining, snap.RequestsLimit)
	fmt.Printf("Resets:   %s\n", formatTime(snap.ResetDate))

	return nil
}
