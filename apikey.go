package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newAPIKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage provider API keys",
	}

	cmd.AddCommand(newAPIKeySetCmd())

	return cmd
}

func newAPIKeySetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set PROVIDER_KEY",
		Short: "Register your own AI-provider API key with Tavo",
		Long: `Register your own AI-provider API key with Tavo.

Requests made with your own key do not count against the Tavo quota.
Requires an active login.`,
		Args: cobra.ExactArgs(1),
		RunE: runAPIKeySet,
	}
}

func runAPIKeySet(_ *cobra.Command, args []string) error {
	logger := buildLogger()
	svc := newService(logger)

	if err := svc.SetProviderAPIKey(context.Background(), args[0]); err != nil {
		return remediate(err)
	}

	statusf("Provider key registered.\n")

	return nil
}
