package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tavoai/tavo-cli/internal/identity"
	"github.com/tavoai/tavo-cli/internal/sessionfile"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with the Tavo identity service",
		Long: `Authenticate with the Tavo identity service.

By default this opens your browser to complete the login. On headless
machines use --device-code to authorize from another device, or pass
--api-key to log in with a Tavo API key directly.`,
		RunE: runLogin,
	}

	cmd.Flags().Bool("device-code", false, "use the device code flow (no local browser)")
	cmd.Flags().String("api-key", "", "log in with a Tavo API key instead of OAuth")
	cmd.MarkFlagsMutuallyExclusive("device-code", "api-key")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session and remove saved credentials",
		RunE:  runLogout,
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Display the authenticated user",
		RunE:  runWhoami,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := shutdownContext(context.Background(), logger)
	svc := newService(logger)

	apiKey, err := cmd.Flags().GetString("api-key")
	if err != nil {
		return err
	}

	deviceCode, err := cmd.Flags().GetBool("device-code")
	if err != nil {
		return err
	}

	switch {
	case apiKey != "":
		err = svc.LoginWithAPIKey(ctx, apiKey)
	case deviceCode:
		err = svc.LoginWithDeviceFlow(ctx, displayDeviceAuth)
	default:
		err = svc.LoginWithBrowser(ctx, openBrowser)
	}

	if err != nil {
		return err
	}

	statusf("Login successful.\n")

	return nil
}

// displayDeviceAuth shows the device flow instructions. These must always be
// visible — not suppressed by --quiet — or the user cannot complete the flow.
func displayDeviceAuth(da identity.DeviceAuth) {
	fmt.Fprintf(os.Stderr, "To sign in, visit: %s\n", da.VerificationURI)
	fmt.Fprintf(os.Stderr, "Enter code: %s\n", da.UserCode)

	if da.VerificationURIComplete != "" {
		fmt.Fprintf(os.Stderr, "Or open this link directly: %s\n", da.VerificationURIComplete)
	}
}

func runLogout(_ *cobra.Command, _ []string) error {
	logger := buildLogger()
	svc := newService(logger)

	if err := svc.Logout(context.Background()); err != nil {
		return err
	}

	statusf("Logged out.\n")

	return nil
}

// whoamiOutput is the JSON schema for `whoami --json`.
type whoamiOutput struct {
	ID                string `json:"id"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	SubscriptionPlan  string `json:"subscription_plan"`
	HasOwnProviderKey bool   `json:"has_own_provider_key"`
}

func runWhoami(_ *cobra.Command, _ []string) error {
	logger := buildLogger()
	svc := newService(logger)

	user, err := svc.User()
	if err != nil {
		return remediate(err)
	}

	if jsonOutput() {
		return printWhoamiJSON(user)
	}

	printWhoamiText(user)

	return nil
}

func printWhoamiJSON(user *sessionfile.UserProfile) error {
	out := whoamiOutput{
		ID:                user.ID,
		Email:             user.Email,
		Name:              user.Name,
		SubscriptionPlan:  user.SubscriptionPlan,
		HasOwnProviderKey: user.HasOwnProviderKey,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	return nil
}

func printWhoamiText(user *sessionfile.UserProfile) {
	fmt.Printf("User:  %s (%s)\n", user.Name, user.Email)
	fmt.Printf("ID:    %s\n", user.ID)
	fmt.Printf("Plan:  %s\n", user.SubscriptionPlan)

	if user.HasOwnProviderKey {
		fmt.Printf("Provider key: registered\n")
	}
}
