package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tavoai/tavo-cli/internal/config"
	"github.com/tavoai/tavo-cli/internal/identity"
)

// saveFlags snapshots the global flag state and restores it after the test.
// newRootCmd() re-binds flags to their zero values, so tests that touch
// globals must set them AFTER building the command.
func saveFlags(t *testing.T) {
	t.Helper()

	oldVerbose, oldQuiet, oldJSON := flagVerbose, flagQuiet, flagJSON
	oldCfg := resolvedCfg

	t.Cleanup(func() {
		flagVerbose, flagQuiet, flagJSON = oldVerbose, oldQuiet, oldJSON
		resolvedCfg = oldCfg
	})
}

func TestBuildLogger_Default(t *testing.T) {
	saveFlags(t)

	flagVerbose = false
	flagQuiet = false
	resolvedCfg = &config.Resolved{LogLevel: "info"}

	logger := buildLogger()
	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))
}

func TestBuildLogger_ConfigLevel(t *testing.T) {
	saveFlags(t)

	flagVerbose = false
	flagQuiet = false
	resolvedCfg = &config.Resolved{LogLevel: "warn"}

	logger := buildLogger()
	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelWarn))
	assert.False(t, logger.Handler().Enabled(context.Background(), slog.LevelInfo))
}

func TestBuildLogger_VerboseWinsOverConfig(t *testing.T) {
	saveFlags(t)

	flagVerbose = true
	flagQuiet = false
	resolvedCfg = &config.Resolved{LogLevel: "error"}

	logger := buildLogger()
	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))
}

func TestBuildLogger_Quiet(t *testing.T) {
	saveFlags(t)

	flagVerbose = false
	flagQuiet = true
	resolvedCfg = &config.Resolved{LogLevel: "debug"}

	logger := buildLogger()
	assert.False(t, logger.Handler().Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelError))
}

func TestRemediate_NotAuthenticated(t *testing.T) {
	err := remediate(fmt.Errorf("wrapped: %w", identity.ErrNotAuthenticated))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tavo login")
}

func TestRemediate_RefreshUnavailable(t *testing.T) {
	err := remediate(identity.ErrRefreshUnavailable)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tavo login")
}

func TestRemediate_QuotaExceeded(t *testing.T) {
	err := remediate(identity.ErrQuotaExceeded)
	require.Error(t, err)
	assert.ErrorIs(t, err, identity.ErrQuotaExceeded)
	assert.Contains(t, err.Error(), "tavo apikey set")
}

func TestRemediate_PassthroughOtherErrors(t *testing.T) {
	sentinel := errors.New("boom")
	assert.Equal(t, sentinel, remediate(sentinel))
}

func TestNewRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}

	assert.Contains(t, names, "login")
	assert.Contains(t, names, "logout")
	assert.Contains(t, names, "whoami")
	assert.Contains(t, names, "quota")
	assert.Contains(t, names, "apikey")
}
