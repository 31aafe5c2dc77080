package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file and returns the resulting Config.
// Unknown keys are fatal errors with "did you mean?" suggestions — silently
// ignoring a typo in a config file leads to hard-to-debug behavior.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns a
// Config populated with all default values. This supports the zero-config
// first-run experience: users can log in without creating a config file.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the override chain:
// defaults -> config file -> environment variables -> CLI flags.
// The precedence order ensures CLI flags always win, matching user
// expectations for one-off overrides without editing the config file.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Resolved, error) {
	// 1. Resolve config path: CLI > env > default
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	// 2. Load config file (returns defaults if no file exists)
	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	resolved := &Resolved{
		APIBaseURL:  cfg.API.BaseURL,
		ClientID:    cfg.API.ClientID,
		Scope:       cfg.API.Scope,
		LogLevel:    cfg.Logging.LogLevel,
		SessionPath: SessionPath(cli.Project),
	}

	// 3. Apply env overrides
	if env.APIURL != "" {
		resolved.APIBaseURL = env.APIURL
	}

	if env.ClientID != "" {
		resolved.ClientID = env.ClientID
	}

	if resolved.SessionPath == "" {
		return nil, fmt.Errorf("cannot determine session path (no home or working directory)")
	}

	return resolved, nil
}
