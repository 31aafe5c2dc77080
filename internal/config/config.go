// Package config implements TOML configuration loading and platform-specific
// path resolution for tavo. It supports a three-layer override chain
// (defaults -> config file -> environment) with CLI flags applied by the
// command layer on top.
package config

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	API     APIConfig     `toml:"api"`
	Logging LoggingConfig `toml:"logging"`
}

// APIConfig points the CLI at an identity/quota service deployment. The
// defaults target the hosted service; self-hosted deployments override
// base_url and client_id.
type APIConfig struct {
	BaseURL  string `toml:"base_url"`
	ClientID string `toml:"client_id"`
	Scope    string `toml:"scope"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	LogLevel string `toml:"log_level"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings.
type CLIOverrides struct {
	ConfigPath string
	Project    bool
}

// Resolved is the effective configuration after the override chain has been
// applied: service coordinates, log level, and the session file path for the
// selected storage scope.
type Resolved struct {
	APIBaseURL  string
	ClientID    string
	Scope       string
	LogLevel    string
	SessionPath string
}
