package config

// Default values for configuration options. These are "layer 0" of the
// override chain and work without any config file — the zero-config
// first-run experience.
const (
	defaultAPIBaseURL = "https://api.tavo.ai"
	defaultClientID   = "tavo-cli"
	defaultScope      = "openid profile email"
	defaultLogLevel   = "info"
)

// DefaultConfig returns a Config populated with all default values. Used
// both as the starting point for TOML decoding (so unset fields retain
// defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:  defaultAPIBaseURL,
			ClientID: defaultClientID,
			Scope:    defaultScope,
		},
		Logging: LoggingConfig{
			LogLevel: defaultLogLevel,
		},
	}
}
