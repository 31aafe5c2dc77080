package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig   = "TAVO_CONFIG"
	EnvAPIURL   = "TAVO_API_URL"
	EnvClientID = "TAVO_CLIENT_ID"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // TAVO_CONFIG: override config file path
	APIURL     string // TAVO_API_URL: override identity service base URL
	ClientID   string // TAVO_CLIENT_ID: override client identifier
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. This does not modify the Config; callers apply the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		APIURL:     os.Getenv(EnvAPIURL),
		ClientID:   os.Getenv(EnvClientID),
	}
}
