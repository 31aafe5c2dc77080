package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadOrDefault_NoFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, defaultAPIBaseURL, cfg.API.BaseURL)
	assert.Equal(t, defaultClientID, cfg.API.ClientID)
	assert.Equal(t, defaultScope, cfg.API.Scope)
	assert.Equal(t, defaultLogLevel, cfg.Logging.LogLevel)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[api]
base_url = "https://tavo.example.com"

[logging]
log_level = "debug"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://tavo.example.com", cfg.API.BaseURL)

	// Unset fields retain defaults.
	assert.Equal(t, defaultClientID, cfg.API.ClientID)
	assert.Equal(t, "debug", cfg.Logging.LogLevel)
}

func TestLoad_UnknownKeySuggestion(t *testing.T) {
	path := writeConfig(t, `
[api]
base_ur = "https://tavo.example.com"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `did you mean "api.base_url"?`)
}

func TestLoad_UnknownKeyNoSuggestion(t *testing.T) {
	path := writeConfig(t, `
[api]
completely_bogus_key_name = 1
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := writeConfig(t, `[api`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestResolve_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
[api]
base_url = "https://from-file.example.com"
`)

	env := EnvOverrides{
		APIURL:   "https://from-env.example.com",
		ClientID: "env-client",
	}

	resolved, err := Resolve(env, CLIOverrides{ConfigPath: path})
	require.NoError(t, err)

	// Env wins over the config file.
	assert.Equal(t, "https://from-env.example.com", resolved.APIBaseURL)
	assert.Equal(t, "env-client", resolved.ClientID)
	assert.NotEmpty(t, resolved.SessionPath)
}

func TestResolve_CLIConfigPathWinsOverEnv(t *testing.T) {
	cliPath := writeConfig(t, `
[api]
client_id = "from-cli-config"
`)
	envPath := writeConfig(t, `
[api]
client_id = "from-env-config"
`)

	resolved, err := Resolve(EnvOverrides{ConfigPath: envPath}, CLIOverrides{ConfigPath: cliPath})
	require.NoError(t, err)
	assert.Equal(t, "from-cli-config", resolved.ClientID)
}

func TestResolve_ProjectScopeSessionPath(t *testing.T) {
	path := writeConfig(t, "")

	userScope, err := Resolve(EnvOverrides{}, CLIOverrides{ConfigPath: path})
	require.NoError(t, err)

	projectScope, err := Resolve(EnvOverrides{}, CLIOverrides{ConfigPath: path, Project: true})
	require.NoError(t, err)

	assert.NotEqual(t, userScope.SessionPath, projectScope.SessionPath)
	assert.Contains(t, projectScope.SessionPath, projectDirName)
}
