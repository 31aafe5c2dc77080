package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Platform identifiers.
const (
	platformLinux  = "linux"
	platformDarwin = "darwin"
)

// Application directory name used across all platforms.
const appName = "tavo"

// Config file name.
const configFileName = "config.toml"

// Session file name. Lives in the private config directory (user scope) or
// in a .tavo directory next to the project (project scope).
const sessionFileName = "session.json"

// Project-scope directory name, relative to the working directory.
const projectDirName = ".tavo"

// DefaultConfigDir returns the platform-specific directory for config files.
// On Linux, respects XDG_CONFIG_HOME (defaults to ~/.config/tavo).
// On macOS, uses ~/Library/Application Support/tavo per Apple guidelines.
// Other platforms fall back to ~/.config/tavo.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxConfigDir(home)
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".config", appName)
	}
}

// linuxConfigDir returns the XDG-compliant config directory for Linux.
func linuxConfigDir(home string) string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	return filepath.Join(home, ".config", appName)
}

// DefaultConfigPath returns the full path to the default config file.
// This is the fallback when neither TAVO_CONFIG nor --config is specified.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, configFileName)
}

// SessionPath returns the path of the session file for the chosen storage
// scope. Project scope anchors the session to the current working directory
// so two checkouts can hold independent sessions; user scope is the default.
func SessionPath(project bool) string {
	if project {
		wd, err := os.Getwd()
		if err != nil {
			return ""
		}

		return filepath.Join(wd, projectDirName, sessionFileName)
	}

	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, sessionFileName)
}
