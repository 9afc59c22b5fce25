package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// ConfigDir is the directory name under the user config root.
const ConfigDir = "nimbus"

// ConfigDirectory returns the nimbus configuration directory.
//
// Locations:
//   - Windows: %USERPROFILE%\.config\nimbus
//   - Unix: ~/.config/nimbus
func ConfigDirectory() string {
	if runtime.GOOS == "windows" {
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), "nimbus")
			}
			userProfile = homeDir
		}
		return filepath.Join(userProfile, ".config", ConfigDir)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "nimbus")
	}
	return filepath.Join(homeDir, ".config", ConfigDir)
}

// DefaultConfigPath returns the path of the INI config file.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDirectory(), "config")
}

// StateDBPath returns the path of the local state database holding the
// persisted session. The catalog snapshot is never persisted; it is
// rebuilt from the backend on the next poll.
func StateDBPath() string {
	return filepath.Join(ConfigDirectory(), "state.db")
}

// EnsureConfigDir creates the configuration directory if it doesn't exist.
// 0700 restricts access to the owner: the state DB holds session tokens.
func EnsureConfigDir() error {
	return os.MkdirAll(ConfigDirectory(), 0700)
}
