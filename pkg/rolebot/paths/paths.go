// Package paths resolves where rolebot keeps its state: the config file and
// the optional .env next to it.
package paths

import (
	"os"
	"path/filepath"
)

// AppName is the application name used for the state directory.
const AppName = "rolebot"

// StateDirEnv overrides the state directory.
const StateDirEnv = "ROLEBOT_STATE_DIR"

// ConfigPathEnv overrides the config file path.
const ConfigPathEnv = "ROLEBOT_CONFIG_PATH"

// ConfigFileName is the config file looked up in the working and state
// directories.
const ConfigFileName = "config.yaml"

// ResolveStateDir returns the state directory.
// Precedence: ROLEBOT_STATE_DIR > ~/.rolebot > . (no home directory)
func ResolveStateDir() string {
	if dir := os.Getenv(StateDirEnv); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "."+AppName)
}

// ResolveConfigPath returns the config file path.
// Precedence: explicit flag > ROLEBOT_CONFIG_PATH > ./config.yaml >
// <state dir>/config.yaml. When nothing exists the state dir path is
// returned so callers can create it there.
func ResolveConfigPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if path := os.Getenv(ConfigPathEnv); path != "" {
		return path
	}
	if _, err := os.Stat(ConfigFileName); err == nil {
		return ConfigFileName
	}
	return filepath.Join(ResolveStateDir(), ConfigFileName)
}

// ResolveDotEnvPaths returns the .env files to load, working directory first.
func ResolveDotEnvPaths() []string {
	return []string{".env", filepath.Join(ResolveStateDir(), ".env")}
}

// EnsureStateDir creates the state directory if it does not exist.
func EnsureStateDir() error {
	return os.MkdirAll(ResolveStateDir(), 0o700)
}
