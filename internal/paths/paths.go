// Package paths resolves the configuration and data directories used by the
// crumbset CLI.
package paths

import (
	"os"
	"path/filepath"
)

// Directory names relative to the working directory and the config dir.
const (
	DefaultConfigDirName = ".crumbset"
	DefaultDataDirName   = "data"
	ConfigFileName       = "config.yaml"
)

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "CRUMBSET_CONFIG_DIR"
	EnvDataDir   = "CRUMBSET_DATA_DIR"
)

// getwd is replaced in tests.
var getwd = os.Getwd

// ResolveConfigDir returns the configuration directory.
// Precedence: flag > CRUMBSET_CONFIG_DIR > $(CWD)/.crumbset.
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	cwd, err := getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultConfigDirName), nil
}

// ResolveDataDir returns the data directory.
// Precedence: flag > CRUMBSET_DATA_DIR > configValue > configDir/data.
// A relative configValue is taken relative to configDir, so a config.yaml
// can be moved together with its data.
func ResolveDataDir(flag, configValue, configDir string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvDataDir); env != "" {
		return filepath.Abs(env)
	}
	if configValue != "" {
		if filepath.IsAbs(configValue) {
			return filepath.Clean(configValue), nil
		}
		return filepath.Join(configDir, configValue), nil
	}
	return filepath.Join(configDir, DefaultDataDirName), nil
}

// ConfigFile returns the config.yaml path inside configDir.
func ConfigFile(configDir string) string {
	return filepath.Join(configDir, ConfigFileName)
}
