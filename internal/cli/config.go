package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/crumbset/internal/paths"
	"github.com/mesh-intelligence/crumbset/pkg/types"
)

// Config keys in config.yaml.
const (
	cfgKeyBackend      = "backend"
	cfgKeyDataDir      = "data_dir"
	cfgKeySyncStrategy = "sync_strategy"
	cfgKeyLogLevel     = "log_level"
)

// settings is the resolved configuration for one command run.
type settings struct {
	configDir string
	config    types.Config
	logLevel  slog.Level
}

// loadSettings resolves directories and reads config.yaml with Viper.
// A missing config.yaml is not an error. CRUMBSET_* environment variables
// override file values.
func loadSettings() (*settings, error) {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeySyncStrategy, types.SyncImmediate)
	v.SetDefault(cfgKeyLogLevel, "warn")
	v.SetEnvPrefix("crumbset")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetConfigFile(paths.ConfigFile(configDir))
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	dataDir, err := paths.ResolveDataDir(flags.dataDir, v.GetString(cfgKeyDataDir), configDir)
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString(cfgKeyLogLevel))); err != nil {
		return nil, fmt.Errorf("log_level: %w", err)
	}

	cfg := types.Config{
		Backend:      v.GetString(cfgKeyBackend),
		DataDir:      dataDir,
		SyncStrategy: v.GetString(cfgKeySyncStrategy),
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &settings{configDir: configDir, config: cfg, logLevel: level}, nil
}

// isNotExist reports whether Viper failed because config.yaml is absent.
func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return true
	}
	return errors.Is(err, fs.ErrNotExist)
}

// newLogger returns a text logger on w at the configured level.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
