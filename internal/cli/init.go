package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/crumbset/internal/paths"
	"github.com/mesh-intelligence/crumbset/internal/sqlite"
	"github.com/mesh-intelligence/crumbset/pkg/types"
)

// configFile holds the structure written to config.yaml.
type configFile struct {
	Backend      string `yaml:"backend"`
	DataDir      string `yaml:"data_dir,omitempty"`
	SyncStrategy string `yaml:"sync_strategy"`
	LogLevel     string `yaml:"log_level"`
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create config.yaml and the data directory",
		Long:  "Write a default config.yaml if there is none, then attach and detach\nthe backend so every table file exists.",
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := writeConfigIfMissing(paths.ConfigFile(configDir), flags.dataDir); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	st, err := loadSettings()
	if err != nil {
		return err
	}
	backend := sqlite.NewBackend()
	if err := backend.Attach(st.config); err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	if err := backend.Detach(); err != nil {
		return fmt.Errorf("finalize storage: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized crumbset in %s\n", st.config.DataDir)
	return nil
}

// writeConfigIfMissing creates config.yaml with default values. An existing
// file is left alone.
func writeConfigIfMissing(path, dataDir string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	cfg := configFile{
		Backend:      types.BackendSQLite,
		DataDir:      dataDir,
		SyncStrategy: types.SyncImmediate,
		LogLevel:     "warn",
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
