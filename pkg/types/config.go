package types

import "errors"

// Config holds backend selection and parameters for Cupboard.Attach.
type Config struct {
	Backend      string `json:"backend" yaml:"backend"`
	DataDir      string `json:"data_dir" yaml:"data_dir"`
	SyncStrategy string `json:"sync_strategy,omitempty" yaml:"sync_strategy,omitempty"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
)

// Sync strategies control when JSONL files are rewritten. An empty strategy
// means SyncImmediate.
const (
	SyncImmediate = "immediate"
	SyncOnClose   = "on_close"
)

// Config validation errors.
var (
	ErrBackendEmpty        = errors.New("backend must not be empty")
	ErrBackendUnknown      = errors.New("unknown backend")
	ErrSyncStrategyUnknown = errors.New("unknown sync strategy")
)

var knownBackends = map[string]bool{
	BackendSQLite: true,
}

var knownSyncStrategies = map[string]bool{
	"":            true,
	SyncImmediate: true,
	SyncOnClose:   true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if !knownSyncStrategies[c.SyncStrategy] {
		return ErrSyncStrategyUnknown
	}
	return nil
}

// SyncOnWrite reports whether each write rewrites the JSONL file at once.
func (c Config) SyncOnWrite() bool {
	return c.SyncStrategy != SyncOnClose
}
