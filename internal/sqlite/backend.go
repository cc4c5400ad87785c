// Package sqlite implements the SQLite storage backend for the Cupboard.
//
// JSONL files in DataDir, one per table, are the source of truth. On Attach
// the SQLite database is rebuilt from them and serves as the query engine;
// writes go to SQLite first and are then written back to the table's JSONL
// file, either at once or on Detach depending on the sync strategy.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/crumbset/pkg/types"
)

// dbFileName is the SQLite cache file inside DataDir.
const dbFileName = "cupboard.db"

// Backend implements the Cupboard interface using SQLite as the query engine
// and JSONL files as the source of truth.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	tables   map[string]*table
	seq      int64
	dirty    map[string]bool // tables with writes not yet in their JSONL file
}

var _ types.Cupboard = (*Backend)(nil)

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend() *Backend {
	return &Backend{
		tables: make(map[string]*table),
		dirty:  make(map[string]bool),
	}
}

// GetTable returns the Table for a registered entity type.
// Returns ErrCupboardDetached if the backend is not attached and
// ErrTableNotFound if the name is not registered.
func (b *Backend) GetTable(name string) (types.Table, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil, types.ErrCupboardDetached
	}
	if t, ok := b.tables[name]; ok {
		return t, nil
	}

	// Types registered after Attach get their table on first use.
	def, err := types.Lookup(name)
	if err != nil {
		return nil, err
	}
	if err := ensureJSONL(jsonlPath(b.config.DataDir, name)); err != nil {
		return nil, err
	}
	t := &table{name: name, def: def, backend: b}
	b.tables[name] = t
	return t, nil
}

// Attach initializes the backend with the given configuration.
// Creates DataDir if it does not exist, rebuilds the SQLite database and
// loads every registered table's JSONL file into it.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if config.DataDir == "" {
		config.DataDir = "."
	}
	if err := os.MkdirAll(config.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	// The database is a cache of the JSONL files; start fresh.
	dbPath := filepath.Join(config.DataDir, dbFileName)
	_ = os.Remove(dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("opening sqlite: %w", err)
	}
	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)

	for _, stmt := range schemaDDL {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return fmt.Errorf("creating schema: %w", err)
		}
	}

	b.db = db
	b.config = config
	b.seq = 0
	clear(b.dirty)

	if err := b.loadAllJSONL(); err != nil {
		db.Close()
		b.db = nil
		return fmt.Errorf("load JSONL: %w", err)
	}

	for _, name := range types.TableNames() {
		def, err := types.Lookup(name)
		if err != nil {
			continue
		}
		b.tables[name] = &table{name: name, def: def, backend: b}
	}
	b.attached = true
	return nil
}

// Detach writes any pending JSONL files, closes the SQLite connection and
// marks the backend detached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if err := b.flushLocked(); err != nil {
		return fmt.Errorf("flush pending writes: %w", err)
	}
	if err := b.db.Close(); err != nil {
		return err
	}
	b.db = nil
	b.attached = false
	b.tables = make(map[string]*table)
	return nil
}

// newUUID generates a UUID v7 for entity IDs, falling back to v4.
func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// nextSeq returns the next write sequence number. The caller must hold b.mu.
func (b *Backend) nextSeq() int64 {
	b.seq++
	return b.seq
}

// persist writes the table's JSONL file now, or defers it to Detach under
// the on_close strategy. The caller must hold b.mu.
func (b *Backend) persist(name string) error {
	if !b.config.SyncOnWrite() {
		b.dirty[name] = true
		return nil
	}
	return b.writeTableJSONL(name)
}

// flushLocked writes every deferred JSONL file. The caller must hold b.mu.
func (b *Backend) flushLocked() error {
	for name := range b.dirty {
		if err := b.writeTableJSONL(name); err != nil {
			return fmt.Errorf("flush %s: %w", name, err)
		}
		delete(b.dirty, name)
	}
	return nil
}
