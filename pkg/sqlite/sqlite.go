// Package sqlite exposes the SQLite Cupboard backend to code outside this
// module.
package sqlite

import (
	"github.com/mesh-intelligence/crumbset/internal/sqlite"
	"github.com/mesh-intelligence/crumbset/pkg/types"
)

// NewBackend creates a detached SQLite backend.
//
//	backend := sqlite.NewBackend()
//	err := backend.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".crumbset/data",
//	})
//	defer backend.Detach()
func NewBackend() types.Cupboard {
	return sqlite.NewBackend()
}

// Open creates a backend and attaches it to config.
func Open(config types.Config) (types.Cupboard, error) {
	b := sqlite.NewBackend()
	if err := b.Attach(config); err != nil {
		return nil, err
	}
	return b, nil
}
