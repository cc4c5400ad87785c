package types

import "errors"

// Cupboard defines the interface for backend-agnostic storage access.
// Callers attach to a backend, access tables by name, and detach when done.
type Cupboard interface {
	// GetTable returns the Table for the given name.
	// Returns ErrTableNotFound if no entity type is registered under name.
	GetTable(name string) (Table, error)

	// Attach connects the Cupboard to the backend described by config.
	// Creates the DataDir if it does not exist. Returns ErrAlreadyAttached
	// if called while already attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent: multiple calls succeed.
	// After Detach, operations on tables return ErrCupboardDetached.
	Detach() error
}

// Cupboard lifecycle errors.
var (
	ErrCupboardDetached = errors.New("cupboard is detached")
	ErrAlreadyAttached  = errors.New("cupboard is already attached")
	ErrTableNotFound    = errors.New("table not found")
)
