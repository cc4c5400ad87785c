package types

import "errors"

// Table provides uniform CRUD operations for a single entity type.
// Get and Fetch return any; callers type-assert to the registered entity
// pointer type (for example *Crumb).
type Table interface {
	// Get retrieves the entity with the given ID.
	// Returns ErrNotFound if no entity exists with that ID.
	Get(id string) (any, error)

	// Set creates or updates an entity. When id is empty a new UUID v7 is
	// generated and written back through Entity.SetEntityID. Returns the
	// actual ID used.
	Set(id string, data any) (string, error)

	// Delete removes the entity with the given ID.
	// Returns ErrNotFound if no entity exists with that ID.
	Delete(id string) error

	// Fetch returns all entities whose fields equal the filter values. An
	// empty filter returns every entity in the table, oldest write first.
	Fetch(filter map[string]any) ([]any, error)
}

// Table operation errors.
var (
	ErrNotFound     = errors.New("entity not found")
	ErrInvalidID    = errors.New("invalid entity ID")
	ErrInvalidData  = errors.New("invalid entity data")
	ErrInvalidField = errors.New("invalid filter field")
)

// Entity method errors.
var (
	ErrInvalidState      = errors.New("invalid state value")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrInvalidName       = errors.New("invalid name")
	ErrInvalidLinkType   = errors.New("invalid link type")
	ErrPropertyNotFound  = errors.New("property not found")
)
