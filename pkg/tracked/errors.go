package tracked

import "errors"

// Tracking errors.
var (
	// ErrNilItem is returned when a nil or zero-valued item is offered to a Set.
	ErrNilItem = errors.New("item must not be nil")

	// ErrNoPrimaryKey is returned by Remove when reference lookup fails and
	// the Set was built without a primary key accessor.
	ErrNoPrimaryKey = errors.New("no primary key accessor configured")

	// ErrFieldAccess reports that an accessor or snapshotter does not match
	// the entity type. It indicates a programming error, not a data condition.
	ErrFieldAccess = errors.New("field access failed")
)
