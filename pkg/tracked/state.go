package tracked

// EntityState classifies a tracked entity relative to its stored version.
// The numeric order is the merge precedence: Deleted > Added > Modified > Unchanged.
type EntityState int

const (
	// Unchanged entities were loaded from storage and show no difference.
	Unchanged EntityState = iota
	// Modified entities were loaded from storage and differ from their snapshot.
	Modified
	// Added entities were created after load and are not yet persisted.
	Added
	// Deleted entities are no longer live but still owe a delete to storage.
	Deleted
)

var stateNames = [...]string{
	Unchanged: "unchanged",
	Modified:  "modified",
	Added:     "added",
	Deleted:   "deleted",
}

func (s EntityState) String() string {
	if s < Unchanged || s > Deleted {
		return "unknown"
	}
	return stateNames[s]
}

// Merge returns whichever of a and b has the higher precedence.
func Merge(a, b EntityState) EntityState {
	if b > a {
		return b
	}
	return a
}
