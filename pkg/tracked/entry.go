package tracked

// Entry is the tracking record for one entity: the instance itself, its
// lifecycle state, and the snapshot used for dirty detection. Entries are
// created only by New (Unchanged) and Add (Added).
type Entry[T any] struct {
	instance T
	state    EntityState
	snapshot Snapshot
}

// Instance returns the tracked entity. The entry does not copy it.
func (e *Entry[T]) Instance() T { return e.instance }

// State returns the current lifecycle state.
func (e *Entry[T]) State() EntityState { return e.state }

func (e *Entry[T]) live() bool { return e.state != Deleted }

// markAdded starts an entry that has nothing in storage to diff against.
func (e *Entry[T]) markAdded() {
	e.state = Added
	e.snapshot = nil
}

// markModified records a harvested difference. Only entries that came from
// storage can become Modified.
func (e *Entry[T]) markModified(s Snapshot) {
	if e.state != Unchanged && e.state != Modified {
		return
	}
	e.state = Modified
	e.snapshot = s
}

// markDeleted is terminal: nothing on the Set surface moves an entry out of
// Deleted.
func (e *Entry[T]) markDeleted() {
	e.state = Deleted
}

// accept resets the entry after the collaborator persisted it.
func (e *Entry[T]) accept(s Snapshot) {
	e.state = Unchanged
	e.snapshot = s
}

// detectChanges diffs the instance against the snapshot. A difference moves
// the entry to Modified and replaces the snapshot, so the next call measures
// from here. Added and Deleted entries are not diffed, and a Modified entry
// with no new difference stays Modified.
func (e *Entry[T]) detectChanges(snap *snapshotter) error {
	if e.state != Unchanged && e.state != Modified {
		return nil
	}
	changed, err := snap.changed(e.instance, e.snapshot)
	if err != nil || !changed {
		return err
	}
	s, err := snap.snapshot(e.instance)
	if err != nil {
		return err
	}
	e.markModified(s)
	return nil
}
