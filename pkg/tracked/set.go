package tracked

import (
	"fmt"
	"iter"
	"reflect"
	"slices"
)

// Tracker is the non-generic view of a Set used by the persistence
// collaborator, which holds sets of different entity types side by side.
type Tracker interface {
	// Len returns the number of live entities.
	Len() int
	// Changes runs dirty detection and returns every entity that is not
	// Unchanged, in insertion order.
	Changes() ([]Change, error)
	// AcceptChanges marks every pending change as persisted.
	AcceptChanges() error
}

// Change is one pending write produced by Changes.
type Change struct {
	Instance any
	State    EntityState

	accept func() error
}

// Accept tells the Set that this change was persisted. Deleted entities are
// dropped for good; Added and Modified ones become Unchanged. If the entity
// changed state after Changes reported it, Accept does nothing and the newer
// state stays pending.
func (c Change) Accept() error {
	if c.accept == nil {
		return nil
	}
	return c.accept()
}

// Set is a change-tracking collection of entities of one type. T is usually
// a pointer to a struct, so that identity is reference identity. When T is an
// interface type its dynamic values must be comparable.
type Set[T comparable] struct {
	items []*Entry[T]
	index map[T]*Entry[T]
	key   KeyFunc[T]
	snap  *snapshotter
}

var _ Tracker = (*Set[*struct{}])(nil)

// Option configures a Set.
type Option[T comparable] func(*Set[T])

// WithPrimaryKey sets the accessor Remove falls back on when an item is not
// tracked by reference.
func WithPrimaryKey[T comparable](key KeyFunc[T]) Option[T] {
	return func(s *Set[T]) {
		s.key = key
	}
}

// WithPrimaryKeyField uses the named field of T as the primary key. The field
// is not resolved until Remove first needs it.
func WithPrimaryKeyField[T comparable](name string) Option[T] {
	return WithPrimaryKey(Field[T](name).Key())
}

// New tracks items as Unchanged entities, snapshotting each one. A nil or
// empty slice yields an empty Set. Items repeated by reference are tracked
// once.
func New[T comparable](items []T, opts ...Option[T]) (*Set[T], error) {
	if err := checkTrackable(reflect.TypeFor[T]()); err != nil {
		return nil, err
	}
	s := &Set[T]{
		index: make(map[T]*Entry[T], len(items)),
		snap:  newSnapshotter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, item := range items {
		if isZero(item) {
			return nil, ErrNilItem
		}
		if _, ok := s.index[item]; ok {
			continue
		}
		snap, err := s.snap.snapshot(item)
		if err != nil {
			return nil, fmt.Errorf("snapshotting %T: %w", item, err)
		}
		s.append(&Entry[T]{instance: item, state: Unchanged, snapshot: snap})
	}
	return s, nil
}

func isZero[T comparable](item T) bool {
	var zero T
	return item == zero
}

func (s *Set[T]) append(e *Entry[T]) {
	s.items = append(s.items, e)
	s.index[e.instance] = e
}

// Add tracks item as Added. Adding an item that is already tracked, live or
// deleted, does nothing.
func (s *Set[T]) Add(item T) error {
	if isZero(item) {
		return ErrNilItem
	}
	if _, ok := s.index[item]; ok {
		return nil
	}
	e := &Entry[T]{instance: item}
	e.markAdded()
	s.append(e)
	return nil
}

// Remove marks item Deleted and reports whether it found it.
//
// Lookup is by reference first. On a miss the primary key of item is read
// and compared against every live entity; this is a linear scan. Without a
// primary key accessor a miss returns ErrNoPrimaryKey. A zero-valued key
// never matches. An entity that was Added and never persisted is dropped
// outright instead of being marked Deleted.
func (s *Set[T]) Remove(item T) (bool, error) {
	if isZero(item) {
		return false, ErrNilItem
	}
	if e, ok := s.index[item]; ok {
		if !e.live() {
			return false, nil
		}
		s.delete(e)
		return true, nil
	}
	if s.key == nil {
		return false, ErrNoPrimaryKey
	}

	want, err := s.key(item)
	if err != nil {
		return false, fmt.Errorf("reading primary key: %w", err)
	}
	if want == nil || reflect.ValueOf(want).IsZero() {
		return false, nil
	}
	for _, e := range s.items {
		if !e.live() {
			continue
		}
		got, err := s.key(e.instance)
		if err != nil {
			return false, fmt.Errorf("reading primary key: %w", err)
		}
		if reflect.DeepEqual(got, want) {
			s.delete(e)
			return true, nil
		}
	}
	return false, nil
}

func (s *Set[T]) delete(e *Entry[T]) {
	if e.state == Added {
		s.drop(e)
		return
	}
	e.markDeleted()
}

// drop removes e from the Set entirely.
func (s *Set[T]) drop(e *Entry[T]) {
	s.items = slices.DeleteFunc(s.items, func(x *Entry[T]) bool { return x == e })
	if s.index[e.instance] == e {
		delete(s.index, e.instance)
	}
}

// Clear removes every live entity.
func (s *Set[T]) Clear() {
	live := slices.Collect(s.liveEntries())
	for _, e := range live {
		s.delete(e)
	}
}

// Contains reports whether item is a live member.
func (s *Set[T]) Contains(item T) bool {
	e, ok := s.index[item]
	return ok && e.live()
}

// Len returns the number of live entities.
func (s *Set[T]) Len() int {
	n := 0
	for _, e := range s.items {
		if e.live() {
			n++
		}
	}
	return n
}

// All yields the live entities in insertion order. Each iteration reads the
// Set as it is at that moment.
func (s *Set[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for e := range s.liveEntries() {
			if !yield(e.instance) {
				return
			}
		}
	}
}

// Entries yields every entry, including Deleted ones still awaiting
// persistence.
func (s *Set[T]) Entries() iter.Seq[*Entry[T]] {
	return func(yield func(*Entry[T]) bool) {
		for i := 0; i < len(s.items); i++ {
			if !yield(s.items[i]) {
				return
			}
		}
	}
}

func (s *Set[T]) liveEntries() iter.Seq[*Entry[T]] {
	return func(yield func(*Entry[T]) bool) {
		for i := 0; i < len(s.items); i++ {
			if e := s.items[i]; e.live() && !yield(e) {
				return
			}
		}
	}
}

// Changed runs dirty detection over every entry and returns those whose state
// is not Unchanged. Deleted and Added entries are always included.
func (s *Set[T]) Changed() ([]*Entry[T], error) {
	var out []*Entry[T]
	for _, e := range s.items {
		if err := e.detectChanges(s.snap); err != nil {
			return nil, fmt.Errorf("detecting changes on %T: %w", e.instance, err)
		}
		if e.state != Unchanged {
			out = append(out, e)
		}
	}
	return out, nil
}

// Changes is Changed in the non-generic form consumed by the persistence
// collaborator.
func (s *Set[T]) Changes() ([]Change, error) {
	changed, err := s.Changed()
	if err != nil {
		return nil, err
	}
	out := make([]Change, len(changed))
	for i, e := range changed {
		state := e.state
		out[i] = Change{
			Instance: e.instance,
			State:    state,
			accept:   func() error { return s.acceptEntry(e, state) },
		}
	}
	return out, nil
}

// acceptEntry settles e after the write for reported was persisted. An entry
// that has moved on since, for example a Modified entity removed before its
// update was accepted, keeps its newer state.
func (s *Set[T]) acceptEntry(e *Entry[T], reported EntityState) error {
	if e.state != reported || s.index[e.instance] != e {
		return nil
	}
	switch e.state {
	case Deleted:
		s.drop(e)
	case Modified:
		// The snapshot harvested by Changed is what was written.
		e.accept(e.snapshot)
	case Added:
		snap, err := s.snap.snapshot(e.instance)
		if err != nil {
			return fmt.Errorf("snapshotting %T: %w", e.instance, err)
		}
		e.accept(snap)
	}
	return nil
}

// AcceptChanges marks every pending change as persisted.
func (s *Set[T]) AcceptChanges() error {
	kept := s.items[:0]
	var err error
	for i, e := range s.items {
		switch e.state {
		case Deleted:
			delete(s.index, e.instance)
			continue
		case Added, Modified:
			var snap Snapshot
			if snap, err = s.snap.snapshot(e.instance); err != nil {
				kept = append(kept, s.items[i:]...)
				err = fmt.Errorf("snapshotting %T: %w", e.instance, err)
				break
			}
			e.accept(snap)
		}
		if err != nil {
			break
		}
		kept = append(kept, e)
	}
	clear(s.items[len(kept):])
	s.items = kept
	return err
}
