package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/VictoriaMetrics/metrics"

	"github.com/mesh-intelligence/crumbset/pkg/tracked"
	"github.com/mesh-intelligence/crumbset/pkg/types"
)

// Session errors.
var (
	ErrNotEntity     = errors.New("tracked value does not implement types.Entity")
	ErrTypeMismatch  = errors.New("stored entity does not have the requested type")
	ErrAlreadyLoaded = errors.New("table already tracked by this session")
)

// Session is a unit of work over a Cupboard. It is not safe for concurrent
// use.
type Session struct {
	cupboard types.Cupboard
	logger   *slog.Logger
	metrics  *metrics.Set
	bindings []binding
}

// binding ties a tracked set to the table it was loaded from.
type binding struct {
	table   string
	tracker tracked.Tracker
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithMetrics records write counters in set instead of a private one.
func WithMetrics(set *metrics.Set) Option {
	return func(s *Session) {
		s.metrics = set
	}
}

// New creates a Session over an attached Cupboard.
func New(cupboard types.Cupboard, opts ...Option) *Session {
	s := &Session{
		cupboard: cupboard,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics:  metrics.NewSet(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load fetches every entity in table and tracks them in a new Set, keyed by
// the primary key field registered for the table. T is the entity pointer
// type, for example *types.Crumb.
func Load[T comparable](s *Session, table string) (*tracked.Set[T], error) {
	def, err := types.Lookup(table)
	if err != nil {
		return nil, err
	}
	if s.tracks(table) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyLoaded, table)
	}
	tbl, err := s.cupboard.GetTable(table)
	if err != nil {
		return nil, fmt.Errorf("opening table %s: %w", table, err)
	}
	rows, err := tbl.Fetch(nil)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", table, err)
	}

	items := make([]T, 0, len(rows))
	for _, row := range rows {
		item, ok := row.(T)
		if !ok {
			return nil, fmt.Errorf("%w: %s holds %T", ErrTypeMismatch, table, row)
		}
		items = append(items, item)
	}

	set, err := tracked.New(items, tracked.WithPrimaryKeyField[T](def.KeyField))
	if err != nil {
		return nil, fmt.Errorf("tracking %s: %w", table, err)
	}
	s.bindings = append(s.bindings, binding{table: table, tracker: set})
	s.logger.Debug("loaded table", "table", table, "count", len(items))
	return set, nil
}

// Track registers a set built by the caller so SaveChanges writes its
// changes to table.
func (s *Session) Track(table string, set tracked.Tracker) error {
	if _, err := types.Lookup(table); err != nil {
		return err
	}
	if s.tracks(table) {
		return fmt.Errorf("%w: %s", ErrAlreadyLoaded, table)
	}
	s.bindings = append(s.bindings, binding{table: table, tracker: set})
	return nil
}

func (s *Session) tracks(table string) bool {
	for _, b := range s.bindings {
		if b.table == table {
			return true
		}
	}
	return false
}

// Pending is one change waiting to be written.
type Pending struct {
	Table    string
	ID       string
	State    tracked.EntityState
	Instance any
}

// Pending runs dirty detection on every tracked set and lists the changes
// SaveChanges would write, grouped by table in load order.
func (s *Session) Pending() ([]Pending, error) {
	var out []Pending
	for _, b := range s.bindings {
		changes, err := b.tracker.Changes()
		if err != nil {
			return nil, fmt.Errorf("detecting changes in %s: %w", b.table, err)
		}
		for _, c := range changes {
			p := Pending{Table: b.table, State: c.State, Instance: c.Instance}
			if e, ok := c.Instance.(types.Entity); ok {
				p.ID = e.EntityID()
			}
			out = append(out, p)
		}
	}
	return out, nil
}

// Result counts the writes made by SaveChanges.
type Result struct {
	Added    int
	Modified int
	Deleted  int
}

// Total returns the number of writes.
func (r Result) Total() int {
	return r.Added + r.Modified + r.Deleted
}

// SaveChanges writes every pending change to its table: Added entities are
// created, Modified ones updated and Deleted ones removed. A delete of an
// entity that is already gone counts as done. The first failure stops the
// flush; changes written before it stay accepted and the rest stay pending.
func (s *Session) SaveChanges(ctx context.Context) (Result, error) {
	var res Result
	for _, b := range s.bindings {
		changes, err := b.tracker.Changes()
		if err != nil {
			return res, fmt.Errorf("detecting changes in %s: %w", b.table, err)
		}
		if len(changes) == 0 {
			continue
		}
		tbl, err := s.cupboard.GetTable(b.table)
		if err != nil {
			return res, fmt.Errorf("opening table %s: %w", b.table, err)
		}
		for _, c := range changes {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			if err := s.write(tbl, b.table, c); err != nil {
				s.logger.Warn("flush stopped", "table", b.table, "written", res.Total(), "err", err)
				return res, err
			}
			if err := c.Accept(); err != nil {
				return res, fmt.Errorf("accepting %s change: %w", b.table, err)
			}
			s.count(&res, c.State)
		}
	}
	if res.Total() > 0 {
		s.logger.Info("saved changes",
			"added", res.Added, "modified", res.Modified, "deleted", res.Deleted)
	}
	return res, nil
}

func (s *Session) write(tbl types.Table, table string, c tracked.Change) error {
	e, ok := c.Instance.(types.Entity)
	if !ok {
		return fmt.Errorf("%w: %T", ErrNotEntity, c.Instance)
	}
	switch c.State {
	case tracked.Added:
		id, err := tbl.Set("", e)
		if err != nil {
			return fmt.Errorf("creating in %s: %w", table, err)
		}
		s.logger.Debug("created", "table", table, "id", id)
	case tracked.Modified:
		if _, err := tbl.Set(e.EntityID(), e); err != nil {
			return fmt.Errorf("updating %s %s: %w", table, e.EntityID(), err)
		}
		s.logger.Debug("updated", "table", table, "id", e.EntityID())
	case tracked.Deleted:
		err := tbl.Delete(e.EntityID())
		if err != nil && !errors.Is(err, types.ErrNotFound) {
			return fmt.Errorf("deleting %s %s: %w", table, e.EntityID(), err)
		}
		s.logger.Debug("deleted", "table", table, "id", e.EntityID())
	}
	return nil
}

func (s *Session) count(res *Result, state tracked.EntityState) {
	switch state {
	case tracked.Added:
		res.Added++
	case tracked.Modified:
		res.Modified++
	case tracked.Deleted:
		res.Deleted++
	}
	s.metrics.GetOrCreateCounter(fmt.Sprintf(`crumbset_writes_total{state=%q}`, state)).Inc()
}

// WriteMetrics writes the session's write counters in Prometheus text
// format.
func (s *Session) WriteMetrics(w io.Writer) {
	s.metrics.WritePrometheus(w)
}
