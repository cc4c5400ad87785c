package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/crumbset/internal/sqlite"
	"github.com/mesh-intelligence/crumbset/pkg/session"
	"github.com/mesh-intelligence/crumbset/pkg/tracked"
	"github.com/mesh-intelligence/crumbset/pkg/types"
)

// workspace is an attached backend with a session over it.
type workspace struct {
	backend *sqlite.Backend
	session *session.Session
	logger  *slog.Logger
	out     io.Writer
}

// openWorkspace loads settings, attaches the backend and starts a session.
// The caller must call close.
func openWorkspace(cmd *cobra.Command) (*workspace, error) {
	st, err := loadSettings()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cmd.ErrOrStderr(), st.logLevel)

	backend := sqlite.NewBackend()
	if err := backend.Attach(st.config); err != nil {
		return nil, fmt.Errorf("attach backend: %w", err)
	}
	logger.Debug("attached", "data_dir", st.config.DataDir, "sync", st.config.SyncStrategy)

	return &workspace{
		backend: backend,
		session: session.New(backend, session.WithLogger(logger)),
		logger:  logger,
		out:     cmd.OutOrStdout(),
	}, nil
}

func (w *workspace) close() error {
	return w.backend.Detach()
}

// withWorkspace runs fn against an open workspace and detaches afterwards.
// A failed detach is reported when fn succeeded.
func withWorkspace(cmd *cobra.Command, fn func(*workspace) error) (err error) {
	ws, err := openWorkspace(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := ws.close(); cerr != nil && err == nil {
			err = fmt.Errorf("detach backend: %w", cerr)
		}
	}()
	return fn(ws)
}

// commit prints the pending changes under --dry-run and saves them
// otherwise. Reports whether anything was written.
func (w *workspace) commit(ctx context.Context) (bool, error) {
	if flags.dryRun {
		pending, err := w.session.Pending()
		if err != nil {
			return false, err
		}
		return false, renderPending(w.out, pending, flags.jsonMode)
	}
	res, err := w.session.SaveChanges(ctx)
	if err != nil {
		return res.Total() > 0, fmt.Errorf("save changes: %w", err)
	}
	if flags.metrics {
		w.session.WriteMetrics(w.out)
	}
	return res.Total() > 0, nil
}

// entitySet is the table-independent view of a tracked set used by the
// commands.
type entitySet interface {
	all() []types.Entity
	find(id string) types.Entity
	add(e types.Entity) error
	remove(e types.Entity) (bool, error)
}

type typedSet[T interface {
	comparable
	types.Entity
}] struct {
	set *tracked.Set[T]
}

func (s typedSet[T]) all() []types.Entity {
	var out []types.Entity
	for e := range s.set.All() {
		out = append(out, e)
	}
	return out
}

func (s typedSet[T]) find(id string) types.Entity {
	for e := range s.set.All() {
		if e.EntityID() == id {
			return e
		}
	}
	return nil
}

func (s typedSet[T]) add(e types.Entity) error {
	item, ok := e.(T)
	if !ok {
		return fmt.Errorf("%w: %T", types.ErrInvalidData, e)
	}
	return s.set.Add(item)
}

func (s typedSet[T]) remove(e types.Entity) (bool, error) {
	item, ok := e.(T)
	if !ok {
		return false, fmt.Errorf("%w: %T", types.ErrInvalidData, e)
	}
	return s.set.Remove(item)
}

func loadTyped[T interface {
	comparable
	types.Entity
}](s *session.Session, table string) (entitySet, error) {
	set, err := session.Load[T](s, table)
	if err != nil {
		return nil, err
	}
	return typedSet[T]{set: set}, nil
}

// load tracks every entity of a standard table.
func (w *workspace) load(table string) (entitySet, error) {
	switch table {
	case types.CrumbsTable:
		return loadTyped[*types.Crumb](w.session, table)
	case types.TrailsTable:
		return loadTyped[*types.Trail](w.session, table)
	case types.LinksTable:
		return loadTyped[*types.Link](w.session, table)
	default:
		return nil, fmt.Errorf("%w: %q (tables: %s, %s, %s)", types.ErrTableNotFound, table,
			types.CrumbsTable, types.TrailsTable, types.LinksTable)
	}
}
