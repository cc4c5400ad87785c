package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/crumbset/pkg/sqlite"
	"github.com/mesh-intelligence/crumbset/pkg/tracked"
	"github.com/mesh-intelligence/crumbset/pkg/types"
)

// fakeTable records every write and can be told to fail one of them.
type fakeTable struct {
	rows   map[string]types.Entity
	order  []string
	calls  []string
	failOn string
	nextID int
}

func (t *fakeTable) Get(id string) (any, error) {
	e, ok := t.rows[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	return e, nil
}

func (t *fakeTable) Set(id string, data any) (string, error) {
	e := data.(types.Entity)
	if id == "" {
		t.nextID++
		id = fmt.Sprintf("id-%d", t.nextID)
	}
	call := "set:" + id
	if call == t.failOn {
		return "", errors.New("disk full")
	}
	t.calls = append(t.calls, call)
	e.SetEntityID(id)
	if _, ok := t.rows[id]; !ok {
		t.order = append(t.order, id)
	}
	t.rows[id] = e
	return id, nil
}

func (t *fakeTable) Delete(id string) error {
	call := "delete:" + id
	if call == t.failOn {
		return errors.New("disk full")
	}
	t.calls = append(t.calls, call)
	if _, ok := t.rows[id]; !ok {
		return types.ErrNotFound
	}
	delete(t.rows, id)
	t.order = slices.DeleteFunc(t.order, func(s string) bool { return s == id })
	return nil
}

func (t *fakeTable) Fetch(map[string]any) ([]any, error) {
	out := make([]any, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.rows[id])
	}
	return out, nil
}

type fakeCupboard struct {
	tables map[string]*fakeTable
}

func newFakeCupboard() *fakeCupboard {
	return &fakeCupboard{tables: map[string]*fakeTable{}}
}

func (c *fakeCupboard) table(name string) *fakeTable {
	t, ok := c.tables[name]
	if !ok {
		t = &fakeTable{rows: map[string]types.Entity{}}
		c.tables[name] = t
	}
	return t
}

func (c *fakeCupboard) GetTable(name string) (types.Table, error) {
	if _, err := types.Lookup(name); err != nil {
		return nil, err
	}
	return c.table(name), nil
}

func (c *fakeCupboard) Attach(types.Config) error { return nil }
func (c *fakeCupboard) Detach() error             { return nil }

// seed stores crumbs directly and clears the call log.
func seed(t *testing.T, c *fakeCupboard, names ...string) {
	t.Helper()
	tbl := c.table(types.CrumbsTable)
	for _, n := range names {
		_, err := tbl.Set("", &types.Crumb{Name: n, State: types.CrumbStateDraft})
		require.NoError(t, err)
	}
	tbl.calls = nil
}

func find(set *tracked.Set[*types.Crumb], name string) *types.Crumb {
	for c := range set.All() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLoad(t *testing.T) {
	cb := newFakeCupboard()
	seed(t, cb, "a", "b")
	s := New(cb)

	set, err := Load[*types.Crumb](s, types.CrumbsTable)
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())

	_, err = Load[*types.Crumb](s, types.CrumbsTable)
	assert.ErrorIs(t, err, ErrAlreadyLoaded)

	_, err = Load[*types.Crumb](s, "nonexistent")
	assert.ErrorIs(t, err, types.ErrTableNotFound)
}

func TestLoad_TypeMismatch(t *testing.T) {
	cb := newFakeCupboard()
	seed(t, cb, "a")

	_, err := Load[*types.Trail](New(cb), types.CrumbsTable)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestSaveChanges_NothingPending(t *testing.T) {
	cb := newFakeCupboard()
	seed(t, cb, "a", "b")
	s := New(cb)
	_, err := Load[*types.Crumb](s, types.CrumbsTable)
	require.NoError(t, err)

	res, err := s.SaveChanges(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Total())
	assert.Empty(t, cb.table(types.CrumbsTable).calls)
}

func TestSaveChanges_ReplaysEveryState(t *testing.T) {
	cb := newFakeCupboard()
	seed(t, cb, "keep", "edit", "drop")
	s := New(cb)
	set, err := Load[*types.Crumb](s, types.CrumbsTable)
	require.NoError(t, err)

	find(set, "edit").Name = "edited"
	ok, err := set.Remove(find(set, "drop"))
	require.NoError(t, err)
	require.True(t, ok)
	fresh := &types.Crumb{Name: "new"}
	require.NoError(t, set.Add(fresh))

	pending, err := s.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, Pending{Table: types.CrumbsTable, ID: "id-2", State: tracked.Modified, Instance: find(set, "edited")}, pending[0])
	assert.Equal(t, tracked.Deleted, pending[1].State)
	assert.Equal(t, "id-3", pending[1].ID)
	assert.Equal(t, tracked.Added, pending[2].State)
	assert.Empty(t, pending[2].ID)

	res, err := s.SaveChanges(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Added: 1, Modified: 1, Deleted: 1}, res)
	assert.Equal(t, []string{"set:id-2", "delete:id-3", "set:id-4"}, cb.table(types.CrumbsTable).calls)
	assert.Equal(t, "id-4", fresh.CrumbID, "created ID written back")

	res, err = s.SaveChanges(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Total(), "second flush writes nothing")
	assert.Equal(t, 3, set.Len())
}

func TestSaveChanges_AddedThenRemovedWritesNothing(t *testing.T) {
	cb := newFakeCupboard()
	s := New(cb)
	set, err := Load[*types.Crumb](s, types.CrumbsTable)
	require.NoError(t, err)

	c := &types.Crumb{Name: "fleeting"}
	require.NoError(t, set.Add(c))
	ok, err := set.Remove(c)
	require.NoError(t, err)
	assert.True(t, ok)

	res, err := s.SaveChanges(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Total())
	assert.Empty(t, cb.table(types.CrumbsTable).calls)
}

func TestSaveChanges_DeleteByPrimaryKey(t *testing.T) {
	cb := newFakeCupboard()
	seed(t, cb, "a", "b")
	s := New(cb)
	set, err := Load[*types.Crumb](s, types.CrumbsTable)
	require.NoError(t, err)

	// A separately materialized instance with the same key.
	ok, err := set.Remove(&types.Crumb{CrumbID: "id-2"})
	require.NoError(t, err)
	require.True(t, ok)

	_, err = s.SaveChanges(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"delete:id-2"}, cb.table(types.CrumbsTable).calls)
	assert.Equal(t, 1, set.Len())
}

func TestSaveChanges_DeleteMissingIsTolerated(t *testing.T) {
	cb := newFakeCupboard()
	seed(t, cb, "a")
	s := New(cb)
	set, err := Load[*types.Crumb](s, types.CrumbsTable)
	require.NoError(t, err)

	require.NoError(t, cb.table(types.CrumbsTable).Delete("id-1"))
	_, err = set.Remove(find(set, "a"))
	require.NoError(t, err)

	res, err := s.SaveChanges(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)
}

func TestSaveChanges_ResumesAfterFailure(t *testing.T) {
	cb := newFakeCupboard()
	seed(t, cb, "a", "b", "c")
	s := New(cb)
	set, err := Load[*types.Crumb](s, types.CrumbsTable)
	require.NoError(t, err)

	for c := range set.All() {
		c.State = types.CrumbStateReady
	}
	tbl := cb.table(types.CrumbsTable)
	tbl.failOn = "set:id-2"

	res, err := s.SaveChanges(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, res.Modified)
	assert.Equal(t, []string{"set:id-1"}, tbl.calls)

	tbl.failOn = ""
	tbl.calls = nil
	res, err = s.SaveChanges(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Modified)
	assert.Equal(t, []string{"set:id-2", "set:id-3"}, tbl.calls)
}

func TestSaveChanges_CanceledContext(t *testing.T) {
	cb := newFakeCupboard()
	seed(t, cb, "a")
	s := New(cb)
	set, err := Load[*types.Crumb](s, types.CrumbsTable)
	require.NoError(t, err)
	find(set, "a").Name = "b"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.SaveChanges(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, cb.table(types.CrumbsTable).calls)
}

func TestTrack(t *testing.T) {
	cb := newFakeCupboard()
	s := New(cb)

	trails, err := tracked.New[*types.Trail](nil, tracked.WithPrimaryKeyField[*types.Trail]("TrailID"))
	require.NoError(t, err)
	require.NoError(t, s.Track(types.TrailsTable, trails))
	assert.ErrorIs(t, s.Track(types.TrailsTable, trails), ErrAlreadyLoaded)
	assert.ErrorIs(t, s.Track("nonexistent", trails), types.ErrTableNotFound)

	require.NoError(t, trails.Add(&types.Trail{State: types.TrailStateActive}))
	res, err := s.SaveChanges(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
}

func TestSaveChanges_NotAnEntity(t *testing.T) {
	type plain struct{ Name string }
	set, err := tracked.New[*plain](nil)
	require.NoError(t, err)
	require.NoError(t, set.Add(&plain{Name: "x"}))

	s := New(newFakeCupboard())
	require.NoError(t, s.Track(types.LinksTable, set))
	_, err = s.SaveChanges(context.Background())
	assert.ErrorIs(t, err, ErrNotEntity)
}

func TestWriteMetrics(t *testing.T) {
	cb := newFakeCupboard()
	seed(t, cb, "a", "b")
	s := New(cb)
	set, err := Load[*types.Crumb](s, types.CrumbsTable)
	require.NoError(t, err)

	require.NoError(t, set.Add(&types.Crumb{Name: "c"}))
	require.NoError(t, set.Add(&types.Crumb{Name: "d"}))
	find(set, "a").Name = "A"
	_, err = s.SaveChanges(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	s.WriteMetrics(&buf)
	assert.Contains(t, buf.String(), `crumbset_writes_total{state="added"} 2`)
	assert.Contains(t, buf.String(), `crumbset_writes_total{state="modified"} 1`)
}

func TestSession_SQLiteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := types.Config{Backend: types.BackendSQLite, DataDir: dir}
	b, err := sqlite.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Detach() })

	s := New(b)
	set, err := Load[*types.Crumb](s, types.CrumbsTable)
	require.NoError(t, err)
	first := &types.Crumb{Name: "first", State: types.CrumbStateDraft}
	second := &types.Crumb{Name: "second", State: types.CrumbStateDraft}
	require.NoError(t, set.Add(first))
	require.NoError(t, set.Add(second))
	_, err = s.SaveChanges(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, first.CrumbID)

	require.NoError(t, first.SetProperty("priority", 2))
	_, err = set.Remove(&types.Crumb{CrumbID: second.CrumbID})
	require.NoError(t, err)
	res, err := s.SaveChanges(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Modified: 1, Deleted: 1}, res)

	reloaded, err := Load[*types.Crumb](New(b), types.CrumbsTable)
	require.NoError(t, err)
	require.Equal(t, 1, reloaded.Len())
	got := find(reloaded, "first")
	require.NotNil(t, got)
	v, err := got.GetProperty("priority")
	require.NoError(t, err)
	assert.EqualValues(t, 2, v)
}
