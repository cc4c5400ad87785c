package sqlite

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/crumbset/pkg/types"
)

func lines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	s := strings.TrimSpace(string(data))
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestReadJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.jsonl")
	content := `{"a":1}

not json
{"b":2}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	records, err := readJSONL(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.JSONEq(t, `{"a":1}`, string(records[0]))
	assert.JSONEq(t, `{"b":2}`, string(records[1]))
}

func TestReadJSONL_Missing(t *testing.T) {
	records, err := readJSONL(filepath.Join(t.TempDir(), "absent.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestWriteJSONL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.jsonl")
	recs := []json.RawMessage{json.RawMessage(`{"x":1}`), json.RawMessage(`{"x":2}`)}

	require.NoError(t, writeJSONL(path, recs))
	assert.Equal(t, []string{`{"x":1}`, `{"x":2}`}, lines(t, path))

	require.NoError(t, writeJSONL(path, nil))
	assert.Empty(t, lines(t, path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file removed")
}

func TestEnsureJSONL_KeepsContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))

	require.NoError(t, ensureJSONL(path))
	assert.Equal(t, []string{"{}"}, lines(t, path))
}

func TestJSONL_ImmediateSync(t *testing.T) {
	dir := t.TempDir()
	b := attach(t, dir, types.SyncImmediate)
	tbl := crumbsTable(t, b)

	id, err := tbl.Set("", &types.Crumb{Name: "persisted"})
	require.NoError(t, err)

	got := lines(t, jsonlPath(dir, types.CrumbsTable))
	require.Len(t, got, 1)
	var c types.Crumb
	require.NoError(t, json.Unmarshal([]byte(got[0]), &c))
	assert.Equal(t, id, c.CrumbID)
	assert.Equal(t, "persisted", c.Name)

	require.NoError(t, tbl.Delete(id))
	assert.Empty(t, lines(t, jsonlPath(dir, types.CrumbsTable)))
}

func TestJSONL_OnCloseSync(t *testing.T) {
	dir := t.TempDir()
	b := attach(t, dir, types.SyncOnClose)
	tbl := crumbsTable(t, b)

	_, err := tbl.Set("", &types.Crumb{Name: "deferred"})
	require.NoError(t, err)
	assert.Empty(t, lines(t, jsonlPath(dir, types.CrumbsTable)), "not written before Detach")

	require.NoError(t, b.Detach())
	assert.Len(t, lines(t, jsonlPath(dir, types.CrumbsTable)), 1)
}

func TestJSONL_RoundTripAcrossAttach(t *testing.T) {
	dir := t.TempDir()
	b := NewBackend()
	cfg := types.Config{Backend: types.BackendSQLite, DataDir: dir}
	require.NoError(t, b.Attach(cfg))

	tbl := crumbsTable(t, b)
	first, err := tbl.Set("", &types.Crumb{Name: "one"})
	require.NoError(t, err)
	_, err = tbl.Set("", &types.Crumb{Name: "two"})
	require.NoError(t, err)
	_, err = tbl.Set(first, &types.Crumb{CrumbID: first, Name: "one again"})
	require.NoError(t, err)
	require.NoError(t, b.Detach())

	require.NoError(t, b.Attach(cfg))
	defer b.Detach()
	all, err := crumbsTable(t, b).Fetch(nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "one again", all[0].(*types.Crumb).Name, "update keeps position")
	assert.Equal(t, "two", all[1].(*types.Crumb).Name)
}

func TestJSONL_LoadSkipsBadRecords(t *testing.T) {
	dir := t.TempDir()
	content := strings.Join([]string{
		`{"crumb_id":"c1","name":"good","state":"draft","extra":"kept"}`,
		`{"crumb_id":"","name":"no id"}`,
		`{"name":"missing id"}`,
		`{"crumb_id":42}`,
		`garbage`,
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(jsonlPath(dir, types.CrumbsTable), []byte(content), 0o644))

	b := attach(t, dir, "")
	tbl := crumbsTable(t, b)

	all, err := tbl.Fetch(nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "good", all[0].(*types.Crumb).Name)

	extra, err := tbl.Fetch(map[string]any{"extra": "kept"})
	require.NoError(t, err)
	assert.Len(t, extra, 1, "unknown fields survive load")
}
