package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/crumbset/pkg/session"
	"github.com/mesh-intelligence/crumbset/pkg/tracked"
	"github.com/mesh-intelligence/crumbset/pkg/types"
)

var samplePending = []session.Pending{
	{Table: types.CrumbsTable, State: tracked.Added},
	{Table: types.CrumbsTable, ID: "c1", State: tracked.Modified},
	{Table: types.LinksTable, ID: "l1", State: tracked.Deleted},
}

func TestRenderPending_Golden(t *testing.T) {
	g := goldie.New(t, goldie.WithFixtureDir("testdata"), goldie.WithNameSuffix(".golden"))

	var buf bytes.Buffer
	require.NoError(t, renderPending(&buf, samplePending, false))
	g.Assert(t, "pending", buf.Bytes())

	buf.Reset()
	require.NoError(t, renderPending(&buf, nil, false))
	g.Assert(t, "pending_empty", buf.Bytes())
}

func TestRenderPending_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderPending(&buf, samplePending, true))

	var got []pendingJSON
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, []pendingJSON{
		{Table: "crumbs", State: "added"},
		{Table: "crumbs", ID: "c1", State: "modified"},
		{Table: "links", ID: "l1", State: "deleted"},
	}, got)
}
