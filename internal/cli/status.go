package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/crumbset/pkg/session"
	"github.com/mesh-intelligence/crumbset/pkg/types"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Load every table and show changes that would be written",
		Long: "Load every table into tracked sets and run change detection. A freshly\n" +
			"loaded cupboard has no pending changes; anything listed means an entity\n" +
			"does not survive a load and save unchanged.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, func(ws *workspace) error {
				for _, table := range []string{types.CrumbsTable, types.TrailsTable, types.LinksTable} {
					if _, err := ws.load(table); err != nil {
						return err
					}
				}
				pending, err := ws.session.Pending()
				if err != nil {
					return err
				}
				return renderPending(ws.out, pending, flags.jsonMode)
			})
		},
	}
}

// pendingJSON is the --json form of one pending change.
type pendingJSON struct {
	Table string `json:"table"`
	ID    string `json:"id,omitempty"`
	State string `json:"state"`
}

// renderPending writes a changeset, one line per change.
func renderPending(w io.Writer, pending []session.Pending, asJSON bool) error {
	if asJSON {
		out := make([]pendingJSON, len(pending))
		for i, p := range pending {
			out[i] = pendingJSON{Table: p.Table, ID: p.ID, State: p.State.String()}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(pending) == 0 {
		_, err := fmt.Fprintln(w, "No pending changes.")
		return err
	}
	if _, err := fmt.Fprintf(w, "%d pending change(s)\n", len(pending)); err != nil {
		return err
	}
	for _, p := range pending {
		id := p.ID
		if id == "" {
			id = "(new)"
		}
		if _, err := fmt.Fprintf(w, "  %-9s %-7s %s\n", p.State, p.Table, id); err != nil {
			return err
		}
	}
	return nil
}
