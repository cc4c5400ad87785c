package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/crumbset/pkg/types"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <table>",
		Short: "List every entity in a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, func(ws *workspace) error {
				set, err := ws.load(args[0])
				if err != nil {
					return err
				}
				return renderEntities(ws.out, set.all(), flags.jsonMode)
			})
		},
	}
}

func renderEntities(w io.Writer, entities []types.Entity, asJSON bool) error {
	if asJSON {
		if entities == nil {
			entities = []types.Entity{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entities)
	}
	for _, e := range entities {
		if _, err := fmt.Fprintf(w, "%s  %s\n", e.EntityID(), describe(e)); err != nil {
			return err
		}
	}
	return nil
}

// describe returns a one-line summary of an entity.
func describe(e types.Entity) string {
	switch v := e.(type) {
	case *types.Crumb:
		return fmt.Sprintf("%-8s %s", v.State, v.Name)
	case *types.Trail:
		return v.State
	case *types.Link:
		return fmt.Sprintf("%s %s -> %s", v.LinkType, v.FromID, v.ToID)
	default:
		return fmt.Sprintf("%T", e)
	}
}
