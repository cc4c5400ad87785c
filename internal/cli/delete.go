package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/crumbset/pkg/types"
)

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <table> <id>...",
		Short: "Delete entities by ID",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, func(ws *workspace) error {
				table := args[0]
				set, err := ws.load(table)
				if err != nil {
					return err
				}
				def, err := types.Lookup(table)
				if err != nil {
					return err
				}
				for _, id := range args[1:] {
					// A fresh instance carrying only the ID; the set matches it
					// by primary key.
					probe := def.New()
					probe.SetEntityID(id)
					ok, err := set.remove(probe)
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("%s %s: %w", table, id, types.ErrNotFound)
					}
				}
				_, err = ws.commit(cmd.Context())
				return err
			})
		},
	}
}
