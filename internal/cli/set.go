package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/crumbset/pkg/tracked"
	"github.com/mesh-intelligence/crumbset/pkg/types"
)

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <table> <id> <Field=value>...",
		Short: "Change fields of an entity",
		Long: "Assign struct fields by name, for example \"Name=Refactor\" or \"State=ready\".\n" +
			"Values are converted to the field's type. Only entities whose fields\n" +
			"actually change are written.",
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, func(ws *workspace) error {
				set, err := ws.load(args[0])
				if err != nil {
					return err
				}
				e := set.find(args[1])
				if e == nil {
					return fmt.Errorf("%s %s: %w", args[0], args[1], types.ErrNotFound)
				}
				for _, a := range args[2:] {
					field, value, err := splitAssignment(a)
					if err != nil {
						return err
					}
					if err := tracked.Field[types.Entity](field).Set(e, value); err != nil {
						return err
					}
				}
				_, err = ws.commit(cmd.Context())
				return err
			})
		},
	}
}
