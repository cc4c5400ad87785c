package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the crumbset release, set at build time with -ldflags.
var Version = "0.1.0"

const modulePath = "github.com/mesh-intelligence/crumbset"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the crumbset version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "crumbset v%s\nmodule: %s\n", Version, modulePath)
			return nil
		},
	}
}
