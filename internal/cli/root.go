// Package cli implements the crumbset command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
	dryRun    bool
	metrics   bool
}

var flags rootFlags

// NewRootCmd creates the top-level "crumbset" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	flags = rootFlags{}

	root := &cobra.Command{
		Use:   "crumbset",
		Short: "Edit cupboard tables through change-tracked sets",
		Long: "crumbset loads cupboard tables into tracked sets, applies edits in memory\n" +
			"and writes back only the entities that were added, modified or deleted.",
		// Do not print usage on errors returned by subcommands.
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: .crumbset)")
	pf.StringVar(&flags.dataDir, "data-dir", "", "data directory (default: <config-dir>/data)")
	pf.BoolVar(&flags.jsonMode, "json", false, "output in JSON format")
	pf.BoolVar(&flags.dryRun, "dry-run", false, "print pending changes instead of saving them")
	pf.BoolVar(&flags.metrics, "metrics", false, "print write counters after saving")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newListCmd(),
		newAddCmd(),
		newSetCmd(),
		newDeleteCmd(),
		newStatusCmd(),
	)
	return root
}

// Execute loads .env files, runs the root command and exits non-zero on
// failure.
func Execute() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitUserError)
	}
	os.Exit(exitSuccess)
}
