// Command walkplan runs the walk scheduling service and offline planner.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. The --config flag is shared by every
// subcommand; an empty value falls back to WALKPLAN_CONFIG, then defaults.
func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "walkplan",
		Short:         "Dog walk scheduling service",
		Long:          "walkplan picks the most valuable non-overlapping walks for a walker, detects schedule conflicts and suggests alternative slots.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (YAML)")

	root.AddCommand(newServeCmd(&cfgPath), newPlanCmd(&cfgPath))
	return root
}
