package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set by the linker at release time.
var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "epigraph",
		Short: "Epidemic simulation on a dynamic contact graph",
		Long: `epigraph simulates an epidemic spreading through a population whose
contacts are redrawn every day.

Persons are healthy, carriers, symptomatic, recovered or dead. Isolation
policies cut contacts; hospital admission policies allocate a bounded number
of beds. Runs are recorded so their trajectories can be compared later.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.epigraph/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: error, warn, info, debug, trace")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newCompareCmd(),
		newGraphCmd(),
		newHistoryCmd(),
		newBackupCmd(),
		newRestoreCmd(),
		newConfigCmd(),
		newMCPServerCmd(),
	)
	return rootCmd
}
