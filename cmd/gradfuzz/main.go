package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	version = "dev" // set by build flags
)

var rootCmd = &cobra.Command{
	Use:   "gradfuzz",
	Short: "Coverage-guided, gradient-descent-driven fuzzer",
	Long: `gradfuzz drives a condition priority queue with a gradient-descent
constraint solver, falling back to deterministic and AFL-style havoc
mutation for the conditions the solver can't make progress on.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(replayCmd)
}

// Subcommands are defined in run.go, dump.go and replay.go.

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
