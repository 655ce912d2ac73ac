package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const defaultConfig = "stopyard.yaml"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sy",
		Short:         "Stopyard maintenance stop planner",
		Long:          "Stopyard plans recurring maintenance stops for industrial asset groups and serves them as a timeline.",
		SilenceUsage:  true,
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newGroupCmd())
	cmd.AddCommand(newStrategyCmd())
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newTimelineCmd())
	cmd.AddCommand(newSAPCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sy %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
