package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Kusekushi/didhub-jobs/cmd/didhub-jobs/commands"
)

var rootCmd = &cobra.Command{
	Use:   "didhub-jobs",
	Short: "Background job scheduler and runner",
	Long: `didhub-jobs - background job scheduling and execution runtime.

Runs maintenance jobs (audit log pruning, session cleanup, usage metrics,
integrity checks, database maintenance) on cron schedules, with an admin
HTTP surface for manual triggers and run history.

Examples:
  didhub-jobs serve                 # Start the scheduler daemon
  didhub-jobs jobs                  # List the job catalog
  didhub-jobs run audit_retention   # Run one job synchronously`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to TOML config file")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.JobsCmd)
	rootCmd.AddCommand(commands.RunCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
