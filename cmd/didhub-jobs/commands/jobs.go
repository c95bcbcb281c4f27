package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Kusekushi/didhub-jobs/errors"
	"github.com/Kusekushi/didhub-jobs/jobs"
	"github.com/Kusekushi/didhub-jobs/storage"
)

// JobsCmd lists the job catalog.
var JobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List the job catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		for _, j := range jobs.Catalog(cfg.Jobs.AuditRetentionDays, cfg.Jobs.SessionMaxAgeHours) {
			schedule := j.DefaultSchedule()
			if schedule == "" {
				schedule = "(on demand)"
			}
			fmt.Printf("%-20s %-12s %-12s %s\n", j.Name(), j.Category(), schedule, j.Description())
		}
		return nil
	},
}

// RunCmd runs a single catalog job synchronously against the database.
var RunCmd = &cobra.Command{
	Use:   "run <job>",
	Short: "Run one job synchronously",
	Long: `Run a single catalog job to completion and print its outcome.

This bypasses the scheduler entirely: no schedule state is touched and
no run is recorded. Useful for cron-free environments and debugging.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		var target jobs.Job
		for _, j := range jobs.Catalog(cfg.Jobs.AuditRetentionDays, cfg.Jobs.SessionMaxAgeHours) {
			if j.Name() == name {
				target = j
				break
			}
		}
		if target == nil {
			return errors.Wrapf(errors.ErrNotFound, "job %q", name)
		}

		store, err := storage.Open(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		if err := store.Migrate(ctx); err != nil {
			return err
		}

		start := time.Now()
		outcome, err := target.Run(ctx, store)
		if err != nil {
			return errors.Wrapf(err, "job %q failed", name)
		}

		fmt.Printf("Job %s succeeded in %v\n", name, time.Since(start).Round(time.Millisecond))
		if outcome != nil {
			fmt.Printf("  rows affected: %d\n", outcome.RowsAffected)
			if outcome.Message != "" {
				fmt.Printf("  %s\n", outcome.Message)
			}
		}
		return nil
	},
}
