package jobs

import (
	"context"

	"github.com/Kusekushi/didhub-jobs/errors"
	"github.com/Kusekushi/didhub-jobs/storage"
)

// MaintenanceJob reclaims space and refreshes planner statistics.
// Each phase is independent, so the job checks cancellation between
// phases and reports how far it got.
type MaintenanceJob struct{}

// Compile-time interface check.
var _ Job = (*MaintenanceJob)(nil)

func (j *MaintenanceJob) Name() string { return "db_maintenance" }

func (j *MaintenanceJob) Description() string {
	return "Refreshes query planner statistics, vacuums free pages and checkpoints the WAL"
}

func (j *MaintenanceJob) Category() Category { return CategoryMaintenance }

func (j *MaintenanceJob) DefaultSchedule() string { return "@monthly" }

// Run executes ANALYZE, incremental_vacuum and wal_checkpoint in order.
func (j *MaintenanceJob) Run(ctx context.Context, store *storage.Handle) (*Outcome, error) {
	db := store.DB()

	phases := []struct {
		name string
		stmt string
	}{
		{"analyze", `ANALYZE`},
		{"vacuum", `PRAGMA incremental_vacuum`},
		{"checkpoint", `PRAGMA wal_checkpoint(TRUNCATE)`},
	}

	completed := make([]string, 0, len(phases))
	for _, phase := range phases {
		// Cancellation checkpoint between phases.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := db.ExecContext(ctx, phase.stmt); err != nil {
			return nil, errors.Wrapf(err, "maintenance phase %s failed", phase.name)
		}
		completed = append(completed, phase.name)
	}

	return &Outcome{
		Message:  "maintenance completed",
		Metadata: map[string]any{"phases": completed},
	}, nil
}
