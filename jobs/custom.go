package jobs

import (
	"context"

	"github.com/Kusekushi/didhub-jobs/storage"
)

// CustomJob wraps a caller-supplied function as an on-demand job.
// It declares no default schedule, so it only runs via manual trigger.
type CustomJob struct {
	JobName string
	Desc    string
	Fn      func(ctx context.Context, store *storage.Handle) (*Outcome, error)
}

// Compile-time interface check.
var _ Job = (*CustomJob)(nil)

func (j *CustomJob) Name() string { return j.JobName }

func (j *CustomJob) Description() string { return j.Desc }

func (j *CustomJob) Category() Category { return CategoryCustom }

func (j *CustomJob) DefaultSchedule() string { return "" }

func (j *CustomJob) Run(ctx context.Context, store *storage.Handle) (*Outcome, error) {
	return j.Fn(ctx, store)
}

// Catalog returns the fixed set of built-in housekeeping jobs.
// Non-positive tuning values fall back to each job's default.
func Catalog(auditRetentionDays, sessionMaxAgeHours int) []Job {
	return []Job{
		&AuditRetentionJob{RetentionDays: auditRetentionDays},
		&SessionCleanupJob{MaxAgeHours: sessionMaxAgeHours},
		&UsageMetricsJob{},
		&IntegrityCheckJob{},
		&MaintenanceJob{},
	}
}
