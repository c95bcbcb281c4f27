package jobs

import (
	"context"

	"github.com/Kusekushi/didhub-jobs/errors"
	"github.com/Kusekushi/didhub-jobs/storage"
)

// UsageMetricsJob records a point-in-time snapshot of table sizes for
// capacity tracking. One row per run in metrics_snapshots.
type UsageMetricsJob struct{}

// Compile-time interface check.
var _ Job = (*UsageMetricsJob)(nil)

func (j *UsageMetricsJob) Name() string { return "usage_metrics" }

func (j *UsageMetricsJob) Description() string {
	return "Captures an hourly snapshot of session, audit and database size counters"
}

func (j *UsageMetricsJob) Category() Category { return CategoryMetrics }

func (j *UsageMetricsJob) DefaultSchedule() string { return "@hourly" }

// Run counts the collaborator tables and inserts one snapshot row.
func (j *UsageMetricsJob) Run(ctx context.Context, store *storage.Handle) (*Outcome, error) {
	db := store.DB()

	var sessionCount, auditCount, pageCount int64

	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&sessionCount); err != nil {
		return nil, errors.Wrap(err, "failed to count sessions")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log`).Scan(&auditCount); err != nil {
		return nil, errors.Wrap(err, "failed to count audit entries")
	}
	if err := db.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&pageCount); err != nil {
		return nil, errors.Wrap(err, "failed to read page count")
	}

	if _, err := db.ExecContext(ctx,
		`INSERT INTO metrics_snapshots (session_count, audit_count, db_page_count) VALUES (?, ?, ?)`,
		sessionCount, auditCount, pageCount); err != nil {
		return nil, errors.Wrap(err, "failed to insert metrics snapshot")
	}

	return &Outcome{
		RowsAffected: 1,
		Message:      "metrics snapshot recorded",
		Metadata: map[string]any{
			"sessions":      sessionCount,
			"audit_entries": auditCount,
			"db_pages":      pageCount,
		},
	}, nil
}
