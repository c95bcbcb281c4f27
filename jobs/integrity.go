package jobs

import (
	"context"

	"github.com/Kusekushi/didhub-jobs/errors"
	"github.com/Kusekushi/didhub-jobs/storage"
)

// IntegrityCheckJob verifies the database is structurally sound.
// It is read-only and therefore trivially safe to retry.
type IntegrityCheckJob struct{}

// Compile-time interface check.
var _ Job = (*IntegrityCheckJob)(nil)

func (j *IntegrityCheckJob) Name() string { return "integrity_check" }

func (j *IntegrityCheckJob) Description() string {
	return "Runs SQLite quick_check and foreign key verification over the database"
}

func (j *IntegrityCheckJob) Category() Category { return CategoryIntegrity }

func (j *IntegrityCheckJob) DefaultSchedule() string { return "@daily" }

// Run executes PRAGMA quick_check and PRAGMA foreign_key_check.
// A non-ok result is an execution failure, not a panic: the scheduler
// records it like any other failed run.
func (j *IntegrityCheckJob) Run(ctx context.Context, store *storage.Handle) (*Outcome, error) {
	db := store.DB()

	var result string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check`).Scan(&result); err != nil {
		return nil, errors.Wrap(err, "failed to run quick_check")
	}
	if result != "ok" {
		return nil, errors.Newf("integrity check failed: %s", result)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `PRAGMA foreign_key_check`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to run foreign_key_check")
	}
	defer rows.Close()

	violations := 0
	for rows.Next() {
		violations++
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating foreign key violations")
	}
	if violations > 0 {
		return nil, errors.Newf("found %d foreign key violations", violations)
	}

	return &Outcome{
		Message: "integrity check passed",
	}, nil
}
