// Package audit records job execution outcomes for observability.
// Recorder failures never fail the run that produced the outcome.
package audit

import (
	"context"
	"database/sql"

	"github.com/Kusekushi/didhub-jobs/errors"
	"github.com/Kusekushi/didhub-jobs/jobs"
)

// Recorder receives the outcome (or error) of every job run, scheduled or
// manual. Implementations must tolerate concurrent calls.
type Recorder interface {
	RecordRun(ctx context.Context, jobName string, outcome *jobs.Outcome, runErr error) error
}

// DBRecorder persists audit events into the audit_log table.
type DBRecorder struct {
	db *sql.DB
}

// NewDBRecorder creates a recorder backed by the given database.
func NewDBRecorder(db *sql.DB) *DBRecorder {
	return &DBRecorder{db: db}
}

// RecordRun inserts one audit_log row for the run.
func (r *DBRecorder) RecordRun(ctx context.Context, jobName string, outcome *jobs.Outcome, runErr error) error {
	status := "succeeded"
	var rowsAffected int64
	var message, errorMessage *string

	if outcome != nil {
		rowsAffected = outcome.RowsAffected
		if outcome.Message != "" {
			message = &outcome.Message
		}
	}
	if runErr != nil {
		status = "failed"
		if errors.Is(runErr, context.Canceled) {
			status = "cancelled"
		}
		msg := runErr.Error()
		errorMessage = &msg
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (job_name, status, rows_affected, message, error_message) VALUES (?, ?, ?, ?, ?)`,
		jobName, status, rowsAffected, message, errorMessage)
	if err != nil {
		return errors.Wrapf(err, "failed to record audit event for job %s", jobName)
	}
	return nil
}

// NopRecorder discards all events. Useful in tests and when auditing is
// disabled.
type NopRecorder struct{}

func (NopRecorder) RecordRun(context.Context, string, *jobs.Outcome, error) error {
	return nil
}
