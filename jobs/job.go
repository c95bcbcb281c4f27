// Package jobs defines the job contract and the fixed catalog of
// housekeeping jobs the scheduler executes.
package jobs

import (
	"context"

	"github.com/Kusekushi/didhub-jobs/storage"
)

// Category classifies a job for display and filtering.
type Category string

const (
	CategoryCleanup     Category = "cleanup"
	CategoryMaintenance Category = "maintenance"
	CategoryMetrics     Category = "metrics"
	CategoryIntegrity   Category = "integrity"
	CategoryCustom      Category = "custom"
)

// Outcome is the structured success payload returned by a job's Run.
type Outcome struct {
	RowsAffected int64          `json:"rows_affected"`
	Message      string         `json:"message,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Job is a named, schedulable unit of work.
//
// Implementations must be safe to invoke from multiple goroutines
// concurrently (no shared mutable state between invocations except through
// the storage handle) and idempotent-safe to retry: re-running after a
// prior failure must not corrupt state.
//
// Cancellation is cooperative: Run must check ctx.Err() at reasonable
// intervals during long operations and return promptly when cancelled,
// rather than being forcibly killed mid-statement.
type Job interface {
	// Name returns a stable, unique identifier (letter first, then
	// alphanumerics/underscore only).
	Name() string

	// Description returns a human-readable summary, longer than Name.
	Description() string

	// Category returns the job's classification.
	Category() Category

	// DefaultSchedule returns a 5-field cron expression or one of the
	// @hourly/@daily/@monthly aliases. Empty means the job is not
	// periodic and runs only on demand.
	DefaultSchedule() string

	// Run executes the job against the storage handle.
	Run(ctx context.Context, store *storage.Handle) (*Outcome, error)
}

// IsPeriodic reports whether the job declares a default schedule.
func IsPeriodic(j Job) bool {
	return j.DefaultSchedule() != ""
}

// ValidateName reports whether name is a valid job identifier:
// non-empty, starts with a letter, alphanumerics and underscore only.
func ValidateName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r == '_', r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
