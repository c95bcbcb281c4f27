// Package ledger tracks job execution attempts in a bounded in-memory
// history. It also provides a lightweight enqueue/run API keyed by
// job-type strings, independent of the cron scheduler's job catalog.
package ledger

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the lifecycle state of a run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminal reports whether the status ends the run's lifecycle.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// IsValidStatus returns true if the string is a known RunStatus.
func IsValidStatus(s string) bool {
	switch RunStatus(s) {
	case RunStatusPending, RunStatusRunning, RunStatusSucceeded,
		RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// JobRun is one recorded attempt to execute a job. The ledger owns all
// instances; callers always receive copies.
type JobRun struct {
	ID           string          `json:"id"`
	JobName      string          `json:"job_name"`
	Status       RunStatus       `json:"status"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// newRun creates a run in the given initial (non-terminal) state.
func newRun(jobName string, status RunStatus, payload json.RawMessage) *JobRun {
	return &JobRun{
		ID:        uuid.NewString(),
		JobName:   jobName,
		Status:    status,
		StartedAt: time.Now(),
		Payload:   payload,
	}
}

// finish transitions the run to a terminal status exactly once.
// finishedAt is set at the moment the status becomes terminal.
func (r *JobRun) finish(status RunStatus, errorMessage string) {
	if r.Status.IsTerminal() {
		return
	}
	now := time.Now()
	r.Status = status
	r.FinishedAt = &now
	r.ErrorMessage = errorMessage
}

// clone returns a caller-owned copy of the run.
func (r *JobRun) clone() JobRun {
	out := *r
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		out.FinishedAt = &t
	}
	if r.Payload != nil {
		out.Payload = append(json.RawMessage(nil), r.Payload...)
	}
	return out
}
