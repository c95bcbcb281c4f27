package ledger

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/Kusekushi/didhub-jobs/errors"
)

// MaxJobRuns bounds the in-memory run history. Insertion beyond the cap
// evicts the oldest entries by insertion order, independent of job name.
const MaxJobRuns = 1000

// Executor runs a job-type keyed unit of work. Distinct from the catalog's
// jobs: callers here only know a job-type string and a JSON payload.
//
// Implementations must check ctx periodically and exit cleanly when
// cancelled.
type Executor interface {
	Execute(ctx context.Context, run *JobRun) error
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(ctx context.Context, run *JobRun) error

func (f ExecutorFunc) Execute(ctx context.Context, run *JobRun) error {
	return f(ctx, run)
}

// EnqueueRequest describes a run to record via Enqueue.
type EnqueueRequest struct {
	JobType string          `json:"job_type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EnqueueResult acknowledges a recorded run.
type EnqueueResult struct {
	JobID string `json:"job_id"`
}

// Ledger is the bounded, order-preserving history of execution attempts,
// with O(1) lookup by run id. The ordered slice and the id index are kept
// in lock-step under one lock.
type Ledger struct {
	mu        sync.RWMutex
	order     []*JobRun           // insertion order, oldest first
	byID      map[string]*JobRun  // run id -> run
	executors map[string]Executor // job type -> executor
	log       *zap.SugaredLogger
}

// New creates an empty ledger.
func New(log *zap.SugaredLogger) *Ledger {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Ledger{
		byID:      make(map[string]*JobRun),
		executors: make(map[string]Executor),
		log:       log,
	}
}

// RegisterExecutor associates an executor with a job-type key.
// Re-registering the same key replaces the executor.
func (l *Ledger) RegisterExecutor(jobType string, ex Executor) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.executors[jobType] = ex
}

// Enqueue records intent to run a job type and returns the run id
// immediately. It does NOT start execution: this entry point is
// fire-and-forget bookkeeping only. Callers that want the executor
// invoked use RunJob instead.
func (l *Ledger) Enqueue(req EnqueueRequest) EnqueueResult {
	run := newRun(req.JobType, RunStatusPending, req.Payload)

	l.mu.Lock()
	l.insertLocked(run)
	l.mu.Unlock()

	l.log.Debugw("Run enqueued", "run_id", run.ID, "job_type", req.JobType)
	return EnqueueResult{JobID: run.ID}
}

// RunJob synchronously executes the registered executor for jobName and
// records the terminal run before returning.
//
// If no executor is registered for the job type, the run completes
// immediately as a no-op success. This stub behavior is intentional:
// unregistered job types must not error.
func (l *Ledger) RunJob(ctx context.Context, jobName string, payload json.RawMessage) (JobRun, error) {
	run := newRun(jobName, RunStatusRunning, payload)

	l.mu.RLock()
	ex := l.executors[jobName]
	l.mu.RUnlock()

	var runErr error
	if ex != nil {
		runErr = ex.Execute(ctx, run)
	}

	switch {
	case runErr == nil:
		run.finish(RunStatusSucceeded, "")
	case errors.Is(runErr, context.Canceled):
		run.finish(RunStatusCancelled, runErr.Error())
	default:
		run.finish(RunStatusFailed, runErr.Error())
	}

	l.mu.Lock()
	l.insertLocked(run)
	l.mu.Unlock()

	if runErr != nil {
		l.log.Warnw("Run finished with error",
			"run_id", run.ID,
			"job_name", jobName,
			"status", run.Status,
			"error", runErr)
	}

	return run.clone(), nil
}

// Record inserts an externally managed run (e.g. a manual trigger from the
// scheduler) and returns its id. The run starts in Running state; callers
// move it to a terminal state via UpdateRunStatus.
func (l *Ledger) Record(jobName string, payload json.RawMessage) string {
	run := newRun(jobName, RunStatusRunning, payload)

	l.mu.Lock()
	l.insertLocked(run)
	l.mu.Unlock()

	return run.ID
}

// ListRuns returns runs most-recent-first, optionally filtered by exact
// job name (empty string = all), paginated by limit/offset.
// limit < 0 means no limit.
func (l *Ledger) ListRuns(jobName string, limit, offset int) []JobRun {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]JobRun, 0)
	skipped := 0
	for i := len(l.order) - 1; i >= 0; i-- {
		run := l.order[i]
		if jobName != "" && run.JobName != jobName {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		if limit >= 0 && len(out) >= limit {
			break
		}
		out = append(out, run.clone())
	}
	return out
}

// CountRuns returns the number of retained runs, optionally filtered by
// exact job name (empty string = all).
func (l *Ledger) CountRuns(jobName string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if jobName == "" {
		return len(l.order)
	}
	count := 0
	for _, run := range l.order {
		if run.JobName == jobName {
			count++
		}
	}
	return count
}

// GetRun returns a copy of the run with the given id, or nil if unknown
// (including runs that have been evicted).
func (l *Ledger) GetRun(id string) *JobRun {
	l.mu.RLock()
	defer l.mu.RUnlock()

	run, ok := l.byID[id]
	if !ok {
		return nil
	}
	out := run.clone()
	return &out
}

// UpdateRunStatus sets the run's status, recording finished_at exactly
// when the new status is terminal. Terminal runs are never mutated again.
// Returns nil if the id is unknown.
func (l *Ledger) UpdateRunStatus(id string, status RunStatus, errorMessage string) *JobRun {
	l.mu.Lock()
	defer l.mu.Unlock()

	run, ok := l.byID[id]
	if !ok {
		return nil
	}
	if !run.Status.IsTerminal() {
		if status.IsTerminal() {
			run.finish(status, errorMessage)
		} else {
			run.Status = status
			run.ErrorMessage = errorMessage
		}
	}
	out := run.clone()
	return &out
}

// ClearRuns empties the ledger. Administrative/test use.
func (l *Ledger) ClearRuns() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.order = nil
	l.byID = make(map[string]*JobRun)
}

// insertLocked appends the run and evicts the oldest entries once the cap
// is exceeded. Both structures are updated under the same lock so the id
// index never references an evicted run.
func (l *Ledger) insertLocked(run *JobRun) {
	l.order = append(l.order, run)
	l.byID[run.ID] = run

	for len(l.order) > MaxJobRuns {
		oldest := l.order[0]
		l.order = l.order[1:]
		delete(l.byID, oldest.ID)
	}
}
