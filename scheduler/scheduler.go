package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Kusekushi/didhub-jobs/audit"
	"github.com/Kusekushi/didhub-jobs/errors"
	"github.com/Kusekushi/didhub-jobs/jobs"
	"github.com/Kusekushi/didhub-jobs/ledger"
	"github.com/Kusekushi/didhub-jobs/storage"
)

// Config contains scheduler tuning knobs.
type Config struct {
	// TickInterval is the resolution of the schedule check loop.
	TickInterval time.Duration
}

// DefaultConfig returns sensible defaults: one tick per minute, matching
// the minute resolution of cron expressions.
func DefaultConfig() Config {
	return Config{TickInterval: time.Minute}
}

// TriggerResult acknowledges a manual trigger. Execution proceeds
// asynchronously; RunID identifies the ledger entry tracking it.
type TriggerResult struct {
	Job    string `json:"job"`
	Status string `json:"status"`
	RunID  string `json:"run_id"`
}

// Scheduler orchestrates periodic and manual job execution. It composes a
// schedule registry, the storage handle threaded into every run, the run
// ledger and an audit recorder.
//
// One background goroutine runs the tick loop; every other operation may
// be invoked concurrently from any number of goroutines.
type Scheduler struct {
	registry *Registry
	store    *storage.Handle
	ledger   *ledger.Ledger
	recorder audit.Recorder
	interval time.Duration
	log      *zap.SugaredLogger

	parentCtx context.Context // for context recreation after Stop
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	mu      sync.Mutex
	running map[string]struct{} // per-job execution guard
	started bool
}

// New creates a scheduler with a background parent context.
func New(store *storage.Handle, runLedger *ledger.Ledger, recorder audit.Recorder, cfg Config, log *zap.SugaredLogger) *Scheduler {
	return NewWithContext(context.Background(), store, runLedger, recorder, cfg, log)
}

// NewWithContext creates a scheduler whose shutdown is additionally tied
// to the parent context. Useful for tests and server lifecycles.
func NewWithContext(ctx context.Context, store *storage.Handle, runLedger *ledger.Ledger, recorder audit.Recorder, cfg Config, log *zap.SugaredLogger) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultConfig().TickInterval
	}
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if runLedger == nil {
		runLedger = ledger.New(log)
	}

	schedCtx, cancel := context.WithCancel(ctx)
	return &Scheduler{
		registry:  NewRegistry(),
		store:     store,
		ledger:    runLedger,
		recorder:  recorder,
		interval:  cfg.TickInterval,
		log:       log.Named("scheduler"),
		parentCtx: ctx,
		ctx:       schedCtx,
		cancel:    cancel,
		running:   make(map[string]struct{}),
	}
}

// Registry exposes the schedule registry for admin surfaces
// (list jobs, get/update schedule).
func (s *Scheduler) Registry() *Registry {
	return s.registry
}

// RegisterJob adds a job to the registry with its default schedule.
func (s *Scheduler) RegisterJob(j jobs.Job) {
	s.registry.Register(j)
	s.log.Debugw("Job registered",
		"job", j.Name(),
		"category", j.Category(),
		"schedule", j.DefaultSchedule(),
		"periodic", jobs.IsPeriodic(j))
}

// Start begins the tick loop. Idempotent: a second Start while running is
// a no-op. After Stop the scheduler can be started again; the loop context
// is recreated from the parent.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}

	select {
	case <-s.ctx.Done():
		s.ctx, s.cancel = context.WithCancel(s.parentCtx)
	default:
	}

	s.started = true
	s.wg.Add(1)
	go s.run()
	s.log.Infow("Scheduler started", "interval", s.interval)
}

// Stop signals cancellation to the loop and all in-flight runs, then waits
// for them to observe it. Calling Stop before Start succeeds trivially.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	wasStarted := s.started
	s.started = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	if wasStarted {
		s.log.Infow("Scheduler stopped")
	}
	return nil
}

// Trigger starts a manual, out-of-band execution of the named job.
// It returns immediately with a queued acknowledgment and a run id while
// execution proceeds asynchronously.
//
// Returns ErrNotFound for unregistered names and ErrAlreadyRunning when
// the same job is mid-execution (the second invocation is rejected, never
// queued behind the first).
func (s *Scheduler) Trigger(jobName string) (*TriggerResult, error) {
	j := s.registry.Job(jobName)
	if j == nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "job %q", jobName)
	}

	s.mu.Lock()
	select {
	case <-s.ctx.Done():
		s.mu.Unlock()
		return nil, errors.Wrapf(errors.ErrSchedulerStopped, "cannot trigger %q", jobName)
	default:
	}
	if _, busy := s.running[jobName]; busy {
		s.mu.Unlock()
		return nil, errors.Wrapf(errors.ErrAlreadyRunning, "job %q", jobName)
	}
	s.running[jobName] = struct{}{}
	runID := s.ledger.Record(jobName, nil)
	s.wg.Add(1)
	s.mu.Unlock()

	s.log.Infow("Job triggered manually", "job", jobName, "run_id", runID)

	go func() {
		defer s.wg.Done()
		s.execute(j, runID)
	}()

	return &TriggerResult{Job: jobName, Status: "queued", RunID: runID}, nil
}

// run is the tick loop.
func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case tickTime := <-ticker.C:
			s.checkDueJobs(tickTime)
		}
	}
}

// checkDueJobs finds enabled, periodic schedules firing in the slot
// containing now and executes them concurrently. Jobs already running are
// skipped silently; due jobs are independent of one another.
func (s *Scheduler) checkDueJobs(now time.Time) {
	for _, name := range s.registry.ListJobs() {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		j := s.registry.Job(name)
		cfg := s.registry.GetSchedule(name)
		if j == nil || cfg == nil {
			continue
		}
		if !cfg.Enabled || !jobs.IsPeriodic(j) {
			continue
		}

		due, err := DueAt(cfg.Schedule, cfg.LastRun, now)
		if err != nil {
			s.log.Warnw("Skipping job with invalid schedule",
				"job", name,
				"schedule", cfg.Schedule,
				"error", err)
			continue
		}
		if !due {
			continue
		}

		s.mu.Lock()
		if _, busy := s.running[name]; busy {
			s.mu.Unlock()
			s.log.Debugw("Job still running, skipping tick", "job", name)
			continue
		}
		s.running[name] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		job := j
		go func() {
			defer s.wg.Done()
			s.execute(job, "")
		}()
	}
}

// execute runs one job invocation end to end: per-run cancellation
// context, panic containment, outcome classification, last_run update,
// audit recording, and (for triggered runs) the ledger terminal update.
//
// The last_run update and the ledger write happen after Run returns and
// before the run id's ledger entry becomes terminal.
func (s *Scheduler) execute(j jobs.Job, runID string) {
	name := j.Name()
	defer s.release(name)

	runCtx, cancelRun := context.WithCancel(s.ctx)
	defer cancelRun()

	start := time.Now()
	outcome, runErr := s.invoke(runCtx, j)
	completed := time.Now()
	durationMs := completed.Sub(start).Milliseconds()

	status := ledger.RunStatusSucceeded
	errMsg := ""
	switch {
	case runErr == nil:
	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		status = ledger.RunStatusCancelled
		errMsg = runErr.Error()
	default:
		status = ledger.RunStatusFailed
		errMsg = runErr.Error()
	}

	s.registry.SetLastRun(name, completed)

	// Audit uses a fresh context: the run context may already be
	// cancelled, and a shutdown must not lose the outcome record.
	if err := s.recorder.RecordRun(context.Background(), name, outcome, runErr); err != nil {
		s.log.Warnw("Failed to record audit event", "job", name, "error", err)
	}

	if runID != "" {
		s.ledger.UpdateRunStatus(runID, status, errMsg)
	}

	switch status {
	case ledger.RunStatusSucceeded:
		fields := []interface{}{"job", name, "duration_ms", durationMs}
		if outcome != nil {
			fields = append(fields, "rows_affected", outcome.RowsAffected)
			if outcome.Message != "" {
				fields = append(fields, "message", outcome.Message)
			}
		}
		s.log.Infow("Job completed", fields...)
	case ledger.RunStatusCancelled:
		s.log.Warnw("Job cancelled", "job", name, "duration_ms", durationMs)
	default:
		s.log.Errorw("Job failed", "job", name, "duration_ms", durationMs, "error", runErr)
	}
}

// invoke calls the job's Run, converting panics into errors so a crashing
// implementation can never take down the scheduler.
func (s *Scheduler) invoke(ctx context.Context, j jobs.Job) (outcome *jobs.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = nil
			err = errors.Newf("job %s panicked: %v", j.Name(), r)
		}
	}()
	return j.Run(ctx, s.store)
}

// release clears the per-job execution guard.
func (s *Scheduler) release(name string) {
	s.mu.Lock()
	delete(s.running, name)
	s.mu.Unlock()
}

// IsRunning reports whether the named job is currently executing.
func (s *Scheduler) IsRunning(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, busy := s.running[name]
	return busy
}
