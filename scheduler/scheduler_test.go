package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kusekushi/didhub-jobs/audit"
	"github.com/Kusekushi/didhub-jobs/errors"
	"github.com/Kusekushi/didhub-jobs/jobs"
	"github.com/Kusekushi/didhub-jobs/ledger"
	"github.com/Kusekushi/didhub-jobs/storage"
)

// captureRecorder records audit calls for assertions.
type captureRecorder struct {
	mu      sync.Mutex
	records []capturedRecord
	fail    error
}

type capturedRecord struct {
	jobName string
	outcome *jobs.Outcome
	runErr  error
}

func (c *captureRecorder) RecordRun(_ context.Context, jobName string, outcome *jobs.Outcome, runErr error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, capturedRecord{jobName: jobName, outcome: outcome, runErr: runErr})
	return c.fail
}

func (c *captureRecorder) all() []capturedRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]capturedRecord(nil), c.records...)
}

func newTestScheduler(t *testing.T, recorder *captureRecorder) (*Scheduler, *ledger.Ledger) {
	t.Helper()

	runLedger := ledger.New(nil)
	var rec audit.Recorder
	if recorder != nil {
		rec = recorder
	}
	s := New(nil, runLedger, rec, Config{TickInterval: time.Hour}, nil)
	t.Cleanup(func() { s.Stop() })
	return s, runLedger
}

func waitForTerminal(t *testing.T, l *ledger.Ledger, runID string) ledger.JobRun {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for {
		run := l.GetRun(runID)
		require.NotNil(t, run)
		if run.Status.IsTerminal() {
			return *run
		}
		select {
		case <-deadline:
			t.Fatalf("run %s never reached a terminal state (status=%s)", runID, run.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestTriggerUnknownJob(t *testing.T) {
	s, _ := newTestScheduler(t, nil)

	result, err := s.Trigger("nope")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestTriggerReturnsQueuedAcknowledgment(t *testing.T) {
	s, runLedger := newTestScheduler(t, nil)
	s.RegisterJob(&fakeJob{name: "quick"})

	result, err := s.Trigger("quick")
	require.NoError(t, err)
	assert.Equal(t, "quick", result.Job)
	assert.Equal(t, "queued", result.Status)
	require.NotEmpty(t, result.RunID)

	run := waitForTerminal(t, runLedger, result.RunID)
	assert.Equal(t, ledger.RunStatusSucceeded, run.Status)
	assert.Equal(t, "quick", run.JobName)
}

func TestTriggerWhileRunningIsRejected(t *testing.T) {
	s, runLedger := newTestScheduler(t, nil)

	started := make(chan struct{})
	release := make(chan struct{})
	s.RegisterJob(&fakeJob{
		name: "slow",
		run: func(ctx context.Context, _ *storage.Handle) (*jobs.Outcome, error) {
			close(started)
			<-release
			return &jobs.Outcome{}, nil
		},
	})

	first, err := s.Trigger("slow")
	require.NoError(t, err)
	<-started
	assert.True(t, s.IsRunning("slow"))

	// Second invocation is rejected, never queued behind the first.
	second, err := s.Trigger("slow")
	require.Error(t, err)
	assert.Nil(t, second)
	assert.True(t, errors.IsAlreadyRunningError(err))

	close(release)
	waitForTerminal(t, runLedger, first.RunID)

	// After completion the guard is released and the job can run again.
	assert.False(t, s.IsRunning("slow"))
}

func TestPanickingJobIsContained(t *testing.T) {
	recorder := &captureRecorder{}
	s, runLedger := newTestScheduler(t, recorder)
	s.RegisterJob(&fakeJob{
		name: "crasher",
		run: func(ctx context.Context, _ *storage.Handle) (*jobs.Outcome, error) {
			panic("boom")
		},
	})

	result, err := s.Trigger("crasher")
	require.NoError(t, err)

	run := waitForTerminal(t, runLedger, result.RunID)
	assert.Equal(t, ledger.RunStatusFailed, run.Status)
	assert.Contains(t, run.ErrorMessage, "panicked")
	assert.Contains(t, run.ErrorMessage, "boom")

	// Scheduler is still operational afterwards.
	s.RegisterJob(&fakeJob{name: "fine"})
	after, err := s.Trigger("fine")
	require.NoError(t, err)
	run = waitForTerminal(t, runLedger, after.RunID)
	assert.Equal(t, ledger.RunStatusSucceeded, run.Status)
}

func TestStopCancelsInFlightRun(t *testing.T) {
	s, runLedger := newTestScheduler(t, nil)

	started := make(chan struct{})
	s.RegisterJob(&fakeJob{
		name: "cancellable",
		run: func(ctx context.Context, _ *storage.Handle) (*jobs.Outcome, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})

	result, err := s.Trigger("cancellable")
	require.NoError(t, err)
	<-started

	require.NoError(t, s.Stop())

	run := waitForTerminal(t, runLedger, result.RunID)
	assert.Equal(t, ledger.RunStatusCancelled, run.Status)
}

func TestTriggerAfterStop(t *testing.T) {
	s, _ := newTestScheduler(t, nil)
	s.RegisterJob(&fakeJob{name: "quick"})

	require.NoError(t, s.Stop())

	_, err := s.Trigger("quick")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSchedulerStopped))
}

func TestStopBeforeStart(t *testing.T) {
	s, _ := newTestScheduler(t, nil)
	assert.NoError(t, s.Stop())
}

func TestStartIsIdempotentAndRestartable(t *testing.T) {
	s, runLedger := newTestScheduler(t, nil)
	s.RegisterJob(&fakeJob{name: "quick"})

	s.Start()
	s.Start() // second Start is a no-op
	require.NoError(t, s.Stop())

	// After Stop the scheduler can be started again and still executes.
	s.Start()
	result, err := s.Trigger("quick")
	require.NoError(t, err)
	run := waitForTerminal(t, runLedger, result.RunID)
	assert.Equal(t, ledger.RunStatusSucceeded, run.Status)
}

func TestCheckDueJobsExecutesDueSchedules(t *testing.T) {
	recorder := &captureRecorder{}
	s, _ := newTestScheduler(t, recorder)

	ran := make(chan string, 2)
	s.RegisterJob(&fakeJob{
		name:     "due_job",
		schedule: "0 2 * * *",
		run: func(ctx context.Context, _ *storage.Handle) (*jobs.Outcome, error) {
			ran <- "due_job"
			return &jobs.Outcome{RowsAffected: 3}, nil
		},
	})
	s.RegisterJob(&fakeJob{
		name:     "not_due_job",
		schedule: "0 5 * * *",
		run: func(ctx context.Context, _ *storage.Handle) (*jobs.Outcome, error) {
			ran <- "not_due_job"
			return &jobs.Outcome{}, nil
		},
	})

	tick := time.Date(2026, 8, 23, 2, 0, 0, 0, time.Local)
	s.checkDueJobs(tick)

	select {
	case name := <-ran:
		assert.Equal(t, "due_job", name)
	case <-time.After(5 * time.Second):
		t.Fatal("due job never executed")
	}

	require.NoError(t, s.Stop())
	select {
	case name := <-ran:
		t.Fatalf("job %s executed but was not due", name)
	default:
	}

	// last_run was stamped, so the same slot does not fire twice.
	cfg := s.Registry().GetSchedule("due_job")
	require.NotNil(t, cfg)
	require.NotNil(t, cfg.LastRun)
}

func TestCheckDueJobsSkipsDisabledSchedules(t *testing.T) {
	s, _ := newTestScheduler(t, nil)

	ran := make(chan struct{}, 1)
	s.RegisterJob(&fakeJob{
		name:     "disabled_job",
		schedule: "0 2 * * *",
		run: func(ctx context.Context, _ *storage.Handle) (*jobs.Outcome, error) {
			ran <- struct{}{}
			return &jobs.Outcome{}, nil
		},
	})
	s.Registry().UpdateSchedule("disabled_job", ScheduleConfig{Enabled: false, Schedule: "0 2 * * *"})

	s.checkDueJobs(time.Date(2026, 8, 23, 2, 0, 0, 0, time.Local))
	require.NoError(t, s.Stop())

	select {
	case <-ran:
		t.Fatal("disabled job executed")
	default:
	}
}

func TestCheckDueJobsSkipsOnDemandJobs(t *testing.T) {
	s, _ := newTestScheduler(t, nil)

	ran := make(chan struct{}, 1)
	s.RegisterJob(&fakeJob{
		name: "on_demand",
		run: func(ctx context.Context, _ *storage.Handle) (*jobs.Outcome, error) {
			ran <- struct{}{}
			return &jobs.Outcome{}, nil
		},
	})

	// The registry stored the fallback schedule, but a job with no default
	// schedule is never selected by the tick loop.
	cfg := s.Registry().GetSchedule("on_demand")
	require.NotNil(t, cfg)
	require.Equal(t, FallbackSchedule, cfg.Schedule)

	s.checkDueJobs(time.Date(2026, 8, 23, 2, 0, 0, 0, time.Local))
	require.NoError(t, s.Stop())

	select {
	case <-ran:
		t.Fatal("on-demand job executed from the tick loop")
	default:
	}
}

func TestAuditRecorderReceivesOutcome(t *testing.T) {
	recorder := &captureRecorder{}
	s, runLedger := newTestScheduler(t, recorder)
	s.RegisterJob(&fakeJob{
		name: "audited",
		run: func(ctx context.Context, _ *storage.Handle) (*jobs.Outcome, error) {
			return &jobs.Outcome{RowsAffected: 7, Message: "pruned"}, nil
		},
	})

	result, err := s.Trigger("audited")
	require.NoError(t, err)
	waitForTerminal(t, runLedger, result.RunID)

	records := recorder.all()
	require.Len(t, records, 1)
	assert.Equal(t, "audited", records[0].jobName)
	require.NotNil(t, records[0].outcome)
	assert.Equal(t, int64(7), records[0].outcome.RowsAffected)
	assert.NoError(t, records[0].runErr)
}

func TestAuditFailureDoesNotFailRun(t *testing.T) {
	recorder := &captureRecorder{fail: errors.New("audit sink unavailable")}
	s, runLedger := newTestScheduler(t, recorder)
	s.RegisterJob(&fakeJob{name: "quick"})

	result, err := s.Trigger("quick")
	require.NoError(t, err)

	run := waitForTerminal(t, runLedger, result.RunID)
	assert.Equal(t, ledger.RunStatusSucceeded, run.Status)
	assert.Len(t, recorder.all(), 1)
}

func TestFailingJobRecordsFailure(t *testing.T) {
	recorder := &captureRecorder{}
	s, runLedger := newTestScheduler(t, recorder)
	s.RegisterJob(&fakeJob{
		name: "failing",
		run: func(ctx context.Context, _ *storage.Handle) (*jobs.Outcome, error) {
			return nil, errors.New("table locked")
		},
	})

	result, err := s.Trigger("failing")
	require.NoError(t, err)

	run := waitForTerminal(t, runLedger, result.RunID)
	assert.Equal(t, ledger.RunStatusFailed, run.Status)
	assert.Contains(t, run.ErrorMessage, "table locked")

	records := recorder.all()
	require.Len(t, records, 1)
	assert.Error(t, records[0].runErr)
}

func TestConcurrentDistinctJobs(t *testing.T) {
	s, runLedger := newTestScheduler(t, nil)

	gate := make(chan struct{})
	var running sync.WaitGroup
	for _, name := range []string{"a_job", "b_job", "c_job"} {
		running.Add(1)
		s.RegisterJob(&fakeJob{
			name: name,
			run: func(ctx context.Context, _ *storage.Handle) (*jobs.Outcome, error) {
				running.Done()
				<-gate
				return &jobs.Outcome{}, nil
			},
		})
	}

	results := make([]*TriggerResult, 0, 3)
	for _, name := range []string{"a_job", "b_job", "c_job"} {
		result, err := s.Trigger(name)
		require.NoError(t, err)
		results = append(results, result)
	}

	// Distinct jobs run concurrently; all three are in flight at once.
	running.Wait()
	close(gate)

	for _, result := range results {
		run := waitForTerminal(t, runLedger, result.RunID)
		assert.Equal(t, ledger.RunStatusSucceeded, run.Status)
	}
}
