// Package scheduler owns the schedule registry and the cron-tick loop that
// executes registered jobs, plus the manual trigger path.
package scheduler

import (
	"sync"
	"time"

	"github.com/Kusekushi/didhub-jobs/jobs"
)

// FallbackSchedule is applied when a job declares no default schedule but
// is still registered for periodic execution.
const FallbackSchedule = "0 2 * * *"

// ScheduleConfig is the mutable per-job schedule state.
// A disabled schedule is never selected by the tick loop but can still be
// triggered manually.
type ScheduleConfig struct {
	Enabled  bool       `json:"enabled"`
	Schedule string     `json:"schedule"`
	LastRun  *time.Time `json:"last_run,omitempty"`
}

// Registry maps job names to their implementations and schedule configs.
// It doubles as the catalog index. All operations are safe for concurrent
// use; reads do not block other reads.
type Registry struct {
	mu        sync.RWMutex
	jobs      map[string]jobs.Job
	schedules map[string]*ScheduleConfig
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		jobs:      make(map[string]jobs.Job),
		schedules: make(map[string]*ScheduleConfig),
	}
}

// Register inserts the job with a default schedule config: enabled, with
// the job's default schedule (or the fallback), and no last run.
// Registering an existing name overwrites the implementation; that is
// test/administrative use only, not expected in normal operation.
func (r *Registry) Register(j jobs.Job) {
	schedule := j.DefaultSchedule()
	if schedule == "" {
		schedule = FallbackSchedule
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[j.Name()] = j
	r.schedules[j.Name()] = &ScheduleConfig{
		Enabled:  true,
		Schedule: schedule,
	}
}

// Job returns the registered implementation, or nil if unknown.
func (r *Registry) Job(name string) jobs.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.jobs[name]
}

// GetSchedule returns a copy of the schedule config, or nil if the name is
// unregistered.
func (r *Registry) GetSchedule(name string) *ScheduleConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.schedules[name]
	if !ok {
		return nil
	}
	out := *cfg
	if cfg.LastRun != nil {
		t := *cfg.LastRun
		out.LastRun = &t
	}
	return &out
}

// UpdateSchedule replaces the full config for an existing job name.
// No-op (not an error) if the name is unregistered.
func (r *Registry) UpdateSchedule(name string, cfg ScheduleConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.schedules[name]; !ok {
		return
	}
	updated := cfg
	r.schedules[name] = &updated
}

// SetLastRun records the completion time of the job's most recent run.
// No-op if the name is unregistered.
func (r *Registry) SetLastRun(name string, t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cfg, ok := r.schedules[name]; ok {
		cfg.LastRun = &t
	}
}

// ListJobs returns all registered names, unordered.
func (r *Registry) ListJobs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	return names
}
