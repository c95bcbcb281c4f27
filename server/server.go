// Package server exposes the admin HTTP surface for the job runtime:
// listing jobs, triggering them, editing schedules and querying run
// history. Authentication is expected to be layered in front by the
// surrounding deployment.
package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Kusekushi/didhub-jobs/errors"
	"github.com/Kusekushi/didhub-jobs/ledger"
	"github.com/Kusekushi/didhub-jobs/scheduler"
)

// AdminServer bundles the runtime components the admin endpoints operate on.
type AdminServer struct {
	scheduler *scheduler.Scheduler
	ledger    *ledger.Ledger
	log       *zap.SugaredLogger
}

// New creates the admin server.
func New(sched *scheduler.Scheduler, runLedger *ledger.Ledger, log *zap.SugaredLogger) *AdminServer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &AdminServer{
		scheduler: sched,
		ledger:    runLedger,
		log:       log.Named("admin"),
	}
}

// Routes returns the handler for all admin endpoints.
func (s *AdminServer) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/jobs", s.HandleJobs)
	mux.HandleFunc("/api/jobs/", s.HandleJob)
	mux.HandleFunc("/api/runs", s.HandleRuns)
	return mux
}

// ListenAndServe starts the admin server on the given port.
func (s *AdminServer) ListenAndServe(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.log.Infow("Admin server listening", "addr", addr)
	return http.ListenAndServe(addr, s.Routes())
}

// ListJobsResponse is the payload of GET /api/jobs.
type ListJobsResponse struct {
	Jobs []string `json:"jobs"`
}

// HandleJobs handles GET /api/jobs.
func (s *AdminServer) HandleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, ListJobsResponse{Jobs: s.scheduler.Registry().ListJobs()})
}

// HandleJob handles requests to /api/jobs/{name}/trigger and
// /api/jobs/{name}/schedule.
func (s *AdminServer) HandleJob(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/jobs/"), "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	name, action := parts[0], parts[1]

	switch action {
	case "trigger":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		s.handleTrigger(w, r, name)
	case "schedule":
		switch r.Method {
		case http.MethodGet:
			s.handleGetSchedule(w, name)
		case http.MethodPatch:
			s.handleUpdateSchedule(w, r, name)
		default:
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

// handleTrigger starts a manual run of the named job.
func (s *AdminServer) handleTrigger(w http.ResponseWriter, r *http.Request, name string) {
	s.log.Infow("Trigger request", "job", name, "remote", r.RemoteAddr)

	result, err := s.scheduler.Trigger(name)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, result)
	case errors.IsNotFoundError(err):
		writeError(w, http.StatusNotFound, fmt.Sprintf("Unknown job %q", name))
	case errors.IsAlreadyRunningError(err):
		writeError(w, http.StatusConflict, fmt.Sprintf("Job %q is already running", name))
	default:
		s.log.Errorw("Trigger failed", "job", name, "error", err)
		writeError(w, http.StatusInternalServerError, "Trigger failed")
	}
}

// handleGetSchedule returns the schedule config for the named job.
func (s *AdminServer) handleGetSchedule(w http.ResponseWriter, name string) {
	cfg := s.scheduler.Registry().GetSchedule(name)
	if cfg == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Unknown job %q", name))
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// UpdateScheduleRequest is the payload of PATCH /api/jobs/{name}/schedule.
type UpdateScheduleRequest struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule"`
}

// handleUpdateSchedule replaces the schedule config for the named job.
// The previous last_run is preserved.
func (s *AdminServer) handleUpdateSchedule(w http.ResponseWriter, r *http.Request, name string) {
	var req UpdateScheduleRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}

	registry := s.scheduler.Registry()
	existing := registry.GetSchedule(name)
	if existing == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Unknown job %q", name))
		return
	}

	if _, err := scheduler.ParseSchedule(req.Schedule); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid schedule %q", req.Schedule))
		return
	}

	registry.UpdateSchedule(name, scheduler.ScheduleConfig{
		Enabled:  req.Enabled,
		Schedule: req.Schedule,
		LastRun:  existing.LastRun,
	})

	s.log.Infow("Schedule updated",
		"job", name,
		"enabled", req.Enabled,
		"schedule", req.Schedule)
	writeJSON(w, http.StatusOK, registry.GetSchedule(name))
}

// ListRunsResponse is the payload of GET /api/runs.
type ListRunsResponse struct {
	Runs  []ledger.JobRun `json:"runs"`
	Count int             `json:"count"`
}

// HandleRuns handles GET (list) and DELETE (clear) on /api/runs.
func (s *AdminServer) HandleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		job := r.URL.Query().Get("job")
		limit := queryInt(r, "limit", 50)
		offset := queryInt(r, "offset", 0)

		writeJSON(w, http.StatusOK, ListRunsResponse{
			Runs:  s.ledger.ListRuns(job, limit, offset),
			Count: s.ledger.CountRuns(job),
		})
	case http.MethodDelete:
		s.ledger.ClearRuns()
		s.log.Infow("Run history cleared", "remote", r.RemoteAddr)
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// queryInt parses an integer query parameter with a fallback default.
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
