package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/Kusekushi/didhub-jobs/errors"
	"github.com/Kusekushi/didhub-jobs/storage"
)

// AuditRetentionJob prunes audit log entries older than the retention window.
type AuditRetentionJob struct {
	// RetentionDays controls how far back audit entries are kept.
	// Zero means the default of 90 days.
	RetentionDays int
}

// Compile-time interface check.
var _ Job = (*AuditRetentionJob)(nil)

func (j *AuditRetentionJob) Name() string { return "audit_retention" }

func (j *AuditRetentionJob) Description() string {
	return "Deletes audit log entries older than the configured retention window"
}

func (j *AuditRetentionJob) Category() Category { return CategoryCleanup }

func (j *AuditRetentionJob) DefaultSchedule() string { return "0 2 * * *" }

// Run deletes audit_log rows past the retention cutoff.
func (j *AuditRetentionJob) Run(ctx context.Context, store *storage.Handle) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	days := j.RetentionDays
	if days <= 0 {
		days = 90
	}
	cutoff := time.Now().AddDate(0, 0, -days)

	res, err := store.DB().ExecContext(ctx,
		`DELETE FROM audit_log WHERE created_at < ?`, cutoff)
	if err != nil {
		return nil, errors.Wrap(err, "failed to prune audit log")
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read pruned row count")
	}

	return &Outcome{
		RowsAffected: deleted,
		Message:      fmt.Sprintf("pruned %d audit entries older than %d days", deleted, days),
		Metadata:     map[string]any{"retention_days": days},
	}, nil
}

// SessionCleanupJob removes expired sessions and enforces an absolute
// session age cap on top of per-session expiry.
type SessionCleanupJob struct {
	// MaxAgeHours caps session lifetime regardless of expires_at.
	// Zero means the default of 24 hours.
	MaxAgeHours int
}

// Compile-time interface check.
var _ Job = (*SessionCleanupJob)(nil)

func (j *SessionCleanupJob) Name() string { return "session_cleanup" }

func (j *SessionCleanupJob) Description() string {
	return "Removes sessions whose expiry timestamp has passed"
}

func (j *SessionCleanupJob) Category() Category { return CategoryCleanup }

func (j *SessionCleanupJob) DefaultSchedule() string { return "*/30 * * * *" }

// Run deletes sessions rows whose expires_at is in the past or whose
// created_at is older than the absolute age cap.
func (j *SessionCleanupJob) Run(ctx context.Context, store *storage.Handle) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	maxAge := j.MaxAgeHours
	if maxAge <= 0 {
		maxAge = 24
	}
	now := time.Now()

	res, err := store.DB().ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at < ? OR created_at < ?`,
		now, now.Add(-time.Duration(maxAge)*time.Hour))
	if err != nil {
		return nil, errors.Wrap(err, "failed to delete expired sessions")
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read deleted row count")
	}

	return &Outcome{
		RowsAffected: deleted,
		Message:      fmt.Sprintf("removed %d expired sessions", deleted),
	}, nil
}
