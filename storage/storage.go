// Package storage provides the opaque persistence handle that the scheduler
// threads into every job run. The scheduler never inspects its contents;
// jobs issue their own SQL against it.
package storage

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Kusekushi/didhub-jobs/errors"
)

// Handle wraps the shared database connection pool. It is safe for
// concurrent use by multiple job invocations; connection pooling is
// delegated to database/sql.
type Handle struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and applies the
// pragmas the runtime depends on (WAL journaling, foreign keys).
func Open(path string) (*Handle, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", path)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "failed to apply %q", pragma)
		}
	}

	return &Handle{db: db}, nil
}

// NewFromDB wraps an existing connection. Used by tests and by callers that
// manage the pool themselves.
func NewFromDB(db *sql.DB) *Handle {
	return &Handle{db: db}
}

// DB exposes the underlying pool for jobs that issue raw SQL.
func (h *Handle) DB() *sql.DB {
	return h.db
}

// Close closes the underlying pool.
func (h *Handle) Close() error {
	return h.db.Close()
}

// Migrate creates the collaborator tables the job catalog operates on.
// Idempotent: every statement is CREATE IF NOT EXISTS.
func (h *Handle) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL,
			created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			expires_at  TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			job_name    TEXT NOT NULL,
			status      TEXT NOT NULL,
			rows_affected INTEGER NOT NULL DEFAULT 0,
			message     TEXT,
			error_message TEXT,
			created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_created_at ON audit_log(created_at)`,
		`CREATE TABLE IF NOT EXISTS metrics_snapshots (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			session_count INTEGER NOT NULL,
			audit_count   INTEGER NOT NULL,
			db_page_count INTEGER NOT NULL,
			created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, stmt := range statements {
		if _, err := h.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to run storage migration")
		}
	}
	return nil
}
