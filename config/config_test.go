package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "didhub-jobs.db", cfg.Database.Path)
	assert.Equal(t, 8410, cfg.Server.Port)
	assert.False(t, cfg.Server.LogAsJSON)
	assert.Equal(t, 60, cfg.Jobs.TickIntervalSeconds)
	assert.Equal(t, 90, cfg.Jobs.AuditRetentionDays)
	assert.Equal(t, 24, cfg.Jobs.SessionMaxAgeHours)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[database]
path = "/var/lib/didhub/jobs.db"

[server]
port = 9000
log_as_json = true

[jobs]
tick_interval_seconds = 30
audit_retention_days = 30
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/didhub/jobs.db", cfg.Database.Path)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.True(t, cfg.Server.LogAsJSON)
	assert.Equal(t, 30, cfg.Jobs.TickIntervalSeconds)
	assert.Equal(t, 30, cfg.Jobs.AuditRetentionDays)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
port = 9100
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "didhub-jobs.db", cfg.Database.Path)
	assert.Equal(t, 90, cfg.Jobs.AuditRetentionDays)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("DIDHUB_JOBS_SERVER_PORT", "7777")
	t.Setenv("DIDHUB_JOBS_DATABASE_PATH", "/tmp/env.db")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "/tmp/env.db", cfg.Database.Path)
}
