// Package config loads the didhub-jobs runtime configuration from a TOML
// file with environment overrides.
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/Kusekushi/didhub-jobs/errors"
)

// Config is the root runtime configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
}

// DatabaseConfig configures the SQLite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig configures the admin HTTP surface.
type ServerConfig struct {
	Port      int  `mapstructure:"port"`
	LogAsJSON bool `mapstructure:"log_as_json"`
}

// JobsConfig configures the scheduler and the job catalog.
type JobsConfig struct {
	// TickIntervalSeconds is the resolution of the schedule check loop
	// (default: 60, matching cron's minute resolution).
	TickIntervalSeconds int `mapstructure:"tick_interval_seconds"`

	// AuditRetentionDays is the window the audit_retention job keeps
	// (default: 90).
	AuditRetentionDays int `mapstructure:"audit_retention_days"`

	// SessionMaxAgeHours is the absolute session age cap enforced by the
	// session_cleanup job on top of per-session expiry (default: 24).
	SessionMaxAgeHours int `mapstructure:"session_max_age_hours"`
}

// setDefaults applies the default configuration layer.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "didhub-jobs.db")
	v.SetDefault("server.port", 8410)
	v.SetDefault("server.log_as_json", false)
	v.SetDefault("jobs.tick_interval_seconds", 60)
	v.SetDefault("jobs.audit_retention_days", 90)
	v.SetDefault("jobs.session_max_age_hours", 24)
}

// Load reads configuration from the given TOML file path (optional; empty
// means defaults plus environment only). Environment variables use the
// DIDHUB_JOBS_ prefix with underscores, e.g. DIDHUB_JOBS_SERVER_PORT.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	setDefaults(v)

	v.SetEnvPrefix("DIDHUB_JOBS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &cfg, nil
}
