// Package config provides configuration management for Gapfill.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration structure for Gapfill.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Events    EventsConfig    `mapstructure:"events"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host to bind the server to
	Host string `mapstructure:"host"`

	// Port to listen on
	Port int `mapstructure:"port"`

	// Enable CORS
	CORS CORSConfig `mapstructure:"cors"`

	// Request timeouts
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`

	// Maximum request body size in bytes
	MaxBodySize int64 `mapstructure:"max_body_size"`
}

// Address returns the host:port pair the server binds to.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	AllowedOrigins   []string      `mapstructure:"allowed_origins"`
	AllowedMethods   []string      `mapstructure:"allowed_methods"`
	AllowedHeaders   []string      `mapstructure:"allowed_headers"`
	ExposedHeaders   []string      `mapstructure:"exposed_headers"`
	AllowCredentials bool          `mapstructure:"allow_credentials"`
	MaxAge           time.Duration `mapstructure:"max_age"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string `mapstructure:"path"`

	// Enable WAL mode (recommended)
	WALMode bool `mapstructure:"wal_mode"`

	// Cache size in KB (negative for KB, positive for pages)
	CacheSize int `mapstructure:"cache_size"`

	// Busy timeout
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`

	// Enable foreign keys
	ForeignKeys bool `mapstructure:"foreign_keys"`

	// Connection pool settings
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig holds run-scheduler settings.
type SchedulerConfig struct {
	// PollInterval is how often to poll for due runs
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// MaxConcurrentRuns caps simultaneous runs per backfill (0 = unlimited)
	MaxConcurrentRuns int `mapstructure:"max_concurrent_runs"`

	// RunTimeout marks runs stuck in "running" as timed out during recovery
	RunTimeout time.Duration `mapstructure:"run_timeout"`

	// MaxRunsPerBackfill caps how many runs a single range expands into
	MaxRunsPerBackfill int `mapstructure:"max_runs_per_backfill"`
}

// EventsConfig holds event bus settings.
type EventsConfig struct {
	// Retention is how long completed/failed events are kept
	Retention time.Duration `mapstructure:"retention"`

	// ProcessInterval is how often to poll for pending events
	ProcessInterval time.Duration `mapstructure:"process_interval"`

	// CleanupInterval is how often old events are purged
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// JobsConfig points at the job catalog.
type JobsConfig struct {
	// Path to the YAML job catalog
	Path string `mapstructure:"path"`

	// Strict rejects backfills for jobs not present in the catalog
	Strict bool `mapstructure:"strict"`
}

// ArchiveConfig holds report archiving settings.
type ArchiveConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Backend is "filesystem" or "s3"
	Backend string `mapstructure:"backend"`

	// Compression is "", "gzip" or "zstd"
	Compression string `mapstructure:"compression"`

	// Path is the base directory for the filesystem backend
	Path string `mapstructure:"path"`

	S3 S3Config `mapstructure:"s3"`
}

// S3Config holds settings for the S3 archive backend.
type S3Config struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// AdminUser is the single admin principal
	AdminUser string `mapstructure:"admin_user"`

	// AdminPasswordHash is a bcrypt hash of the admin password
	AdminPasswordHash string `mapstructure:"admin_password_hash"`

	JWT JWTConfig `mapstructure:"jwt"`
}

// JWTConfig holds token settings.
type JWTConfig struct {
	Secret   string        `mapstructure:"secret"`
	Issuer   string        `mapstructure:"issuer"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Format: console or json
	Format string `mapstructure:"format"`

	// Include caller information
	Caller bool `mapstructure:"caller"`

	// Include timestamps
	Timestamp bool `mapstructure:"timestamp"`
}
