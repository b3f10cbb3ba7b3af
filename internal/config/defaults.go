package config

import "time"

// Default configuration values.
const (
	// Server defaults.
	DefaultHost         = "localhost"
	DefaultPort         = 8085
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 30 * time.Second
	DefaultIdleTimeout  = 120 * time.Second
	DefaultMaxBodySize  = 1 * 1024 * 1024 // 1MB

	// Database defaults.
	DefaultDBPath       = "gapfill.db"
	DefaultCacheSize    = -64000 // 64MB
	DefaultBusyTimeout  = 5 * time.Second
	DefaultMaxOpenConns = 1 // SQLite works best with single writer
	DefaultMaxIdleConns = 1

	// Scheduler defaults.
	DefaultPollInterval       = 1 * time.Second
	DefaultMaxConcurrentRuns  = 1
	DefaultRunTimeout         = 5 * time.Minute
	DefaultMaxRunsPerBackfill = 1000

	// Events defaults.
	DefaultEventRetention  = 7 * 24 * time.Hour
	DefaultProcessInterval = 1 * time.Second
	DefaultCleanupInterval = 1 * time.Hour

	// Auth defaults.
	DefaultJWTIssuer = "gapfill"
	DefaultTokenTTL  = 1 * time.Hour

	// Logging defaults.
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         DefaultHost,
			Port:         DefaultPort,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
			IdleTimeout:  DefaultIdleTimeout,
			MaxBodySize:  DefaultMaxBodySize,
			CORS: CORSConfig{
				Enabled:          true,
				AllowedOrigins:   []string{"*"},
				AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
				AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
				ExposedHeaders:   []string{"X-Request-ID"},
				AllowCredentials: false,
				MaxAge:           12 * time.Hour,
			},
		},
		Database: DatabaseConfig{
			Path:            DefaultDBPath,
			WALMode:         true,
			CacheSize:       DefaultCacheSize,
			BusyTimeout:     DefaultBusyTimeout,
			ForeignKeys:     true,
			MaxOpenConns:    DefaultMaxOpenConns,
			MaxIdleConns:    DefaultMaxIdleConns,
			ConnMaxLifetime: 0, // No limit
		},
		Scheduler: SchedulerConfig{
			PollInterval:       DefaultPollInterval,
			MaxConcurrentRuns:  DefaultMaxConcurrentRuns,
			RunTimeout:         DefaultRunTimeout,
			MaxRunsPerBackfill: DefaultMaxRunsPerBackfill,
		},
		Events: EventsConfig{
			Retention:       DefaultEventRetention,
			ProcessInterval: DefaultProcessInterval,
			CleanupInterval: DefaultCleanupInterval,
		},
		Jobs: JobsConfig{
			Path:   "jobs.yaml",
			Strict: false,
		},
		Archive: ArchiveConfig{
			Enabled:     false,
			Backend:     "filesystem",
			Compression: "gzip",
			Path:        "archive",
		},
		Auth: AuthConfig{
			Enabled: false,
			JWT: JWTConfig{
				Issuer:   DefaultJWTIssuer,
				TokenTTL: DefaultTokenTTL,
			},
		},
		Logging: LoggingConfig{
			Level:     DefaultLogLevel,
			Format:    DefaultLogFormat,
			Caller:    false,
			Timestamp: true,
		},
	}
}
