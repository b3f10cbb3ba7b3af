package config

import (
	"fmt"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range e {
		sb.WriteString("  - ")
		sb.WriteString(err.Error())
		sb.WriteString("\n")
	}
	return sb.String()
}

func Validate(cfg *Config) error {
	var errs ValidationErrors

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateDatabase(&cfg.Database)...)
	errs = append(errs, validateScheduler(&cfg.Scheduler)...)
	errs = append(errs, validateArchive(&cfg.Archive)...)
	errs = append(errs, validateAuth(&cfg.Auth)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateServer(cfg *ServerConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: "must be between 1 and 65535",
		})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.read_timeout",
			Message: "must be non-negative",
		})
	}

	if cfg.WriteTimeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.write_timeout",
			Message: "must be non-negative",
		})
	}

	if cfg.MaxBodySize < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.max_body_size",
			Message: "must be non-negative",
		})
	}

	return errs
}

func validateDatabase(cfg *DatabaseConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "database.path",
			Message: "must not be empty",
		})
	}

	if cfg.MaxOpenConns < 1 {
		errs = append(errs, ValidationError{
			Field:   "database.max_open_conns",
			Message: "must be at least 1",
		})
	}

	return errs
}

func validateScheduler(cfg *SchedulerConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.PollInterval <= 0 {
		errs = append(errs, ValidationError{
			Field:   "scheduler.poll_interval",
			Message: "must be positive",
		})
	}

	if cfg.MaxConcurrentRuns < 0 {
		errs = append(errs, ValidationError{
			Field:   "scheduler.max_concurrent_runs",
			Message: "must be non-negative (0 = unlimited)",
		})
	}

	if cfg.MaxRunsPerBackfill < 1 {
		errs = append(errs, ValidationError{
			Field:   "scheduler.max_runs_per_backfill",
			Message: "must be at least 1",
		})
	}

	return errs
}

func validateArchive(cfg *ArchiveConfig) ValidationErrors {
	var errs ValidationErrors

	if !cfg.Enabled {
		return errs
	}

	switch cfg.Backend {
	case "filesystem":
		if cfg.Path == "" {
			errs = append(errs, ValidationError{
				Field:   "archive.path",
				Message: "required for the filesystem backend",
			})
		}
	case "s3":
		if cfg.S3.Region == "" {
			errs = append(errs, ValidationError{
				Field:   "archive.s3.region",
				Message: "required for the s3 backend",
			})
		}
		if cfg.S3.Bucket == "" {
			errs = append(errs, ValidationError{
				Field:   "archive.s3.bucket",
				Message: "required for the s3 backend",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "archive.backend",
			Message: fmt.Sprintf("unknown backend %q (want filesystem or s3)", cfg.Backend),
		})
	}

	switch cfg.Compression {
	case "", "gzip", "zstd":
	default:
		errs = append(errs, ValidationError{
			Field:   "archive.compression",
			Message: fmt.Sprintf("unknown compression %q (want gzip or zstd)", cfg.Compression),
		})
	}

	return errs
}

func validateAuth(cfg *AuthConfig) ValidationErrors {
	var errs ValidationErrors

	if !cfg.Enabled {
		return errs
	}

	if cfg.AdminUser == "" {
		errs = append(errs, ValidationError{
			Field:   "auth.admin_user",
			Message: "required when auth is enabled",
		})
	}

	if cfg.AdminPasswordHash == "" {
		errs = append(errs, ValidationError{
			Field:   "auth.admin_password_hash",
			Message: "required when auth is enabled",
		})
	}

	if len(cfg.JWT.Secret) < 32 {
		errs = append(errs, ValidationError{
			Field:   "auth.jwt.secret",
			Message: "must be at least 32 characters",
		})
	}

	if cfg.JWT.TokenTTL <= 0 {
		errs = append(errs, ValidationError{
			Field:   "auth.jwt.token_ttl",
			Message: "must be positive",
		})
	}

	return errs
}

func validateLogging(cfg *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch cfg.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown level %q", cfg.Level),
		})
	}

	switch cfg.Format {
	case "console", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("unknown format %q (want console or json)", cfg.Format),
		})
	}

	return errs
}
