package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() on defaults returned error: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gapfill.yaml")

	content := []byte(`
server:
  port: 9000
scheduler:
  poll_interval: 250ms
  max_runs_per_backfill: 50
jobs:
  path: catalog.yaml
  strict: true
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("server.port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Scheduler.PollInterval != 250*time.Millisecond {
		t.Errorf("scheduler.poll_interval = %v, want 250ms", cfg.Scheduler.PollInterval)
	}
	if cfg.Scheduler.MaxRunsPerBackfill != 50 {
		t.Errorf("scheduler.max_runs_per_backfill = %d, want 50", cfg.Scheduler.MaxRunsPerBackfill)
	}
	if !cfg.Jobs.Strict {
		t.Error("jobs.strict should be true")
	}

	// Unset keys keep their defaults.
	if cfg.Database.Path != DefaultDBPath {
		t.Errorf("database.path = %q, want default %q", cfg.Database.Path, DefaultDBPath)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "bad port",
			mutate: func(c *Config) { c.Server.Port = 0 },
		},
		{
			name:   "empty database path",
			mutate: func(c *Config) { c.Database.Path = "" },
		},
		{
			name:   "zero poll interval",
			mutate: func(c *Config) { c.Scheduler.PollInterval = 0 },
		},
		{
			name: "unknown archive backend",
			mutate: func(c *Config) {
				c.Archive.Enabled = true
				c.Archive.Backend = "ftp"
			},
		},
		{
			name: "auth enabled without secret",
			mutate: func(c *Config) {
				c.Auth.Enabled = true
				c.Auth.AdminUser = "admin"
				c.Auth.AdminPasswordHash = "x"
			},
		},
		{
			name:   "unknown log level",
			mutate: func(c *Config) { c.Logging.Level = "loud" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("Validate() should have returned an error")
			}
		})
	}
}
