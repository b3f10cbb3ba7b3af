package jobs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvarela/gapfill/internal/backfill"
)

const testCatalog = `
jobs:
  - id: ingest-metrics
    description: Reingest metrics from the lake
    default_interval: 1h
    min_interval: 5m
    max_range: 30d
  - id: reports
    match:
      - "report-*"
      - "digest-*"
    default_interval: 1d
    timezone: America/New_York
`

func loadTestRegistry(t *testing.T, strict bool) *Registry {
	t.Helper()

	path := filepath.Join(t.TempDir(), "jobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testCatalog), 0o644))

	reg, err := Load(path, strict)
	require.NoError(t, err)
	return reg
}

func TestRegistry_Lookup(t *testing.T) {
	reg := loadTestRegistry(t, false)

	job, ok := reg.Lookup("ingest-metrics")
	require.True(t, ok)
	assert.Equal(t, "ingest-metrics", job.ID)

	job, ok = reg.Lookup("report-weekly")
	require.True(t, ok)
	assert.Equal(t, "reports", job.ID)

	job, ok = reg.Lookup("digest-daily")
	require.True(t, ok)
	assert.Equal(t, "reports", job.ID)

	_, ok = reg.Lookup("something-else")
	assert.False(t, ok)
}

func TestRegistry_Validate(t *testing.T) {
	reg := loadTestRegistry(t, false)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := reg.Validate("ingest-metrics", "1h", start, start.Add(24*time.Hour))
	assert.NoError(t, err)

	err = reg.Validate("ingest-metrics", "1m", start, start.Add(24*time.Hour))
	assert.ErrorIs(t, err, ErrIntervalTooSmall)

	err = reg.Validate("ingest-metrics", "1h", start, start.Add(40*24*time.Hour))
	assert.ErrorIs(t, err, ErrRangeTooLarge)

	// Unmatched jobs pass in non-strict mode.
	err = reg.Validate("something-else", "1s", start, start.Add(time.Hour))
	assert.NoError(t, err)
}

func TestRegistry_StrictMode(t *testing.T) {
	reg := loadTestRegistry(t, true)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := reg.Validate("something-else", "1h", start, start.Add(time.Hour))
	assert.ErrorIs(t, err, ErrUnknownJob)

	err = reg.Validate("ingest-metrics", "1h", start, start.Add(time.Hour))
	assert.NoError(t, err)
}

func TestRegistry_ApplyDefaults(t *testing.T) {
	reg := loadTestRegistry(t, false)

	b := &backfill.Backfill{JobID: "report-monthly"}
	reg.ApplyDefaults(b)
	assert.Equal(t, "1d", b.Interval)
	assert.Equal(t, "America/New_York", b.Timezone)

	// Explicit values are left alone.
	b = &backfill.Backfill{JobID: "report-monthly", Interval: "6h", Timezone: "UTC"}
	reg.ApplyDefaults(b)
	assert.Equal(t, "6h", b.Interval)
	assert.Equal(t, "UTC", b.Timezone)

	// A cron schedule suppresses the default interval.
	b = &backfill.Backfill{JobID: "report-monthly", Cron: "0 0 * * *"}
	reg.ApplyDefaults(b)
	assert.Empty(t, b.Interval)
}

func TestRegistry_EmptyPath(t *testing.T) {
	reg, err := Load("", false)
	require.NoError(t, err)

	_, ok := reg.Lookup("anything")
	assert.False(t, ok)
	assert.NoError(t, reg.Validate("anything", "1h", time.Now(), time.Now().Add(time.Hour)))
}

func TestRegistry_BadCatalog(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing id", "jobs:\n  - description: no id\n"},
		{"bad interval", "jobs:\n  - id: a\n    default_interval: hourly\n"},
		{"bad pattern", "jobs:\n  - id: a\n    match: [\"[\"]\n"},
		{"bad timezone", "jobs:\n  - id: a\n    timezone: Mars/Olympus\n"},
		{"not yaml", "{{{{\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "jobs.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := Load(path, false)
			assert.Error(t, err)
		})
	}
}
