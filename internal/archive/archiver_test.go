package archive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvarela/gapfill/internal/backfill"
	"github.com/mvarela/gapfill/internal/storage"
)

func TestArchiver_FinalizeBackfill(t *testing.T) {
	backend := storage.NewFilesystemBackend(t.TempDir())
	archiver := New(backend, "filesystem")
	ctx := context.Background()

	b := &backfill.Backfill{
		ID:       "bf-1",
		JobID:    "ingest-metrics",
		Start:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:      time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC),
		Interval: "1h",
		Status:   backfill.StatusComplete,
	}

	runs, err := backfill.Expand(b, 1000)
	require.NoError(t, err)
	for _, run := range runs {
		run.Status = backfill.StatusComplete
	}

	require.NoError(t, archiver.FinalizeBackfill(ctx, b, runs))

	exists, err := backend.Exists(ctx, "ingest-metrics/2024-01/bf-1.json")
	require.NoError(t, err)
	assert.True(t, exists)

	report, err := archiver.Get(ctx, b)
	require.NoError(t, err)

	assert.Equal(t, "bf-1", report.Backfill.ID)
	require.Len(t, report.Runs, 2)

	// Each archived run carries its derived window.
	for i, rr := range report.Runs {
		assert.True(t, rr.To.Equal(rr.Run.RunAt), "run %d: To should equal RunAt", i)
		assert.Equal(t, time.Hour, rr.To.Sub(rr.From), "run %d: window span", i)
	}

	// Consecutive windows tile the range.
	assert.True(t, report.Runs[0].From.Equal(b.Start))
	assert.True(t, report.Runs[1].From.Equal(report.Runs[0].To))
	assert.True(t, report.Runs[1].To.Equal(b.End))
}

func TestArchiver_CompressedBackend(t *testing.T) {
	backend := storage.NewCompressedBackend(storage.NewFilesystemBackend(t.TempDir()), "gzip")
	archiver := New(backend, "filesystem")
	ctx := context.Background()

	b := &backfill.Backfill{
		ID:       "bf-2",
		JobID:    "reports",
		Start:    time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		End:      time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC),
		Interval: "1d",
		Status:   backfill.StatusComplete,
	}

	runs, err := backfill.Expand(b, 1000)
	require.NoError(t, err)

	require.NoError(t, archiver.FinalizeBackfill(ctx, b, runs))

	report, err := archiver.Get(ctx, b)
	require.NoError(t, err)
	require.Len(t, report.Runs, 1)
	assert.True(t, report.Runs[0].From.Equal(b.Start))
}

func TestArchiver_GetMissing(t *testing.T) {
	archiver := New(storage.NewFilesystemBackend(t.TempDir()), "filesystem")

	b := &backfill.Backfill{ID: "nope", JobID: "job", End: time.Now()}
	_, err := archiver.Get(context.Background(), b)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
