package backfill

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvarela/gapfill/internal/config"
	"github.com/mvarela/gapfill/internal/database"
)

func testStore(t *testing.T) *Store {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		ForeignKeys:  true,
		BusyTimeout:  time.Second,
	}

	db, err := database.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewStore(db)
}

func testBackfill(t *testing.T) (*Backfill, []*Run) {
	t.Helper()

	b := &Backfill{
		JobID:    "ingest-metrics",
		Start:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:      time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC),
		Interval: "1h",
	}

	runs, err := Expand(b, 1000)
	require.NoError(t, err)
	return b, runs
}

func TestStore_CreateAndGetBackfill(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	b, runs := testBackfill(t)
	require.NoError(t, store.CreateBackfill(ctx, b, runs))
	require.NotEmpty(t, b.ID)

	got, err := store.GetBackfill(ctx, b.ID)
	require.NoError(t, err)

	assert.Equal(t, b.JobID, got.JobID)
	assert.Equal(t, "1h", got.Interval)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, "UTC", got.Timezone)
	assert.True(t, got.Start.Equal(b.Start))
	assert.True(t, got.End.Equal(b.End))
}

func TestStore_GetBackfill_NotFound(t *testing.T) {
	store := testStore(t)

	_, err := store.GetBackfill(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListRuns(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	b, runs := testBackfill(t)
	require.NoError(t, store.CreateBackfill(ctx, b, runs))

	got, err := store.ListRuns(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Runs come back in run order with their windows intact.
	for i, run := range got {
		assert.Equal(t, b.ID, run.BackfillID)
		assert.Equal(t, StatusPending, run.Status)
		assert.True(t, run.RunAt.Equal(b.Start.Add(time.Duration(i+1)*time.Hour)))
	}
}

func TestStore_GetDueRuns(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	// Range entirely in the past: every run is due.
	b, runs := testBackfill(t)
	require.NoError(t, store.CreateBackfill(ctx, b, runs))

	due, err := store.GetDueRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, due, 3)

	// Future runs are not due.
	future := &Backfill{
		JobID:    "ingest-metrics",
		Start:    time.Now().UTC().Add(time.Hour),
		End:      time.Now().UTC().Add(3 * time.Hour),
		Interval: "1h",
	}
	futureRuns, err := Expand(future, 1000)
	require.NoError(t, err)
	require.NoError(t, store.CreateBackfill(ctx, future, futureRuns))

	due, err = store.GetDueRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, due, 3, "future runs should not be due")
}

func TestStore_RunLifecycle(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	b, runs := testBackfill(t)
	require.NoError(t, store.CreateBackfill(ctx, b, runs))

	run := runs[0]
	require.NoError(t, store.MarkRunStarted(ctx, run.ID))

	listed, err := store.ListRuns(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, listed[0].Status)
	require.NotNil(t, listed[0].StartedAt)

	require.NoError(t, store.MarkRunFinished(ctx, run.ID, StatusError, "boom"))

	listed, err = store.ListRuns(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusError, listed[0].Status)
	assert.Equal(t, "boom", listed[0].Error)
	require.NotNil(t, listed[0].FinishedAt)

	unfinished, err := store.CountUnfinishedRuns(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, unfinished)

	counts, err := store.CountRunsByStatus(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[StatusPending])
	assert.Equal(t, 1, counts[StatusError])
}

func TestStore_GetStaleRuns(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	b, runs := testBackfill(t)
	require.NoError(t, store.CreateBackfill(ctx, b, runs))

	require.NoError(t, store.MarkRunStarted(ctx, runs[0].ID))

	stale, err := store.GetStaleRuns(ctx, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, runs[0].ID, stale[0].ID)

	stale, err = store.GetStaleRuns(ctx, time.Now().UTC().Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestStore_DeleteBackfillCascades(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	b, runs := testBackfill(t)
	require.NoError(t, store.CreateBackfill(ctx, b, runs))

	require.NoError(t, store.DeleteBackfill(ctx, b.ID))

	_, err := store.GetBackfill(ctx, b.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := store.ListRuns(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_UpdateBackfillStatus(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	b, runs := testBackfill(t)
	require.NoError(t, store.CreateBackfill(ctx, b, runs))

	require.NoError(t, store.UpdateBackfillStatus(ctx, b.ID, StatusComplete))

	got, err := store.GetBackfill(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, got.Status)
}
