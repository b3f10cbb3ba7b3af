package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mvarela/gapfill/internal/backfill"
	"github.com/mvarela/gapfill/internal/config"
	"github.com/mvarela/gapfill/internal/database"
	"github.com/mvarela/gapfill/internal/events"
)

func testStore(t *testing.T) *backfill.Store {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		ForeignKeys:  true,
		BusyTimeout:  time.Second,
	}

	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return backfill.NewStore(db)
}

func seedBackfill(t *testing.T, store *backfill.Store, hours int) (*backfill.Backfill, []*backfill.Run) {
	t.Helper()

	end := time.Now().UTC().Truncate(time.Hour)
	b := &backfill.Backfill{
		JobID:    "ingest-metrics",
		Start:    end.Add(-time.Duration(hours) * time.Hour),
		End:      end,
		Interval: "1h",
	}

	runs, err := backfill.Expand(b, 1000)
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if err := store.CreateBackfill(context.Background(), b, runs); err != nil {
		t.Fatalf("CreateBackfill() error = %v", err)
	}
	return b, runs
}

func schedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		PollInterval:       time.Second,
		MaxConcurrentRuns:  0,
		RunTimeout:         time.Minute,
		MaxRunsPerBackfill: 1000,
	}
}

type recordingExecutor struct {
	mu      sync.Mutex
	windows []backfill.ScheduledItem
	err     error
}

func (e *recordingExecutor) Execute(ctx context.Context, run *backfill.Run, window backfill.ScheduledItem) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.windows = append(e.windows, window)
	return e.err
}

func TestScheduler_TickCompletesDueRuns(t *testing.T) {
	store := testStore(t)
	exec := &recordingExecutor{}
	s := New(store, nil, exec, nil, schedulerConfig())
	ctx := context.Background()

	b, _ := seedBackfill(t, store, 3)

	if err := s.Tick(ctx); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	s.wg.Wait()

	if len(exec.windows) != 3 {
		t.Fatalf("executor ran %d times, want 3", len(exec.windows))
	}

	// Every executed window spans exactly one interval.
	for _, w := range exec.windows {
		if got := w.To.Sub(w.From); got != time.Hour {
			t.Errorf("window span = %v, want 1h", got)
		}
	}

	got, err := store.GetBackfill(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetBackfill() error = %v", err)
	}
	if got.Status != backfill.StatusComplete {
		t.Errorf("backfill status = %v, want complete", got.Status)
	}

	runs, err := store.ListRuns(ctx, b.ID)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	for _, run := range runs {
		if run.Status != backfill.StatusComplete {
			t.Errorf("run %s status = %v, want complete", run.ID, run.Status)
		}
	}
}

func TestScheduler_ExecutorErrorMarksRunFailed(t *testing.T) {
	store := testStore(t)
	exec := &recordingExecutor{err: errors.New("upstream refused")}
	s := New(store, nil, exec, nil, schedulerConfig())
	ctx := context.Background()

	b, _ := seedBackfill(t, store, 1)

	if err := s.Tick(ctx); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	s.wg.Wait()

	runs, err := store.ListRuns(ctx, b.ID)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if runs[0].Status != backfill.StatusError {
		t.Errorf("run status = %v, want error", runs[0].Status)
	}
	if runs[0].Error != "upstream refused" {
		t.Errorf("run error = %q, want upstream refused", runs[0].Error)
	}

	got, err := store.GetBackfill(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetBackfill() error = %v", err)
	}
	if got.Status != backfill.StatusError {
		t.Errorf("backfill status = %v, want error", got.Status)
	}
}

func TestScheduler_ConcurrencyCap(t *testing.T) {
	store := testStore(t)

	cfg := schedulerConfig()
	cfg.MaxConcurrentRuns = 1

	block := make(chan struct{})
	started := make(chan string, 10)
	exec := ExecutorFunc(func(ctx context.Context, run *backfill.Run, window backfill.ScheduledItem) error {
		started <- run.ID
		<-block
		return nil
	})

	s := New(store, nil, exec, nil, cfg)
	ctx := context.Background()

	seedBackfill(t, store, 3)

	if err := s.Tick(ctx); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	// Only one run may be in flight per backfill.
	<-started
	select {
	case id := <-started:
		t.Fatalf("second run %s started despite cap", id)
	case <-time.After(50 * time.Millisecond):
	}

	close(block)
	s.wg.Wait()
}

func TestScheduler_RecoverStale(t *testing.T) {
	store := testStore(t)
	s := New(store, nil, nil, nil, schedulerConfig())
	ctx := context.Background()

	b, runs := seedBackfill(t, store, 1)
	if err := store.MarkRunStarted(ctx, runs[0].ID); err != nil {
		t.Fatalf("MarkRunStarted() error = %v", err)
	}

	// A freshly started run is not stale yet.
	if err := s.RecoverStale(ctx); err != nil {
		t.Fatalf("RecoverStale() error = %v", err)
	}
	listed, err := store.ListRuns(ctx, b.ID)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if listed[0].Status != backfill.StatusRunning {
		t.Errorf("run status = %v, want running", listed[0].Status)
	}

	// With a zero-length timeout window everything running is stale.
	s.cfg.RunTimeout = time.Nanosecond
	time.Sleep(time.Millisecond)

	if err := s.RecoverStale(ctx); err != nil {
		t.Fatalf("RecoverStale() error = %v", err)
	}

	listed, err = store.ListRuns(ctx, b.ID)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if listed[0].Status != backfill.StatusTimeout {
		t.Errorf("run status = %v, want timeout", listed[0].Status)
	}
}

func TestScheduler_PublishesRunEvents(t *testing.T) {
	store := testStore(t)

	dbCfg := &config.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "events.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		ForeignKeys:  true,
		BusyTimeout:  time.Second,
	}
	db, err := database.Open(dbCfg)
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	bus := events.NewBus(db, events.BusOptions{})

	var mu sync.Mutex
	actions := map[string]int{}
	bus.Subscribe(events.EventTypeRun, "scheduler", "*", func(ctx context.Context, e *events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		actions[e.Action]++
		return nil
	})

	s := New(store, bus, &recordingExecutor{}, nil, schedulerConfig())
	ctx := context.Background()

	seedBackfill(t, store, 2)

	if err := s.Tick(ctx); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	s.wg.Wait()

	if err := bus.ProcessPending(ctx); err != nil {
		t.Fatalf("ProcessPending() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if actions["execute"] != 2 {
		t.Errorf("execute events = %d, want 2", actions["execute"])
	}
	if actions["complete"] != 2 {
		t.Errorf("complete events = %d, want 2", actions["complete"])
	}
}
