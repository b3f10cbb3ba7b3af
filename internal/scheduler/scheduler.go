// Package scheduler polls for due backfill runs, derives their time
// windows and dispatches them for execution.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mvarela/gapfill/internal/backfill"
	"github.com/mvarela/gapfill/internal/config"
	"github.com/mvarela/gapfill/internal/events"
	"github.com/mvarela/gapfill/internal/metrics"
)

const runBatchSize = 50

// Executor performs the actual work for one run over its derived window.
type Executor interface {
	Execute(ctx context.Context, run *backfill.Run, window backfill.ScheduledItem) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, run *backfill.Run, window backfill.ScheduledItem) error

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, run *backfill.Run, window backfill.ScheduledItem) error {
	return f(ctx, run, window)
}

// EventOnlyExecutor performs no work itself; downstream consumers pick
// runs up from the published run.execute events.
func EventOnlyExecutor() Executor {
	return ExecutorFunc(func(ctx context.Context, run *backfill.Run, window backfill.ScheduledItem) error {
		return nil
	})
}

// Finalizer is notified once when every run of a backfill has reached a
// terminal status.
type Finalizer interface {
	FinalizeBackfill(ctx context.Context, b *backfill.Backfill, runs []*backfill.Run) error
}

// Scheduler is the run dispatch loop.
type Scheduler struct {
	store     *backfill.Store
	bus       *events.Bus
	executor  Executor
	finalizer Finalizer
	cfg       config.SchedulerConfig

	mu      sync.Mutex
	running map[string]int // backfill ID -> in-flight run count

	wg     sync.WaitGroup
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a scheduler. The finalizer may be nil.
func New(store *backfill.Store, bus *events.Bus, executor Executor, finalizer Finalizer, cfg config.SchedulerConfig) *Scheduler {
	if executor == nil {
		executor = EventOnlyExecutor()
	}

	return &Scheduler{
		store:     store,
		bus:       bus,
		executor:  executor,
		finalizer: finalizer,
		cfg:       cfg,
		running:   make(map[string]int),
	}
}

// Start recovers stale runs and launches the poll loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.RecoverStale(ctx); err != nil {
		return fmt.Errorf("recovering stale runs: %w", err)
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.pollLoop(ctx)
	}()

	log.Info().
		Dur("poll_interval", s.cfg.PollInterval).
		Int("max_concurrent_runs", s.cfg.MaxConcurrentRuns).
		Msg("Scheduler started")

	return nil
}

// Stop terminates the poll loop and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.wg.Wait()

	log.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				log.Error().Err(err).Msg("Scheduler tick failed")
			}
		}
	}
}

// Tick dispatches one batch of due runs.
func (s *Scheduler) Tick(ctx context.Context) error {
	if active, err := s.store.CountActiveBackfills(ctx); err == nil {
		metrics.BackfillsActive.Set(float64(active))
	} else {
		log.Debug().Err(err).Msg("Failed to count active backfills")
	}

	due, err := s.store.GetDueRuns(ctx, runBatchSize)
	if err != nil {
		return fmt.Errorf("fetching due runs: %w", err)
	}

	for _, run := range due {
		if !s.acquire(run.BackfillID) {
			continue // backfill at its concurrency cap, retry next tick
		}
		s.dispatch(ctx, run)
	}

	return nil
}

func (s *Scheduler) acquire(backfillID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.MaxConcurrentRuns > 0 && s.running[backfillID] >= s.cfg.MaxConcurrentRuns {
		return false
	}
	s.running[backfillID]++
	return true
}

func (s *Scheduler) release(backfillID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running[backfillID]--
	if s.running[backfillID] <= 0 {
		delete(s.running, backfillID)
	}
}

func (s *Scheduler) dispatch(ctx context.Context, run *backfill.Run) {
	window, err := backfill.ToScheduledItem(run.Record())
	if err != nil {
		// A run with an underivable window can never execute.
		s.release(run.BackfillID)
		s.finishRun(ctx, run, backfill.StatusError, fmt.Sprintf("deriving window: %v", err))
		return
	}

	if err := s.store.MarkRunStarted(ctx, run.ID); err != nil {
		s.release(run.BackfillID)
		log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to mark run started")
		return
	}

	s.publishRunEvent(ctx, run, window, "execute")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(run.BackfillID)
		s.execute(ctx, run, window)
	}()
}

func (s *Scheduler) execute(ctx context.Context, run *backfill.Run, window backfill.ScheduledItem) {
	runCtx := ctx
	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}

	log.Debug().
		Str("run_id", run.ID).
		Str("backfill_id", run.BackfillID).
		Time("from", window.From).
		Time("to", window.To).
		Msg("Executing run")

	err := s.executor.Execute(runCtx, run, window)

	switch {
	case err == nil:
		s.finishRun(ctx, run, backfill.StatusComplete, "")
	case runCtx.Err() == context.DeadlineExceeded:
		s.finishRun(ctx, run, backfill.StatusTimeout, "run exceeded its deadline")
	default:
		s.finishRun(ctx, run, backfill.StatusError, err.Error())
	}
}

func (s *Scheduler) finishRun(ctx context.Context, run *backfill.Run, status backfill.Status, errMsg string) {
	if err := s.store.MarkRunFinished(ctx, run.ID, status, errMsg); err != nil {
		log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to mark run finished")
		return
	}

	metrics.RunsProcessedTotal.WithLabelValues(string(status)).Inc()

	run.Status = status
	run.Error = errMsg

	window, derr := backfill.ToScheduledItem(run.Record())
	if derr == nil {
		s.publishRunEvent(ctx, run, window, string(status))
	}

	log.Info().
		Str("run_id", run.ID).
		Str("backfill_id", run.BackfillID).
		Str("status", string(status)).
		Msg("Run finished")

	if err := s.maybeFinalize(ctx, run.BackfillID); err != nil {
		log.Error().Err(err).Str("backfill_id", run.BackfillID).Msg("Failed to finalize backfill")
	}
}

// maybeFinalize transitions the backfill to its terminal status once no
// runs remain unfinished.
func (s *Scheduler) maybeFinalize(ctx context.Context, backfillID string) error {
	unfinished, err := s.store.CountUnfinishedRuns(ctx, backfillID)
	if err != nil {
		return err
	}
	if unfinished > 0 {
		return nil
	}

	counts, err := s.store.CountRunsByStatus(ctx, backfillID)
	if err != nil {
		return err
	}

	status := backfill.StatusComplete
	if counts[backfill.StatusError] > 0 || counts[backfill.StatusTimeout] > 0 {
		status = backfill.StatusError
	}

	if err := s.store.UpdateBackfillStatus(ctx, backfillID, status); err != nil {
		return err
	}

	b, err := s.store.GetBackfill(ctx, backfillID)
	if err != nil {
		return err
	}

	if s.bus != nil {
		err := s.bus.Publish(ctx, &events.Event{
			Type:   events.EventTypeBackfill,
			Source: "scheduler",
			Action: string(status),
			Payload: map[string]any{
				"backfill_id": b.ID,
				"job_id":      b.JobID,
				"status":      string(status),
			},
		})
		if err != nil {
			log.Error().Err(err).Str("backfill_id", backfillID).Msg("Failed to publish backfill event")
		} else {
			metrics.EventsPublishedTotal.WithLabelValues(string(events.EventTypeBackfill), string(status)).Inc()
		}
	}

	log.Info().
		Str("backfill_id", b.ID).
		Str("job_id", b.JobID).
		Str("status", string(status)).
		Msg("Backfill finished")

	if s.finalizer != nil {
		runs, err := s.store.ListRuns(ctx, backfillID)
		if err != nil {
			return err
		}
		if err := s.finalizer.FinalizeBackfill(ctx, b, runs); err != nil {
			return fmt.Errorf("finalizing backfill: %w", err)
		}
	}

	return nil
}

func (s *Scheduler) publishRunEvent(ctx context.Context, run *backfill.Run, window backfill.ScheduledItem, action string) {
	if s.bus == nil {
		return
	}

	payload := map[string]any{
		"run_id":      run.ID,
		"backfill_id": run.BackfillID,
		"from":        window.From.UTC().Format(time.RFC3339Nano),
		"to":          window.To.UTC().Format(time.RFC3339Nano),
		"interval":    run.Interval,
		"status":      string(run.Status),
	}
	if run.Error != "" {
		payload["error"] = run.Error
	}

	err := s.bus.Publish(ctx, &events.Event{
		Type:    events.EventTypeRun,
		Source:  "scheduler",
		Action:  action,
		Payload: payload,
	})
	if err != nil {
		log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to publish run event")
		return
	}

	metrics.EventsPublishedTotal.WithLabelValues(string(events.EventTypeRun), action).Inc()
}
