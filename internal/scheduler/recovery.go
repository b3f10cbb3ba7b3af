package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mvarela/gapfill/internal/backfill"
	"github.com/mvarela/gapfill/internal/metrics"
)

// RecoverStale times out runs left in "running" longer than the configured
// run timeout. Called on startup so runs orphaned by a crash do not block
// their backfill forever.
func (s *Scheduler) RecoverStale(ctx context.Context) error {
	if s.cfg.RunTimeout <= 0 {
		return nil
	}

	cutoff := time.Now().UTC().Add(-s.cfg.RunTimeout)

	stale, err := s.store.GetStaleRuns(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("fetching stale runs: %w", err)
	}

	for _, run := range stale {
		err := s.store.MarkRunFinished(ctx, run.ID, backfill.StatusTimeout, "abandoned after restart")
		if err != nil {
			return fmt.Errorf("timing out run %s: %w", run.ID, err)
		}

		metrics.RunsRecoveredTotal.Inc()
		metrics.RunsProcessedTotal.WithLabelValues(string(backfill.StatusTimeout)).Inc()

		log.Warn().
			Str("run_id", run.ID).
			Str("backfill_id", run.BackfillID).
			Time("started_at", derefTime(run.StartedAt)).
			Msg("Recovered stale run")

		if err := s.maybeFinalize(ctx, run.BackfillID); err != nil {
			return err
		}
	}

	if len(stale) > 0 {
		log.Info().Int("count", len(stale)).Msg("Stale run recovery finished")
	}

	return nil
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
