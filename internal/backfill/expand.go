package backfill

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

var (
	// ErrNoSchedule means the backfill carries neither an interval nor a
	// cron expression.
	ErrNoSchedule = errors.New("backfill needs an interval or a cron expression")
	// ErrEmptyRange means the range is inverted or too short to cover a
	// single run.
	ErrEmptyRange = errors.New("range does not cover any run")
)

// Expand generates the runs covering (Start, End] for a backfill. Interval
// backfills step from Start by the parsed interval; cron backfills fire at
// the expression's ticks inside the range, each run covering the distance
// from the previous tick. At most maxRuns runs are produced.
func Expand(b *Backfill, maxRuns int) ([]*Run, error) {
	if !b.End.After(b.Start) {
		return nil, ErrEmptyRange
	}

	switch {
	case b.Cron != "":
		return expandCron(b, maxRuns)
	case b.Interval != "":
		return expandInterval(b, maxRuns)
	default:
		return nil, ErrNoSchedule
	}
}

func expandInterval(b *Backfill, maxRuns int) ([]*Run, error) {
	d, err := ParseDuration(b.Interval)
	if err != nil {
		return nil, err
	}
	if d == 0 {
		return nil, fmt.Errorf("%w: zero interval cannot cover a range", ErrInvalidDuration)
	}

	var runs []*Run
	for runAt := b.Start.Add(d); !runAt.After(b.End) && len(runs) < maxRuns; runAt = runAt.Add(d) {
		runs = append(runs, newRun(b, runAt, b.Interval))
	}

	if len(runs) == 0 {
		return nil, ErrEmptyRange
	}
	return runs, nil
}

func expandCron(b *Backfill, maxRuns int) ([]*Run, error) {
	parser := cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)
	schedule, err := parser.Parse(b.Cron)
	if err != nil {
		return nil, fmt.Errorf("parsing cron expression: %w", err)
	}

	loc := time.UTC
	if b.Timezone != "" {
		loc, err = time.LoadLocation(b.Timezone)
		if err != nil {
			return nil, fmt.Errorf("loading timezone: %w", err)
		}
	}

	var runs []*Run
	prev := b.Start.In(loc)
	for tick := schedule.Next(prev); !tick.After(b.End) && len(runs) < maxRuns; tick = schedule.Next(tick) {
		runs = append(runs, newRun(b, tick, FormatDuration(tick.Sub(prev))))
		prev = tick
	}

	if len(runs) == 0 {
		return nil, ErrEmptyRange
	}
	return runs, nil
}

func newRun(b *Backfill, runAt time.Time, interval string) *Run {
	return &Run{
		ID:         uuid.New().String(),
		BackfillID: b.ID,
		RunAt:      runAt.UTC(),
		Interval:   interval,
		Status:     StatusPending,
	}
}
