package backfill

import (
	"fmt"
	"time"
)

// ScheduleRecord is the wire form of a scheduled backfill run: when the run
// fires, the span it covers and its lifecycle status.
type ScheduleRecord struct {
	RunAt    string `json:"run_at"`
	Interval string `json:"interval"`
	Status   Status `json:"status"`
}

// ScheduledItem is the absolute time window a run covers. By convention the
// run's own timestamp is the exclusive upper bound of the window.
type ScheduledItem struct {
	From   time.Time `json:"from"`
	To     time.Time `json:"to"`
	Status Status    `json:"status"`
}

// ToScheduledItem derives the window covered by a schedule record:
// From = RunAt − Interval, To = RunAt, with the status copied through
// verbatim. Parse failures from the timestamp and duration parsers propagate
// unchanged. A literal that would yield a negative span is rejected rather
// than producing From > To.
func ToScheduledItem(rec ScheduleRecord) (ScheduledItem, error) {
	runAt, err := time.Parse(time.RFC3339, rec.RunAt)
	if err != nil {
		return ScheduledItem{}, fmt.Errorf("parsing run_at: %w", err)
	}

	d, err := ParseDuration(rec.Interval)
	if err != nil {
		return ScheduledItem{}, err
	}
	if d < 0 {
		return ScheduledItem{}, fmt.Errorf("%w: negative interval %q", ErrInvalidDuration, rec.Interval)
	}

	return ScheduledItem{
		From:   runAt.Add(-d),
		To:     runAt,
		Status: rec.Status,
	}, nil
}
