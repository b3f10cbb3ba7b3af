// Package backfill contains the core domain model: backfill ranges, the
// scheduled runs they expand into, and the time window each run covers.
package backfill

import "time"

// Status describes the lifecycle state of a backfill or one of its runs.
// It is carried through window derivation unchanged.
type Status string

const (
	// StatusPending means the run has not started yet.
	StatusPending Status = "pending"
	// StatusRunning means the run is currently executing.
	StatusRunning Status = "running"
	// StatusComplete means the run finished successfully.
	StatusComplete Status = "complete"
	// StatusError means the run failed.
	StatusError Status = "error"
	// StatusTimeout means the run was abandoned after exceeding its deadline.
	StatusTimeout Status = "timeout"
)

// Terminal reports whether the status is a final state.
func (s Status) Terminal() bool {
	switch s {
	case StatusComplete, StatusError, StatusTimeout:
		return true
	}
	return false
}

// Backfill is a request to retroactively re-run a job over a past range.
// Exactly one of Interval or Cron describes how the range splits into runs.
type Backfill struct {
	ID        string    `json:"id"`
	JobID     string    `json:"job_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Interval  string    `json:"interval,omitempty"`
	Cron      string    `json:"cron,omitempty"`
	Timezone  string    `json:"timezone"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Run is one scheduled re-execution inside a backfill range. RunAt marks the
// end of the span the run covers; Interval is the span's length as a
// duration literal.
type Run struct {
	ID         string     `json:"id"`
	BackfillID string     `json:"backfill_id"`
	RunAt      time.Time  `json:"run_at"`
	Interval   string     `json:"interval"`
	Status     Status     `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Record returns the serialized schedule record for the run.
func (r *Run) Record() ScheduleRecord {
	return ScheduleRecord{
		RunAt:    r.RunAt.UTC().Format(time.RFC3339Nano),
		Interval: r.Interval,
		Status:   r.Status,
	}
}
