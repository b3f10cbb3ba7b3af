package backfill

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mvarela/gapfill/internal/database"
)

// ErrNotFound is returned when a backfill or run does not exist.
var ErrNotFound = errors.New("not found")

// Store handles database operations for backfills and their runs.
type Store struct {
	db *database.DB
}

// NewStore creates a new backfill store.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

const backfillColumns = `id, job_id, start_at, end_at, interval, cron, timezone, status, created_at, updated_at`

const runColumns = `id, backfill_id, run_at, interval, status, error, started_at, finished_at, created_at, updated_at`

// CreateBackfill inserts a backfill together with its expanded runs in one
// transaction.
func (s *Store) CreateBackfill(ctx context.Context, b *Backfill, runs []*Run) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.Timezone == "" {
		b.Timezone = "UTC"
	}
	if b.Status == "" {
		b.Status = StatusPending
	}
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO backfills (`+backfillColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			b.ID,
			b.JobID,
			formatTime(b.Start),
			formatTime(b.End),
			b.Interval,
			b.Cron,
			b.Timezone,
			string(b.Status),
			formatTime(b.CreatedAt),
			formatTime(b.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting backfill: %w", err)
		}

		for _, run := range runs {
			if run.ID == "" {
				run.ID = uuid.New().String()
			}
			run.BackfillID = b.ID
			if run.Status == "" {
				run.Status = StatusPending
			}
			run.CreatedAt = now
			run.UpdatedAt = now

			_, err := tx.ExecContext(ctx, `
				INSERT INTO backfill_runs (`+runColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
				run.ID,
				run.BackfillID,
				formatTime(run.RunAt),
				run.Interval,
				string(run.Status),
				run.Error,
				nullTime(run.StartedAt),
				nullTime(run.FinishedAt),
				formatTime(run.CreatedAt),
				formatTime(run.UpdatedAt),
			)
			if err != nil {
				return fmt.Errorf("inserting run: %w", err)
			}
		}

		return nil
	})
}

// GetBackfill retrieves a backfill by ID.
func (s *Store) GetBackfill(ctx context.Context, id string) (*Backfill, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+backfillColumns+` FROM backfills WHERE id = ?
	`, id)

	b, err := scanBackfill(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: backfill %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("getting backfill: %w", err)
	}

	return b, nil
}

// ListBackfills retrieves all backfills, newest first.
func (s *Store) ListBackfills(ctx context.Context) ([]*Backfill, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+backfillColumns+` FROM backfills ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying backfills: %w", err)
	}
	defer rows.Close()

	var backfills []*Backfill
	for rows.Next() {
		b, err := scanBackfill(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning backfill row: %w", err)
		}
		backfills = append(backfills, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating backfill rows: %w", err)
	}

	return backfills, nil
}

// UpdateBackfillStatus sets a backfill's status.
func (s *Store) UpdateBackfillStatus(ctx context.Context, id string, status Status) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE backfills SET status = ?, updated_at = ? WHERE id = ?
	`, string(status), formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("updating backfill status: %w", err)
	}

	return nil
}

// DeleteBackfill removes a backfill; its runs cascade.
func (s *Store) DeleteBackfill(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM backfills WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting backfill: %w", err)
	}

	return nil
}

// ListRuns retrieves the runs of a backfill in run order.
func (s *Store) ListRuns(ctx context.Context, backfillID string) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+` FROM backfill_runs
		WHERE backfill_id = ?
		ORDER BY run_at ASC
	`, backfillID)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// ListRunsByStatus retrieves runs in the given status across all backfills,
// earliest first.
func (s *Store) ListRunsByStatus(ctx context.Context, status Status, limit int) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+` FROM backfill_runs
		WHERE status = ?
		ORDER BY run_at ASC
		LIMIT ?
	`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs by status: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// GetDueRuns retrieves pending runs whose run_at has passed.
func (s *Store) GetDueRuns(ctx context.Context, limit int) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+` FROM backfill_runs
		WHERE status = ? AND run_at <= ?
		ORDER BY run_at ASC
		LIMIT ?
	`, string(StatusPending), formatTime(time.Now().UTC()), limit)
	if err != nil {
		return nil, fmt.Errorf("querying due runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// GetStaleRuns retrieves runs that have been in the running state since
// before the cutoff.
func (s *Store) GetStaleRuns(ctx context.Context, cutoff time.Time) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+` FROM backfill_runs
		WHERE status = ? AND started_at IS NOT NULL AND started_at < ?
		ORDER BY started_at ASC
	`, string(StatusRunning), formatTime(cutoff.UTC()))
	if err != nil {
		return nil, fmt.Errorf("querying stale runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// MarkRunStarted transitions a run to running and stamps started_at.
func (s *Store) MarkRunStarted(ctx context.Context, id string) error {
	now := formatTime(time.Now().UTC())

	_, err := s.db.ExecContext(ctx, `
		UPDATE backfill_runs
		SET status = ?, started_at = ?, updated_at = ?
		WHERE id = ?
	`, string(StatusRunning), now, now, id)
	if err != nil {
		return fmt.Errorf("marking run started: %w", err)
	}

	return nil
}

// MarkRunFinished transitions a run to a terminal status and stamps
// finished_at. The error message is stored for error and timeout statuses.
func (s *Store) MarkRunFinished(ctx context.Context, id string, status Status, errMsg string) error {
	now := formatTime(time.Now().UTC())

	_, err := s.db.ExecContext(ctx, `
		UPDATE backfill_runs
		SET status = ?, error = ?, finished_at = ?, updated_at = ?
		WHERE id = ?
	`, string(status), errMsg, now, now, id)
	if err != nil {
		return fmt.Errorf("marking run finished: %w", err)
	}

	return nil
}

// CountUnfinishedRuns counts a backfill's runs that are not yet terminal.
func (s *Store) CountUnfinishedRuns(ctx context.Context, backfillID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM backfill_runs
		WHERE backfill_id = ? AND status IN (?, ?)
	`, backfillID, string(StatusPending), string(StatusRunning)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting unfinished runs: %w", err)
	}

	return count, nil
}

// CountActiveBackfills counts backfills that are not yet terminal.
func (s *Store) CountActiveBackfills(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM backfills
		WHERE status IN (?, ?)
	`, string(StatusPending), string(StatusRunning)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting active backfills: %w", err)
	}

	return count, nil
}

// CountRunsByStatus counts a backfill's runs per status.
func (s *Store) CountRunsByStatus(ctx context.Context, backfillID string) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM backfill_runs
		WHERE backfill_id = ?
		GROUP BY status
	`, backfillID)
	if err != nil {
		return nil, fmt.Errorf("counting runs by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scanning run count: %w", err)
		}
		counts[Status(status)] = count
	}

	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBackfill(row rowScanner) (*Backfill, error) {
	var b Backfill
	var start, end, status, createdAt, updatedAt string

	err := row.Scan(
		&b.ID,
		&b.JobID,
		&start,
		&end,
		&b.Interval,
		&b.Cron,
		&b.Timezone,
		&status,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.Status = Status(status)

	if b.Start, err = parseTime(start); err != nil {
		return nil, fmt.Errorf("parsing start_at: %w", err)
	}
	if b.End, err = parseTime(end); err != nil {
		return nil, fmt.Errorf("parsing end_at: %w", err)
	}
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &b, nil
}

func scanRuns(rows *sql.Rows) ([]*Run, error) {
	var runs []*Run

	for rows.Next() {
		var run Run
		var runAt, status, createdAt, updatedAt string
		var startedAt, finishedAt sql.NullString

		err := rows.Scan(
			&run.ID,
			&run.BackfillID,
			&runAt,
			&run.Interval,
			&status,
			&run.Error,
			&startedAt,
			&finishedAt,
			&createdAt,
			&updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}

		run.Status = Status(status)

		if run.RunAt, err = parseTime(runAt); err != nil {
			return nil, fmt.Errorf("parsing run_at: %w", err)
		}
		if run.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if run.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}

		if startedAt.Valid {
			t, err := parseTime(startedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parsing started_at: %w", err)
			}
			run.StartedAt = &t
		}
		if finishedAt.Valid {
			t, err := parseTime(finishedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parsing finished_at: %w", err)
			}
			run.FinishedAt = &t
		}

		runs = append(runs, &run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating run rows: %w", err)
	}

	return runs, nil
}

// Stored timestamps use a fixed-width millisecond layout: lexicographic
// comparison in SQL matches chronological order, and run windows round-trip
// at millisecond precision.
const sqlTimeLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqlTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}
