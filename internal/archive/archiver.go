// Package archive writes finished-backfill reports to a storage backend.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mvarela/gapfill/internal/backfill"
	"github.com/mvarela/gapfill/internal/metrics"
	"github.com/mvarela/gapfill/internal/storage"
)

// Report is the archived record of one finished backfill: the backfill
// itself plus every run and the window it covered.
type Report struct {
	Backfill   *backfill.Backfill `json:"backfill"`
	Runs       []ReportRun        `json:"runs"`
	ArchivedAt time.Time          `json:"archived_at"`
}

// ReportRun pairs a run with its derived window.
type ReportRun struct {
	Run  *backfill.Run `json:"run"`
	From time.Time     `json:"from"`
	To   time.Time     `json:"to"`
}

// Archiver writes reports for finished backfills.
type Archiver struct {
	backend     storage.Backend
	backendName string
}

// New creates an archiver on top of backend. backendName is used for
// logging and metrics only.
func New(backend storage.Backend, backendName string) *Archiver {
	return &Archiver{
		backend:     backend,
		backendName: backendName,
	}
}

// FinalizeBackfill builds and stores the report for a finished backfill.
func (a *Archiver) FinalizeBackfill(ctx context.Context, b *backfill.Backfill, runs []*backfill.Run) error {
	report := Report{
		Backfill:   b,
		Runs:       make([]ReportRun, 0, len(runs)),
		ArchivedAt: time.Now().UTC(),
	}

	for _, run := range runs {
		window, err := backfill.ToScheduledItem(run.Record())
		if err != nil {
			return fmt.Errorf("deriving window for run %s: %w", run.ID, err)
		}
		report.Runs = append(report.Runs, ReportRun{
			Run:  run,
			From: window.From,
			To:   window.To,
		})
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}

	key := reportKey(b)
	if err := a.backend.Put(ctx, key, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("storing report: %w", err)
	}

	metrics.ArchivesWrittenTotal.WithLabelValues(a.backendName).Inc()

	log.Info().
		Str("backfill_id", b.ID).
		Str("key", key).
		Str("backend", a.backendName).
		Msg("Backfill report archived")

	return nil
}

// Get retrieves a previously archived report.
func (a *Archiver) Get(ctx context.Context, b *backfill.Backfill) (*Report, error) {
	rc, err := a.backend.Get(ctx, reportKey(b))
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var report Report
	if err := json.NewDecoder(rc).Decode(&report); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}

	return &report, nil
}

// reportKey lays reports out by job and month so filesystem archives stay
// browsable.
func reportKey(b *backfill.Backfill) string {
	return fmt.Sprintf("%s/%s/%s.json", b.JobID, b.End.UTC().Format("2006-01"), b.ID)
}
