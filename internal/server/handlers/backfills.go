package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gobwas/glob"
	"github.com/rs/zerolog/log"

	"github.com/mvarela/gapfill/internal/backfill"
	"github.com/mvarela/gapfill/internal/events"
	"github.com/mvarela/gapfill/internal/jobs"
	"github.com/mvarela/gapfill/internal/requestctx"
)

// CreateBackfillRequest is the POST /api/backfills body.
type CreateBackfillRequest struct {
	JobID    string `json:"job_id"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Interval string `json:"interval,omitempty"`
	Cron     string `json:"cron,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// BackfillResponse is a backfill plus its run count.
type BackfillResponse struct {
	*backfill.Backfill
	RunCount int `json:"run_count"`
}

// CreateBackfill registers a new backfill and expands it into runs.
func (h *Handlers) CreateBackfill(w http.ResponseWriter, r *http.Request) {
	var req CreateBackfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid JSON body")
		return
	}

	if req.JobID == "" {
		BadRequest(w, "job_id is required")
		return
	}

	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		BadRequest(w, "start must be an RFC 3339 timestamp")
		return
	}
	end, err := time.Parse(time.RFC3339, req.End)
	if err != nil {
		BadRequest(w, "end must be an RFC 3339 timestamp")
		return
	}

	b := &backfill.Backfill{
		JobID:    req.JobID,
		Start:    start,
		End:      end,
		Interval: req.Interval,
		Cron:     req.Cron,
		Timezone: req.Timezone,
	}

	h.registry.ApplyDefaults(b)

	if err := h.registry.Validate(b.JobID, b.Interval, b.Start, b.End); err != nil {
		switch {
		case errors.Is(err, jobs.ErrUnknownJob):
			Error(w, http.StatusUnprocessableEntity, "UNKNOWN_JOB", err.Error())
		default:
			BadRequest(w, err.Error())
		}
		return
	}

	runs, err := backfill.Expand(b, h.cfg.Scheduler.MaxRunsPerBackfill)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	if err := h.store.CreateBackfill(r.Context(), b, runs); err != nil {
		log.Error().Err(err).Str("job_id", b.JobID).Msg("Failed to create backfill")
		InternalError(w, "failed to create backfill")
		return
	}

	h.publishBackfillEvent(r, b, "create")

	JSON(w, http.StatusCreated, BackfillResponse{Backfill: b, RunCount: len(runs)})
}

// ListBackfills returns backfills, newest first, optionally filtered by
// a job glob (?job=ingest-*).
func (h *Handlers) ListBackfills(w http.ResponseWriter, r *http.Request) {
	var jobFilter glob.Glob
	if pattern := r.URL.Query().Get("job"); pattern != "" {
		g, err := glob.Compile(pattern)
		if err != nil {
			BadRequest(w, "job must be a valid glob pattern")
			return
		}
		jobFilter = g
	}

	backfills, err := h.store.ListBackfills(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list backfills")
		InternalError(w, "failed to list backfills")
		return
	}

	if jobFilter != nil {
		matched := make([]*backfill.Backfill, 0, len(backfills))
		for _, b := range backfills {
			if jobFilter.Match(b.JobID) {
				matched = append(matched, b)
			}
		}
		backfills = matched
	}

	JSON(w, http.StatusOK, map[string]any{"backfills": backfills})
}

// GetBackfill returns one backfill with its run status counts.
func (h *Handlers) GetBackfill(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	b, err := h.store.GetBackfill(r.Context(), id)
	if err != nil {
		if errors.Is(err, backfill.ErrNotFound) {
			NotFound(w, "backfill not found")
			return
		}
		log.Error().Err(err).Str("backfill_id", id).Msg("Failed to get backfill")
		InternalError(w, "failed to get backfill")
		return
	}

	counts, err := h.store.CountRunsByStatus(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("backfill_id", id).Msg("Failed to count runs")
		InternalError(w, "failed to get backfill")
		return
	}

	JSON(w, http.StatusOK, map[string]any{
		"backfill":   b,
		"run_counts": counts,
	})
}

// DeleteBackfill removes a backfill and all of its runs.
func (h *Handlers) DeleteBackfill(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	b, err := h.store.GetBackfill(r.Context(), id)
	if err != nil {
		if errors.Is(err, backfill.ErrNotFound) {
			NotFound(w, "backfill not found")
			return
		}
		log.Error().Err(err).Str("backfill_id", id).Msg("Failed to get backfill")
		InternalError(w, "failed to delete backfill")
		return
	}

	if err := h.store.DeleteBackfill(r.Context(), id); err != nil {
		log.Error().Err(err).Str("backfill_id", id).Msg("Failed to delete backfill")
		InternalError(w, "failed to delete backfill")
		return
	}

	h.publishBackfillEvent(r, b, "delete")

	JSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// ListRuns returns the runs of one backfill with their derived windows.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if _, err := h.store.GetBackfill(r.Context(), id); err != nil {
		if errors.Is(err, backfill.ErrNotFound) {
			NotFound(w, "backfill not found")
			return
		}
		log.Error().Err(err).Str("backfill_id", id).Msg("Failed to get backfill")
		InternalError(w, "failed to list runs")
		return
	}

	runs, err := h.store.ListRuns(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("backfill_id", id).Msg("Failed to list runs")
		InternalError(w, "failed to list runs")
		return
	}

	items := make([]RunWithWindow, 0, len(runs))
	for _, run := range runs {
		window, err := backfill.ToScheduledItem(run.Record())
		if err != nil {
			log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to derive run window")
			InternalError(w, "failed to derive run window")
			return
		}
		items = append(items, RunWithWindow{
			Run:  run,
			From: window.From,
			To:   window.To,
		})
	}

	JSON(w, http.StatusOK, map[string]any{"runs": items})
}

// RunWithWindow is a run annotated with the time span it covers.
type RunWithWindow struct {
	*backfill.Run
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (h *Handlers) publishBackfillEvent(r *http.Request, b *backfill.Backfill, action string) {
	if h.bus == nil {
		return
	}

	err := h.bus.Publish(r.Context(), &events.Event{
		Type:   events.EventTypeBackfill,
		Source: "api",
		Action: action,
		Payload: map[string]any{
			"backfill_id": b.ID,
			"job_id":      b.JobID,
		},
		Metadata: events.EventMetadata{
			RequestID: requestctx.RequestID(r.Context()),
		},
	})
	if err != nil {
		log.Error().Err(err).Str("backfill_id", b.ID).Msg("Failed to publish backfill event")
	}
}
