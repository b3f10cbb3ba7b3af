package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mvarela/gapfill/internal/backfill"
)

const defaultScheduleLimit = 100

// ScheduleItem is one upcoming run with its derived window.
type ScheduleItem struct {
	RunID      string          `json:"run_id"`
	BackfillID string          `json:"backfill_id"`
	RunAt      time.Time       `json:"run_at"`
	From       time.Time       `json:"from"`
	To         time.Time       `json:"to"`
	Interval   string          `json:"interval"`
	Status     backfill.Status `json:"status"`
}

// GetSchedule returns upcoming runs across all backfills, each with the
// window it will cover. Query params: status (default pending), limit.
func (h *Handlers) GetSchedule(w http.ResponseWriter, r *http.Request) {
	status := backfill.Status(r.URL.Query().Get("status"))
	if status == "" {
		status = backfill.StatusPending
	}

	limit := defaultScheduleLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	runs, err := h.store.ListRunsByStatus(r.Context(), status, limit)
	if err != nil {
		log.Error().Err(err).Str("status", string(status)).Msg("Failed to list runs")
		InternalError(w, "failed to build schedule")
		return
	}

	items := make([]ScheduleItem, 0, len(runs))
	for _, run := range runs {
		window, err := backfill.ToScheduledItem(run.Record())
		if err != nil {
			log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to derive run window")
			InternalError(w, "failed to derive run window")
			return
		}
		items = append(items, ScheduleItem{
			RunID:      run.ID,
			BackfillID: run.BackfillID,
			RunAt:      run.RunAt,
			From:       window.From,
			To:         window.To,
			Interval:   run.Interval,
			Status:     window.Status,
		})
	}

	JSON(w, http.StatusOK, map[string]any{"schedule": items})
}
