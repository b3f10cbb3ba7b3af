// Package metrics exposes Prometheus metrics for Gapfill.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gapfill_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gapfill_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// HTTPRequestsInFlight gauges concurrently served requests.
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gapfill_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)

	// RunsProcessedTotal counts scheduler run outcomes by final status.
	RunsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gapfill_runs_processed_total",
			Help: "Total number of backfill runs processed",
		},
		[]string{"status"},
	)

	// RunsRecoveredTotal counts runs timed out by crash recovery.
	RunsRecoveredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gapfill_runs_recovered_total",
			Help: "Total number of stale runs recovered on startup or by the reaper",
		},
	)

	// BackfillsActive gauges backfills that still have unfinished runs.
	BackfillsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gapfill_backfills_active",
			Help: "Number of backfills with unfinished runs",
		},
	)

	// EventsPublishedTotal counts events published to the bus by type.
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gapfill_events_published_total",
			Help: "Total number of events published",
		},
		[]string{"type", "action"},
	)

	// ArchivesWrittenTotal counts archived backfill reports by backend.
	ArchivesWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gapfill_archives_written_total",
			Help: "Total number of backfill reports archived",
		},
		[]string{"backend"},
	)
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
