// Package metrics holds the Prometheus collectors for the import pipeline.
// Collectors register on the default registry at init; Handler serves them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "importer"

var (
	// ImportsStarted counts new import sessions.
	ImportsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "imports_started_total",
		Help:      "Import sessions opened.",
	})

	// DraftsByStatus counts drafts as they leave validation, by status.
	DraftsByStatus = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "drafts_total",
		Help:      "Draft rows produced, by validation status.",
	}, []string{"status"})

	// StageDuration times each pipeline stage.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Wall time per pipeline stage.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stage"})

	// LedgerFailures counts failed ledger calls, by operation.
	LedgerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_failures_total",
		Help:      "Ledger calls that returned an error.",
	}, []string{"operation"})

	// RowsCommitted counts activities accepted by the ledger on commit.
	RowsCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rows_committed_total",
		Help:      "Activities inserted by commits.",
	})

	// ActiveSessions gauges open wizard sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Wizard sessions currently held in memory.",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
