// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SweepRowsSynced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciliation_rows_synced_total",
			Help: "Total number of decision rows synced into the grant store",
		},
		[]string{"class"},
	)

	SweepRowsPending = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciliation_rows_pending_total",
			Help: "Total number of decision rows left unsynced by a sweep",
		},
		[]string{"class", "reason"},
	)

	SweepRowsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciliation_rows_failed_total",
			Help: "Total number of decision rows that failed with an error",
		},
		[]string{"class", "error_code"},
	)

	SweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "reconciliation_sweep_duration_seconds",
			Help: "Duration of one reconciliation sweep in seconds",
		},
		[]string{"class"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "intake_sessions_active",
			Help: "Number of intake sessions currently registered",
		},
	)

	ReviewActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_actions_total",
			Help: "Total number of dispatched review actions",
		},
		[]string{"action", "result"},
	)

	TicketsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intake_tickets_issued_total",
			Help: "Total number of ticket numbers issued",
		},
	)
)
