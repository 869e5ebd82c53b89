package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Reconciliation metrics
	ReconcilePassesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hutch_reconcile_passes_total",
			Help: "Total number of reconciliation passes by event kind and outcome",
		},
		[]string{"event", "outcome"},
	)

	ReconcileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hutch_reconcile_duration_seconds",
			Help:    "Reconciliation pass duration in seconds by event kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"event"},
	)

	ReconcileFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hutch_reconcile_failures_total",
			Help: "Total number of failed reconciliation passes by reason",
		},
		[]string{"reason"},
	)

	// Managed service metrics
	ServiceUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hutch_service_up",
			Help: "Whether the managed unit is loaded and active (1 = running)",
		},
		[]string{"service"},
	)

	ServiceRestartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hutch_service_restarts_total",
			Help: "Total number of liveness restarts issued by service",
		},
		[]string{"service"},
	)

	// Relation metrics
	RelationState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hutch_relation_state",
			Help: "Database relation state (1 for the current state, 0 otherwise)",
		},
		[]string{"state"},
	)

	// Action metrics
	ActionRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hutch_action_runs_total",
			Help: "Total number of action invocations by action and outcome",
		},
		[]string{"action", "outcome"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(ReconcilePassesTotal)
	prometheus.MustRegister(ReconcileDuration)
	prometheus.MustRegister(ReconcileFailuresTotal)
	prometheus.MustRegister(ServiceUp)
	prometheus.MustRegister(ServiceRestartsTotal)
	prometheus.MustRegister(RelationState)
	prometheus.MustRegister(ActionRunsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
