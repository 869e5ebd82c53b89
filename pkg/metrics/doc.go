/*
Package metrics provides Prometheus instrumentation and health
endpoints for the hutch agent.

# Metrics

Reconciliation:
  - hutch_reconcile_passes_total: passes by event kind and outcome
  - hutch_reconcile_duration_seconds: pass duration by event kind
  - hutch_reconcile_failures_total: failed passes by reason

Managed services:
  - hutch_service_up: unit loaded and active (1 = running)
  - hutch_service_restarts_total: liveness restarts issued

Relation:
  - hutch_relation_state: current database relation state

Actions:
  - hutch_action_runs_total: action invocations by outcome

# Health Endpoints

The agent's HTTP listener serves /health, /ready, and /live from this
package. Components report their state through RegisterComponent and
UpdateComponent; readiness requires the storage and systemd components
to be registered and healthy.

# Usage

Timing a pass:

	timer := metrics.NewTimer()
	// ... reconcile ...
	timer.ObserveDurationVec(metrics.ReconcileDuration, string(event))
	metrics.ReconcilePassesTotal.WithLabelValues(string(event), "applied").Inc()

Serving:

	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())
*/
package metrics
