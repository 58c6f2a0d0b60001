package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initOrchestratorMetrics() {
	r.DeploymentsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "mhbench_deployments_total",
			Help: "Total compile/deploy/setup/teardown operations",
		},
		[]string{"operation", "status"},
	)

	r.DeploymentDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mhbench_deployment_duration_seconds",
			Help:    "End-to-end duration of orchestrator operations",
			Buckets: []float64{60, 300, 600, 1800, 3600},
		},
		[]string{"operation"},
	)

	r.OrchestratorState = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mhbench_orchestrator_state",
			Help: "Current orchestrator state (1 for the active state)",
		},
		[]string{"state"},
	)
}
