package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initConfigMetrics() {
	r.PlaybookRunsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "mhbench_playbook_runs_total",
			Help: "Total number of playbook executions",
		},
		[]string{"playbook", "status"},
	)

	r.PlaybookDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mhbench_playbook_duration_seconds",
			Help:    "Playbook execution duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"playbook"},
	)

	r.ConfigPhaseDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mhbench_config_phase_duration_seconds",
			Help:    "Duration of each host-configuration phase",
			Buckets: []float64{5, 30, 60, 300, 600, 1800},
		},
		[]string{"phase"},
	)
}
