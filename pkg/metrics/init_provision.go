package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initProvisionMetrics() {
	r.ProvisionedHostsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "mhbench_provisioned_hosts_total",
			Help: "Total number of host provisioning attempts",
		},
		[]string{"status"},
	)

	r.ProvisionBatchDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mhbench_provision_batch_duration_seconds",
			Help:    "Time for one provisioning batch to become active",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
		},
	)

	r.ProvisionBatchSize = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mhbench_provision_batch_size",
			Help:    "Hosts per provisioning batch",
			Buckets: []float64{1, 2, 5, 10},
		},
	)

	r.ProvisionPendingHosts = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "mhbench_provision_pending_hosts",
			Help: "Hosts currently awaiting ACTIVE status",
		},
	)

	r.ProvisionTimeoutsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "mhbench_provision_timeouts_total",
			Help: "Provisioning polls that hit the wait ceiling",
		},
	)

	r.ProvisionErrorsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "mhbench_provision_errors_total",
			Help: "Hosts that entered ERROR state during provisioning",
		},
		[]string{"host"},
	)
}
