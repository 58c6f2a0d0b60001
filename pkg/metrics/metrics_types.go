package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the deployment pipeline.
type Registry struct {
	// Provisioning metrics
	ProvisionedHostsTotal   *prometheus.CounterVec
	ProvisionBatchDuration  prometheus.Histogram
	ProvisionBatchSize      prometheus.Histogram
	ProvisionPendingHosts   prometheus.Gauge
	ProvisionTimeoutsTotal  prometheus.Counter
	ProvisionErrorsTotal    *prometheus.CounterVec

	// Snapshot metrics
	SnapshotsSavedTotal    prometheus.Counter
	SnapshotsLoadedTotal   prometheus.Counter
	SnapshotSaveDuration   prometheus.Histogram
	SnapshotRebuildRetries prometheus.Counter

	// Configuration metrics
	PlaybookRunsTotal   *prometheus.CounterVec
	PlaybookDuration    *prometheus.HistogramVec
	ConfigPhaseDuration *prometheus.HistogramVec

	// Orchestrator metrics
	DeploymentsTotal    *prometheus.CounterVec
	DeploymentDuration  *prometheus.HistogramVec
	OrchestratorState   *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewRegistry creates a new metrics registry with all metrics initialized.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
	}

	r.initProvisionMetrics()
	r.initSnapshotMetrics()
	r.initConfigMetrics()
	r.initOrchestratorMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
