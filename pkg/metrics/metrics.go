// Package metrics exposes the deployment pipeline's Prometheus metrics
// through a single registry passed into components.
package metrics

import (
	"time"
)

// RecordHostProvisioned records one host reaching ACTIVE or failing.
func (r *Registry) RecordHostProvisioned(status string) {
	r.ProvisionedHostsTotal.WithLabelValues(status).Inc()
}

// RecordBatch records one provisioning batch completing.
func (r *Registry) RecordBatch(size int, duration time.Duration) {
	r.ProvisionBatchSize.Observe(float64(size))
	r.ProvisionBatchDuration.Observe(duration.Seconds())
}

// RecordHostError records a host entering ERROR during provisioning.
func (r *Registry) RecordHostError(host string) {
	r.ProvisionErrorsTotal.WithLabelValues(host).Inc()
	r.ProvisionedHostsTotal.WithLabelValues("error").Inc()
}

// RecordPlaybookRun records one playbook execution.
func (r *Registry) RecordPlaybookRun(name, status string, duration time.Duration) {
	r.PlaybookRunsTotal.WithLabelValues(name, status).Inc()
	r.PlaybookDuration.WithLabelValues(name).Observe(duration.Seconds())
}

// RecordConfigPhase records a completed configuration phase.
func (r *Registry) RecordConfigPhase(phase string, duration time.Duration) {
	r.ConfigPhaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// RecordDeployment records one orchestrator operation.
func (r *Registry) RecordDeployment(operation, status string, duration time.Duration) {
	r.DeploymentsTotal.WithLabelValues(operation, status).Inc()
	r.DeploymentDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetState marks the orchestrator's current state, clearing the others.
func (r *Registry) SetState(current string, all []string) {
	for _, s := range all {
		r.OrchestratorState.WithLabelValues(s).Set(0)
	}
	r.OrchestratorState.WithLabelValues(current).Set(1)
}
