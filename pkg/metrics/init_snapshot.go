package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initSnapshotMetrics() {
	r.SnapshotsSavedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "mhbench_snapshots_saved_total",
			Help: "Total number of host snapshots captured",
		},
	)

	r.SnapshotsLoadedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "mhbench_snapshots_loaded_total",
			Help: "Total number of hosts rebuilt from snapshots",
		},
	)

	r.SnapshotSaveDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mhbench_snapshot_save_duration_seconds",
			Help:    "Time to capture one host snapshot",
			Buckets: []float64{5, 15, 30, 60, 120, 300},
		},
	)

	r.SnapshotRebuildRetries = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "mhbench_snapshot_rebuild_retries_total",
			Help: "Hosts retried after landing in ERROR during a snapshot load",
		},
	)
}
