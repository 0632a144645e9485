// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

var (
	// Mutations counts content mutations by operation, entity and outcome.
	Mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strand_mutations_total",
		Help: "Content mutations by operation, entity and status",
	}, []string{"op", "entity", "status"})

	// ManifestRebuildDuration observes how long a manifest rebuild takes.
	ManifestRebuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "strand_manifest_rebuild_duration_seconds",
		Help:    "Time to rebuild the landing manifest",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"status"})

	// ManifestNodes is the node count of the last written manifest.
	ManifestNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "strand_manifest_nodes",
		Help: "Nodes in the most recent manifest",
	})

	// ManifestSkipped counts node files left out of a rebuild, by reason.
	ManifestSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strand_manifest_skipped_total",
		Help: "Node files skipped during manifest rebuild",
	}, []string{"reason"})

	// Commits counts change-recorder outcomes.
	Commits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strand_vcs_commits_total",
		Help: "Change recorder outcomes",
	}, []string{"status"})

	// BackupsPruned counts backup files removed by retention.
	BackupsPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "strand_backups_pruned_total",
		Help: "Backup files removed by the retention job",
	})
)

// Status maps an error to a status label.
func Status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
