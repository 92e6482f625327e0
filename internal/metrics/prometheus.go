// Package metrics provides Prometheus collectors for routing decisions,
// deployment health and the HTTP surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "llmroute"
)

// LatencyBuckets defines histogram buckets for upstream latency metrics (in seconds).
var LatencyBuckets = []float64{
	0.005, 0.0125, 0.025, 0.05, 0.1, 0.25, 0.5,
	1.0, 2.0, 3.0, 5.0, 7.5, 10.0, 15.0, 30.0, 60.0, 120.0,
}

// =============================================================================
// Routing Metrics
// =============================================================================

var (
	// RouteRequests counts Route calls, including those that fail.
	RouteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_requests_total",
			Help:      "Total number of routing attempts",
		},
		[]string{"model", "strategy"},
	)

	// RouteDecisions counts successful selections per deployment.
	RouteDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_decisions_total",
			Help:      "Total number of deployments selected",
		},
		[]string{"model", "strategy", "deployment"},
	)

	// RouteFailures counts failed routing attempts by error kind.
	RouteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_failures_total",
			Help:      "Total number of failed routing attempts",
		},
		[]string{"model", "strategy", "reason"},
	)

	// RouteCandidates tracks how many eligible deployments each Route call saw.
	RouteCandidates = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "route_candidates",
			Help:      "Number of eligible deployments per routing attempt",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"model"},
	)
)

// =============================================================================
// Snapshot Metrics
// =============================================================================

var (
	// SnapshotOperations counts checkpoint and restore attempts.
	SnapshotOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_operations_total",
			Help:      "Total number of registry snapshot operations",
		},
		[]string{"operation", "status"},
	)
)

// RecordRoute records the outcome of a single Route call. An empty reason
// means a deployment was selected.
func RecordRoute(model, strategy string, candidates int, deployment, reason string) {
	model = sanitizeModelLabel(model)
	RouteRequests.WithLabelValues(model, strategy).Inc()
	RouteCandidates.WithLabelValues(model).Observe(float64(candidates))
	if reason != "" {
		RouteFailures.WithLabelValues(model, strategy, reason).Inc()
		return
	}
	RouteDecisions.WithLabelValues(model, strategy, deployment).Inc()
}

// RecordSnapshot records a checkpoint or restore outcome.
func RecordSnapshot(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	SnapshotOperations.WithLabelValues(operation, status).Inc()
}
