package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DeploymentState constants for deployment health status.
const (
	DeploymentStateHealthy  = 0 // Eligible for selection
	DeploymentStateCooldown = 1 // Failed, cooldown active
	DeploymentStateFailed   = 2 // Unhealthy with no active cooldown
)

// =============================================================================
// Deployment Health Metrics
// =============================================================================

var (
	// DeploymentState tracks deployment health state.
	DeploymentState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "deployment_state",
			Help:      "Deployment health state (0=healthy, 1=cooldown, 2=failed)",
		},
		[]string{"deployment", "model"},
	)

	// DeploymentSuccessResponses counts successful responses per deployment.
	DeploymentSuccessResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deployment_success_responses_total",
			Help:      "Total successful responses per deployment",
		},
		[]string{"deployment", "model"},
	)

	// DeploymentFailureResponses counts failed responses per deployment.
	DeploymentFailureResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deployment_failure_responses_total",
			Help:      "Total failed responses per deployment",
		},
		[]string{"deployment", "model"},
	)

	// DeploymentCooledDown counts cooldown events per deployment.
	DeploymentCooledDown = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deployment_cooled_down_total",
			Help:      "Number of times deployment entered cooldown",
		},
		[]string{"deployment", "model"},
	)

	// DeploymentLatency tracks reported upstream latency per deployment.
	DeploymentLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "deployment_latency_seconds",
			Help:      "Upstream latency reported for a deployment",
			Buckets:   LatencyBuckets,
		},
		[]string{"deployment", "model"},
	)

	// DeploymentTokens counts tokens reported per deployment.
	DeploymentTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deployment_tokens_total",
			Help:      "Total tokens reported per deployment",
		},
		[]string{"deployment", "model"},
	)

	// DeploymentsRegistered tracks the size of the registry.
	DeploymentsRegistered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "deployments_registered",
			Help:      "Number of deployments in the registry",
		},
	)
)

// RecordDeploymentSuccess records a success outcome for a deployment.
func RecordDeploymentSuccess(deployment, model string, latencyMs float64, tokens uint64) {
	model = sanitizeModelLabel(model)
	DeploymentSuccessResponses.WithLabelValues(deployment, model).Inc()
	DeploymentLatency.WithLabelValues(deployment, model).Observe(latencyMs / 1000)
	if tokens > 0 {
		DeploymentTokens.WithLabelValues(deployment, model).Add(float64(tokens))
	}
}

// RecordDeploymentFailure records a failure, which always starts a cooldown.
func RecordDeploymentFailure(deployment, model string) {
	model = sanitizeModelLabel(model)
	DeploymentFailureResponses.WithLabelValues(deployment, model).Inc()
	DeploymentCooledDown.WithLabelValues(deployment, model).Inc()
	DeploymentState.WithLabelValues(deployment, model).Set(DeploymentStateCooldown)
}

// SetDeploymentState sets the state gauge for a deployment.
func SetDeploymentState(deployment, model string, state int) {
	DeploymentState.WithLabelValues(deployment, sanitizeModelLabel(model)).Set(float64(state))
}

// ForgetDeployment drops every per-deployment series for a removed deployment.
func ForgetDeployment(deployment string) {
	labels := prometheus.Labels{"deployment": deployment}
	DeploymentState.DeletePartialMatch(labels)
	DeploymentSuccessResponses.DeletePartialMatch(labels)
	DeploymentFailureResponses.DeletePartialMatch(labels)
	DeploymentCooledDown.DeletePartialMatch(labels)
	DeploymentLatency.DeletePartialMatch(labels)
	DeploymentTokens.DeletePartialMatch(labels)
}
