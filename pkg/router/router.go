// Package router provides the public routing types for a pool of interchangeable
// model deployments: the Router contract, its configuration, deployment snapshots
// and the closed set of selection strategies.
package router

import (
	"context"
	"maps"
	"time"
)

// Router selects one eligible deployment per request and records outcome feedback.
// All methods are safe for concurrent use.
type Router interface {
	// Route picks an eligible deployment for modelName and returns its key.
	// Returns an error matching errors.ErrNoHealthyDeployments when nothing is eligible.
	Route(ctx context.Context, modelName string, req *Request) (string, error)

	// AddDeployment inserts or replaces the deployment keyed by its identity.
	AddDeployment(d Deployment) error

	// RemoveDeployment removes a deployment and reports whether it existed.
	RemoveDeployment(key string) bool

	// GetDeployment returns a snapshot of one deployment.
	GetDeployment(key string) (Deployment, error)

	// ListDeploymentNames returns every registered key in registration order.
	ListDeploymentNames() []string

	// RecordSuccess folds a successful outcome into the deployment's stats.
	// Unknown keys are ignored.
	RecordSuccess(key string, latencyMs float64, tokens uint64)

	// RecordFailure marks the deployment unhealthy and starts its cooldown.
	// Unknown keys are ignored.
	RecordFailure(key string)

	// MarkHealthy sets the health flag of a deployment. An active cooldown still runs to its end.
	MarkHealthy(key string) error

	// GetStats returns router-wide counters.
	GetStats() Stats

	// Config returns the immutable router configuration.
	Config() Config
}

// Request is the caller's request shape. The router never interprets it beyond
// attaching it to logs and traces.
type Request struct {
	// RequestID correlates the routing decision with the caller's request
	RequestID string

	// EstimatedTokens is the caller's token estimate, if any
	EstimatedTokens uint64

	// Metadata contains additional request metadata
	Metadata map[string]string
}

// ModelInfo is the typed subset of model metadata the router reads, plus
// pass-through scalar extras. Nil cost pointers mean the field is absent.
type ModelInfo struct {
	InputCostPerToken  *float64       `json:"input_cost_per_token,omitempty" yaml:"input_cost_per_token,omitempty"`
	OutputCostPerToken *float64       `json:"output_cost_per_token,omitempty" yaml:"output_cost_per_token,omitempty"`
	Extra              map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// HasCost reports whether either per-token cost field is present.
func (m ModelInfo) HasCost() bool {
	return m.InputCostPerToken != nil || m.OutputCostPerToken != nil
}

// CostPerToken returns input + output cost, treating absent fields as zero.
func (m ModelInfo) CostPerToken() float64 {
	var total float64
	if m.InputCostPerToken != nil {
		total += *m.InputCostPerToken
	}
	if m.OutputCostPerToken != nil {
		total += *m.OutputCostPerToken
	}
	return total
}

// Clone returns a copy that shares nothing mutable with m.
func (m ModelInfo) Clone() ModelInfo {
	out := ModelInfo{Extra: maps.Clone(m.Extra)}
	if m.InputCostPerToken != nil {
		v := *m.InputCostPerToken
		out.InputCostPerToken = &v
	}
	if m.OutputCostPerToken != nil {
		v := *m.OutputCostPerToken
		out.OutputCostPerToken = &v
	}
	return out
}

// Deployment is a point-in-time snapshot of one backend instance of a model.
// Values returned by the router are copies; later registry mutations are not
// reflected in them.
type Deployment struct {
	// Key identifies the deployment in the registry. Defaults to ModelName.
	Key string `json:"key"`

	// ModelName is the logical model this deployment serves
	ModelName string `json:"model_name"`

	// Params are opaque provider parameters passed through unmodified
	Params map[string]any `json:"params,omitempty"`

	// ModelInfo carries model metadata, including per-token costs
	ModelInfo ModelInfo `json:"model_info"`

	// Request counts
	TotalRequests      uint64 `json:"total_requests"`
	SuccessfulRequests uint64 `json:"successful_requests"`
	FailedRequests     uint64 `json:"failed_requests"`

	// Usage tracking
	CurrentRPM uint64 `json:"current_rpm"`
	CurrentTPM uint64 `json:"current_tpm"`

	// AvgLatencyMs is an EMA over successful outcomes, 0 until the first sample
	AvgLatencyMs float64 `json:"avg_latency_ms"`

	// Health
	IsHealthy       bool      `json:"is_healthy"`
	CooldownUntil   time.Time `json:"cooldown_until"`
	LastHealthCheck time.Time `json:"last_health_check"`
	LastUpdated     time.Time `json:"last_updated"`
}

// RegistryKey returns the key the deployment is stored under.
func (d Deployment) RegistryKey() string {
	if d.Key != "" {
		return d.Key
	}
	return d.ModelName
}

// InCooldown reports whether the deployment's cooldown is active at now.
func (d Deployment) InCooldown(now time.Time) bool {
	return !d.CooldownUntil.IsZero() && now.Before(d.CooldownUntil)
}

// Eligible reports whether the deployment may be selected at now.
func (d Deployment) Eligible(now time.Time) bool {
	return d.IsHealthy && !d.InCooldown(now)
}

// Clone returns a deep copy of the deployment's mutable containers.
func (d Deployment) Clone() Deployment {
	d.Params = maps.Clone(d.Params)
	d.ModelInfo = d.ModelInfo.Clone()
	return d
}

// Stats contains router-wide counters.
type Stats struct {
	TotalRequests      uint64 `json:"total_requests"`
	TotalDeployments   int    `json:"total_deployments"`
	HealthyDeployments int    `json:"healthy_deployments"`
}

// RecoveryPolicy decides what happens to the health flag once a cooldown expires.
type RecoveryPolicy string

const (
	// RecoveryAuto treats a deployment whose cooldown has expired as healthy again.
	RecoveryAuto RecoveryPolicy = "auto"

	// RecoveryManual keeps a failed deployment excluded until MarkHealthy is called.
	RecoveryManual RecoveryPolicy = "manual"
)

// UsageLimits are the per-deployment rpm/tpm capacities UsageBasedV2 normalises against.
type UsageLimits struct {
	RPM uint64 `json:"rpm" yaml:"rpm"`
	TPM uint64 `json:"tpm" yaml:"tpm"`
}

// Config contains router configuration options. It is read-only after the router is built.
type Config struct {
	// Strategy determines how deployments are selected
	Strategy Strategy

	// CooldownPeriod is how long a failed deployment stays excluded
	CooldownPeriod time.Duration

	// MaxRetries is stored for callers; the router does not retry
	MaxRetries int

	// Timeout is advisory metadata for callers; the router does not enforce it
	Timeout time.Duration

	// Recovery selects the health-flag policy applied after cooldown expiry
	Recovery RecoveryPolicy

	// UsageLimits feed UsageBasedV2; zero fields fall back to DefaultUsageLimits
	UsageLimits UsageLimits

	// UsageWindow, when positive, turns rpm/tpm into sliding-window counters
	UsageWindow time.Duration
}

// DefaultUsageLimits are the placeholder capacities used when none are configured.
func DefaultUsageLimits() UsageLimits {
	return UsageLimits{RPM: 1000, TPM: 100000}
}

// DefaultConfig returns sensible default router configuration.
func DefaultConfig() Config {
	return Config{
		Strategy:       StrategyLeastBusy,
		CooldownPeriod: 60 * time.Second,
		MaxRetries:     3,
		Timeout:        30 * time.Second,
		Recovery:       RecoveryAuto,
		UsageLimits:    DefaultUsageLimits(),
	}
}

// EffectiveUsageLimits fills unset limits with the defaults.
func (c Config) EffectiveUsageLimits() UsageLimits {
	limits := c.UsageLimits
	defaults := DefaultUsageLimits()
	if limits.RPM == 0 {
		limits.RPM = defaults.RPM
	}
	if limits.TPM == 0 {
		limits.TPM = defaults.TPM
	}
	return limits
}
