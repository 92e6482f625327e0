package routers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/blueberrycongee/llmroute/internal/metrics"
	"github.com/blueberrycongee/llmroute/internal/observability"
	llmerrors "github.com/blueberrycongee/llmroute/pkg/errors"
	"github.com/blueberrycongee/llmroute/pkg/router"
)

// ErrNoSnapshotStore is returned by Checkpoint and Restore when the router was
// built without WithSnapshotStore.
var ErrNoSnapshotStore = errors.New("no snapshot store configured")

var _ router.Router = (*Router)(nil)

// Router picks one eligible deployment per request using the configured
// strategy and folds caller feedback back into the registry.
type Router struct {
	config   router.Config
	registry *Registry
	selector Selector
	requests atomic.Uint64

	logger *slog.Logger
	tracer trace.Tracer
	store  SnapshotStore
	now    func() time.Time
	rng    *rand.Rand
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

// WithClock replaces time.Now for eligibility and cooldown arithmetic.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		r.now = now
	}
}

// WithTracer sets the tracer used for Route spans (default: the global tracer).
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Router) {
		r.tracer = tracer
	}
}

// WithSnapshotStore enables Checkpoint and Restore.
func WithSnapshotStore(store SnapshotStore) Option {
	return func(r *Router) {
		r.store = store
	}
}

// WithRand seeds SimpleShuffle with rng instead of the process-wide generator.
func WithRand(rng *rand.Rand) Option {
	return func(r *Router) {
		r.rng = rng
	}
}

// WithSelector overrides the selector derived from the strategy.
func WithSelector(selector Selector) Option {
	return func(r *Router) {
		r.selector = selector
	}
}

// New creates a router. The configuration is validated and then frozen.
func New(config router.Config, opts ...Option) (*Router, error) {
	if !config.Strategy.Valid() {
		return nil, fmt.Errorf("unknown routing strategy: %s", config.Strategy)
	}
	if config.CooldownPeriod < 0 {
		return nil, fmt.Errorf("cooldown period must be non-negative, got %s", config.CooldownPeriod)
	}
	if config.UsageWindow < 0 {
		return nil, fmt.Errorf("usage window must be non-negative, got %s", config.UsageWindow)
	}
	switch config.Recovery {
	case "":
		config.Recovery = router.RecoveryAuto
	case router.RecoveryAuto, router.RecoveryManual:
	default:
		return nil, fmt.Errorf("unknown recovery policy %q", config.Recovery)
	}

	r := &Router{
		config: config,
		logger: slog.Default(),
		tracer: otel.Tracer(observability.TracerName),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.selector == nil {
		selector, err := NewSelector(config, r.rng)
		if err != nil {
			return nil, err
		}
		r.selector = selector
	}
	r.registry = NewRegistry(config, r.now)

	return r, nil
}

// Route increments the request counter, filters the registry to eligible
// deployments of modelName and returns the key the strategy picked.
func (r *Router) Route(ctx context.Context, modelName string, req *router.Request) (string, error) {
	r.countRequest()

	strategy := r.selector.Strategy().String()
	ctx, span := r.tracer.Start(ctx, "router.Route",
		trace.WithAttributes(
			attribute.String("llmroute.model", modelName),
			attribute.String("llmroute.strategy", strategy),
		),
	)
	defer span.End()

	requestID := observability.RequestIDFromContext(ctx)
	if req != nil && req.RequestID != "" {
		requestID = req.RequestID
	}
	if requestID != "" {
		span.SetAttributes(attribute.String("llmroute.request_id", requestID))
	}

	candidates := r.registry.FilterEligible(modelName)
	span.SetAttributes(attribute.Int("llmroute.candidates", len(candidates)))

	if len(candidates) == 0 {
		err := llmerrors.NewNoHealthyDeploymentsError(modelName)
		observability.RecordError(span, err)
		metrics.RecordRoute(modelName, strategy, 0, "", string(err.Kind))
		r.logger.Debug("no eligible deployment", "model", modelName, "request_id", requestID)
		return "", err
	}

	chosen, err := r.selector.Select(candidates)
	if err == nil && chosen.RegistryKey() == "" {
		err = llmerrors.NewStrategyError(strategy, "selected deployment has no key")
	}
	if err != nil {
		routeErr := llmerrors.NewRoutingFailedError(modelName, llmerrors.WrapStrategyError(strategy, err))
		observability.RecordError(span, routeErr)
		metrics.RecordRoute(modelName, strategy, len(candidates), "", string(routeErr.Kind))
		r.logger.Error("strategy failed to select a deployment",
			"model", modelName,
			"strategy", strategy,
			"candidates", len(candidates),
			"error", err,
		)
		return "", routeErr
	}

	key := chosen.RegistryKey()
	span.SetAttributes(attribute.String("llmroute.deployment", key))
	metrics.RecordRoute(modelName, strategy, len(candidates), key, "")
	r.logger.Debug("deployment selected",
		"model", modelName,
		"deployment", key,
		"strategy", strategy,
		"candidates", len(candidates),
		"request_id", requestID,
	)
	return key, nil
}

// countRequest bumps the global counter, saturating instead of wrapping.
func (r *Router) countRequest() {
	for {
		cur := r.requests.Load()
		if cur == math.MaxUint64 {
			return
		}
		if r.requests.CompareAndSwap(cur, cur+1) {
			return
		}
	}
}

// AddDeployment inserts or replaces a deployment. It starts healthy.
func (r *Router) AddDeployment(d router.Deployment) error {
	if err := r.registry.Add(d); err != nil {
		return err
	}
	key := d.RegistryKey()
	metrics.DeploymentsRegistered.Set(float64(r.registry.Len()))
	metrics.SetDeploymentState(key, d.ModelName, metrics.DeploymentStateHealthy)
	r.logger.Info("deployment registered", "deployment", key, "model", d.ModelName)
	return nil
}

// RemoveDeployment removes a deployment and reports whether it existed.
func (r *Router) RemoveDeployment(key string) bool {
	if !r.registry.Remove(key) {
		return false
	}
	metrics.DeploymentsRegistered.Set(float64(r.registry.Len()))
	metrics.ForgetDeployment(key)
	r.logger.Info("deployment removed", "deployment", key)
	return true
}

// GetDeployment returns a snapshot of one deployment.
func (r *Router) GetDeployment(key string) (router.Deployment, error) {
	d, ok := r.registry.Get(key)
	if !ok {
		return router.Deployment{}, llmerrors.NewDeploymentNotFoundError(key)
	}
	return d, nil
}

// ListDeploymentNames returns every registered key in registration order.
func (r *Router) ListDeploymentNames() []string {
	return r.registry.ListKeys()
}

// Deployments returns snapshots of every registered deployment.
func (r *Router) Deployments() []router.Deployment {
	return r.registry.Snapshots()
}

// EligibleDeployments returns the deployments of modelName that are eligible right now.
func (r *Router) EligibleDeployments(modelName string) []router.Deployment {
	return r.registry.FilterEligible(modelName)
}

// Healthy reports whether the routing core is usable. It does not consider
// deployment health; a router with no eligible deployments is still healthy.
func (r *Router) Healthy() bool {
	return r.registry != nil && r.selector != nil
}

// RecordSuccess folds a successful outcome into the deployment's stats.
// Unknown keys are ignored.
func (r *Router) RecordSuccess(key string, latencyMs float64, tokens uint64) {
	if !r.registry.RecordSuccess(key, latencyMs, tokens) {
		r.logger.Debug("success reported for unknown deployment", "deployment", key)
		return
	}
	if d, ok := r.registry.Get(key); ok {
		metrics.RecordDeploymentSuccess(key, d.ModelName, latencyMs, tokens)
		metrics.SetDeploymentState(key, d.ModelName, deploymentState(d, r.now()))
	}
}

// RecordFailure marks the deployment unhealthy and starts its cooldown.
// Unknown keys are ignored.
func (r *Router) RecordFailure(key string) {
	d, ok := r.registry.MarkUnhealthy(key)
	if !ok {
		r.logger.Debug("failure reported for unknown deployment", "deployment", key)
		return
	}
	metrics.RecordDeploymentFailure(key, d.ModelName)
	r.logger.Warn("deployment entered cooldown",
		"deployment", key,
		"model", d.ModelName,
		"cooldown_until", d.CooldownUntil,
		"failed_requests", d.FailedRequests,
	)
}

// MarkHealthy sets the deployment's health flag. A running cooldown is kept,
// so the deployment rejoins rotation once it expires. Under the manual
// recovery policy this is the only way back into rotation.
func (r *Router) MarkHealthy(key string) error {
	if err := r.registry.MarkHealthy(key); err != nil {
		return err
	}
	d, ok := r.registry.Get(key)
	if !ok {
		return nil
	}
	metrics.SetDeploymentState(key, d.ModelName, deploymentState(d, r.now()))
	r.logger.Info("deployment marked healthy",
		"deployment", key,
		"cooldown_until", d.CooldownUntil,
	)
	return nil
}

// RecordHealthCheck stamps the last health check time of a deployment.
func (r *Router) RecordHealthCheck(key string) error {
	return r.registry.RecordHealthCheck(key)
}

// GetStats returns router-wide counters and refreshes the per-deployment
// state gauges.
func (r *Router) GetStats() router.Stats {
	now := r.now()
	for _, d := range r.registry.Snapshots() {
		metrics.SetDeploymentState(d.Key, d.ModelName, deploymentState(d, now))
	}

	total, healthy := r.registry.Counts()
	return router.Stats{
		TotalRequests:      r.requests.Load(),
		TotalDeployments:   total,
		HealthyDeployments: healthy,
	}
}

// Config returns the router configuration.
func (r *Router) Config() router.Config {
	return r.config
}

// ReconcileResult lists the keys touched by Reconcile.
type ReconcileResult struct {
	Added   []string `json:"added"`
	Updated []string `json:"updated"`
	Removed []string `json:"removed"`
}

// Reconcile makes the registry match desired, typically after a configuration
// reload. Updated deployments keep their live stats and health.
func (r *Router) Reconcile(desired []router.Deployment) (ReconcileResult, error) {
	added, updated, removed, err := r.registry.Reconcile(desired)
	result := ReconcileResult{Added: added, Updated: updated, Removed: removed}

	for _, key := range removed {
		metrics.ForgetDeployment(key)
	}
	metrics.DeploymentsRegistered.Set(float64(r.registry.Len()))

	if err != nil {
		return result, err
	}
	r.logger.Info("deployments reconciled",
		"added", len(added),
		"updated", len(updated),
		"removed", len(removed),
	)
	return result, nil
}

// Checkpoint saves a snapshot of every deployment to the snapshot store.
func (r *Router) Checkpoint(ctx context.Context) error {
	if r.store == nil {
		return ErrNoSnapshotStore
	}
	snapshots := r.registry.Snapshots()
	err := r.store.Save(ctx, snapshots)
	metrics.RecordSnapshot("checkpoint", err)
	if err != nil {
		return err
	}
	r.logger.Debug("registry checkpointed", "deployments", len(snapshots))
	return nil
}

// Restore loads the stored snapshot into the registry, keeping the recorded
// stats, health flags and cooldowns. It returns the number of deployments restored.
func (r *Router) Restore(ctx context.Context) (int, error) {
	if r.store == nil {
		return 0, ErrNoSnapshotStore
	}
	snapshots, err := r.store.Load(ctx)
	if err != nil {
		metrics.RecordSnapshot("restore", err)
		return 0, err
	}

	restored := 0
	for _, d := range snapshots {
		if err := r.registry.Restore(d); err != nil {
			r.logger.Warn("skipping invalid deployment in snapshot", "deployment", d.RegistryKey(), "error", err)
			continue
		}
		restored++
	}
	metrics.RecordSnapshot("restore", nil)
	metrics.DeploymentsRegistered.Set(float64(r.registry.Len()))
	r.logger.Info("registry restored", "deployments", restored)
	return restored, nil
}

// deploymentState maps a snapshot to the state gauge value.
func deploymentState(d router.Deployment, now time.Time) int {
	switch {
	case d.Eligible(now):
		return metrics.DeploymentStateHealthy
	case d.InCooldown(now):
		return metrics.DeploymentStateCooldown
	default:
		return metrics.DeploymentStateFailed
	}
}
