package routers

import (
	"math"
	"sync"
	"time"

	llmerrors "github.com/blueberrycongee/llmroute/pkg/errors"
	"github.com/blueberrycongee/llmroute/pkg/router"
)

// entry is the registry's private, mutable record for one deployment.
type entry struct {
	d     router.Deployment
	usage *usageWindow
	// seeded is set once AvgLatencyMs holds a real sample.
	seeded bool
}

// Registry owns the mutable state of every known deployment.
// A single RWMutex guards the whole map so that a FilterEligible call sees a
// consistent snapshot across all candidates of a model. Iteration follows
// registration order, which keeps strategy tie-breaks reproducible.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string

	cooldown time.Duration
	recovery router.RecoveryPolicy
	window   time.Duration
	now      func() time.Time
}

// NewRegistry creates an empty registry using the cooldown, recovery and usage
// window settings from config. now may be nil, in which case time.Now is used.
func NewRegistry(config router.Config, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	recovery := config.Recovery
	if recovery == "" {
		recovery = router.RecoveryAuto
	}
	return &Registry{
		entries:  make(map[string]*entry),
		cooldown: config.CooldownPeriod,
		recovery: recovery,
		window:   config.UsageWindow,
		now:      now,
	}
}

// Add inserts or overwrites the deployment keyed by its identity. The entry
// starts healthy with no cooldown; request counters and rpm/tpm seeds are kept.
func (r *Registry) Add(d router.Deployment) error {
	if d.ModelName == "" {
		return llmerrors.NewInvalidDeploymentError(d.Key, "model_name is required")
	}
	d.IsHealthy = true
	d.CooldownUntil = time.Time{}
	r.put(d)
	return nil
}

// Restore inserts or overwrites a deployment exactly as captured in a snapshot,
// including its health and cooldown state.
func (r *Registry) Restore(d router.Deployment) error {
	if d.ModelName == "" {
		return llmerrors.NewInvalidDeploymentError(d.Key, "model_name is required")
	}
	r.put(d)
	return nil
}

func (r *Registry) put(d router.Deployment) {
	now := r.now()
	d = d.Clone()
	d.Key = d.RegistryKey()
	d.TotalRequests = saturatingAdd(d.SuccessfulRequests, d.FailedRequests)
	d.LastUpdated = now

	e := &entry{d: d, seeded: d.SuccessfulRequests > 0 || d.AvgLatencyMs != 0}
	if r.window > 0 {
		e.usage = newUsageWindow(r.window)
		e.usage.add(now, d.CurrentRPM, d.CurrentTPM)
		e.d.CurrentRPM, e.d.CurrentTPM = 0, 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[d.Key]; !exists {
		r.order = append(r.order, d.Key)
	}
	r.entries[d.Key] = e
}

// Remove deletes the entry for key and reports whether it existed.
func (r *Registry) Remove(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[key]; !ok {
		return false
	}
	delete(r.entries, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns a snapshot of the deployment stored under key.
func (r *Registry) Get(key string) (router.Deployment, bool) {
	now := r.now()

	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[key]
	if !ok {
		return router.Deployment{}, false
	}
	return r.snapshotLocked(e, now), true
}

// ListKeys returns every registered key.
func (r *Registry) ListKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, len(r.order))
	copy(keys, r.order)
	return keys
}

// Len returns the number of registered deployments.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// FilterEligible returns snapshots of every deployment serving modelName that is
// eligible right now. The result is empty, never nil-with-error, when none match.
func (r *Registry) FilterEligible(modelName string) []router.Deployment {
	now := r.now()

	r.mu.RLock()
	defer r.mu.RUnlock()

	eligible := make([]router.Deployment, 0, len(r.order))
	for _, key := range r.order {
		e := r.entries[key]
		if e.d.ModelName != modelName {
			continue
		}
		snap := r.snapshotLocked(e, now)
		if snap.Eligible(now) {
			eligible = append(eligible, snap)
		}
	}
	return eligible
}

// Snapshots returns a snapshot of every deployment in registration order.
func (r *Registry) Snapshots() []router.Deployment {
	now := r.now()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]router.Deployment, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.snapshotLocked(r.entries[key], now))
	}
	return out
}

// Counts returns the number of registered and currently eligible deployments.
func (r *Registry) Counts() (total, eligible int) {
	now := r.now()

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if r.snapshotLocked(e, now).Eligible(now) {
			eligible++
		}
	}
	return len(r.entries), eligible
}

// RecordSuccess folds a successful outcome into the deployment's stats and
// returns false if key is unknown.
func (r *Registry) RecordSuccess(key string, latencyMs float64, tokens uint64) bool {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		return false
	}
	r.settleLocked(e, now)

	d := &e.d
	d.AvgLatencyMs = ewma(d.AvgLatencyMs, latencyMs, e.seeded)
	e.seeded = true
	d.SuccessfulRequests = saturatingAdd(d.SuccessfulRequests, 1)
	d.TotalRequests = saturatingAdd(d.SuccessfulRequests, d.FailedRequests)

	if e.usage != nil {
		e.usage.add(now, 1, tokens)
	} else {
		d.CurrentRPM = saturatingAdd(d.CurrentRPM, 1)
		d.CurrentTPM = saturatingAdd(d.CurrentTPM, tokens)
	}
	d.LastUpdated = now
	return true
}

// Reconcile makes the registry match desired: unknown keys are added, known
// keys get their configuration replaced while keeping live stats, and keys
// missing from desired are removed.
func (r *Registry) Reconcile(desired []router.Deployment) (added, updated, removed []string, err error) {
	for _, d := range desired {
		if d.ModelName == "" {
			return nil, nil, nil, llmerrors.NewInvalidDeploymentError(d.Key, "model_name is required")
		}
	}

	now := r.now()
	want := make(map[string]bool, len(desired))
	var fresh []router.Deployment

	r.mu.Lock()
	for _, d := range desired {
		key := d.RegistryKey()
		want[key] = true
		e, ok := r.entries[key]
		if !ok {
			fresh = append(fresh, d)
			continue
		}
		cfg := d.Clone()
		e.d.ModelName = cfg.ModelName
		e.d.Params = cfg.Params
		e.d.ModelInfo = cfg.ModelInfo
		e.d.LastUpdated = now
		updated = append(updated, key)
	}
	for _, key := range append([]string(nil), r.order...) {
		if !want[key] {
			removed = append(removed, key)
		}
	}
	r.mu.Unlock()

	for _, key := range removed {
		r.Remove(key)
	}
	for _, d := range fresh {
		if err := r.Add(d); err != nil {
			return added, updated, removed, err
		}
		added = append(added, d.RegistryKey())
	}
	return added, updated, removed, nil
}

// snapshotLocked copies e, materialising windowed usage and the recovery policy.
// MUST be called with r.mu held.
func (r *Registry) snapshotLocked(e *entry, now time.Time) router.Deployment {
	d := e.d.Clone()
	if e.usage != nil {
		d.CurrentRPM, d.CurrentTPM = e.usage.totals(now)
	}
	if r.recoveredAt(&e.d, now) {
		d.IsHealthy = true
	}
	return d
}

func saturatingAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}
