package routers

import (
	"time"

	llmerrors "github.com/blueberrycongee/llmroute/pkg/errors"
	"github.com/blueberrycongee/llmroute/pkg/router"
)

// MarkUnhealthy records a failure for key: the deployment becomes unhealthy and
// enters cooldown until now+cooldown. It returns the updated snapshot, or false
// if key is unknown.
func (r *Registry) MarkUnhealthy(key string) (router.Deployment, bool) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		return router.Deployment{}, false
	}

	d := &e.d
	d.IsHealthy = false
	d.CooldownUntil = now.Add(r.cooldown)
	d.FailedRequests = saturatingAdd(d.FailedRequests, 1)
	d.TotalRequests = saturatingAdd(d.SuccessfulRequests, d.FailedRequests)
	d.LastUpdated = now

	return r.snapshotLocked(e, now), true
}

// MarkHealthy sets the health flag for key and stamps the health check time.
// An active cooldown is left in place and still expires only with time; an
// expired one is cleared.
func (r *Registry) MarkHealthy(key string) error {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		return llmerrors.NewDeploymentNotFoundError(key)
	}

	e.d.IsHealthy = true
	if !e.d.InCooldown(now) {
		e.d.CooldownUntil = time.Time{}
	}
	e.d.LastHealthCheck = now
	e.d.LastUpdated = now
	return nil
}

// RecordHealthCheck stamps the health check time for key without touching its
// health flag or cooldown.
func (r *Registry) RecordHealthCheck(key string) error {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		return llmerrors.NewDeploymentNotFoundError(key)
	}
	r.settleLocked(e, now)
	e.d.LastHealthCheck = now
	return nil
}

// recoveredAt reports whether the recovery policy treats d as healthy again at now.
// Only RecoveryAuto recovers, and only once a recorded cooldown has elapsed.
func (r *Registry) recoveredAt(d *router.Deployment, now time.Time) bool {
	if r.recovery != router.RecoveryAuto || d.IsHealthy {
		return false
	}
	return !d.CooldownUntil.IsZero() && !now.Before(d.CooldownUntil)
}

// settleLocked writes an automatic recovery back into the stored entry.
// MUST be called with r.mu locked.
func (r *Registry) settleLocked(e *entry, now time.Time) {
	if r.recoveredAt(&e.d, now) {
		e.d.IsHealthy = true
		e.d.CooldownUntil = time.Time{}
		e.d.LastHealthCheck = now
	}
}
