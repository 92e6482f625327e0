package routers

import (
	"github.com/blueberrycongee/llmroute/pkg/router"
)

// UsageSelector selects the deployment with the lowest rpm + tpm.
// The sum is unweighted, so token volume dominates for chat workloads.
type UsageSelector struct{}

func (UsageSelector) Strategy() router.Strategy { return router.StrategyUsageBasedV1 }

func (s UsageSelector) Select(candidates []router.Deployment) (router.Deployment, error) {
	return pickMin(s.Strategy(), candidates, func(d *router.Deployment) uint64 {
		return saturatingAdd(d.CurrentRPM, d.CurrentTPM)
	})
}

// UsageV2Selector normalises usage against per-deployment capacity:
// rpm/rpmLimit + tpm/tpmLimit.
type UsageV2Selector struct {
	limits router.UsageLimits
}

// NewUsageV2Selector creates a selector using limits; zero fields fall back to
// router.DefaultUsageLimits.
func NewUsageV2Selector(limits router.UsageLimits) *UsageV2Selector {
	return &UsageV2Selector{limits: router.Config{UsageLimits: limits}.EffectiveUsageLimits()}
}

func (s *UsageV2Selector) Strategy() router.Strategy { return router.StrategyUsageBasedV2 }

// Limits returns the effective capacities.
func (s *UsageV2Selector) Limits() router.UsageLimits { return s.limits }

func (s *UsageV2Selector) Select(candidates []router.Deployment) (router.Deployment, error) {
	rpmLimit := float64(s.limits.RPM)
	tpmLimit := float64(s.limits.TPM)
	return pickMin(s.Strategy(), candidates, func(d *router.Deployment) float64 {
		return float64(d.CurrentRPM)/rpmLimit + float64(d.CurrentTPM)/tpmLimit
	})
}
