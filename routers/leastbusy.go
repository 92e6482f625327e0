package routers

import (
	"github.com/blueberrycongee/llmroute/pkg/router"
)

// LeastBusySelector selects the deployment with the lowest current RPM.
type LeastBusySelector struct{}

func (LeastBusySelector) Strategy() router.Strategy { return router.StrategyLeastBusy }

func (s LeastBusySelector) Select(candidates []router.Deployment) (router.Deployment, error) {
	return pickMin(s.Strategy(), candidates, func(d *router.Deployment) uint64 {
		return d.CurrentRPM
	})
}

// LeastBusyWithPenaltySelector blends load and latency into one score:
// current RPM plus a hundredth of the average latency.
type LeastBusyWithPenaltySelector struct{}

func (LeastBusyWithPenaltySelector) Strategy() router.Strategy {
	return router.StrategyLeastBusyWithPenalty
}

func (s LeastBusyWithPenaltySelector) Select(candidates []router.Deployment) (router.Deployment, error) {
	return pickMin(s.Strategy(), candidates, penaltyScore)
}

func penaltyScore(d *router.Deployment) float64 {
	return float64(d.CurrentRPM) + d.AvgLatencyMs/100
}
