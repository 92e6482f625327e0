package routers

import (
	"github.com/blueberrycongee/llmroute/pkg/router"
)

// LatencySelector selects the deployment with the lowest average latency.
// A deployment without samples reports 0 and therefore wins until it has data,
// which gives cold deployments a chance to be measured.
type LatencySelector struct{}

func (LatencySelector) Strategy() router.Strategy { return router.StrategyLatencyBased }

func (s LatencySelector) Select(candidates []router.Deployment) (router.Deployment, error) {
	return pickMin(s.Strategy(), candidates, func(d *router.Deployment) float64 {
		return d.AvgLatencyMs
	})
}
