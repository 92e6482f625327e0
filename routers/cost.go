package routers

import (
	llmerrors "github.com/blueberrycongee/llmroute/pkg/errors"
	"github.com/blueberrycongee/llmroute/pkg/router"
)

// CostSelector selects the deployment with the lowest cost per token.
// Cost is calculated as: input_cost_per_token + output_cost_per_token, with a
// missing field counted as 0.
//
// When no candidate carries any cost field the first candidate is returned.
type CostSelector struct{}

func (CostSelector) Strategy() router.Strategy { return router.StrategyCostBased }

func (s CostSelector) Select(candidates []router.Deployment) (router.Deployment, error) {
	if len(candidates) == 0 {
		return router.Deployment{}, llmerrors.NewNoCandidatesError(s.Strategy().String())
	}

	priced := false
	for i := range candidates {
		if candidates[i].ModelInfo.HasCost() {
			priced = true
			break
		}
	}
	if !priced {
		return candidates[0], nil
	}

	return pickMin(s.Strategy(), candidates, func(d *router.Deployment) float64 {
		return d.ModelInfo.CostPerToken()
	})
}
