package routers

import (
	llmerrors "github.com/blueberrycongee/llmroute/pkg/errors"
	"github.com/blueberrycongee/llmroute/pkg/router"
)

// ShuffleSelector picks a candidate uniformly at random.
type ShuffleSelector struct {
	rng *randSource
}

// NewShuffleSelector creates a shuffle selector backed by the process-wide generator.
func NewShuffleSelector() *ShuffleSelector {
	return &ShuffleSelector{}
}

func (s *ShuffleSelector) Strategy() router.Strategy { return router.StrategySimpleShuffle }

// Select returns a random member of candidates.
func (s *ShuffleSelector) Select(candidates []router.Deployment) (router.Deployment, error) {
	if len(candidates) == 0 {
		return router.Deployment{}, llmerrors.NewNoCandidatesError(s.Strategy().String())
	}
	return candidates[s.rng.intN(len(candidates))], nil
}
