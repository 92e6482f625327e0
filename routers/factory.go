package routers

import (
	"fmt"
	"math/rand/v2"

	"github.com/blueberrycongee/llmroute/pkg/router"
)

// NewSelector returns the selector implementing config.Strategy. rng seeds
// SimpleShuffle; nil means the process-wide generator.
func NewSelector(config router.Config, rng *rand.Rand) (Selector, error) {
	switch config.Strategy {
	case router.StrategySimpleShuffle:
		s := NewShuffleSelector()
		if rng != nil {
			s.rng = &randSource{rng: rng}
		}
		return s, nil
	case router.StrategyLeastBusy:
		return LeastBusySelector{}, nil
	case router.StrategyLatencyBased:
		return LatencySelector{}, nil
	case router.StrategyCostBased:
		return CostSelector{}, nil
	case router.StrategyUsageBasedV1:
		return UsageSelector{}, nil
	case router.StrategyUsageBasedV2:
		return NewUsageV2Selector(config.UsageLimits), nil
	case router.StrategyLeastBusyWithPenalty:
		return LeastBusyWithPenaltySelector{}, nil
	default:
		return nil, fmt.Errorf("unknown routing strategy: %s", config.Strategy)
	}
}

// AvailableStrategies returns a list of all available routing strategies.
func AvailableStrategies() []router.Strategy {
	return router.AvailableStrategies()
}

// IsValidStrategy checks if a strategy name, alias or code is valid.
func IsValidStrategy(s string) bool {
	_, err := router.ParseStrategy(s)
	return err == nil
}
