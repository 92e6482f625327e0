// Package routers implements the deployment registry, the selection strategies
// and the Router that ties them together. Router satisfies router.Router from
// pkg/router.
package routers

import (
	"github.com/blueberrycongee/llmroute/pkg/router"
)

// Re-export types from pkg/router for convenience
type (
	Config      = router.Config
	Deployment  = router.Deployment
	ModelInfo   = router.ModelInfo
	Request     = router.Request
	Stats       = router.Stats
	Strategy    = router.Strategy
	UsageLimits = router.UsageLimits
)

// Re-export constants
const (
	StrategySimpleShuffle        = router.StrategySimpleShuffle
	StrategyLeastBusy            = router.StrategyLeastBusy
	StrategyLatencyBased         = router.StrategyLatencyBased
	StrategyCostBased            = router.StrategyCostBased
	StrategyUsageBasedV1         = router.StrategyUsageBasedV1
	StrategyUsageBasedV2         = router.StrategyUsageBasedV2
	StrategyLeastBusyWithPenalty = router.StrategyLeastBusyWithPenalty
)

// Re-export functions
var DefaultConfig = router.DefaultConfig
