package router

import (
	"fmt"
	"strconv"
	"strings"
)

// Strategy identifies a routing policy. The set is closed; values outside it
// are rejected by the parse functions.
type Strategy int

const (
	// StrategySimpleShuffle picks uniformly at random.
	StrategySimpleShuffle Strategy = iota

	// StrategyLeastBusy picks the lowest current RPM.
	StrategyLeastBusy

	// StrategyLatencyBased picks the lowest average latency.
	// Deployments without samples report 0 and are preferred.
	StrategyLatencyBased

	// StrategyCostBased picks the lowest input+output cost per token.
	StrategyCostBased

	// StrategyUsageBasedV1 picks the lowest rpm + tpm.
	StrategyUsageBasedV1

	// StrategyUsageBasedV2 picks the lowest rpm/rpmLimit + tpm/tpmLimit.
	StrategyUsageBasedV2

	// StrategyLeastBusyWithPenalty picks the lowest rpm + avg latency / 100.
	StrategyLeastBusyWithPenalty
)

var strategyNames = map[Strategy]string{
	StrategySimpleShuffle:        "simple-shuffle",
	StrategyLeastBusy:            "least-busy",
	StrategyLatencyBased:         "latency-based-routing",
	StrategyCostBased:            "cost-based-routing",
	StrategyUsageBasedV1:         "usage-based-routing",
	StrategyUsageBasedV2:         "usage-based-routing-v2",
	StrategyLeastBusyWithPenalty: "least-busy-with-penalty",
}

// aliases accepted in addition to the canonical names.
var strategyAliases = map[string]Strategy{
	"lowest-latency": StrategyLatencyBased,
	"lowest-cost":    StrategyCostBased,
	"lowest-tpm-rpm": StrategyUsageBasedV1,
}

// String returns the canonical name.
func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// Code returns the integer code of the strategy.
func (s Strategy) Code() int {
	return int(s)
}

// Valid reports whether s is one of the known strategies.
func (s Strategy) Valid() bool {
	_, ok := strategyNames[s]
	return ok
}

// AvailableStrategies returns all strategies in code order.
func AvailableStrategies() []Strategy {
	return []Strategy{
		StrategySimpleShuffle,
		StrategyLeastBusy,
		StrategyLatencyBased,
		StrategyCostBased,
		StrategyUsageBasedV1,
		StrategyUsageBasedV2,
		StrategyLeastBusyWithPenalty,
	}
}

// ParseStrategy parses a canonical name, an alias, or a decimal integer code.
func ParseStrategy(s string) (Strategy, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for strategy, canonical := range strategyNames {
		if canonical == name {
			return strategy, nil
		}
	}
	if strategy, ok := strategyAliases[name]; ok {
		return strategy, nil
	}
	if code, err := strconv.Atoi(name); err == nil {
		return StrategyFromCode(code)
	}
	return 0, fmt.Errorf("unknown routing strategy %q, valid options: %v", s, AvailableStrategies())
}

// StrategyFromCode maps an integer code (0..6) to a strategy.
func StrategyFromCode(code int) (Strategy, error) {
	s := Strategy(code)
	if !s.Valid() {
		return 0, fmt.Errorf("unknown routing strategy code %d", code)
	}
	return s, nil
}

// ParseStrategyLenient parses like ParseStrategy but falls back to
// StrategyLeastBusy for unrecognized input. The boolean reports whether the
// input was recognized.
func ParseStrategyLenient(s string) (Strategy, bool) {
	strategy, err := ParseStrategy(s)
	if err != nil {
		return StrategyLeastBusy, false
	}
	return strategy, true
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown routing strategy code %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
