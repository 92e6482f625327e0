package routers

import (
	"cmp"
	"math/rand/v2"
	"sync"

	llmerrors "github.com/blueberrycongee/llmroute/pkg/errors"
	"github.com/blueberrycongee/llmroute/pkg/router"
)

// Selector maps a non-empty candidate set to exactly one member of it.
// Implementations are pure apart from SimpleShuffle's randomness and never
// mutate the candidates.
type Selector interface {
	Strategy() router.Strategy
	Select(candidates []router.Deployment) (router.Deployment, error)
}

// randSource draws from the process-wide generator unless a seeded one was
// injected, in which case access is serialized.
type randSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (s *randSource) intN(n int) int {
	if s == nil || s.rng == nil {
		return rand.IntN(n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

// pickMin returns the candidate with the smallest score. Ties go to the first
// candidate encountered.
func pickMin[T cmp.Ordered](strategy router.Strategy, candidates []router.Deployment, score func(*router.Deployment) T) (router.Deployment, error) {
	if len(candidates) == 0 {
		return router.Deployment{}, llmerrors.NewNoCandidatesError(strategy.String())
	}

	best := 0
	bestScore := score(&candidates[0])
	for i := 1; i < len(candidates); i++ {
		if s := score(&candidates[i]); s < bestScore {
			best, bestScore = i, s
		}
	}
	return candidates[best], nil
}
