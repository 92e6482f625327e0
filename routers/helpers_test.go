package routers

import (
	"sync"
	"time"

	"github.com/blueberrycongee/llmroute/pkg/router"
)

// fakeClock is a manually advanced clock safe for concurrent use.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0).UTC()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func floatPtr(v float64) *float64 { return &v }

func dep(key, model string) router.Deployment {
	return router.Deployment{Key: key, ModelName: model}
}

func keysOf(ds []router.Deployment) []string {
	keys := make([]string, len(ds))
	for i, d := range ds {
		keys[i] = d.RegistryKey()
	}
	return keys
}
