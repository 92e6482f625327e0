package routers

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmerrors "github.com/blueberrycongee/llmroute/pkg/errors"
	"github.com/blueberrycongee/llmroute/pkg/router"
)

func newTestRegistry(clock *fakeClock) *Registry {
	return NewRegistry(router.DefaultConfig(), clock.Now)
}

func TestRegistry_AddGetRemove(t *testing.T) {
	reg := newTestRegistry(newFakeClock())

	require.NoError(t, reg.Add(dep("a", "m")))
	require.NoError(t, reg.Add(router.Deployment{ModelName: "solo"}))

	got, ok := reg.Get("a")
	require.True(t, ok)
	assert.Equal(t, "m", got.ModelName)
	assert.True(t, got.IsHealthy)

	_, ok = reg.Get("solo")
	assert.True(t, ok, "key defaults to model name")

	assert.Equal(t, []string{"a", "solo"}, reg.ListKeys())
	assert.True(t, reg.Remove("a"))
	assert.False(t, reg.Remove("a"))
	assert.Equal(t, []string{"solo"}, reg.ListKeys())

	_, ok = reg.Get("a")
	assert.False(t, ok)
}

func TestRegistry_AddRejectsMissingModel(t *testing.T) {
	reg := newTestRegistry(newFakeClock())

	err := reg.Add(router.Deployment{Key: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, llmerrors.ErrInvalidDeployment)
	assert.Zero(t, reg.Len())
}

func TestRegistry_AddOverwritesInPlace(t *testing.T) {
	reg := newTestRegistry(newFakeClock())

	require.NoError(t, reg.Add(dep("a", "m")))
	require.NoError(t, reg.Add(dep("b", "m")))
	require.NoError(t, reg.Add(router.Deployment{Key: "a", ModelName: "m", CurrentRPM: 9}))

	assert.Equal(t, []string{"a", "b"}, reg.ListKeys(), "overwrite keeps position")
	got, _ := reg.Get("a")
	assert.Equal(t, uint64(9), got.CurrentRPM)
}

func TestRegistry_GetReturnsSnapshot(t *testing.T) {
	reg := newTestRegistry(newFakeClock())
	require.NoError(t, reg.Add(router.Deployment{
		Key:       "a",
		ModelName: "m",
		Params:    map[string]any{"api_base": "http://a"},
	}))

	snap, _ := reg.Get("a")
	snap.Params["api_base"] = "http://mutated"
	reg.RecordSuccess("a", 50, 1)

	again, _ := reg.Get("a")
	assert.Equal(t, "http://a", again.Params["api_base"])
	assert.Zero(t, snap.SuccessfulRequests, "earlier snapshot must not see later writes")
	assert.Equal(t, uint64(1), again.SuccessfulRequests)
}

func TestRegistry_FilterEligible(t *testing.T) {
	clock := newFakeClock()
	reg := newTestRegistry(clock)

	require.NoError(t, reg.Add(dep("a", "m")))
	require.NoError(t, reg.Add(dep("b", "other")))
	require.NoError(t, reg.Add(dep("c", "m")))

	assert.Equal(t, []string{"a", "c"}, keysOf(reg.FilterEligible("m")))

	reg.MarkUnhealthy("a")
	assert.Equal(t, []string{"c"}, keysOf(reg.FilterEligible("m")))

	empty := reg.FilterEligible("unknown")
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestRegistry_RecordSuccess_EMA(t *testing.T) {
	reg := newTestRegistry(newFakeClock())
	require.NoError(t, reg.Add(dep("a", "m")))

	require.True(t, reg.RecordSuccess("a", 100, 10))
	d, _ := reg.Get("a")
	assert.Equal(t, 100.0, d.AvgLatencyMs, "first sample is taken as-is")

	require.True(t, reg.RecordSuccess("a", 200, 20))
	d, _ = reg.Get("a")
	assert.InDelta(t, 110.0, d.AvgLatencyMs, 1e-9)
	assert.Equal(t, uint64(2), d.CurrentRPM)
	assert.Equal(t, uint64(30), d.CurrentTPM)
	assert.Equal(t, uint64(2), d.SuccessfulRequests)
	assert.Equal(t, uint64(2), d.TotalRequests)
}

func TestRegistry_RecordSuccess_EMASeedsWithZeroLatency(t *testing.T) {
	reg := newTestRegistry(newFakeClock())
	require.NoError(t, reg.Add(dep("a", "m")))

	require.True(t, reg.RecordSuccess("a", 0, 1))
	require.True(t, reg.RecordSuccess("a", 200, 1))

	d, _ := reg.Get("a")
	assert.InDelta(t, 20.0, d.AvgLatencyMs, 1e-9)
}

func TestRegistry_RecordSuccess_EMAKeepsRestoredAverage(t *testing.T) {
	reg := newTestRegistry(newFakeClock())
	require.NoError(t, reg.Restore(router.Deployment{Key: "a", ModelName: "m", IsHealthy: true, AvgLatencyMs: 100, SuccessfulRequests: 4}))

	require.True(t, reg.RecordSuccess("a", 200, 1))
	d, _ := reg.Get("a")
	assert.InDelta(t, 110.0, d.AvgLatencyMs, 1e-9)
}

func TestRegistry_RecordSuccess_UnknownKey(t *testing.T) {
	reg := newTestRegistry(newFakeClock())
	assert.False(t, reg.RecordSuccess("ghost", 1, 1))
	_, ok := reg.MarkUnhealthy("ghost")
	assert.False(t, ok)
	assert.Zero(t, reg.Len())
}

func TestRegistry_AddNormalizesTotal(t *testing.T) {
	reg := newTestRegistry(newFakeClock())
	require.NoError(t, reg.Add(router.Deployment{
		Key: "a", ModelName: "m",
		TotalRequests: 99, SuccessfulRequests: 3, FailedRequests: 2,
	}))

	d, _ := reg.Get("a")
	assert.Equal(t, uint64(5), d.TotalRequests)
}

func TestRegistry_TotalInvariantUnderConcurrency(t *testing.T) {
	reg := newTestRegistry(newFakeClock())
	require.NoError(t, reg.Add(dep("a", "m")))

	const workers, perWorker = 8, 250
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if (w+i)%3 == 0 {
					reg.MarkUnhealthy("a")
				} else {
					reg.RecordSuccess("a", float64(i), 1)
				}
				d, _ := reg.Get("a")
				if d.TotalRequests != d.SuccessfulRequests+d.FailedRequests {
					t.Errorf("invariant broken: %d != %d + %d", d.TotalRequests, d.SuccessfulRequests, d.FailedRequests)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	d, _ := reg.Get("a")
	assert.Equal(t, uint64(workers*perWorker), d.TotalRequests)
	assert.Equal(t, d.TotalRequests, d.SuccessfulRequests+d.FailedRequests)
}

func TestRegistry_Reconcile(t *testing.T) {
	reg := newTestRegistry(newFakeClock())
	require.NoError(t, reg.Add(dep("keep", "m")))
	require.NoError(t, reg.Add(dep("drop", "m")))
	reg.RecordSuccess("keep", 100, 5)
	reg.MarkUnhealthy("keep")

	added, updated, removed, err := reg.Reconcile([]router.Deployment{
		{Key: "keep", ModelName: "m", ModelInfo: router.ModelInfo{InputCostPerToken: floatPtr(0.5)}},
		{Key: "new", ModelName: "m"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, added)
	assert.Equal(t, []string{"keep"}, updated)
	assert.Equal(t, []string{"drop"}, removed)

	keep, _ := reg.Get("keep")
	assert.Equal(t, uint64(1), keep.SuccessfulRequests, "stats survive reconcile")
	assert.Equal(t, uint64(1), keep.FailedRequests)
	assert.False(t, keep.Eligible(time.Unix(1_700_000_000, 0)), "cooldown survives reconcile")
	require.NotNil(t, keep.ModelInfo.InputCostPerToken)
	assert.Equal(t, 0.5, *keep.ModelInfo.InputCostPerToken)

	assert.Equal(t, []string{"keep", "new"}, reg.ListKeys())
}

func TestRegistry_ReconcileRejectsInvalidWithoutChanges(t *testing.T) {
	reg := newTestRegistry(newFakeClock())
	require.NoError(t, reg.Add(dep("a", "m")))

	_, _, _, err := reg.Reconcile([]router.Deployment{{Key: "b"}})
	assert.ErrorIs(t, err, llmerrors.ErrInvalidDeployment)
	assert.Equal(t, []string{"a"}, reg.ListKeys())
}

func TestRegistry_Counts(t *testing.T) {
	reg := newTestRegistry(newFakeClock())
	require.NoError(t, reg.Add(dep("a", "m")))
	require.NoError(t, reg.Add(dep("b", "m")))
	reg.MarkUnhealthy("b")

	total, eligible := reg.Counts()
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, eligible)
}

func TestRegistry_UsageWindow(t *testing.T) {
	clock := newFakeClock()
	cfg := router.DefaultConfig()
	cfg.UsageWindow = time.Minute
	reg := NewRegistry(cfg, clock.Now)

	require.NoError(t, reg.Add(router.Deployment{Key: "a", ModelName: "m", CurrentRPM: 4, CurrentTPM: 40}))
	for i := 0; i < 3; i++ {
		reg.RecordSuccess("a", 10, 10)
	}

	d, _ := reg.Get("a")
	assert.Equal(t, uint64(7), d.CurrentRPM)
	assert.Equal(t, uint64(70), d.CurrentTPM)

	clock.Advance(30 * time.Second)
	reg.RecordSuccess("a", 10, 5)
	d, _ = reg.Get("a")
	assert.Equal(t, uint64(8), d.CurrentRPM)
	assert.Equal(t, uint64(75), d.CurrentTPM)

	clock.Advance(45 * time.Second)
	d, _ = reg.Get("a")
	assert.Equal(t, uint64(1), d.CurrentRPM, "only the later bucket is still inside the window")
	assert.Equal(t, uint64(5), d.CurrentTPM)

	clock.Advance(2 * time.Minute)
	d, _ = reg.Get("a")
	assert.Zero(t, d.CurrentRPM)
	assert.Zero(t, d.CurrentTPM)
}

func TestSaturatingAdd(t *testing.T) {
	const top = ^uint64(0)
	assert.Equal(t, uint64(5), saturatingAdd(2, 3))
	assert.Equal(t, top, saturatingAdd(top, 1))
	assert.Equal(t, top, saturatingAdd(top-1, 5))
}
