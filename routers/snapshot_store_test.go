package routers

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmerrors "github.com/blueberrycongee/llmroute/pkg/errors"
	"github.com/blueberrycongee/llmroute/pkg/router"
)

func snapshotFixture(now time.Time) []router.Deployment {
	return []router.Deployment{
		{
			Key:                "east",
			ModelName:          "gpt-4",
			Params:             map[string]any{"api_base": "https://east.example.com"},
			ModelInfo:          router.ModelInfo{InputCostPerToken: floatPtr(0.001)},
			TotalRequests:      3,
			SuccessfulRequests: 2,
			FailedRequests:     1,
			CurrentRPM:         2,
			CurrentTPM:         150,
			AvgLatencyMs:       87.5,
			IsHealthy:          false,
			CooldownUntil:      now.Add(time.Minute),
			LastUpdated:        now,
		},
		{Key: "west", ModelName: "gpt-4", IsHealthy: true, LastUpdated: now},
		{Key: "alpha", ModelName: "claude", IsHealthy: true, LastUpdated: now},
	}
}

func newRedisSnapshotStore(t *testing.T, opts ...RedisSnapshotOption) (*RedisSnapshotStore, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSnapshotStore(client, opts...), s
}

func TestSnapshotStores_RoundTrip(t *testing.T) {
	now := newFakeClock().Now()
	redisStore, _ := newRedisSnapshotStore(t)

	stores := map[string]SnapshotStore{
		"memory": NewMemorySnapshotStore(),
		"redis":  redisStore,
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			empty, err := store.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, empty)

			require.NoError(t, store.Save(ctx, snapshotFixture(now)))
			loaded, err := store.Load(ctx)
			require.NoError(t, err)

			require.Equal(t, []string{"east", "west", "alpha"}, keysOf(loaded), "order is preserved")
			east := loaded[0]
			assert.Equal(t, "gpt-4", east.ModelName)
			assert.Equal(t, "https://east.example.com", east.Params["api_base"])
			require.NotNil(t, east.ModelInfo.InputCostPerToken)
			assert.Equal(t, 0.001, *east.ModelInfo.InputCostPerToken)
			assert.Equal(t, uint64(2), east.SuccessfulRequests)
			assert.Equal(t, uint64(1), east.FailedRequests)
			assert.Equal(t, uint64(150), east.CurrentTPM)
			assert.Equal(t, 87.5, east.AvgLatencyMs)
			assert.False(t, east.IsHealthy)
			assert.True(t, east.CooldownUntil.Equal(now.Add(time.Minute)))

			// A second save replaces rather than merges.
			require.NoError(t, store.Save(ctx, snapshotFixture(now)[1:2]))
			loaded, err = store.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"west"}, keysOf(loaded))
		})
	}
}

func TestMemorySnapshotStore_IsolatesCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySnapshotStore()
	in := []router.Deployment{{Key: "a", ModelName: "m", Params: map[string]any{"k": "v"}}}

	require.NoError(t, store.Save(ctx, in))
	in[0].Params["k"] = "changed"

	out, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v", out[0].Params["k"])
}

func TestRedisSnapshotStore_LockHeld(t *testing.T) {
	store, s := newRedisSnapshotStore(t, WithKeyPrefix("test:registry"))
	require.NoError(t, s.Set("test:registry:lock", "someone-else"))

	err := store.Save(context.Background(), snapshotFixture(time.Now()))
	require.Error(t, err)
	assert.ErrorIs(t, err, llmerrors.ErrLock)
	assert.False(t, s.Exists("test:registry:deployments"), "nothing written without the lock")

	got, _ := s.Get("test:registry:lock")
	assert.Equal(t, "someone-else", got, "a foreign lock is never released")
}

func TestRedisSnapshotStore_ReleasesLock(t *testing.T) {
	store, s := newRedisSnapshotStore(t, WithLockTTL(time.Minute))

	require.NoError(t, store.Save(context.Background(), snapshotFixture(time.Now())))
	assert.False(t, s.Exists("llmroute:registry:lock"))
	assert.True(t, s.Exists("llmroute:registry:deployments"))

	require.NoError(t, store.Save(context.Background(), nil))
	assert.False(t, s.Exists("llmroute:registry:deployments"), "saving nothing clears the snapshot")
}

func TestRedisSnapshotStore_CorruptRecord(t *testing.T) {
	store, s := newRedisSnapshotStore(t)
	s.HSet("llmroute:registry:deployments", "bad", "{not json")

	_, err := store.Load(context.Background())
	assert.Error(t, err)
}

func TestRouter_CheckpointRestore(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	redisStore, _ := newRedisSnapshotStore(t)

	first := newTestRouter(t, clock, nil, WithSnapshotStore(redisStore))
	require.NoError(t, first.AddDeployment(dep("a", "m")))
	require.NoError(t, first.AddDeployment(dep("b", "m")))
	first.RecordSuccess("a", 120, 30)
	first.RecordFailure("b")
	require.NoError(t, first.Checkpoint(ctx))

	second := newTestRouter(t, clock, nil, WithSnapshotStore(redisStore))
	n, err := second.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, []string{"a", "b"}, second.ListDeploymentNames())
	a, err := second.GetDeployment("a")
	require.NoError(t, err)
	assert.Equal(t, 120.0, a.AvgLatencyMs)
	assert.Equal(t, uint64(30), a.CurrentTPM)

	assert.Equal(t, []string{"a"}, keysOf(second.EligibleDeployments("m")), "restored cooldown still applies")
	clock.Advance(time.Minute)
	assert.Equal(t, []string{"a", "b"}, keysOf(second.EligibleDeployments("m")))
}

func TestRouter_CheckpointWithoutStore(t *testing.T) {
	r := newTestRouter(t, newFakeClock(), nil)
	assert.ErrorIs(t, r.Checkpoint(context.Background()), ErrNoSnapshotStore)
	_, err := r.Restore(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshotStore)
}
