package main

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/llmroute/pkg/router"
)

func TestDeploymentReloader_Reconciles(t *testing.T) {
	cfg := testConfig(t, `
deployments:
  - key: east
    model_name: gpt-4
`)
	r, err := buildRouter(context.Background(), cfg, discardLogger(), nil)
	require.NoError(t, err)
	r.RecordSuccess("east", 100, 10)

	reloader := newDeploymentReloader(discardLogger(), r)
	reloader.Reload(testConfig(t, `
deployments:
  - key: east
    model_name: gpt-4
  - key: west
    model_name: gpt-4
`))

	assert.Equal(t, []string{"east", "west"}, r.ListDeploymentNames())
	east, err := r.GetDeployment("east")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), east.SuccessfulRequests)

	reloader.Reload(testConfig(t, `
deployments:
  - key: west
    model_name: gpt-4
`))
	assert.Equal(t, []string{"west"}, r.ListDeploymentNames())
}

func TestDeploymentReloader_KeepsStrategy(t *testing.T) {
	r, err := buildRouter(context.Background(), testConfig(t, "router:\n  routing_strategy: least-busy\n"), discardLogger(), nil)
	require.NoError(t, err)

	newDeploymentReloader(discardLogger(), r).Reload(testConfig(t, "router:\n  routing_strategy: simple-shuffle\n"))
	assert.Equal(t, router.StrategyLeastBusy, r.Config().Strategy)
}

func TestDeploymentReloader_ConcurrentReloadsAllApply(t *testing.T) {
	r, err := buildRouter(context.Background(), testConfig(t, ""), discardLogger(), nil)
	require.NoError(t, err)
	reloader := newDeploymentReloader(discardLogger(), r)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		cfg := testConfig(t, fmt.Sprintf("deployments:\n  - key: d%d\n    model_name: gpt-4\n", i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			reloader.Reload(cfg)
		}()
	}
	wg.Wait()

	// Every reload replaces the whole set, so exactly one survives.
	assert.Len(t, r.ListDeploymentNames(), 1)

	reloader.Reload(testConfig(t, "deployments:\n  - key: final\n    model_name: gpt-4\n"))
	assert.Equal(t, []string{"final"}, r.ListDeploymentNames())
}
