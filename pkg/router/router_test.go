package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ptr(v float64) *float64 { return &v }

func TestDeployment_RegistryKey(t *testing.T) {
	assert.Equal(t, "gpt-4", Deployment{ModelName: "gpt-4"}.RegistryKey())
	assert.Equal(t, "east", Deployment{Key: "east", ModelName: "gpt-4"}.RegistryKey())
}

func TestDeployment_Eligible(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name string
		d    Deployment
		want bool
	}{
		{"healthy no cooldown", Deployment{IsHealthy: true}, true},
		{"healthy cooldown active", Deployment{IsHealthy: true, CooldownUntil: now.Add(time.Second)}, false},
		{"healthy cooldown expired", Deployment{IsHealthy: true, CooldownUntil: now.Add(-time.Second)}, true},
		{"healthy cooldown ends now", Deployment{IsHealthy: true, CooldownUntil: now}, true},
		{"unhealthy no cooldown", Deployment{IsHealthy: false}, false},
		{"unhealthy cooldown expired", Deployment{IsHealthy: false, CooldownUntil: now.Add(-time.Second)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.Eligible(now))
		})
	}
}

func TestModelInfo_Cost(t *testing.T) {
	assert.False(t, ModelInfo{}.HasCost())
	assert.Zero(t, ModelInfo{}.CostPerToken())

	onlyInput := ModelInfo{InputCostPerToken: ptr(0.002)}
	assert.True(t, onlyInput.HasCost())
	assert.InDelta(t, 0.002, onlyInput.CostPerToken(), 1e-12)

	both := ModelInfo{InputCostPerToken: ptr(0.001), OutputCostPerToken: ptr(0.003)}
	assert.InDelta(t, 0.004, both.CostPerToken(), 1e-12)
}

func TestDeployment_CloneIsIndependent(t *testing.T) {
	orig := Deployment{
		ModelName: "m",
		Params:    map[string]any{"api_base": "http://a"},
		ModelInfo: ModelInfo{InputCostPerToken: ptr(1), Extra: map[string]any{"mode": "chat"}},
	}
	clone := orig.Clone()
	clone.Params["api_base"] = "http://b"
	clone.ModelInfo.Extra["mode"] = "embedding"
	*clone.ModelInfo.InputCostPerToken = 2

	assert.Equal(t, "http://a", orig.Params["api_base"])
	assert.Equal(t, "chat", orig.ModelInfo.Extra["mode"])
	assert.Equal(t, 1.0, *orig.ModelInfo.InputCostPerToken)
}

func TestConfig_EffectiveUsageLimits(t *testing.T) {
	cfg := Config{UsageLimits: UsageLimits{RPM: 50}}
	limits := cfg.EffectiveUsageLimits()
	assert.Equal(t, uint64(50), limits.RPM)
	assert.Equal(t, DefaultUsageLimits().TPM, limits.TPM)

	assert.Equal(t, DefaultUsageLimits(), Config{}.EffectiveUsageLimits())
}
