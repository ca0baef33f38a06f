package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProviders(openAICred, anthropicCred bool) []Provider {
	return []Provider{
		{ID: ProviderOpenAI, HasCredential: openAICred, Models: openAIModels},
		{ID: ProviderAnthropic, HasCredential: anthropicCred, Models: anthropicModels},
	}
}

func TestModelsForTierSortedByCost(t *testing.T) {
	reg := NewWithProviders(testProviders(true, true))

	models := reg.ModelsForTier(TierStandard)
	require.NotEmpty(t, models)
	for i := 1; i < len(models); i++ {
		assert.LessOrEqual(t, models[i-1].InputCostPer1K, models[i].InputCostPer1K,
			"tier models must be cost-ascending")
	}
	for _, m := range models {
		assert.Equal(t, TierStandard, m.Tier)
		assert.True(t, m.Has(CapChat))
	}
}

func TestModelsForTierSkipsUncredentialedProviders(t *testing.T) {
	reg := NewWithProviders(testProviders(true, false))

	for _, m := range reg.ModelsForTier(TierEconomy) {
		assert.Equal(t, ProviderOpenAI, m.Provider)
	}
}

func TestAllAvailableModelsCostAscending(t *testing.T) {
	reg := NewWithProviders(testProviders(true, true))

	models := reg.AllAvailableModels()
	require.NotEmpty(t, models)
	for i := 1; i < len(models); i++ {
		assert.LessOrEqual(t, models[i-1].InputCostPer1K, models[i].InputCostPer1K)
	}
}

func TestNoCredentialsMeansNoModels(t *testing.T) {
	reg := NewWithProviders(testProviders(false, false))

	assert.Empty(t, reg.ListAvailable())
	assert.Empty(t, reg.AllAvailableModels())
	assert.Empty(t, reg.ModelsForTier(TierEconomy))
}

func TestModelByID(t *testing.T) {
	reg := NewWithProviders(testProviders(true, false))

	m, ok := reg.ModelByID("gpt-4o-mini")
	require.True(t, ok)
	assert.Equal(t, ProviderOpenAI, m.Provider)
	assert.Equal(t, TierEconomy, m.Tier)

	// Known model, but its provider has no credential.
	_, ok = reg.ModelByID("claude-3-5-haiku-20241022")
	assert.False(t, ok)

	_, ok = reg.ModelByID("nonexistent-model")
	assert.False(t, ok)
}

func TestModelCost(t *testing.T) {
	m := Model{InputCostPer1K: 0.003, OutputCostPer1K: 0.015}
	// (1000 * 0.003 + 500 * 0.015) / 1000
	assert.InDelta(t, 0.0105, m.Cost(1000, 500), 1e-9)
	assert.Zero(t, m.Cost(0, 0))
}

func TestToolCapableModels(t *testing.T) {
	reg := NewWithProviders(testProviders(true, true))
	models := reg.ToolCapableModels()
	require.NotEmpty(t, models)
	for _, m := range models {
		assert.True(t, m.Has(CapTools))
	}
}
