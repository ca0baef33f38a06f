package registry

// Static model catalog. Costs are USD per 1000 tokens; latency figures are
// rough p50 estimates used only for display.

var openAIModels = []Model{
	{
		ID:              "gpt-4o-mini",
		Provider:        ProviderOpenAI,
		InputCostPer1K:  0.00015,
		OutputCostPer1K: 0.0006,
		MaxContext:      128_000,
		LatencyMs:       800,
		Tier:            TierEconomy,
		Capabilities:    []Capability{CapChat, CapCompletion, CapVision, CapTools},
	},
	{
		ID:              "gpt-4o",
		Provider:        ProviderOpenAI,
		InputCostPer1K:  0.0025,
		OutputCostPer1K: 0.01,
		MaxContext:      128_000,
		LatencyMs:       1500,
		Tier:            TierStandard,
		Capabilities:    []Capability{CapChat, CapCompletion, CapVision, CapTools},
	},
	{
		ID:              "gpt-4.1",
		Provider:        ProviderOpenAI,
		InputCostPer1K:  0.002,
		OutputCostPer1K: 0.008,
		MaxContext:      1_000_000,
		LatencyMs:       1800,
		Tier:            TierPremium,
		Capabilities:    []Capability{CapChat, CapCompletion, CapVision, CapTools},
	},
}

var anthropicModels = []Model{
	{
		ID:              "claude-3-5-haiku-20241022",
		Provider:        ProviderAnthropic,
		InputCostPer1K:  0.001,
		OutputCostPer1K: 0.005,
		MaxContext:      200_000,
		LatencyMs:       900,
		Tier:            TierEconomy,
		Capabilities:    []Capability{CapChat, CapCompletion, CapTools},
	},
	{
		ID:              "claude-sonnet-4-0",
		Provider:        ProviderAnthropic,
		InputCostPer1K:  0.003,
		OutputCostPer1K: 0.015,
		MaxContext:      200_000,
		LatencyMs:       1600,
		Tier:            TierStandard,
		Capabilities:    []Capability{CapChat, CapCompletion, CapVision, CapTools},
	},
	{
		ID:              "claude-opus-4-0",
		Provider:        ProviderAnthropic,
		InputCostPer1K:  0.015,
		OutputCostPer1K: 0.075,
		MaxContext:      200_000,
		LatencyMs:       2500,
		Tier:            TierPremium,
		Capabilities:    []Capability{CapChat, CapCompletion, CapVision, CapTools},
	},
}
