// Package registry holds the static catalog of LLM providers and models.
//
// DESIGN: The catalog is built once from the startup config and never mutated.
// Availability is decided purely by credential presence; there is no health
// probing. Model selection helpers always return cost-ascending slices so the
// router's cascade ordering falls out of the catalog for free.
package registry

import (
	"sort"

	"github.com/freightdesk/dispatch-ai/internal/config"
)

// ProviderID identifies an LLM vendor. Adding a provider is a compile-time
// checked change: the llm package switches exhaustively over this type.
type ProviderID string

const (
	ProviderOpenAI    ProviderID = "openai"
	ProviderAnthropic ProviderID = "anthropic"
)

// Tier is a quality/cost classification required by a query type.
type Tier string

const (
	TierEconomy  Tier = "economy"
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
)

// Capability tags what a model can do.
type Capability string

const (
	CapChat       Capability = "chat"
	CapCompletion Capability = "completion"
	CapVision     Capability = "vision"
	CapTools      Capability = "tools"
)

// Model is one selectable model with its pricing and capability profile.
// Costs are USD per 1000 tokens.
type Model struct {
	ID              string
	Provider        ProviderID
	InputCostPer1K  float64
	OutputCostPer1K float64
	MaxContext      int
	LatencyMs       int
	Tier            Tier
	Capabilities    []Capability
}

// Has reports whether the model carries the given capability tag.
func (m Model) Has(cap Capability) bool {
	for _, c := range m.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// Cost computes the USD cost of a call from token counts:
// (input x cost_in + output x cost_out) / 1000.
func (m Model) Cost(inputTokens, outputTokens int64) float64 {
	return (float64(inputTokens)*m.InputCostPer1K + float64(outputTokens)*m.OutputCostPer1K) / 1000
}

// Provider is one configured vendor with its models.
type Provider struct {
	ID            ProviderID
	BaseURL       string
	HasCredential bool
	Models        []Model
}

// Registry is the immutable provider/model catalog.
type Registry struct {
	providers []Provider
	byID      map[string]Model
}

// New builds the catalog from config. Credential presence is resolved here,
// once, so callers never consult the environment.
func New(cfg *config.Config) *Registry {
	return NewWithProviders([]Provider{
		{
			ID:            ProviderOpenAI,
			BaseURL:       cfg.Providers.OpenAI.BaseURL,
			HasCredential: cfg.Providers.OpenAI.HasCredential(),
			Models:        openAIModels,
		},
		{
			ID:            ProviderAnthropic,
			BaseURL:       cfg.Providers.Anthropic.BaseURL,
			HasCredential: cfg.Providers.Anthropic.HasCredential(),
			Models:        anthropicModels,
		},
	})
}

// NewWithProviders builds a registry from an explicit provider list. Tests
// use this to control the catalog directly.
func NewWithProviders(providers []Provider) *Registry {
	byID := make(map[string]Model)
	for _, p := range providers {
		for _, m := range p.Models {
			byID[m.ID] = m
		}
	}
	return &Registry{providers: providers, byID: byID}
}

// ListAvailable returns providers whose credential is present.
func (r *Registry) ListAvailable() []Provider {
	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		if p.HasCredential {
			out = append(out, p)
		}
	}
	return out
}

// ModelsForTier returns chat-capable models of available providers matching
// the tier, sorted by input cost ascending.
func (r *Registry) ModelsForTier(tier Tier) []Model {
	var out []Model
	for _, p := range r.ListAvailable() {
		for _, m := range p.Models {
			if m.Tier == tier && m.Has(CapChat) {
				out = append(out, m)
			}
		}
	}
	sortByCost(out)
	return out
}

// AllAvailableModels returns every chat-capable model of available providers,
// cost ascending. Used by the router's degraded-but-available fallback.
func (r *Registry) AllAvailableModels() []Model {
	var out []Model
	for _, p := range r.ListAvailable() {
		for _, m := range p.Models {
			if m.Has(CapChat) {
				out = append(out, m)
			}
		}
	}
	sortByCost(out)
	return out
}

// ToolCapableModels returns available models that support function calling,
// cost ascending.
func (r *Registry) ToolCapableModels() []Model {
	var out []Model
	for _, p := range r.ListAvailable() {
		for _, m := range p.Models {
			if m.Has(CapTools) {
				out = append(out, m)
			}
		}
	}
	sortByCost(out)
	return out
}

// ModelByID resolves a model id against the full catalog. The second return
// is false when the id is unknown or its provider has no credential.
func (r *Registry) ModelByID(id string) (Model, bool) {
	m, ok := r.byID[id]
	if !ok {
		return Model{}, false
	}
	for _, p := range r.ListAvailable() {
		if p.ID == m.Provider {
			return m, true
		}
	}
	return Model{}, false
}

func sortByCost(models []Model) {
	sort.SliceStable(models, func(i, j int) bool {
		return models[i].InputCostPer1K < models[j].InputCostPer1K
	})
}
