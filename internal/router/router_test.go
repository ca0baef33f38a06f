package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freightdesk/dispatch-ai/internal/config"
	"github.com/freightdesk/dispatch-ai/internal/ledger"
	"github.com/freightdesk/dispatch-ai/internal/llm"
	"github.com/freightdesk/dispatch-ai/internal/registry"
)

type memStore struct {
	recs []ledger.UsageRecord
}

func (m *memStore) InsertUsageEvent(_ context.Context, rec ledger.UsageRecord) error {
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memStore) UsageEventsSince(_ context.Context, since time.Time) ([]ledger.UsageRecord, error) {
	return m.recs, nil
}

// fakeClient answers Complete per model id: an entry in failing makes that
// model error; anything else succeeds.
type fakeClient struct {
	provider registry.ProviderID
	failing  map[string]error
	calls    []string
}

func (f *fakeClient) Provider() registry.ProviderID { return f.provider }

func (f *fakeClient) NewConversation(_ llm.ChatRequest) llm.Conversation { return nil }

func (f *fakeClient) Complete(_ context.Context, req llm.CompletionRequest) (*llm.Completion, error) {
	f.calls = append(f.calls, req.Model)
	if err, ok := f.failing[req.Model]; ok {
		return nil, err
	}
	return &llm.Completion{Text: "answer from " + req.Model, InputTokens: 1000, OutputTokens: 100}, nil
}

func chatModels(provider registry.ProviderID, tier registry.Tier, idsAndCosts ...any) []registry.Model {
	var out []registry.Model
	for i := 0; i < len(idsAndCosts); i += 2 {
		out = append(out, registry.Model{
			ID:             idsAndCosts[i].(string),
			Provider:       provider,
			InputCostPer1K: idsAndCosts[i+1].(float64),
			Tier:           tier,
			Capabilities:   []registry.Capability{registry.CapChat, registry.CapTools},
		})
	}
	return out
}

func newTestRouter(reg *registry.Registry, client *fakeClient, store *memStore) *Router {
	led := ledger.New(store, nil, config.BudgetConfig{MonthlyUSD: 100})
	factory := func(registry.ProviderID) (llm.Client, error) { return client, nil }
	return New(reg, factory, led, nil)
}

func TestCascadeIsCostAscending(t *testing.T) {
	reg := registry.NewWithProviders([]registry.Provider{{
		ID:            registry.ProviderOpenAI,
		HasCredential: true,
		Models: chatModels(registry.ProviderOpenAI, registry.TierEconomy,
			"expensive", 0.003, "cheap", 0.001, "mid", 0.002),
	}})
	r := newTestRouter(reg, &fakeClient{provider: registry.ProviderOpenAI}, &memStore{})

	cascade, degraded := r.Cascade(Request{QueryType: QueryRatePrediction})
	require.Len(t, cascade, 3)
	assert.False(t, degraded)
	assert.Equal(t, "cheap", cascade[0].ID)
	assert.Equal(t, "mid", cascade[1].ID)
	assert.Equal(t, "expensive", cascade[2].ID)
}

func TestCascadePreferredModelBecomesHead(t *testing.T) {
	reg := registry.NewWithProviders([]registry.Provider{{
		ID:            registry.ProviderOpenAI,
		HasCredential: true,
		Models: chatModels(registry.ProviderOpenAI, registry.TierEconomy,
			"cheap", 0.001, "mid", 0.002),
	}})
	r := newTestRouter(reg, &fakeClient{provider: registry.ProviderOpenAI}, &memStore{})

	cascade, degraded := r.Cascade(Request{QueryType: QueryRatePrediction, Model: "mid"})
	require.Len(t, cascade, 2)
	assert.False(t, degraded)
	assert.Equal(t, "mid", cascade[0].ID, "preferred model leads the cascade")
	assert.Equal(t, "cheap", cascade[1].ID)
}

func TestRouteFirstCandidateWins(t *testing.T) {
	reg := registry.NewWithProviders([]registry.Provider{{
		ID:            registry.ProviderOpenAI,
		HasCredential: true,
		Models: chatModels(registry.ProviderOpenAI, registry.TierEconomy,
			"cheap", 0.001, "mid", 0.002),
	}})
	client := &fakeClient{provider: registry.ProviderOpenAI}
	store := &memStore{}
	r := newTestRouter(reg, client, store)

	resp, err := r.Route(context.Background(), Request{QueryType: QueryRatePrediction, Source: "api"})
	require.NoError(t, err)

	assert.Equal(t, "cheap", resp.Model)
	assert.False(t, resp.UsedFallback)
	assert.Equal(t, "answer from cheap", resp.Content)
	assert.InDelta(t, 0.001, resp.CostUSD, 1e-9) // 1000 input tokens at 0.001/1k

	require.Len(t, store.recs, 1)
	assert.True(t, store.recs[0].Success)
	assert.Equal(t, "rate_prediction", store.recs[0].QueryType)
	assert.Equal(t, "api", store.recs[0].Source)
}

func TestRouteCascadesOnFailure(t *testing.T) {
	reg := registry.NewWithProviders([]registry.Provider{{
		ID:            registry.ProviderOpenAI,
		HasCredential: true,
		Models: chatModels(registry.ProviderOpenAI, registry.TierEconomy,
			"cheap", 0.001, "mid", 0.002),
	}})
	client := &fakeClient{
		provider: registry.ProviderOpenAI,
		failing:  map[string]error{"cheap": errors.New("rate limited")},
	}
	store := &memStore{}
	r := newTestRouter(reg, client, store)

	resp, err := r.Route(context.Background(), Request{QueryType: QueryRatePrediction})
	require.NoError(t, err)

	assert.Equal(t, "mid", resp.Model)
	assert.True(t, resp.UsedFallback)
	assert.Equal(t, []string{"cheap", "mid"}, client.calls, "strictly sequential, no same-model retry")

	// Exactly one record per attempt: one failure then one success.
	require.Len(t, store.recs, 2)
	assert.False(t, store.recs[0].Success)
	assert.Zero(t, store.recs[0].InputTokens)
	assert.Zero(t, store.recs[0].CostUSD)
	assert.Equal(t, "rate limited", store.recs[0].ErrorClass)
	assert.True(t, store.recs[1].Success)
}

func TestRouteFailureErrorClassTruncated(t *testing.T) {
	reg := registry.NewWithProviders([]registry.Provider{{
		ID:            registry.ProviderOpenAI,
		HasCredential: true,
		Models:        chatModels(registry.ProviderOpenAI, registry.TierEconomy, "cheap", 0.001),
	}})
	longErr := errors.New(strings.Repeat("x", 500))
	client := &fakeClient{provider: registry.ProviderOpenAI, failing: map[string]error{"cheap": longErr}}
	store := &memStore{}
	r := newTestRouter(reg, client, store)

	_, err := r.Route(context.Background(), Request{QueryType: QueryRatePrediction})
	require.Error(t, err)
	require.Len(t, store.recs, 1)
	assert.Len(t, store.recs[0].ErrorClass, config.MaxErrorClassLen)
}

func TestRouteAllCandidatesFailTerminal(t *testing.T) {
	reg := registry.NewWithProviders([]registry.Provider{{
		ID:            registry.ProviderOpenAI,
		HasCredential: true,
		Models: chatModels(registry.ProviderOpenAI, registry.TierEconomy,
			"cheap", 0.001, "mid", 0.002),
	}})
	client := &fakeClient{
		provider: registry.ProviderOpenAI,
		failing: map[string]error{
			"cheap": errors.New("down"),
			"mid":   fmt.Errorf("also down"),
		},
	}
	store := &memStore{}
	r := newTestRouter(reg, client, store)

	_, err := r.Route(context.Background(), Request{QueryType: QueryRatePrediction})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "also down", "terminal error names the last failure")
	assert.Len(t, store.recs, 2, "every attempt recorded")
}

func TestRouteEmptyTierDegradesToAnyModel(t *testing.T) {
	// Only a premium-tier provider is credentialed; rate_prediction needs
	// economy.
	reg := registry.NewWithProviders([]registry.Provider{{
		ID:            registry.ProviderAnthropic,
		HasCredential: true,
		Models: chatModels(registry.ProviderAnthropic, registry.TierPremium,
			"premium-big", 0.015, "premium-small", 0.003),
	}})
	client := &fakeClient{provider: registry.ProviderAnthropic}
	r := newTestRouter(reg, client, &memStore{})

	resp, err := r.Route(context.Background(), Request{QueryType: QueryRatePrediction})
	require.NoError(t, err)
	assert.Equal(t, "premium-small", resp.Model, "degraded cascade is still cost-ascending")
	assert.True(t, resp.UsedFallback, "tier degradation is reported as fallback")
}

func TestRouteNoModelsAnywhere(t *testing.T) {
	reg := registry.NewWithProviders(nil)
	r := newTestRouter(reg, &fakeClient{}, &memStore{})

	_, err := r.Route(context.Background(), Request{QueryType: QueryChat})
	require.Error(t, err)
}

func TestTierMapping(t *testing.T) {
	assert.Equal(t, registry.TierEconomy, tierFor(QueryRatePrediction))
	assert.Equal(t, registry.TierEconomy, tierFor(QueryDocumentExtraction))
	assert.Equal(t, registry.TierStandard, tierFor(QueryChat))
	assert.Equal(t, registry.TierStandard, tierFor(QueryLoadMatching))
	assert.Equal(t, registry.TierPremium, tierFor(QueryDisputeAnalysis))
	assert.Equal(t, registry.TierPremium, tierFor(QueryContractReview))
	assert.Equal(t, registry.TierStandard, tierFor(QueryType("unknown")))
}
