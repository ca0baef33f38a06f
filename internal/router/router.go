// Package router turns a typed query into a cost-ordered provider cascade.
//
// DESIGN: No retry of the same model. A failing candidate writes its failure
// record, then the cascade moves to the next cheapest capable model; the
// cascade itself is the retry policy. Attempts are strictly sequential: a
// candidate's ledger write completes before the next candidate is tried.
package router

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freightdesk/dispatch-ai/internal/config"
	"github.com/freightdesk/dispatch-ai/internal/ledger"
	"github.com/freightdesk/dispatch-ai/internal/llm"
	"github.com/freightdesk/dispatch-ai/internal/registry"
	"github.com/freightdesk/dispatch-ai/internal/telemetry"
	"github.com/freightdesk/dispatch-ai/internal/utils"
)

// QueryType classifies a structured query and decides its model tier.
type QueryType string

const (
	QueryRatePrediction     QueryType = "rate_prediction"
	QueryDocumentExtraction QueryType = "document_extraction"
	QueryLoadMatching       QueryType = "load_matching"
	QueryEmailDraft         QueryType = "email_draft"
	QueryChat               QueryType = "chat"
	QueryDisputeAnalysis    QueryType = "dispute_analysis"
	QueryContractReview     QueryType = "contract_review"
	QueryGeneral            QueryType = "general"
)

// tierFor maps every query type to exactly one required tier. Unknown types
// get the standard tier.
func tierFor(qt QueryType) registry.Tier {
	switch qt {
	case QueryRatePrediction, QueryDocumentExtraction:
		return registry.TierEconomy
	case QueryDisputeAnalysis, QueryContractReview:
		return registry.TierPremium
	case QueryLoadMatching, QueryEmailDraft, QueryChat, QueryGeneral:
		return registry.TierStandard
	default:
		return registry.TierStandard
	}
}

// Request is one single-shot structured query.
type Request struct {
	QueryType   QueryType
	System      string
	Messages    []llm.Message
	Model       string // optional explicit preference; becomes cascade head
	MaxTokens   int
	Temperature float64
	UserID      string
	Source      string
}

// Response is the winning attempt's result.
type Response struct {
	Content      string
	Model        string
	Provider     registry.ProviderID
	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
	LatencyMs    int64
	UsedFallback bool
}

// Router executes the cascade.
type Router struct {
	registry  *registry.Registry
	clients   llm.Factory
	ledger    *ledger.Ledger
	telemetry *telemetry.Tracker
}

// New creates a router.
func New(reg *registry.Registry, clients llm.Factory, led *ledger.Ledger, tracker *telemetry.Tracker) *Router {
	return &Router{registry: reg, clients: clients, ledger: led, telemetry: tracker}
}

// Cascade builds the ordered candidate list for a request: the explicitly
// preferred model first if it resolves, then the tier's models cost-ascending
// excluding the head. An empty tier degrades to every available model
// cost-ascending rather than failing outright; the second return reports that
// degradation.
func (r *Router) Cascade(req Request) ([]registry.Model, bool) {
	var cascade []registry.Model
	if req.Model != "" {
		if head, ok := r.registry.ModelByID(req.Model); ok {
			cascade = append(cascade, head)
		}
	}

	tierModels := r.registry.ModelsForTier(tierFor(req.QueryType))
	if len(tierModels) == 0 && len(cascade) == 0 {
		log.Warn().
			Str("query_type", string(req.QueryType)).
			Str("tier", string(tierFor(req.QueryType))).
			Msg("router: no models in required tier, degrading to any available model")
		return r.registry.AllAvailableModels(), true
	}
	for _, m := range tierModels {
		if len(cascade) > 0 && m.ID == cascade[0].ID {
			continue
		}
		cascade = append(cascade, m)
	}
	return cascade, false
}

// Route runs the cascade sequentially until a candidate succeeds. Every
// attempt writes exactly one usage record. A fully exhausted cascade is the
// only terminal error.
func (r *Router) Route(ctx context.Context, req Request) (*Response, error) {
	cascade, degraded := r.Cascade(req)
	if len(cascade) == 0 {
		return nil, fmt.Errorf("router: no available models for query type %q", req.QueryType)
	}

	var lastErr error
	for i, model := range cascade {
		resp, err := r.attempt(ctx, req, model, i)
		if err != nil {
			lastErr = err
			continue
		}
		resp.UsedFallback = degraded || i > 0
		return resp, nil
	}
	return nil, fmt.Errorf("router: all %d candidates failed for query type %q: %w",
		len(cascade), req.QueryType, lastErr)
}

func (r *Router) attempt(ctx context.Context, req Request, model registry.Model, position int) (*Response, error) {
	client, err := r.clients(model.Provider)
	if err != nil {
		r.recordFailure(ctx, req, model, position, 0, err)
		return nil, err
	}

	start := time.Now()
	completion, err := client.Complete(ctx, llm.CompletionRequest{
		Model:       model.ID,
		System:      req.System,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	latency := time.Since(start).Milliseconds()

	if err != nil {
		log.Warn().
			Err(err).
			Str("model", model.ID).
			Int("position", position).
			Msg("router: cascade attempt failed")
		r.recordFailure(ctx, req, model, position, latency, err)
		return nil, err
	}

	cost := model.Cost(completion.InputTokens, completion.OutputTokens)
	r.ledger.Record(ctx, ledger.UsageRecord{
		Provider:     string(model.Provider),
		Model:        model.ID,
		InputTokens:  completion.InputTokens,
		OutputTokens: completion.OutputTokens,
		CostUSD:      cost,
		LatencyMs:    latency,
		QueryType:    string(req.QueryType),
		Source:       req.Source,
		Success:      true,
		UserID:       req.UserID,
	})
	if r.telemetry != nil {
		r.telemetry.RecordAttempt(telemetry.AttemptEvent{
			QueryType: string(req.QueryType),
			Provider:  string(model.Provider),
			Model:     model.ID,
			Position:  position,
			Success:   true,
			LatencyMs: latency,
		})
	}

	return &Response{
		Content:      completion.Text,
		Model:        model.ID,
		Provider:     model.Provider,
		InputTokens:  completion.InputTokens,
		OutputTokens: completion.OutputTokens,
		CostUSD:      cost,
		LatencyMs:    latency,
	}, nil
}

// recordFailure writes the zero-token failure record for one attempt.
func (r *Router) recordFailure(ctx context.Context, req Request, model registry.Model, position int, latency int64, attemptErr error) {
	errClass := utils.Truncate(attemptErr.Error(), config.MaxErrorClassLen)
	r.ledger.Record(ctx, ledger.UsageRecord{
		Provider:   string(model.Provider),
		Model:      model.ID,
		LatencyMs:  latency,
		QueryType:  string(req.QueryType),
		Source:     req.Source,
		Success:    false,
		ErrorClass: errClass,
		UserID:     req.UserID,
	})
	if r.telemetry != nil {
		r.telemetry.RecordAttempt(telemetry.AttemptEvent{
			QueryType:  string(req.QueryType),
			Provider:   string(model.Provider),
			Model:      model.ID,
			Position:   position,
			Success:    false,
			LatencyMs:  latency,
			ErrorClass: errClass,
		})
	}
}
