package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/freightdesk/dispatch-ai/internal/config"
)

// ProviderCost is spend grouped by provider.
type ProviderCost struct {
	Provider string  `json:"provider"`
	CostUSD  float64 `json:"costUsd"`
	Calls    int     `json:"calls"`
}

// ModelCost is spend grouped by model, with average latency.
type ModelCost struct {
	Model        string  `json:"model"`
	CostUSD      float64 `json:"costUsd"`
	Calls        int     `json:"calls"`
	AvgLatencyMs float64 `json:"avgLatencyMs"`
}

// QueryTypeCost is spend grouped by query type.
type QueryTypeCost struct {
	QueryType string  `json:"queryType"`
	CostUSD   float64 `json:"costUsd"`
	Calls     int     `json:"calls"`
}

// SourceCost is spend grouped by request source.
type SourceCost struct {
	Source  string  `json:"source"`
	CostUSD float64 `json:"costUsd"`
	Calls   int     `json:"calls"`
}

// DayCost is spend bucketed by UTC calendar day.
type DayCost struct {
	Day     string  `json:"day"` // 2006-01-02
	CostUSD float64 `json:"costUsd"`
	Calls   int     `json:"calls"`
}

// Summary aggregates all usage events inside a trailing window.
type Summary struct {
	WindowDays   int             `json:"windowDays"`
	TotalCostUSD float64         `json:"totalCostUsd"`
	TotalCalls   int             `json:"totalCalls"`
	SuccessRate  float64         `json:"successRate"`
	AvgLatencyMs float64         `json:"avgLatencyMs"`
	ByProvider   []ProviderCost  `json:"byProvider"`
	ByModel      []ModelCost     `json:"byModel"`
	ByQueryType  []QueryTypeCost `json:"byQueryType"`
	BySource     []SourceCost    `json:"bySource"`
	Daily        []DayCost       `json:"daily"`
}

// TodaySpend is spend since UTC midnight.
type TodaySpend struct {
	CostUSD         float64 `json:"costUsd"`
	Calls           int     `json:"calls"`
	TopModel        string  `json:"topModel,omitempty"`
	TopModelCostUSD float64 `json:"topModelCostUsd"`
}

// BudgetStatus is the derived month-to-date budget view. It is recomputed on
// demand and never stored.
type BudgetStatus struct {
	MonthlyBudgetUSD float64 `json:"monthlyBudgetUsd"`
	MonthToDateUSD   float64 `json:"monthToDateUsd"`
	PercentUsed      float64 `json:"percentUsed"`
	ProjectedUSD     float64 `json:"projectedUsd"`
	OverBudget       bool    `json:"overBudget"`
	Recommendation   string  `json:"recommendation"`
}

// Summary aggregates the trailing windowDays of usage events. Currency is
// rounded to cents; rates to 3 decimals.
func (l *Ledger) Summary(ctx context.Context, windowDays int) (*Summary, error) {
	if windowDays <= 0 {
		windowDays = config.DefaultSummaryWindowDays
	}
	since := l.now().UTC().AddDate(0, 0, -windowDays)
	records, err := l.store.UsageEventsSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("load usage events: %w", err)
	}

	s := &Summary{WindowDays: windowDays, TotalCalls: len(records)}

	totalCost := decimal.Zero
	var successes int
	var latencySum int64

	type group struct {
		cost       decimal.Decimal
		calls      int
		latencySum int64
	}
	byProvider := map[string]*group{}
	byModel := map[string]*group{}
	byQueryType := map[string]*group{}
	bySource := map[string]*group{}
	byDay := map[string]*group{}

	add := func(m map[string]*group, key string, rec UsageRecord) {
		g := m[key]
		if g == nil {
			g = &group{}
			m[key] = g
		}
		g.cost = g.cost.Add(decimal.NewFromFloat(rec.CostUSD))
		g.calls++
		g.latencySum += rec.LatencyMs
	}

	for _, rec := range records {
		totalCost = totalCost.Add(decimal.NewFromFloat(rec.CostUSD))
		latencySum += rec.LatencyMs
		if rec.Success {
			successes++
		}
		add(byProvider, rec.Provider, rec)
		add(byModel, rec.Model, rec)
		add(byQueryType, rec.QueryType, rec)
		add(bySource, rec.Source, rec)
		add(byDay, rec.CreatedAt.UTC().Format("2006-01-02"), rec)
	}

	s.TotalCostUSD = totalCost.Round(2).InexactFloat64()
	s.SuccessRate = 1
	if len(records) > 0 {
		s.SuccessRate = roundRate(float64(successes) / float64(len(records)))
		s.AvgLatencyMs = roundTenth(float64(latencySum) / float64(len(records)))
	}

	for provider, g := range byProvider {
		s.ByProvider = append(s.ByProvider, ProviderCost{
			Provider: provider,
			CostUSD:  g.cost.Round(2).InexactFloat64(),
			Calls:    g.calls,
		})
	}
	sort.Slice(s.ByProvider, func(i, j int) bool { return s.ByProvider[i].CostUSD > s.ByProvider[j].CostUSD })

	for model, g := range byModel {
		s.ByModel = append(s.ByModel, ModelCost{
			Model:        model,
			CostUSD:      g.cost.Round(2).InexactFloat64(),
			Calls:        g.calls,
			AvgLatencyMs: roundTenth(float64(g.latencySum) / float64(g.calls)),
		})
	}
	sort.Slice(s.ByModel, func(i, j int) bool { return s.ByModel[i].CostUSD > s.ByModel[j].CostUSD })

	for queryType, g := range byQueryType {
		s.ByQueryType = append(s.ByQueryType, QueryTypeCost{
			QueryType: queryType,
			CostUSD:   g.cost.Round(2).InexactFloat64(),
			Calls:     g.calls,
		})
	}
	sort.Slice(s.ByQueryType, func(i, j int) bool { return s.ByQueryType[i].CostUSD > s.ByQueryType[j].CostUSD })

	for source, g := range bySource {
		s.BySource = append(s.BySource, SourceCost{
			Source:  source,
			CostUSD: g.cost.Round(2).InexactFloat64(),
			Calls:   g.calls,
		})
	}
	sort.Slice(s.BySource, func(i, j int) bool { return s.BySource[i].CostUSD > s.BySource[j].CostUSD })

	for day, g := range byDay {
		s.Daily = append(s.Daily, DayCost{
			Day:     day,
			CostUSD: g.cost.Round(2).InexactFloat64(),
			Calls:   g.calls,
		})
	}
	sort.Slice(s.Daily, func(i, j int) bool { return s.Daily[i].Day < s.Daily[j].Day })

	return s, nil
}

// TodaySpend sums cost and calls since UTC midnight and names the single
// highest-cost model of the day.
func (l *Ledger) TodaySpend(ctx context.Context) (*TodaySpend, error) {
	now := l.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	records, err := l.store.UsageEventsSince(ctx, midnight)
	if err != nil {
		return nil, fmt.Errorf("load usage events: %w", err)
	}

	total := decimal.Zero
	perModel := map[string]decimal.Decimal{}
	for _, rec := range records {
		cost := decimal.NewFromFloat(rec.CostUSD)
		total = total.Add(cost)
		perModel[rec.Model] = perModel[rec.Model].Add(cost)
	}

	out := &TodaySpend{
		CostUSD: total.Round(2).InexactFloat64(),
		Calls:   len(records),
	}
	// Ties break on model name so the answer is stable across map iteration
	// orders.
	top := decimal.Zero
	for model, cost := range perModel {
		switch {
		case cost.GreaterThan(top):
			top = cost
			out.TopModel = model
		case cost.Equal(top) && !cost.IsZero() && (out.TopModel == "" || model < out.TopModel):
			out.TopModel = model
		}
	}
	out.TopModelCostUSD = top.Round(2).InexactFloat64()
	return out, nil
}

// BudgetStatus evaluates month-to-date spend against the configured ceiling.
// The recommendation ladder uses exact cutoffs: >90% used is critical, >75%
// is warning, a projection above 1.2x the ceiling is caution, otherwise on
// track.
func (l *Ledger) BudgetStatus(ctx context.Context) (*BudgetStatus, error) {
	now := l.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	records, err := l.store.UsageEventsSince(ctx, monthStart)
	if err != nil {
		return nil, fmt.Errorf("load usage events: %w", err)
	}

	spendDec := decimal.Zero
	for _, rec := range records {
		spendDec = spendDec.Add(decimal.NewFromFloat(rec.CostUSD))
	}
	spend := spendDec.InexactFloat64()

	dayOfMonth := now.Day()
	daysInMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	projected := spend / float64(dayOfMonth) * float64(daysInMonth)
	percentUsed := spend / l.budgetUSD * 100

	status := &BudgetStatus{
		MonthlyBudgetUSD: l.budgetUSD,
		MonthToDateUSD:   roundCents(spend),
		PercentUsed:      roundTenth(percentUsed),
		ProjectedUSD:     roundCents(projected),
		OverBudget:       spend > l.budgetUSD,
		Recommendation:   recommendation(percentUsed, projected, l.budgetUSD),
	}
	return status, nil
}

// recommendation is a pure function of percent-used and projected spend.
func recommendation(percentUsed, projected, ceiling float64) string {
	switch {
	case percentUsed > config.BudgetCriticalPercent:
		return "critical: budget nearly exhausted - switch non-essential queries to economy models"
	case percentUsed > config.BudgetWarningPercent:
		return "warning: budget pressure building - throttle premium model usage"
	case projected > ceiling*config.BudgetProjectionFactor:
		return "caution: projected to exceed monthly budget at the current run rate"
	default:
		return "on track"
	}
}
