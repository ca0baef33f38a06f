// Package ledger is the append-only usage-event store and its aggregations.
//
// DESIGN: One UsageRecord per provider attempt, success or failure, never
// mutated. Writes are best-effort: cost tracking is observability, not a
// correctness gate, so a failed write is logged and sent to the telemetry
// side-channel instead of failing the caller's request. All aggregation is
// recomputed on demand from raw events; nothing is cached.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/freightdesk/dispatch-ai/internal/config"
	"github.com/freightdesk/dispatch-ai/internal/telemetry"
)

// UsageRecord is one provider attempt.
type UsageRecord struct {
	ID           string    `json:"id"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	InputTokens  int64     `json:"inputTokens"`
	OutputTokens int64     `json:"outputTokens"`
	CostUSD      float64   `json:"costUsd"`
	LatencyMs    int64     `json:"latencyMs"`
	QueryType    string    `json:"queryType"`
	Source       string    `json:"source"`
	Success      bool      `json:"success"`
	ErrorClass   string    `json:"errorClass,omitempty"`
	UserID       string    `json:"userId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Store is the persistence collaborator consumed by the ledger.
type Store interface {
	InsertUsageEvent(ctx context.Context, rec UsageRecord) error
	UsageEventsSince(ctx context.Context, since time.Time) ([]UsageRecord, error)
}

// Ledger records usage and answers spend queries.
type Ledger struct {
	store     Store
	telemetry *telemetry.Tracker
	budgetUSD float64

	// now is swapped in tests to pin the clock.
	now func() time.Time
}

// New creates a ledger over the given store. A zero monthly budget falls back
// to the default ceiling.
func New(store Store, tracker *telemetry.Tracker, budget config.BudgetConfig) *Ledger {
	ceiling := budget.MonthlyUSD
	if ceiling <= 0 {
		ceiling = config.DefaultMonthlyBudgetUSD
	}
	return &Ledger{
		store:     store,
		telemetry: tracker,
		budgetUSD: ceiling,
		now:       time.Now,
	}
}

// Record writes one usage event. Write failures never propagate: they are
// logged and recorded on the telemetry side-channel.
func (l *Ledger) Record(ctx context.Context, rec UsageRecord) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = l.now().UTC()
	}

	if err := l.store.InsertUsageEvent(ctx, rec); err != nil {
		log.Error().
			Err(err).
			Str("model", rec.Model).
			Str("query_type", rec.QueryType).
			Msg("ledger: usage event write failed")
		if l.telemetry != nil {
			l.telemetry.RecordLedgerFailure(telemetry.LedgerFailureEvent{
				Model:     rec.Model,
				QueryType: rec.QueryType,
				Error:     err.Error(),
			})
		}
	}
}

func roundCents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func roundRate(v float64) float64 {
	return decimal.NewFromFloat(v).Round(3).InexactFloat64()
}

func roundTenth(v float64) float64 {
	return decimal.NewFromFloat(v).Round(1).InexactFloat64()
}
