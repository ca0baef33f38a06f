package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/freightdesk/dispatch-ai/internal/ledger"
)

// InsertUsageEvent appends one usage record.
func (s *Store) InsertUsageEvent(ctx context.Context, rec ledger.UsageRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_events (
			id, provider, model, input_tokens, output_tokens, cost_usd,
			latency_ms, query_type, source, success, error_class, user_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Provider, rec.Model, rec.InputTokens, rec.OutputTokens, rec.CostUSD,
		rec.LatencyMs, rec.QueryType, rec.Source, boolToInt(rec.Success), rec.ErrorClass,
		rec.UserID, toMillis(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert usage event: %w", err)
	}
	return nil
}

// UsageEventsSince returns all usage records created at or after since,
// oldest first.
func (s *Store) UsageEventsSince(ctx context.Context, since time.Time) ([]ledger.UsageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, provider, model, input_tokens, output_tokens, cost_usd,
			latency_ms, query_type, source, success, error_class, user_id, created_at
		FROM usage_events
		WHERE created_at >= ?
		ORDER BY created_at ASC`,
		toMillis(since),
	)
	if err != nil {
		return nil, fmt.Errorf("query usage events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ledger.UsageRecord
	for rows.Next() {
		var rec ledger.UsageRecord
		var success int
		var createdAt int64
		if err := rows.Scan(
			&rec.ID, &rec.Provider, &rec.Model, &rec.InputTokens, &rec.OutputTokens,
			&rec.CostUSD, &rec.LatencyMs, &rec.QueryType, &rec.Source, &success,
			&rec.ErrorClass, &rec.UserID, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan usage event: %w", err)
		}
		rec.Success = success != 0
		rec.CreatedAt = fromMillis(createdAt)
		out = append(out, rec)
	}
	return out, rowsErr(rows)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
