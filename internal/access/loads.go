package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/sjson"

	"github.com/freightdesk/dispatch-ai/internal/domain"
	"github.com/freightdesk/dispatch-ai/internal/storage/sqlite"
	"github.com/freightdesk/dispatch-ai/internal/utils"
)

// Margin-bearing fields stripped from every load payload returned to a
// carrier caller, no matter which accessor produced it.
var carrierRedactedFields = []string{
	"customerRate",
	"grossMargin",
	"marginPercent",
	"marginPerMile",
	"revenuePerMile",
}

// GetLoad resolves an ambiguous identifier against id first, then reference
// number, and returns the load visible to the caller.
func (s *Service) GetLoad(ctx context.Context, c Caller, identifier string) Result {
	scope := scopeFor(c)
	load, err := s.store.LoadByID(ctx, identifier, scope)
	if errors.Is(err, sqlite.ErrNotFound) {
		load, err = s.store.LoadByReference(ctx, identifier, scope)
	}
	if errors.Is(err, sqlite.ErrNotFound) {
		return errResult(fmt.Sprintf("load not found: %s", identifier))
	}
	if err != nil {
		return storeErr("load lookup", err)
	}
	return Result{"load": s.loadPayload(*load, c)}
}

// SearchLoads free-text matches reference numbers, lane cities, and
// equipment types within the caller's scope.
func (s *Service) SearchLoads(ctx context.Context, c Caller, query string) Result {
	loads, err := s.store.SearchLoads(ctx, query, scopeFor(c), defaultListLimit)
	if err != nil {
		return storeErr("load search", err)
	}
	return Result{
		"loads": s.loadPayloads(loads, c),
		"count": len(loads),
	}
}

// GetMyLoads returns the caller's active loads, soonest delivery first.
func (s *Service) GetMyLoads(ctx context.Context, c Caller) Result {
	loads, err := s.store.ActiveLoads(ctx, scopeFor(c), defaultListLimit)
	if err != nil {
		return storeErr("active load lookup", err)
	}
	return Result{
		"loads": s.loadPayloads(loads, c),
		"count": len(loads),
	}
}

// loadPayload renders one load with derived per-load metrics, redacting
// margin fields for carrier callers.
func (s *Service) loadPayload(l domain.Load, c Caller) map[string]any {
	payload := map[string]any{}
	data, err := utils.MarshalNoEscape(l)
	if err != nil {
		log.Error().Err(err).Str("load_id", l.ID).Msg("access: load marshal failed")
		return map[string]any{"id": l.ID}
	}
	_ = json.Unmarshal(data, &payload)

	payload["grossMargin"] = l.GrossMargin()
	payload["marginPercent"] = l.MarginPercent()
	if l.Miles > 0 {
		payload["ratePerMile"] = l.CarrierRate / l.Miles
		payload["revenuePerMile"] = l.CustomerRate / l.Miles
		payload["marginPerMile"] = l.GrossMargin() / l.Miles
	}
	payload["onTime"] = l.OnTime()

	if _, isCarrier := c.(Carrier); isCarrier {
		payload = redactCarrierFields(payload)
	}
	return payload
}

func (s *Service) loadPayloads(loads []domain.Load, c Caller) []map[string]any {
	out := make([]map[string]any, 0, len(loads))
	for _, l := range loads {
		out = append(out, s.loadPayload(l, c))
	}
	return out
}

// redactCarrierFields strips the margin-bearing fields from a load payload.
func redactCarrierFields(payload map[string]any) map[string]any {
	data, err := utils.MarshalNoEscape(payload)
	if err != nil {
		// Fall back to deleting from the map directly.
		for _, field := range carrierRedactedFields {
			delete(payload, field)
		}
		return payload
	}
	for _, field := range carrierRedactedFields {
		data, _ = sjson.DeleteBytes(data, field)
	}
	clean := map[string]any{}
	if err := json.Unmarshal(data, &clean); err != nil {
		for _, field := range carrierRedactedFields {
			delete(payload, field)
		}
		return payload
	}
	return clean
}
