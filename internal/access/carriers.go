package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/freightdesk/dispatch-ai/internal/domain"
	"github.com/freightdesk/dispatch-ai/internal/storage/sqlite"
)

// GetCarrier resolves an ambiguous identifier against internal id, then MC
// number, then DOT number, first match wins.
func (s *Service) GetCarrier(ctx context.Context, c Caller, identifier string) Result {
	if anonymous(c) {
		return s.denied(ctx, c, "carrier lookup")
	}
	carrier, err := s.store.CarrierByID(ctx, identifier)
	if errors.Is(err, sqlite.ErrNotFound) {
		carrier, err = s.store.CarrierByMCNumber(ctx, identifier)
	}
	if errors.Is(err, sqlite.ErrNotFound) {
		carrier, err = s.store.CarrierByDOTNumber(ctx, identifier)
	}
	if errors.Is(err, sqlite.ErrNotFound) {
		return errResult(fmt.Sprintf("carrier not found: %s", identifier))
	}
	if err != nil {
		return storeErr("carrier lookup", err)
	}
	return Result{"carrier": carrierPayload(*carrier)}
}

// SearchCarriers matches carrier name, MC, and DOT numbers. Carrier callers
// may not browse the carrier base.
func (s *Service) SearchCarriers(ctx context.Context, c Caller, query string) Result {
	if _, isCarrier := c.(Carrier); isCarrier || anonymous(c) {
		return s.denied(ctx, c, "carrier search")
	}
	carriers, err := s.store.SearchCarriers(ctx, query, defaultListLimit)
	if err != nil {
		return storeErr("carrier search", err)
	}
	out := make([]map[string]any, 0, len(carriers))
	for _, carrier := range carriers {
		out = append(out, carrierPayload(carrier))
	}
	return Result{"carriers": out, "count": len(carriers)}
}

// GetMyScore returns the carrier caller's own performance snapshot.
func (s *Service) GetMyScore(ctx context.Context, c Caller) Result {
	carrier, ok := c.(Carrier)
	if !ok {
		return errResult("no carrier profile is associated with this account")
	}
	profile, err := s.store.CarrierByID(ctx, carrier.CarrierID)
	if errors.Is(err, sqlite.ErrNotFound) {
		return errResult(fmt.Sprintf("carrier not found: %s", carrier.CarrierID))
	}
	if err != nil {
		return storeErr("carrier lookup", err)
	}

	active, err := s.store.ActiveLoads(ctx, domain.ScopeCarrier(carrier.CarrierID), defaultListLimit)
	if err != nil {
		return storeErr("active load lookup", err)
	}
	return Result{
		"carrierId":     profile.ID,
		"name":          profile.Name,
		"onTimePercent": profile.OnTimePercent,
		"safetyRating":  profile.SafetyRating,
		"status":        profile.Status,
		"activeLoads":   len(active),
	}
}

func carrierPayload(c domain.CarrierProfile) map[string]any {
	return map[string]any{
		"id":              c.ID,
		"name":            c.Name,
		"mcNumber":        c.MCNumber,
		"dotNumber":       c.DOTNumber,
		"status":          c.Status,
		"safetyRating":    c.SafetyRating,
		"onTimePercent":   c.OnTimePercent,
		"insuranceExpiry": c.InsuranceExpiry,
		"createdAt":       c.CreatedAt,
	}
}
