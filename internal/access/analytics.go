package access

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/freightdesk/dispatch-ai/internal/config"
	"github.com/freightdesk/dispatch-ai/internal/domain"
)

// GetAnalyticsSummary computes the operational snapshot from raw rows at
// request time: status counts, on-time percentage, at-risk loads, and top
// lanes. Margin figures are included only for non-carrier callers.
func (s *Service) GetAnalyticsSummary(ctx context.Context, c Caller) Result {
	if anonymous(c) {
		return s.denied(ctx, c, "analytics summary")
	}
	since := s.now().UTC().AddDate(0, 0, -config.DefaultSummaryWindowDays)
	loads, err := s.store.LoadsSince(ctx, since, scopeFor(c))
	if err != nil {
		return storeErr("analytics query", err)
	}

	byStatus := map[string]int{}
	var delivered, onTime int
	var revenue, cost float64
	laneCounts := map[string]int{}
	var risk []map[string]any

	for _, l := range loads {
		byStatus[l.Status]++
		if l.Status == domain.LoadStatusDelivered {
			delivered++
			if l.OnTime() {
				onTime++
			}
		}
		revenue += l.CustomerRate
		cost += l.CarrierRate
		lane := fmt.Sprintf("%s, %s -> %s, %s", l.OriginCity, l.OriginState, l.DestinationCity, l.DestinationState)
		laneCounts[lane]++
		if l.Active() && s.atRisk(l) {
			risk = append(risk, s.loadPayload(l, c))
		}
	}

	result := Result{
		"totalLoads":    len(loads),
		"byStatus":      byStatus,
		"onTimePercent": percent(onTime, delivered),
		"topLanes":      topLanes(laneCounts, 5),
		"riskLoads":     risk,
		"riskCount":     len(risk),
		"windowDays":    config.DefaultSummaryWindowDays,
	}
	if _, isCarrier := c.(Carrier); !isCarrier {
		margin := revenue - cost
		result["totalRevenue"] = round2(revenue)
		result["totalCarrierCost"] = round2(cost)
		result["grossMargin"] = round2(margin)
		if revenue > 0 {
			result["marginPercent"] = round1(margin / revenue * 100)
		}
	}
	return result
}

// atRisk flags a load when any one condition holds: the last check call is
// missing or older than 6 hours, delivery is due within 12 hours, delivery
// is already past due, or the recorded risk level is critical.
func (s *Service) atRisk(l domain.Load) bool {
	now := s.now().UTC()
	if l.LastCheckCallAt == nil || now.Sub(*l.LastCheckCallAt) > config.CheckCallOverdue {
		return true
	}
	if l.ScheduledDelivery.Before(now) {
		return true
	}
	if l.ScheduledDelivery.Sub(now) <= config.DeliveryRiskWindow {
		return true
	}
	return l.RiskLevel == domain.RiskLevelCritical
}

// GetComplianceStatus reports open compliance alerts. Carrier callers see
// only their own; back-office callers see the whole board.
func (s *Service) GetComplianceStatus(ctx context.Context, c Caller) Result {
	if anonymous(c) {
		return s.denied(ctx, c, "compliance status")
	}
	carrierID := ""
	if carrier, ok := c.(Carrier); ok {
		carrierID = carrier.CarrierID
	}
	alerts, err := s.store.UnresolvedComplianceAlerts(ctx, carrierID, defaultListLimit)
	if err != nil {
		return storeErr("compliance query", err)
	}

	bySeverity := map[string]int{}
	out := make([]map[string]any, 0, len(alerts))
	for _, a := range alerts {
		bySeverity[a.Severity]++
		out = append(out, map[string]any{
			"id":        a.ID,
			"carrierId": a.CarrierID,
			"type":      a.Type,
			"severity":  a.Severity,
			"message":   a.Message,
			"createdAt": a.CreatedAt,
		})
	}
	return Result{
		"alerts":     out,
		"count":      len(alerts),
		"bySeverity": bySeverity,
	}
}

// GetFinancialSummary reports revenue, margin, and receivables. Forbidden
// for carrier callers outright.
func (s *Service) GetFinancialSummary(ctx context.Context, c Caller) Result {
	if _, isCarrier := c.(Carrier); isCarrier || anonymous(c) {
		return s.denied(ctx, c, "financial summary")
	}

	since := s.now().UTC().AddDate(0, 0, -config.DefaultSummaryWindowDays)
	loads, err := s.store.LoadsSince(ctx, since, scopeFor(c))
	if err != nil {
		return storeErr("financial query", err)
	}

	var revenue, cost float64
	for _, l := range loads {
		if l.Status == domain.LoadStatusCancelled {
			continue
		}
		revenue += l.CustomerRate
		cost += l.CarrierRate
	}
	margin := revenue - cost

	open, err := s.store.OpenInvoices(ctx, defaultListLimit)
	if err != nil {
		return storeErr("invoice query", err)
	}
	var outstanding float64
	var overdue int
	now := s.now().UTC()
	for _, inv := range open {
		outstanding += inv.Amount
		if inv.DueDate.Before(now) {
			overdue++
		}
	}

	result := Result{
		"windowDays":        config.DefaultSummaryWindowDays,
		"totalRevenue":      round2(revenue),
		"totalCarrierCost":  round2(cost),
		"grossMargin":       round2(margin),
		"openInvoices":      len(open),
		"outstandingAmount": round2(outstanding),
		"overdueInvoices":   overdue,
	}
	if revenue > 0 {
		result["marginPercent"] = round1(margin / revenue * 100)
	}
	return result
}

// GetMyPayments returns the carrier caller's payment history. Brokers have
// no payment visibility at all.
func (s *Service) GetMyPayments(ctx context.Context, c Caller) Result {
	if _, isBroker := c.(Broker); isBroker {
		return s.denied(ctx, c, "payment lookup")
	}
	carrier, ok := c.(Carrier)
	if !ok {
		return errResult("no carrier profile is associated with this account")
	}

	payments, err := s.store.PaymentsForCarrier(ctx, carrier.CarrierID, defaultListLimit)
	if err != nil {
		return storeErr("payment query", err)
	}

	var paid, pending float64
	out := make([]map[string]any, 0, len(payments))
	for _, p := range payments {
		if p.PaidAt != nil {
			paid += p.Amount
		} else {
			pending += p.Amount
		}
		out = append(out, map[string]any{
			"id":          p.ID,
			"loadId":      p.LoadID,
			"amount":      p.Amount,
			"status":      p.Status,
			"scheduledAt": p.ScheduledAt,
			"paidAt":      p.PaidAt,
		})
	}
	return Result{
		"payments":      out,
		"count":         len(payments),
		"paidAmount":    round2(paid),
		"pendingAmount": round2(pending),
	}
}

// GetRecentActivity returns the latest audit feed entries.
func (s *Service) GetRecentActivity(ctx context.Context, c Caller) Result {
	if anonymous(c) {
		return s.denied(ctx, c, "activity feed")
	}
	events, err := s.store.RecentAuditEvents(ctx, defaultListLimit)
	if err != nil {
		return storeErr("activity query", err)
	}
	out := make([]map[string]any, 0, len(events))
	for _, ev := range events {
		out = append(out, map[string]any{
			"id":         ev.ID,
			"userId":     ev.UserID,
			"action":     ev.Action,
			"entityType": ev.EntityType,
			"entityId":   ev.EntityID,
			"detail":     ev.Detail,
			"createdAt":  ev.CreatedAt,
		})
	}
	return Result{"events": out, "count": len(events)}
}

type laneCount struct {
	Lane  string `json:"lane"`
	Count int    `json:"count"`
}

func topLanes(counts map[string]int, n int) []laneCount {
	out := make([]laneCount, 0, len(counts))
	for lane, count := range counts {
		out = append(out, laneCount{Lane: lane, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Lane < out[j].Lane
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// percent is on-time over delivered, 1 decimal, 100 when nothing delivered.
func percent(part, whole int) float64 {
	if whole == 0 {
		return 100
	}
	return round1(float64(part) / float64(whole) * 100)
}

func round2(v float64) float64 { return decimal.NewFromFloat(v).Round(2).InexactFloat64() }

func round1(v float64) float64 { return decimal.NewFromFloat(v).Round(1).InexactFloat64() }
