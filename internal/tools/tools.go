// Package tools is the registry of model-invocable functions and their
// executor.
//
// DESIGN: Definitions() is the single source of truth for the tool surface;
// provider-specific schema shapes and the llm-layer schema list are both
// derived from it. Dispatch is an exhaustive switch over a Name enum, so a
// new tool is a compile-visible addition rather than a string that silently
// falls through. An unknown name is a structured error naming the valid set.
package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/freightdesk/dispatch-ai/internal/access"
	"github.com/freightdesk/dispatch-ai/internal/llm"
)

// Name identifies one registered tool.
type Name string

const (
	GetLoad             Name = "get_load"
	SearchLoads         Name = "search_loads"
	GetCarrier          Name = "get_carrier"
	SearchCarriers      Name = "search_carriers"
	GetShipper          Name = "get_shipper"
	SearchShippers      Name = "search_shippers"
	GetAnalyticsSummary Name = "get_analytics_summary"
	GetComplianceStatus Name = "get_compliance_status"
	GetFinancialSummary Name = "get_financial_summary"
	GetRecentActivity   Name = "get_recent_activity"
	GetMyLoads          Name = "get_my_loads"
	GetMyPayments       Name = "get_my_payments"
	GetMyScore          Name = "get_my_performance_score"
)

// AllNames lists every registered tool in schema order.
func AllNames() []Name {
	return []Name{
		GetLoad, SearchLoads, GetCarrier, SearchCarriers, GetShipper,
		SearchShippers, GetAnalyticsSummary, GetComplianceStatus,
		GetFinancialSummary, GetRecentActivity, GetMyLoads, GetMyPayments,
		GetMyScore,
	}
}

// Definition describes one tool to a function-calling provider.
type Definition struct {
	Name        Name           `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

func identifierParams(description string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"identifier": map[string]any{
				"type":        "string",
				"description": description,
			},
		},
		"required": []string{"identifier"},
	}
}

func queryParams(description string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": description,
			},
		},
		"required": []string{"query"},
	}
}

func noParams() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

// Definitions returns the static tool list.
func Definitions() []Definition {
	return []Definition{
		{
			Name:        GetLoad,
			Description: "Look up a single load by internal id or reference number. Returns status, lane, rates, and delivery timing.",
			Parameters:  identifierParams("Load id or reference number"),
		},
		{
			Name:        SearchLoads,
			Description: "Free-text search over loads by reference number, origin or destination city, or equipment type.",
			Parameters:  queryParams("Search text, e.g. a city name or reference number"),
		},
		{
			Name:        GetCarrier,
			Description: "Look up a carrier by internal id, MC number, or DOT number. Returns safety rating, on-time percentage, and insurance expiry.",
			Parameters:  identifierParams("Carrier id, MC number, or DOT number"),
		},
		{
			Name:        SearchCarriers,
			Description: "Search carriers by name, MC number, or DOT number.",
			Parameters:  queryParams("Carrier name or registration number"),
		},
		{
			Name:        GetShipper,
			Description: "Look up a shipper account by id. Returns credit limit, payment terms, and a billing snapshot.",
			Parameters:  identifierParams("Shipper account id"),
		},
		{
			Name:        SearchShippers,
			Description: "Search shipper accounts by name, city, or state.",
			Parameters:  queryParams("Shipper name or location"),
		},
		{
			Name:        GetAnalyticsSummary,
			Description: "Operational snapshot: load counts by status, on-time percentage, top lanes, and at-risk loads needing attention.",
			Parameters:  noParams(),
		},
		{
			Name:        GetComplianceStatus,
			Description: "Open compliance alerts such as expiring insurance or missing credentials, grouped by severity.",
			Parameters:  noParams(),
		},
		{
			Name:        GetFinancialSummary,
			Description: "Revenue, carrier cost, gross margin, and outstanding invoices for the recent window.",
			Parameters:  noParams(),
		},
		{
			Name:        GetRecentActivity,
			Description: "The latest activity feed entries across the operation.",
			Parameters:  noParams(),
		},
		{
			Name:        GetMyLoads,
			Description: "The caller's active loads, soonest delivery first.",
			Parameters:  noParams(),
		},
		{
			Name:        GetMyPayments,
			Description: "The carrier caller's payment history with paid and pending totals.",
			Parameters:  noParams(),
		},
		{
			Name:        GetMyScore,
			Description: "The carrier caller's performance snapshot: on-time percentage, safety rating, and active load count.",
			Parameters:  noParams(),
		},
	}
}

// Schemas renders the definitions in the provider-neutral shape consumed by
// the llm layer.
func Schemas() []llm.ToolSchema {
	defs := Definitions()
	out := make([]llm.ToolSchema, 0, len(defs))
	for _, d := range defs {
		out = append(out, llm.ToolSchema{
			Name:        string(d.Name),
			Description: d.Description,
			Parameters:  d.Parameters,
		})
	}
	return out
}

// Executor dispatches tool invocations to the access layer.
type Executor struct {
	access *access.Service
}

// NewExecutor creates an executor over the access service.
func NewExecutor(svc *access.Service) *Executor {
	return &Executor{access: svc}
}

// Execute runs one tool call. Results are always structured maps; failures
// inside accessors surface as {error: message} results, never Go errors.
func (e *Executor) Execute(ctx context.Context, name Name, args map[string]any, caller access.Caller) access.Result {
	switch name {
	case GetLoad:
		return e.access.GetLoad(ctx, caller, stringArg(args, "identifier"))
	case SearchLoads:
		return e.access.SearchLoads(ctx, caller, stringArg(args, "query"))
	case GetCarrier:
		return e.access.GetCarrier(ctx, caller, stringArg(args, "identifier"))
	case SearchCarriers:
		return e.access.SearchCarriers(ctx, caller, stringArg(args, "query"))
	case GetShipper:
		return e.access.GetShipper(ctx, caller, stringArg(args, "identifier"))
	case SearchShippers:
		return e.access.SearchShippers(ctx, caller, stringArg(args, "query"))
	case GetAnalyticsSummary:
		return e.access.GetAnalyticsSummary(ctx, caller)
	case GetComplianceStatus:
		return e.access.GetComplianceStatus(ctx, caller)
	case GetFinancialSummary:
		return e.access.GetFinancialSummary(ctx, caller)
	case GetRecentActivity:
		return e.access.GetRecentActivity(ctx, caller)
	case GetMyLoads:
		return e.access.GetMyLoads(ctx, caller)
	case GetMyPayments:
		return e.access.GetMyPayments(ctx, caller)
	case GetMyScore:
		return e.access.GetMyScore(ctx, caller)
	default:
		return access.Result{
			"error": fmt.Sprintf("unknown tool %q; valid tools: %s", name, validNames()),
		}
	}
}

func validNames() string {
	names := AllNames()
	parts := make([]string, 0, len(names))
	for _, n := range names {
		parts = append(parts, string(n))
	}
	return strings.Join(parts, ", ")
}

func stringArg(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	v, _ := args[key].(string)
	return v
}
