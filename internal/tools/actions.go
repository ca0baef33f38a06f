package tools

import (
	"github.com/freightdesk/dispatch-ai/internal/access"
)

// ActionButton is a UI suggestion attached to an assistant reply.
type ActionButton struct {
	Label  string `json:"label"`
	Type   string `json:"type"`
	Target string `json:"target,omitempty"`
}

// Action types.
const (
	ActionNavigate = "navigate"
	ActionRefresh  = "refresh"
	ActionExport   = "export"
	ActionAPI      = "api"
)

// ActionsFor maps one tool result to UI action suggestions. It is a pure
// function of (name, args, result); failed results produce no actions.
func ActionsFor(name Name, args map[string]any, result access.Result) []ActionButton {
	if _, failed := result.Err(); failed {
		return nil
	}

	switch name {
	case GetLoad:
		if id := resultEntityID(result, "load"); id != "" {
			return []ActionButton{{Label: "View load", Type: ActionNavigate, Target: "/loads/" + id}}
		}
		return nil
	case SearchLoads, GetMyLoads:
		return []ActionButton{
			{Label: "Open load board", Type: ActionNavigate, Target: "/loads"},
			{Label: "Refresh loads", Type: ActionRefresh, Target: "loads"},
		}
	case GetCarrier:
		if id := resultEntityID(result, "carrier"); id != "" {
			return []ActionButton{{Label: "View carrier", Type: ActionNavigate, Target: "/carriers/" + id}}
		}
		return nil
	case SearchCarriers:
		return []ActionButton{{Label: "Open carrier directory", Type: ActionNavigate, Target: "/carriers"}}
	case GetShipper:
		if id := resultEntityID(result, "shipper"); id != "" {
			return []ActionButton{{Label: "View shipper", Type: ActionNavigate, Target: "/customers/" + id}}
		}
		return nil
	case SearchShippers:
		return []ActionButton{{Label: "Open customer list", Type: ActionNavigate, Target: "/customers"}}
	case GetAnalyticsSummary:
		return []ActionButton{
			{Label: "Open analytics", Type: ActionNavigate, Target: "/analytics"},
			{Label: "Export report", Type: ActionExport, Target: "analytics"},
		}
	case GetComplianceStatus:
		return []ActionButton{{Label: "Open compliance board", Type: ActionNavigate, Target: "/compliance"}}
	case GetFinancialSummary:
		return []ActionButton{
			{Label: "Open accounting", Type: ActionNavigate, Target: "/accounting"},
			{Label: "Export financials", Type: ActionExport, Target: "financials"},
		}
	case GetRecentActivity:
		return []ActionButton{{Label: "Refresh activity", Type: ActionRefresh, Target: "activity"}}
	case GetMyPayments:
		return []ActionButton{{Label: "View payments", Type: ActionNavigate, Target: "/payments"}}
	case GetMyScore:
		return []ActionButton{{Label: "View scorecard", Type: ActionNavigate, Target: "/scorecard"}}
	default:
		return nil
	}
}

// resultEntityID digs the entity id out of a single-entity result payload.
func resultEntityID(result access.Result, key string) string {
	entity, ok := result[key].(map[string]any)
	if !ok {
		return ""
	}
	id, _ := entity["id"].(string)
	return id
}
