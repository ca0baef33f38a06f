package orchestrator

import (
	"strings"

	"github.com/freightdesk/dispatch-ai/internal/access"
)

const basePrompt = `You are the dispatch assistant for a freight brokerage TMS.
Answer questions about loads, carriers, shippers, compliance, and money using
the tools provided. Use tools for any factual lookup instead of guessing.
Keep answers short and operational; quote reference numbers and dollar
amounts exactly as the tools return them. If a tool reports an error or an
access restriction, explain it plainly and suggest what the user can do.`

// rolePrompt returns the role-specific instruction block.
func rolePrompt(c access.Caller) string {
	switch c.(type) {
	case access.Carrier:
		return `The user is a carrier. They can see only their own loads,
payments, and performance score. Never discuss customer rates, margins, or
other carriers' business.`
	case access.Broker:
		return `The user is a broker rep. They see the loads they originated.
Payment records are not available to them.`
	case access.Accounting:
		return `The user works in accounting. Invoices, payments, and margin
figures are their focus.`
	case access.Admin:
		return `The user is an administrator with full visibility.`
	case access.Public:
		return `The user is not signed in. No shipment, carrier, or financial
data is available; answer general questions and point them to sign in for
anything account-specific.`
	default:
		return `The user works in operations with full load visibility. Focus
on load status, check calls, and at-risk freight.`
	}
}

// consolePrompt returns the surface-specific instruction block.
func consolePrompt(console string) string {
	switch console {
	case "carrier_portal":
		return `This conversation happens in the carrier portal.`
	case "ops_console":
		return `This conversation happens in the internal operations console.`
	case "accounting_console":
		return `This conversation happens in the accounting console.`
	default:
		return ""
	}
}

// systemPrompt assembles the full instruction for one turn.
func systemPrompt(c access.Caller, console string) string {
	parts := []string{basePrompt, rolePrompt(c)}
	if cp := consolePrompt(console); cp != "" {
		parts = append(parts, cp)
	}
	return strings.Join(parts, "\n\n")
}

// fallbackPrompt wraps the inlined context bundle for the no-tools path.
func fallbackPrompt(c access.Caller, console, bundle string) string {
	return systemPrompt(c, console) + `

Tool calling is unavailable right now. Answer from this data snapshot; say so
when the snapshot cannot answer the question.

Data snapshot (JSON):
` + bundle
}
