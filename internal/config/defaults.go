// Package config - defaults.go centralizes magic numbers and default values.
//
// DESIGN: All default values that appear in multiple places should be defined
// here. This makes configuration more maintainable and auditable.
package config

import "time"

// =============================================================================
// PROVIDERS
// =============================================================================

// MinCredentialLen is the minimum trimmed API key length treated as a real
// credential. Shorter values are placeholders left by setup scripts.
const MinCredentialLen = 8

// DefaultProviderTimeout bounds a single outbound provider call.
const DefaultProviderTimeout = 60 * time.Second

// =============================================================================
// CONVERSATIONS
// =============================================================================

// MaxToolRounds caps the tool-calling sub-loop per chat turn. When the model
// still requests tools after this many rounds, the loop stops and whatever
// text the model produced is returned.
const MaxToolRounds = 3

// ConversationCap is the maximum number of messages retained per conversation.
const ConversationCap = 100

// ConversationWindow is the recency window for reusing a conversation keyed by
// (user, console). Older conversations are left alone and a new one starts.
const ConversationWindow = 24 * time.Hour

// ContextBundleTokenBudget limits the inlined JSON snapshot on the
// non-tool-calling fallback path.
const ContextBundleTokenBudget = 1500

// =============================================================================
// BUDGET
// =============================================================================

// DefaultMonthlyBudgetUSD is the budget ceiling when none is configured.
const DefaultMonthlyBudgetUSD = 500

// BudgetCriticalPercent triggers the "critical" recommendation.
const BudgetCriticalPercent = 90

// BudgetWarningPercent triggers the "warning" recommendation.
const BudgetWarningPercent = 75

// BudgetProjectionFactor triggers "caution" when the linear month-end
// projection exceeds ceiling multiplied by this factor.
const BudgetProjectionFactor = 1.2

// =============================================================================
// LEDGER
// =============================================================================

// DefaultSummaryWindowDays is the window for cost summaries when unspecified.
const DefaultSummaryWindowDays = 30

// MaxErrorClassLen limits the stored error string on failed usage records.
const MaxErrorClassLen = 200

// =============================================================================
// RISK CLASSIFICATION
// =============================================================================

// CheckCallOverdue flags an active load whose last check call is older.
const CheckCallOverdue = 6 * time.Hour

// DeliveryRiskWindow flags an active load this close to scheduled delivery.
const DeliveryRiskWindow = 12 * time.Hour

// =============================================================================
// SERVER
// =============================================================================

// DefaultServerPort is the HTTP port for the thin outer surface.
const DefaultServerPort = 8140

// DefaultServerReadTimeout for the HTTP server.
const DefaultServerReadTimeout = 30 * time.Second

// DefaultServerWriteTimeout for the HTTP server (safe for slow model calls).
const DefaultServerWriteTimeout = 5 * time.Minute

// DefaultStoragePath is the SQLite database location.
const DefaultStoragePath = "dispatch-ai.db"
