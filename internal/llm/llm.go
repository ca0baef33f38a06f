// Package llm wraps the vendor SDKs behind a small provider-neutral surface.
//
// DESIGN: Two call shapes exist. Conversation is the stateful tool-calling
// exchange the orchestrator drives round by round; Complete is the plain
// single-shot used by the query router and the orchestrator's fallback path.
// Provider dispatch is an exhaustive switch over registry.ProviderID, so
// adding a vendor is a compile-time-checked change.
package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/freightdesk/dispatch-ai/internal/config"
	"github.com/freightdesk/dispatch-ai/internal/registry"
)

// Message is one prior conversation entry.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ToolSchema is a function-calling declaration in provider-neutral shape.
// Parameters is a JSON-schema object ({"type":"object","properties":...}).
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID      string
	Name    string
	Args    map[string]any
	RawArgs string
}

// ToolResult feeds a tool's output back into the conversation.
type ToolResult struct {
	CallID  string
	Name    string
	Content string
}

// Turn is one model response within a conversation.
type Turn struct {
	Text         string
	ToolCalls    []ToolCall
	InputTokens  int64
	OutputTokens int64
	StopReason   string
}

// ChatRequest starts a tool-calling conversation.
type ChatRequest struct {
	Model       string
	System      string
	Messages    []Message // chronological, ending with the current user message
	Tools       []ToolSchema
	MaxTokens   int
	Temperature float64
}

// CompletionRequest is a plain single-shot call with no tool rounds.
type CompletionRequest struct {
	Model       string
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Completion is the result of a single-shot call.
type Completion struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

// Conversation is a stateful multi-round exchange with one model. Send issues
// the current transcript; AddToolResults appends tool outputs, in the order
// the model requested the calls, before the next Send.
type Conversation interface {
	Send(ctx context.Context) (*Turn, error)
	AddToolResults(results []ToolResult)
}

// Client is one vendor's API surface.
type Client interface {
	Provider() registry.ProviderID
	NewConversation(req ChatRequest) Conversation
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// NewClient constructs the client for a provider. Unknown providers are a
// programming error surfaced as an error value, not a silent default.
func NewClient(provider registry.ProviderID, cfg config.ProvidersConfig) (Client, error) {
	switch provider {
	case registry.ProviderOpenAI:
		return newOpenAIClient(cfg.OpenAI), nil
	case registry.ProviderAnthropic:
		return newAnthropicClient(cfg.Anthropic), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}

// Factory resolves provider clients. The router and orchestrator depend on
// this narrow type so tests can stub vendor calls.
type Factory func(provider registry.ProviderID) (Client, error)

// NewFactory returns a Factory that constructs and caches one client per
// provider from the startup config. One Factory is shared across concurrent
// requests, so the cache is guarded.
func NewFactory(cfg config.ProvidersConfig) Factory {
	var mu sync.Mutex
	cache := make(map[registry.ProviderID]Client)
	return func(provider registry.ProviderID) (Client, error) {
		mu.Lock()
		defer mu.Unlock()
		if c, ok := cache[provider]; ok {
			return c, nil
		}
		c, err := NewClient(provider, cfg)
		if err != nil {
			return nil, err
		}
		cache[provider] = c
		return c, nil
	}
}

// parseToolArgs decodes a tool-call argument payload; malformed or non-object
// JSON becomes an empty argument map so the executor can answer with a
// structured error.
func parseToolArgs(raw string) map[string]any {
	if !gjson.Valid(raw) {
		return map[string]any{}
	}
	if args, ok := gjson.Parse(raw).Value().(map[string]any); ok {
		return args
	}
	return map[string]any{}
}

// schemaRequired extracts the "required" list from a JSON-schema parameter
// object, tolerating both decoded-JSON and literal forms.
func schemaRequired(params map[string]any) []string {
	switch req := params["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, v := range req {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
