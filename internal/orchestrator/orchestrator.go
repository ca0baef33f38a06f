// Package orchestrator drives the bounded tool-calling chat turn.
//
// DESIGN: One turn is a small state machine: send the transcript, execute any
// requested tools, feed results back in request order, repeat. The tool
// sub-loop is hard-capped; when the model still wants tools after the last
// round, whatever text it produced is the reply. A provider failure drops to
// a tool-free completion over an inlined data snapshot instead of surfacing
// an error mid-conversation.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"

	"github.com/freightdesk/dispatch-ai/internal/access"
	"github.com/freightdesk/dispatch-ai/internal/config"
	"github.com/freightdesk/dispatch-ai/internal/domain"
	"github.com/freightdesk/dispatch-ai/internal/ledger"
	"github.com/freightdesk/dispatch-ai/internal/llm"
	"github.com/freightdesk/dispatch-ai/internal/registry"
	"github.com/freightdesk/dispatch-ai/internal/storage/sqlite"
	"github.com/freightdesk/dispatch-ai/internal/tools"
	"github.com/freightdesk/dispatch-ai/internal/utils"
)

const (
	chatQueryType = "chat"
	chatSource    = "assistant_chat"
)

// ConversationStore persists conversations and their messages.
type ConversationStore interface {
	FindRecentConversation(ctx context.Context, userID, console string, window time.Duration) (*domain.Conversation, error)
	CreateConversation(ctx context.Context, userID, console string) (*domain.Conversation, error)
	ConversationMessages(ctx context.Context, conversationID string) ([]domain.ConversationMessage, error)
	AppendConversationMessages(ctx context.Context, conversationID string, msgs []domain.ConversationMessage, keep int) error
}

// ChatInput is one inbound chat turn.
type ChatInput struct {
	UserID  string
	Caller  access.Caller
	Message string
	Console string
}

// ChatResult is the assistant's reply for one turn.
type ChatResult struct {
	Reply          string               `json:"reply"`
	Actions        []tools.ActionButton `json:"actions,omitempty"`
	Provider       string               `json:"provider"`
	Model          string               `json:"model"`
	ConversationID string               `json:"conversationId"`
}

// Orchestrator runs chat turns.
type Orchestrator struct {
	registry *registry.Registry
	clients  llm.Factory
	executor *tools.Executor
	ledger   *ledger.Ledger
	store    ConversationStore
}

// New creates an orchestrator.
func New(reg *registry.Registry, clients llm.Factory, executor *tools.Executor, led *ledger.Ledger, store ConversationStore) *Orchestrator {
	return &Orchestrator{
		registry: reg,
		clients:  clients,
		executor: executor,
		ledger:   led,
		store:    store,
	}
}

// Chat executes one conversation turn end to end: resolve the conversation,
// run the tool loop, persist exactly the user and assistant messages.
func (o *Orchestrator) Chat(ctx context.Context, in ChatInput) (*ChatResult, error) {
	if in.Message == "" {
		return nil, errors.New("orchestrator: empty message")
	}

	conv, history, err := o.resolveConversation(ctx, in)
	if err != nil {
		return nil, err
	}

	messages := append(history, llm.Message{Role: domain.MessageRoleUser, Content: in.Message})

	result, err := o.runToolLoop(ctx, in, messages)
	if err != nil {
		log.Warn().Err(err).Str("user_id", in.UserID).Msg("orchestrator: tool loop failed, using fallback completion")
		result, err = o.fallbackCompletion(ctx, in, messages)
		if err != nil {
			return nil, err
		}
	}
	result.ConversationID = conv.ID

	o.persistTurn(ctx, conv.ID, in.Message, result)
	return result, nil
}

// resolveConversation reuses the (user, console) conversation updated within
// the recency window, otherwise starts a new one, and loads its history.
func (o *Orchestrator) resolveConversation(ctx context.Context, in ChatInput) (*domain.Conversation, []llm.Message, error) {
	conv, err := o.store.FindRecentConversation(ctx, in.UserID, in.Console, config.ConversationWindow)
	if errors.Is(err, sqlite.ErrNotFound) {
		conv, err = o.store.CreateConversation(ctx, in.UserID, in.Console)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("resolve conversation: %w", err)
	}

	stored, err := o.store.ConversationMessages(ctx, conv.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("load conversation history: %w", err)
	}
	history := make([]llm.Message, 0, len(stored))
	for _, m := range stored {
		history = append(history, llm.Message{Role: m.Role, Content: m.Content})
	}
	return conv, history, nil
}

// runToolLoop drives the bounded tool-calling exchange on the cheapest
// tool-capable model.
func (o *Orchestrator) runToolLoop(ctx context.Context, in ChatInput, messages []llm.Message) (*ChatResult, error) {
	candidates := o.registry.ToolCapableModels()
	if len(candidates) == 0 {
		return nil, errors.New("orchestrator: no tool-capable models available")
	}
	model := candidates[0]

	client, err := o.clients(model.Provider)
	if err != nil {
		return nil, err
	}

	conversation := client.NewConversation(llm.ChatRequest{
		Model:    model.ID,
		System:   systemPrompt(in.Caller, in.Console),
		Messages: messages,
		Tools:    tools.Schemas(),
	})

	var reply string
	var actions []tools.ActionButton

	// The first send plus one send per tool round.
	for round := 0; round <= config.MaxToolRounds; round++ {
		turn, err := o.send(ctx, conversation, model, in.UserID)
		if err != nil {
			return nil, err
		}
		if turn.Text != "" {
			reply = turn.Text
		}
		if len(turn.ToolCalls) == 0 || round == config.MaxToolRounds {
			break
		}

		results := make([]llm.ToolResult, 0, len(turn.ToolCalls))
		for _, call := range turn.ToolCalls {
			name := tools.Name(call.Name)
			result := o.executor.Execute(ctx, name, call.Args, in.Caller)
			actions = append(actions, tools.ActionsFor(name, call.Args, result)...)

			content, err := utils.MarshalNoEscape(result)
			if err != nil {
				content = []byte(fmt.Sprintf(`{"error":"result marshal failed: %v"}`, err))
			}
			results = append(results, llm.ToolResult{
				CallID:  call.ID,
				Name:    call.Name,
				Content: string(content),
			})
		}
		conversation.AddToolResults(results)
	}

	return &ChatResult{
		Reply:    reply,
		Actions:  actions,
		Provider: string(model.Provider),
		Model:    model.ID,
	}, nil
}

// send issues one conversation round and writes its usage record.
func (o *Orchestrator) send(ctx context.Context, conversation llm.Conversation, model registry.Model, userID string) (*llm.Turn, error) {
	start := time.Now()
	turn, err := conversation.Send(ctx)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		o.ledger.Record(ctx, ledger.UsageRecord{
			Provider:   string(model.Provider),
			Model:      model.ID,
			LatencyMs:  latency,
			QueryType:  chatQueryType,
			Source:     chatSource,
			Success:    false,
			ErrorClass: utils.Truncate(err.Error(), config.MaxErrorClassLen),
			UserID:     userID,
		})
		return nil, err
	}

	o.ledger.Record(ctx, ledger.UsageRecord{
		Provider:     string(model.Provider),
		Model:        model.ID,
		InputTokens:  turn.InputTokens,
		OutputTokens: turn.OutputTokens,
		CostUSD:      model.Cost(turn.InputTokens, turn.OutputTokens),
		LatencyMs:    latency,
		QueryType:    chatQueryType,
		Source:       chatSource,
		Success:      true,
		UserID:       userID,
	})
	return turn, nil
}

// fallbackCompletion answers without tool calling: fetch a fixed context
// bundle through the executor, inline it truncated into the system prompt,
// and run one plain completion on the cheapest available model.
func (o *Orchestrator) fallbackCompletion(ctx context.Context, in ChatInput, messages []llm.Message) (*ChatResult, error) {
	candidates := o.registry.AllAvailableModels()
	if len(candidates) == 0 {
		return nil, errors.New("orchestrator: no models available for fallback")
	}
	model := candidates[0]

	client, err := o.clients(model.Provider)
	if err != nil {
		return nil, err
	}

	bundle := o.contextBundle(ctx, in.Caller)

	start := time.Now()
	completion, err := client.Complete(ctx, llm.CompletionRequest{
		Model:    model.ID,
		System:   fallbackPrompt(in.Caller, in.Console, bundle),
		Messages: messages,
	})
	latency := time.Since(start).Milliseconds()

	if err != nil {
		o.ledger.Record(ctx, ledger.UsageRecord{
			Provider:   string(model.Provider),
			Model:      model.ID,
			LatencyMs:  latency,
			QueryType:  chatQueryType,
			Source:     chatSource,
			Success:    false,
			ErrorClass: utils.Truncate(err.Error(), config.MaxErrorClassLen),
			UserID:     in.UserID,
		})
		return nil, fmt.Errorf("fallback completion: %w", err)
	}

	o.ledger.Record(ctx, ledger.UsageRecord{
		Provider:     string(model.Provider),
		Model:        model.ID,
		InputTokens:  completion.InputTokens,
		OutputTokens: completion.OutputTokens,
		CostUSD:      model.Cost(completion.InputTokens, completion.OutputTokens),
		LatencyMs:    latency,
		QueryType:    chatQueryType,
		Source:       chatSource,
		Success:      true,
		UserID:       in.UserID,
	})

	return &ChatResult{
		Reply:    completion.Text,
		Provider: string(model.Provider),
		Model:    model.ID,
	}, nil
}

// contextBundle fetches the caller's loads and recent activity through the
// executor and truncates the JSON to the token budget.
func (o *Orchestrator) contextBundle(ctx context.Context, caller access.Caller) string {
	bundle := map[string]any{
		"myLoads":        o.executor.Execute(ctx, tools.GetMyLoads, nil, caller),
		"recentActivity": o.executor.Execute(ctx, tools.GetRecentActivity, nil, caller),
	}
	data, err := utils.MarshalNoEscape(bundle)
	if err != nil {
		log.Error().Err(err).Msg("orchestrator: context bundle marshal failed")
		return "{}"
	}
	return truncateToTokens(string(data), config.ContextBundleTokenBudget)
}

// truncateToTokens cuts s to at most budget tokens of the cl100k_base
// encoding; on encoder failure it falls back to a byte estimate.
func truncateToTokens(s string, budget int) string {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		// Rough 4 bytes/token estimate.
		return utils.Truncate(s, budget*4)
	}
	ids := enc.Encode(s, nil, nil)
	if len(ids) <= budget {
		return s
	}
	return enc.Decode(ids[:budget])
}

// persistTurn appends exactly the user and assistant messages and trims the
// conversation to its cap. Persistence failures do not fail the turn.
func (o *Orchestrator) persistTurn(ctx context.Context, conversationID, userMessage string, result *ChatResult) {
	actionsJSON := ""
	if len(result.Actions) > 0 {
		if data, err := utils.MarshalNoEscape(result.Actions); err == nil {
			actionsJSON = string(data)
		}
	}
	msgs := []domain.ConversationMessage{
		{Role: domain.MessageRoleUser, Content: userMessage},
		{Role: domain.MessageRoleAssistant, Content: result.Reply, ActionsJSON: actionsJSON},
	}
	if err := o.store.AppendConversationMessages(ctx, conversationID, msgs, config.ConversationCap); err != nil {
		log.Error().Err(err).Str("conversation_id", conversationID).Msg("orchestrator: failed to persist turn")
	}
}
