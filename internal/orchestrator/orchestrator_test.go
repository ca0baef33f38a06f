package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freightdesk/dispatch-ai/internal/access"
	"github.com/freightdesk/dispatch-ai/internal/config"
	"github.com/freightdesk/dispatch-ai/internal/domain"
	"github.com/freightdesk/dispatch-ai/internal/ledger"
	"github.com/freightdesk/dispatch-ai/internal/llm"
	"github.com/freightdesk/dispatch-ai/internal/registry"
	"github.com/freightdesk/dispatch-ai/internal/storage/sqlite"
	"github.com/freightdesk/dispatch-ai/internal/tools"
)

type memLedgerStore struct {
	recs []ledger.UsageRecord
}

func (m *memLedgerStore) InsertUsageEvent(_ context.Context, rec ledger.UsageRecord) error {
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memLedgerStore) UsageEventsSince(_ context.Context, _ time.Time) ([]ledger.UsageRecord, error) {
	return m.recs, nil
}

// scriptedConversation replays a fixed sequence of turns; the last turn
// repeats once the script runs out.
type scriptedConversation struct {
	turns   []*llm.Turn
	sendErr error
	sends   int
	results [][]llm.ToolResult
}

func (s *scriptedConversation) Send(_ context.Context) (*llm.Turn, error) {
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	i := s.sends
	s.sends++
	if i >= len(s.turns) {
		return s.turns[len(s.turns)-1], nil
	}
	return s.turns[i], nil
}

func (s *scriptedConversation) AddToolResults(results []llm.ToolResult) {
	s.results = append(s.results, results)
}

type fakeLLM struct {
	conv          *scriptedConversation
	completion    *llm.Completion
	completeErr   error
	completeCalls int
	lastSystem    string
}

func (f *fakeLLM) Provider() registry.ProviderID { return registry.ProviderOpenAI }

func (f *fakeLLM) NewConversation(_ llm.ChatRequest) llm.Conversation { return f.conv }

func (f *fakeLLM) Complete(_ context.Context, req llm.CompletionRequest) (*llm.Completion, error) {
	f.completeCalls++
	f.lastSystem = req.System
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return f.completion, nil
}

func testRegistry() *registry.Registry {
	return registry.NewWithProviders([]registry.Provider{{
		ID:            registry.ProviderOpenAI,
		HasCredential: true,
		Models: []registry.Model{{
			ID:             "test-model",
			Provider:       registry.ProviderOpenAI,
			InputCostPer1K: 0.001,
			Tier:           registry.TierStandard,
			Capabilities:   []registry.Capability{registry.CapChat, registry.CapTools},
		}},
	}})
}

func newTestOrchestrator(t *testing.T, client *fakeLLM) (*Orchestrator, *sqlite.Store, *memLedgerStore) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ledgerStore := &memLedgerStore{}
	led := ledger.New(ledgerStore, nil, config.BudgetConfig{MonthlyUSD: 100})
	executor := tools.NewExecutor(access.New(store))
	factory := func(registry.ProviderID) (llm.Client, error) { return client, nil }

	return New(testRegistry(), factory, executor, led, store), store, ledgerStore
}

func opsInput(message string) ChatInput {
	return ChatInput{
		UserID:  "ops1",
		Caller:  access.Operations{UserID: "ops1"},
		Message: message,
		Console: "ops_console",
	}
}

func TestChatPlainTurn(t *testing.T) {
	client := &fakeLLM{conv: &scriptedConversation{
		turns: []*llm.Turn{{Text: "All quiet on the board.", InputTokens: 900, OutputTokens: 40}},
	}}
	orch, store, ledgerStore := newTestOrchestrator(t, client)

	result, err := orch.Chat(context.Background(), opsInput("anything at risk?"))
	require.NoError(t, err)

	assert.Equal(t, "All quiet on the board.", result.Reply)
	assert.Equal(t, "test-model", result.Model)
	assert.Empty(t, result.Actions)

	// Exactly the user and assistant messages are persisted.
	msgs, err := store.ConversationMessages(context.Background(), result.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.MessageRoleUser, msgs[0].Role)
	assert.Equal(t, "anything at risk?", msgs[0].Content)
	assert.Equal(t, domain.MessageRoleAssistant, msgs[1].Role)

	require.Len(t, ledgerStore.recs, 1)
	assert.Equal(t, "chat", ledgerStore.recs[0].QueryType)
	assert.Equal(t, "assistant_chat", ledgerStore.recs[0].Source)
	assert.True(t, ledgerStore.recs[0].Success)
}

func TestChatToolRound(t *testing.T) {
	conv := &scriptedConversation{turns: []*llm.Turn{
		{ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "get_my_loads", Args: map[string]any{}}}},
		{Text: "You have no active loads.", InputTokens: 1200, OutputTokens: 30},
	}}
	client := &fakeLLM{conv: conv}
	orch, _, ledgerStore := newTestOrchestrator(t, client)

	result, err := orch.Chat(context.Background(), opsInput("what am I hauling?"))
	require.NoError(t, err)

	assert.Equal(t, "You have no active loads.", result.Reply)
	assert.Equal(t, 2, conv.sends)
	assert.NotEmpty(t, result.Actions, "load lookups synthesize actions")

	// The tool result went back into the conversation under its call id.
	require.Len(t, conv.results, 1)
	require.Len(t, conv.results[0], 1)
	assert.Equal(t, "call-1", conv.results[0][0].CallID)
	assert.Contains(t, conv.results[0][0].Content, "count")

	// One usage record per provider round.
	assert.Len(t, ledgerStore.recs, 2)
}

func TestChatToolRoundCap(t *testing.T) {
	// The model never stops asking for tools; the loop must cut it off and
	// return the text it produced.
	conv := &scriptedConversation{turns: []*llm.Turn{{
		Text:      "still digging",
		ToolCalls: []llm.ToolCall{{ID: "c", Name: "get_recent_activity", Args: map[string]any{}}},
	}}}
	client := &fakeLLM{conv: conv}
	orch, _, _ := newTestOrchestrator(t, client)

	result, err := orch.Chat(context.Background(), opsInput("keep going"))
	require.NoError(t, err)

	assert.Equal(t, "still digging", result.Reply)
	assert.Equal(t, config.MaxToolRounds+1, conv.sends, "one initial send plus the capped tool rounds")
	assert.Len(t, conv.results, config.MaxToolRounds, "no tool execution after the cap")
}

func TestChatUnknownToolFedBack(t *testing.T) {
	conv := &scriptedConversation{turns: []*llm.Turn{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "teleport_truck", Args: map[string]any{}}}},
		{Text: "I cannot do that."},
	}}
	client := &fakeLLM{conv: conv}
	orch, _, _ := newTestOrchestrator(t, client)

	result, err := orch.Chat(context.Background(), opsInput("teleport it"))
	require.NoError(t, err)

	assert.Equal(t, "I cannot do that.", result.Reply)
	require.Len(t, conv.results, 1)
	assert.Contains(t, conv.results[0][0].Content, "unknown tool")
}

func TestConversationReuseWithinWindow(t *testing.T) {
	client := &fakeLLM{conv: &scriptedConversation{
		turns: []*llm.Turn{{Text: "noted"}},
	}}
	orch, store, _ := newTestOrchestrator(t, client)
	ctx := context.Background()

	first, err := orch.Chat(ctx, opsInput("first message"))
	require.NoError(t, err)
	second, err := orch.Chat(ctx, opsInput("second message"))
	require.NoError(t, err)

	assert.Equal(t, first.ConversationID, second.ConversationID, "same user+console reuses the conversation")

	msgs, err := store.ConversationMessages(ctx, first.ConversationID)
	require.NoError(t, err)
	assert.Len(t, msgs, 4)

	// A different console starts fresh.
	otherConsole := opsInput("third message")
	otherConsole.Console = "accounting_console"
	third, err := orch.Chat(ctx, otherConsole)
	require.NoError(t, err)
	assert.NotEqual(t, first.ConversationID, third.ConversationID)
}

func TestFallbackCompletionOnProviderFailure(t *testing.T) {
	client := &fakeLLM{
		conv:       &scriptedConversation{sendErr: errors.New("vendor outage")},
		completion: &llm.Completion{Text: "Based on the snapshot, two loads are moving.", InputTokens: 800, OutputTokens: 50},
	}
	orch, _, ledgerStore := newTestOrchestrator(t, client)

	result, err := orch.Chat(context.Background(), opsInput("status?"))
	require.NoError(t, err)

	assert.Equal(t, "Based on the snapshot, two loads are moving.", result.Reply)
	assert.Equal(t, 1, client.completeCalls)
	assert.Contains(t, client.lastSystem, "Data snapshot", "context bundle inlined into the system prompt")
	assert.Contains(t, client.lastSystem, "myLoads")

	// Failure record from the tool path, success record from the fallback.
	require.Len(t, ledgerStore.recs, 2)
	assert.False(t, ledgerStore.recs[0].Success)
	assert.True(t, ledgerStore.recs[1].Success)
}

func TestFallbackAlsoFailing(t *testing.T) {
	client := &fakeLLM{
		conv:        &scriptedConversation{sendErr: errors.New("vendor outage")},
		completeErr: errors.New("still down"),
	}
	orch, _, _ := newTestOrchestrator(t, client)

	_, err := orch.Chat(context.Background(), opsInput("status?"))
	require.Error(t, err)
}

func TestEmptyMessageRejected(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, &fakeLLM{conv: &scriptedConversation{}})
	_, err := orch.Chat(context.Background(), opsInput(""))
	assert.Error(t, err)
}
