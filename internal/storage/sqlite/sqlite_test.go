package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freightdesk/dispatch-ai/internal/domain"
	"github.com/freightdesk/dispatch-ai/internal/ledger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestUsageEventRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	rec := ledger.UsageRecord{
		ID: "u1", Provider: "openai", Model: "gpt-4o-mini",
		InputTokens: 1200, OutputTokens: 80, CostUSD: 0.00023,
		LatencyMs: 340, QueryType: "rate_prediction", Source: "api",
		Success: true, UserID: "user-1", CreatedAt: now,
	}
	require.NoError(t, store.InsertUsageEvent(ctx, rec))

	got, err := store.UsageEventsSince(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec, got[0])

	// Records before the window are excluded.
	none, err := store.UsageEventsSince(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLoadScopeFiltering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertLoad(ctx, domain.Load{
		ID: "L1", ReferenceNumber: "FD-1", Status: domain.LoadStatusInTransit,
		CarrierID: "C1", BrokerID: "B1", RiskLevel: domain.RiskLevelLow,
	}))
	require.NoError(t, store.UpsertLoad(ctx, domain.Load{
		ID: "L2", ReferenceNumber: "FD-2", Status: domain.LoadStatusBooked,
		CarrierID: "C2", BrokerID: "B2", RiskLevel: domain.RiskLevelLow,
	}))

	_, err := store.LoadByID(ctx, "L1", domain.ScopeCarrier("C2"))
	assert.ErrorIs(t, err, ErrNotFound)

	l, err := store.LoadByID(ctx, "L1", domain.ScopeCarrier("C1"))
	require.NoError(t, err)
	assert.Equal(t, "FD-1", l.ReferenceNumber)

	brokerLoads, err := store.ActiveLoads(ctx, domain.ScopeBroker("B2"), 10)
	require.NoError(t, err)
	require.Len(t, brokerLoads, 1)
	assert.Equal(t, "L2", brokerLoads[0].ID)

	all, err := store.ActiveLoads(ctx, domain.ScopeAll(), 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// A scope naming nobody sees nothing.
	empty, err := store.ActiveLoads(ctx, domain.LoadScope{}, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSearchLoads(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertLoad(ctx, domain.Load{
		ID: "L1", ReferenceNumber: "FD-1001", Status: domain.LoadStatusInTransit,
		OriginCity: "Chicago", DestinationCity: "Dallas", EquipmentType: "reefer",
		CarrierID: "C1", RiskLevel: domain.RiskLevelLow,
	}))

	for _, query := range []string{"FD-1001", "Chicago", "Dallas", "reefer"} {
		loads, err := store.SearchLoads(ctx, query, domain.ScopeAll(), 10)
		require.NoError(t, err)
		assert.Len(t, loads, 1, query)
	}

	loads, err := store.SearchLoads(ctx, "Miami", domain.ScopeAll(), 10)
	require.NoError(t, err)
	assert.Empty(t, loads)
}

func TestConversationLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.FindRecentConversation(ctx, "u1", "ops_console", 24*time.Hour)
	assert.ErrorIs(t, err, ErrNotFound)

	conv, err := store.CreateConversation(ctx, "u1", "ops_console")
	require.NoError(t, err)

	found, err := store.FindRecentConversation(ctx, "u1", "ops_console", 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, found.ID)

	// A different console does not match.
	_, err = store.FindRecentConversation(ctx, "u1", "carrier_portal", 24*time.Hour)
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.AppendConversationMessages(ctx, conv.ID, []domain.ConversationMessage{
		{Role: domain.MessageRoleUser, Content: "where is FD-1001"},
		{Role: domain.MessageRoleAssistant, Content: "in transit near Tulsa"},
	}, 100)
	require.NoError(t, err)

	msgs, err := store.ConversationMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.MessageRoleUser, msgs[0].Role)
	assert.Equal(t, domain.MessageRoleAssistant, msgs[1].Role)
}

func TestConversationTrimsToCap(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, "u1", "ops_console")
	require.NoError(t, err)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 6; i++ {
		require.NoError(t, store.AppendConversationMessages(ctx, conv.ID, []domain.ConversationMessage{
			{Role: domain.MessageRoleUser, Content: "msg", CreatedAt: base.Add(time.Duration(i) * time.Minute)},
		}, 4))
	}

	msgs, err := store.ConversationMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 4, "oldest messages trimmed past the cap")
}

func TestCarrierLookups(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertCarrier(ctx, domain.CarrierProfile{
		ID: "C1", Name: "Swift Logistics", MCNumber: "MC123", DOTNumber: "DOT456", Status: "active",
	}))

	byMC, err := store.CarrierByMCNumber(ctx, "MC123")
	require.NoError(t, err)
	assert.Equal(t, "C1", byMC.ID)

	byDOT, err := store.CarrierByDOTNumber(ctx, "DOT456")
	require.NoError(t, err)
	assert.Equal(t, "C1", byDOT.ID)

	found, err := store.SearchCarriers(ctx, "Swift", 10)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	_, err = store.CarrierByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestComplianceAlertFiltering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertComplianceAlert(ctx, domain.ComplianceAlert{
		ID: "A1", CarrierID: "C1", Type: "insurance_expiring", Severity: "high",
	}))
	require.NoError(t, store.UpsertComplianceAlert(ctx, domain.ComplianceAlert{
		ID: "A2", CarrierID: "C2", Type: "authority_lapsed", Severity: "critical",
	}))
	require.NoError(t, store.UpsertComplianceAlert(ctx, domain.ComplianceAlert{
		ID: "A3", CarrierID: "C1", Type: "insurance_expired", Severity: "critical", Resolved: true,
	}))

	all, err := store.UnresolvedComplianceAlerts(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2, "resolved alerts excluded")

	mine, err := store.UnresolvedComplianceAlerts(ctx, "C1", 10)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "A1", mine[0].ID)
}

func TestAuditEventFeed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertAuditEvent(ctx, domain.AuditEvent{
		UserID: "u1", Action: "access_denied", EntityType: "capability", EntityID: "financial summary",
	}))

	events, err := store.RecentAuditEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].ID)
	assert.Equal(t, "access_denied", events[0].Action)
}
