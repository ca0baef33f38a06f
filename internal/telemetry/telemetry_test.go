package telemetry

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freightdesk/dispatch-ai/internal/config"
)

func TestDisabledTrackerIsNoOp(t *testing.T) {
	tracker, err := NewTracker(config.TelemetryConfig{Enabled: false})
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		tracker.RecordAttempt(AttemptEvent{Model: "gpt-4o-mini"})
		tracker.RecordLedgerFailure(LedgerFailureEvent{Model: "gpt-4o-mini"})
	})
	require.NoError(t, tracker.Close())
}

func TestTrackerAppendsJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry", "events.jsonl")
	tracker, err := NewTracker(config.TelemetryConfig{Enabled: true, LogPath: path})
	require.NoError(t, err)

	tracker.RecordAttempt(AttemptEvent{
		QueryType: "rate_prediction",
		Provider:  "openai",
		Model:     "gpt-4o-mini",
		Position:  1,
		Success:   true,
		LatencyMs: 120,
	})
	tracker.RecordLedgerFailure(LedgerFailureEvent{
		Model:     "gpt-4o",
		QueryType: "chat",
		Error:     "disk full",
	})
	require.NoError(t, tracker.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var event map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &event))
		lines = append(lines, event)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, lines, 2)
	assert.Equal(t, "router_attempt", lines[0]["event"])
	assert.Equal(t, "gpt-4o-mini", lines[0]["model"])
	assert.Equal(t, "ledger_write_failure", lines[1]["event"])
	assert.Equal(t, "disk full", lines[1]["error"])
	for _, line := range lines {
		assert.NotEmpty(t, line["timestamp"])
	}
}
