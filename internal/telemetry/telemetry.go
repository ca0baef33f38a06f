// Package telemetry records operational events to JSONL files.
//
// DESIGN: The tracker writes structured events as JSONL (one JSON object per
// line). It is the explicit side-channel for best-effort paths: router
// cascade attempts and swallowed ledger write failures land here so "never
// fail the caller" does not mean "silently lose the signal". Events are
// appended immediately after each event for real-time tailing.
package telemetry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freightdesk/dispatch-ai/internal/config"
)

// AttemptEvent records one router cascade attempt.
type AttemptEvent struct {
	Timestamp  time.Time `json:"timestamp"`
	Event      string    `json:"event"`
	QueryType  string    `json:"query_type"`
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	Position   int       `json:"position"`
	Success    bool      `json:"success"`
	LatencyMs  int64     `json:"latency_ms"`
	ErrorClass string    `json:"error_class,omitempty"`
}

// LedgerFailureEvent records a usage-event write that was swallowed.
type LedgerFailureEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Event     string    `json:"event"`
	Model     string    `json:"model"`
	QueryType string    `json:"query_type"`
	Error     string    `json:"error"`
}

// Tracker handles telemetry event recording to a JSONL file.
type Tracker struct {
	config config.TelemetryConfig
	path   string
	count  int
	mu     sync.Mutex
}

// NewTracker creates a telemetry tracker. With telemetry disabled or no log
// path configured, all record calls are no-ops.
func NewTracker(cfg config.TelemetryConfig) (*Tracker, error) {
	t := &Tracker{config: cfg}
	if !cfg.Enabled || cfg.LogPath == "" {
		return t, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0750); err != nil {
		return nil, err
	}
	t.path = cfg.LogPath
	if _, err := os.Stat(cfg.LogPath); os.IsNotExist(err) {
		if f, err := os.Create(cfg.LogPath); err == nil {
			_ = f.Close()
		}
	}
	return t, nil
}

// appendJSONL appends a single JSON object as a line to the file.
func appendJSONL(path string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	_, err = f.Write(data)
	return err
}

// RecordAttempt records a router cascade attempt. Safe on a nil Tracker.
func (t *Tracker) RecordAttempt(event AttemptEvent) {
	if t == nil || t.path == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	event.Event = "router_attempt"
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := appendJSONL(t.path, event); err != nil {
		log.Error().Err(err).Str("path", t.path).Msg("telemetry: failed to write attempt event")
	} else {
		t.count++
	}
}

// RecordLedgerFailure records a swallowed usage-event write failure. Safe on a
// nil Tracker.
func (t *Tracker) RecordLedgerFailure(event LedgerFailureEvent) {
	if t == nil || t.path == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	event.Event = "ledger_write_failure"
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := appendJSONL(t.path, event); err != nil {
		log.Error().Err(err).Str("path", t.path).Msg("telemetry: failed to write ledger failure event")
	}
}

// Close logs a session summary.
func (t *Tracker) Close() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.path != "" && t.count > 0 {
		log.Info().
			Str("path", t.path).
			Int("events", t.count).
			Msg("telemetry: session complete")
	}
	return nil
}
