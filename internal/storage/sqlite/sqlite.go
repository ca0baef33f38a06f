// Package sqlite is the embedded persistence layer.
//
// DESIGN: One database file holds both the operational freight tables the
// assistant reads and the tables this module owns outright (usage events,
// conversations, audit events). All timestamps are stored as Unix
// milliseconds in UTC. Row-level visibility is enforced here: every load
// query takes a LoadScope and compiles it into the WHERE clause, so an
// unscoped read path cannot exist by accident.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("sqlite: not found")

const schema = `
CREATE TABLE IF NOT EXISTS usage_events (
	id TEXT PRIMARY KEY,
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	input_tokens INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	cost_usd REAL NOT NULL DEFAULT 0,
	latency_ms INTEGER NOT NULL DEFAULT 0,
	query_type TEXT NOT NULL,
	source TEXT NOT NULL,
	success INTEGER NOT NULL DEFAULT 1,
	error_class TEXT NOT NULL DEFAULT '',
	user_id TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_usage_events_created ON usage_events(created_at);

CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	console TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id, console, updated_at);

CREATE TABLE IF NOT EXISTS conversation_messages (
	id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	actions_json TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversation_messages_conv ON conversation_messages(conversation_id, created_at);

CREATE TABLE IF NOT EXISTS loads (
	id TEXT PRIMARY KEY,
	reference_number TEXT NOT NULL,
	status TEXT NOT NULL,
	origin_city TEXT NOT NULL DEFAULT '',
	origin_state TEXT NOT NULL DEFAULT '',
	destination_city TEXT NOT NULL DEFAULT '',
	destination_state TEXT NOT NULL DEFAULT '',
	equipment_type TEXT NOT NULL DEFAULT '',
	miles REAL NOT NULL DEFAULT 0,
	carrier_rate REAL NOT NULL DEFAULT 0,
	customer_rate REAL NOT NULL DEFAULT 0,
	carrier_id TEXT NOT NULL DEFAULT '',
	broker_id TEXT NOT NULL DEFAULT '',
	customer_id TEXT NOT NULL DEFAULT '',
	pickup_date INTEGER NOT NULL DEFAULT 0,
	scheduled_delivery INTEGER NOT NULL DEFAULT 0,
	actual_delivery INTEGER,
	last_check_call_at INTEGER,
	risk_level TEXT NOT NULL DEFAULT 'low',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_loads_reference ON loads(reference_number);
CREATE INDEX IF NOT EXISTS idx_loads_status ON loads(status);

CREATE TABLE IF NOT EXISTS carriers (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	mc_number TEXT NOT NULL DEFAULT '',
	dot_number TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'active',
	safety_rating TEXT NOT NULL DEFAULT '',
	on_time_percent REAL NOT NULL DEFAULT 0,
	insurance_expiry INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_carriers_mc ON carriers(mc_number);
CREATE INDEX IF NOT EXISTS idx_carriers_dot ON carriers(dot_number);

CREATE TABLE IF NOT EXISTS customers (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	city TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL DEFAULT '',
	credit_limit REAL NOT NULL DEFAULT 0,
	payment_terms TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS invoices (
	id TEXT PRIMARY KEY,
	load_id TEXT NOT NULL,
	customer_id TEXT NOT NULL,
	amount REAL NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	due_date INTEGER NOT NULL DEFAULT 0,
	paid_at INTEGER,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_invoices_customer ON invoices(customer_id);

CREATE TABLE IF NOT EXISTS carrier_payments (
	id TEXT PRIMARY KEY,
	load_id TEXT NOT NULL,
	carrier_id TEXT NOT NULL,
	amount REAL NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	scheduled_at INTEGER NOT NULL DEFAULT 0,
	paid_at INTEGER,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_carrier_payments_carrier ON carrier_payments(carrier_id);

CREATE TABLE IF NOT EXISTS compliance_alerts (
	id TEXT PRIMARY KEY,
	carrier_id TEXT NOT NULL,
	type TEXT NOT NULL,
	severity TEXT NOT NULL,
	message TEXT NOT NULL DEFAULT '',
	resolved INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_compliance_alerts_carrier ON compliance_alerts(carrier_id, resolved);

CREATE TABLE IF NOT EXISTS audit_events (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	action TEXT NOT NULL,
	entity_type TEXT NOT NULL DEFAULT '',
	entity_id TEXT NOT NULL DEFAULT '',
	detail TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_events_created ON audit_events(created_at);
`

// Store wraps the SQLite handle.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// modernc's driver is not safe for concurrent writers on one connection
	// pool without serialization; a single connection sidesteps SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying handle.
func (s *Store) Close() error { return s.db.Close() }

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func toNullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func rowsErr(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate rows: %w", err)
	}
	return nil
}
