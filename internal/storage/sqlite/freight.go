package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/freightdesk/dispatch-ai/internal/domain"
)

const loadColumns = `id, reference_number, status, origin_city, origin_state,
	destination_city, destination_state, equipment_type, miles, carrier_rate,
	customer_rate, carrier_id, broker_id, customer_id, pickup_date,
	scheduled_delivery, actual_delivery, last_check_call_at, risk_level, created_at`

// scopeClause compiles a LoadScope into a WHERE fragment. The fragment always
// starts with AND so it can be appended to an existing predicate.
func scopeClause(scope domain.LoadScope) (string, []any) {
	switch {
	case scope.All:
		return "", nil
	case scope.CarrierID != "":
		return " AND carrier_id = ?", []any{scope.CarrierID}
	case scope.BrokerID != "":
		return " AND broker_id = ?", []any{scope.BrokerID}
	default:
		// A scope that names nobody sees nothing.
		return " AND 1 = 0", nil
	}
}

// LoadByID fetches one load visible under scope.
func (s *Store) LoadByID(ctx context.Context, id string, scope domain.LoadScope) (*domain.Load, error) {
	clause, args := scopeClause(scope)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+loadColumns+` FROM loads WHERE id = ?`+clause,
		append([]any{id}, args...)...,
	)
	return scanLoad(row)
}

// LoadByReference fetches one load by its reference number, visible under
// scope.
func (s *Store) LoadByReference(ctx context.Context, ref string, scope domain.LoadScope) (*domain.Load, error) {
	clause, args := scopeClause(scope)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+loadColumns+` FROM loads WHERE reference_number = ?`+clause+` LIMIT 1`,
		append([]any{ref}, args...)...,
	)
	return scanLoad(row)
}

// SearchLoads matches query against reference number, lane cities, and
// equipment type, newest first.
func (s *Store) SearchLoads(ctx context.Context, query string, scope domain.LoadScope, limit int) ([]domain.Load, error) {
	clause, args := scopeClause(scope)
	pattern := "%" + query + "%"
	queryArgs := append([]any{pattern, pattern, pattern, pattern}, args...)
	queryArgs = append(queryArgs, limit)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+loadColumns+` FROM loads
		WHERE (reference_number LIKE ? OR origin_city LIKE ? OR destination_city LIKE ? OR equipment_type LIKE ?)`+clause+`
		ORDER BY created_at DESC
		LIMIT ?`,
		queryArgs...,
	)
	if err != nil {
		return nil, fmt.Errorf("search loads: %w", err)
	}
	return scanLoads(rows)
}

// ActiveLoads returns pending, booked, and in-transit loads under scope,
// soonest delivery first.
func (s *Store) ActiveLoads(ctx context.Context, scope domain.LoadScope, limit int) ([]domain.Load, error) {
	clause, args := scopeClause(scope)
	queryArgs := append([]any{domain.LoadStatusPending, domain.LoadStatusBooked, domain.LoadStatusInTransit}, args...)
	queryArgs = append(queryArgs, limit)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+loadColumns+` FROM loads
		WHERE status IN (?, ?, ?)`+clause+`
		ORDER BY scheduled_delivery ASC
		LIMIT ?`,
		queryArgs...,
	)
	if err != nil {
		return nil, fmt.Errorf("query active loads: %w", err)
	}
	return scanLoads(rows)
}

// LoadsSince returns loads created at or after since, visible under scope.
func (s *Store) LoadsSince(ctx context.Context, since time.Time, scope domain.LoadScope) ([]domain.Load, error) {
	clause, args := scopeClause(scope)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+loadColumns+` FROM loads WHERE created_at >= ?`+clause+` ORDER BY created_at DESC`,
		append([]any{toMillis(since)}, args...)...,
	)
	if err != nil {
		return nil, fmt.Errorf("query loads since: %w", err)
	}
	return scanLoads(rows)
}

func scanLoad(row *sql.Row) (*domain.Load, error) {
	var l domain.Load
	var pickup, scheduled, createdAt int64
	var actual, lastCheckCall sql.NullInt64
	err := row.Scan(
		&l.ID, &l.ReferenceNumber, &l.Status, &l.OriginCity, &l.OriginState,
		&l.DestinationCity, &l.DestinationState, &l.EquipmentType, &l.Miles,
		&l.CarrierRate, &l.CustomerRate, &l.CarrierID, &l.BrokerID, &l.CustomerID,
		&pickup, &scheduled, &actual, &lastCheckCall, &l.RiskLevel, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan load: %w", err)
	}
	l.PickupDate = fromMillis(pickup)
	l.ScheduledDelivery = fromMillis(scheduled)
	l.ActualDelivery = fromNullMillis(actual)
	l.LastCheckCallAt = fromNullMillis(lastCheckCall)
	l.CreatedAt = fromMillis(createdAt)
	return &l, nil
}

func scanLoads(rows *sql.Rows) ([]domain.Load, error) {
	defer func() { _ = rows.Close() }()
	var out []domain.Load
	for rows.Next() {
		var l domain.Load
		var pickup, scheduled, createdAt int64
		var actual, lastCheckCall sql.NullInt64
		if err := rows.Scan(
			&l.ID, &l.ReferenceNumber, &l.Status, &l.OriginCity, &l.OriginState,
			&l.DestinationCity, &l.DestinationState, &l.EquipmentType, &l.Miles,
			&l.CarrierRate, &l.CustomerRate, &l.CarrierID, &l.BrokerID, &l.CustomerID,
			&pickup, &scheduled, &actual, &lastCheckCall, &l.RiskLevel, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan load: %w", err)
		}
		l.PickupDate = fromMillis(pickup)
		l.ScheduledDelivery = fromMillis(scheduled)
		l.ActualDelivery = fromNullMillis(actual)
		l.LastCheckCallAt = fromNullMillis(lastCheckCall)
		l.CreatedAt = fromMillis(createdAt)
		out = append(out, l)
	}
	return out, rowsErr(rows)
}

const carrierColumns = `id, name, mc_number, dot_number, status, safety_rating,
	on_time_percent, insurance_expiry, created_at`

// CarrierByID fetches one carrier by primary key.
func (s *Store) CarrierByID(ctx context.Context, id string) (*domain.CarrierProfile, error) {
	return scanCarrier(s.db.QueryRowContext(ctx,
		`SELECT `+carrierColumns+` FROM carriers WHERE id = ?`, id))
}

// CarrierByMCNumber fetches one carrier by MC number.
func (s *Store) CarrierByMCNumber(ctx context.Context, mc string) (*domain.CarrierProfile, error) {
	return scanCarrier(s.db.QueryRowContext(ctx,
		`SELECT `+carrierColumns+` FROM carriers WHERE mc_number = ? LIMIT 1`, mc))
}

// CarrierByDOTNumber fetches one carrier by DOT number.
func (s *Store) CarrierByDOTNumber(ctx context.Context, dot string) (*domain.CarrierProfile, error) {
	return scanCarrier(s.db.QueryRowContext(ctx,
		`SELECT `+carrierColumns+` FROM carriers WHERE dot_number = ? LIMIT 1`, dot))
}

// SearchCarriers matches query against carrier name, MC, and DOT numbers.
func (s *Store) SearchCarriers(ctx context.Context, query string, limit int) ([]domain.CarrierProfile, error) {
	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+carrierColumns+` FROM carriers
		WHERE name LIKE ? OR mc_number LIKE ? OR dot_number LIKE ?
		ORDER BY name ASC
		LIMIT ?`,
		pattern, pattern, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search carriers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.CarrierProfile
	for rows.Next() {
		c, err := scanCarrierRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rowsErr(rows)
}

func scanCarrier(row *sql.Row) (*domain.CarrierProfile, error) {
	var c domain.CarrierProfile
	var insuranceExpiry, createdAt int64
	err := row.Scan(&c.ID, &c.Name, &c.MCNumber, &c.DOTNumber, &c.Status,
		&c.SafetyRating, &c.OnTimePercent, &insuranceExpiry, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan carrier: %w", err)
	}
	c.InsuranceExpiry = fromMillis(insuranceExpiry)
	c.CreatedAt = fromMillis(createdAt)
	return &c, nil
}

func scanCarrierRow(rows *sql.Rows) (*domain.CarrierProfile, error) {
	var c domain.CarrierProfile
	var insuranceExpiry, createdAt int64
	if err := rows.Scan(&c.ID, &c.Name, &c.MCNumber, &c.DOTNumber, &c.Status,
		&c.SafetyRating, &c.OnTimePercent, &insuranceExpiry, &createdAt); err != nil {
		return nil, fmt.Errorf("scan carrier: %w", err)
	}
	c.InsuranceExpiry = fromMillis(insuranceExpiry)
	c.CreatedAt = fromMillis(createdAt)
	return &c, nil
}

// CustomerByID fetches one shipper account.
func (s *Store) CustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, city, state, credit_limit, payment_terms, created_at
		FROM customers WHERE id = ?`, id)
	var c domain.Customer
	var createdAt int64
	err := row.Scan(&c.ID, &c.Name, &c.City, &c.State, &c.CreditLimit, &c.PaymentTerms, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan customer: %w", err)
	}
	c.CreatedAt = fromMillis(createdAt)
	return &c, nil
}

// SearchCustomers matches query against shipper name, city, and state.
func (s *Store) SearchCustomers(ctx context.Context, query string, limit int) ([]domain.Customer, error) {
	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, city, state, credit_limit, payment_terms, created_at
		FROM customers
		WHERE name LIKE ? OR city LIKE ? OR state LIKE ?
		ORDER BY name ASC
		LIMIT ?`,
		pattern, pattern, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search customers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Customer
	for rows.Next() {
		var c domain.Customer
		var createdAt int64
		if err := rows.Scan(&c.ID, &c.Name, &c.City, &c.State, &c.CreditLimit, &c.PaymentTerms, &createdAt); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		c.CreatedAt = fromMillis(createdAt)
		out = append(out, c)
	}
	return out, rowsErr(rows)
}

// OpenInvoices returns unpaid invoices, oldest due date first.
func (s *Store) OpenInvoices(ctx context.Context, limit int) ([]domain.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, load_id, customer_id, amount, status, due_date, paid_at, created_at
		FROM invoices
		WHERE paid_at IS NULL
		ORDER BY due_date ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query open invoices: %w", err)
	}
	return scanInvoices(rows)
}

// InvoicesForCustomer returns a customer's invoices, newest first.
func (s *Store) InvoicesForCustomer(ctx context.Context, customerID string, limit int) ([]domain.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, load_id, customer_id, amount, status, due_date, paid_at, created_at
		FROM invoices
		WHERE customer_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query customer invoices: %w", err)
	}
	return scanInvoices(rows)
}

func scanInvoices(rows *sql.Rows) ([]domain.Invoice, error) {
	defer func() { _ = rows.Close() }()
	var out []domain.Invoice
	for rows.Next() {
		var inv domain.Invoice
		var dueDate, createdAt int64
		var paidAt sql.NullInt64
		if err := rows.Scan(&inv.ID, &inv.LoadID, &inv.CustomerID, &inv.Amount,
			&inv.Status, &dueDate, &paidAt, &createdAt); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		inv.DueDate = fromMillis(dueDate)
		inv.PaidAt = fromNullMillis(paidAt)
		inv.CreatedAt = fromMillis(createdAt)
		out = append(out, inv)
	}
	return out, rowsErr(rows)
}

// PaymentsForCarrier returns a carrier's payments, newest first.
func (s *Store) PaymentsForCarrier(ctx context.Context, carrierID string, limit int) ([]domain.CarrierPayment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, load_id, carrier_id, amount, status, scheduled_at, paid_at, created_at
		FROM carrier_payments
		WHERE carrier_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, carrierID, limit)
	if err != nil {
		return nil, fmt.Errorf("query carrier payments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.CarrierPayment
	for rows.Next() {
		var p domain.CarrierPayment
		var scheduledAt, createdAt int64
		var paidAt sql.NullInt64
		if err := rows.Scan(&p.ID, &p.LoadID, &p.CarrierID, &p.Amount, &p.Status,
			&scheduledAt, &paidAt, &createdAt); err != nil {
			return nil, fmt.Errorf("scan carrier payment: %w", err)
		}
		p.ScheduledAt = fromMillis(scheduledAt)
		p.PaidAt = fromNullMillis(paidAt)
		p.CreatedAt = fromMillis(createdAt)
		out = append(out, p)
	}
	return out, rowsErr(rows)
}

// UnresolvedComplianceAlerts returns open alerts, optionally limited to one
// carrier when carrierID is non-empty.
func (s *Store) UnresolvedComplianceAlerts(ctx context.Context, carrierID string, limit int) ([]domain.ComplianceAlert, error) {
	query := `
		SELECT id, carrier_id, type, severity, message, resolved, created_at
		FROM compliance_alerts
		WHERE resolved = 0`
	args := []any{}
	if carrierID != "" {
		query += ` AND carrier_id = ?`
		args = append(args, carrierID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query compliance alerts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.ComplianceAlert
	for rows.Next() {
		var a domain.ComplianceAlert
		var resolved int
		var createdAt int64
		if err := rows.Scan(&a.ID, &a.CarrierID, &a.Type, &a.Severity, &a.Message, &resolved, &createdAt); err != nil {
			return nil, fmt.Errorf("scan compliance alert: %w", err)
		}
		a.Resolved = resolved != 0
		a.CreatedAt = fromMillis(createdAt)
		out = append(out, a)
	}
	return out, rowsErr(rows)
}

// RecentAuditEvents returns the activity feed, newest first.
func (s *Store) RecentAuditEvents(ctx context.Context, limit int) ([]domain.AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, action, entity_type, entity_id, detail, created_at
		FROM audit_events
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.AuditEvent
	for rows.Next() {
		var ev domain.AuditEvent
		var createdAt int64
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.Action, &ev.EntityType, &ev.EntityID, &ev.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		ev.CreatedAt = fromMillis(createdAt)
		out = append(out, ev)
	}
	return out, rowsErr(rows)
}

// InsertAuditEvent records one audit entry.
func (s *Store) InsertAuditEvent(ctx context.Context, ev domain.AuditEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, user_id, action, entity_type, entity_id, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.UserID, ev.Action, ev.EntityType, ev.EntityID, ev.Detail, toMillis(ev.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
