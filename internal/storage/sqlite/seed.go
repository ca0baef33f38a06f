package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/freightdesk/dispatch-ai/internal/domain"
)

// Upsert helpers used by the TMS sync job and by tests. The operational
// freight tables are written by the platform, not by the assistant; these
// writers exist so the module can ingest snapshots.

// UpsertLoad inserts or replaces one load row.
func (s *Store) UpsertLoad(ctx context.Context, l domain.Load) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO loads (
			id, reference_number, status, origin_city, origin_state,
			destination_city, destination_state, equipment_type, miles,
			carrier_rate, customer_rate, carrier_id, broker_id, customer_id,
			pickup_date, scheduled_delivery, actual_delivery, last_check_call_at,
			risk_level, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.ReferenceNumber, l.Status, l.OriginCity, l.OriginState,
		l.DestinationCity, l.DestinationState, l.EquipmentType, l.Miles,
		l.CarrierRate, l.CustomerRate, l.CarrierID, l.BrokerID, l.CustomerID,
		toMillis(l.PickupDate), toMillis(l.ScheduledDelivery),
		toNullMillis(l.ActualDelivery), toNullMillis(l.LastCheckCallAt),
		l.RiskLevel, toMillis(l.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert load: %w", err)
	}
	return nil
}

// UpsertCarrier inserts or replaces one carrier row.
func (s *Store) UpsertCarrier(ctx context.Context, c domain.CarrierProfile) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO carriers (
			id, name, mc_number, dot_number, status, safety_rating,
			on_time_percent, insurance_expiry, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.MCNumber, c.DOTNumber, c.Status, c.SafetyRating,
		c.OnTimePercent, toMillis(c.InsuranceExpiry), toMillis(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert carrier: %w", err)
	}
	return nil
}

// UpsertCustomer inserts or replaces one shipper row.
func (s *Store) UpsertCustomer(ctx context.Context, c domain.Customer) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO customers (
			id, name, city, state, credit_limit, payment_terms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.City, c.State, c.CreditLimit, c.PaymentTerms, toMillis(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}
	return nil
}

// UpsertInvoice inserts or replaces one invoice row.
func (s *Store) UpsertInvoice(ctx context.Context, inv domain.Invoice) error {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO invoices (
			id, load_id, customer_id, amount, status, due_date, paid_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.LoadID, inv.CustomerID, inv.Amount, inv.Status,
		toMillis(inv.DueDate), toNullMillis(inv.PaidAt), toMillis(inv.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert invoice: %w", err)
	}
	return nil
}

// UpsertCarrierPayment inserts or replaces one payment row.
func (s *Store) UpsertCarrierPayment(ctx context.Context, p domain.CarrierPayment) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO carrier_payments (
			id, load_id, carrier_id, amount, status, scheduled_at, paid_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.LoadID, p.CarrierID, p.Amount, p.Status,
		toMillis(p.ScheduledAt), toNullMillis(p.PaidAt), toMillis(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert carrier payment: %w", err)
	}
	return nil
}

// UpsertComplianceAlert inserts or replaces one alert row.
func (s *Store) UpsertComplianceAlert(ctx context.Context, a domain.ComplianceAlert) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO compliance_alerts (
			id, carrier_id, type, severity, message, resolved, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.CarrierID, a.Type, a.Severity, a.Message, boolToInt(a.Resolved), toMillis(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert compliance alert: %w", err)
	}
	return nil
}
