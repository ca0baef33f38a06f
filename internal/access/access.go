// Package access is the role-scoped data layer between the tool executor and
// the store.
//
// DESIGN: Every accessor independently enforces three gates: row-level
// scoping (compiled into the store query, never post-hoc), field-level
// redaction for the carrier role, and capability gating with structured
// access-denied results. Accessors return a Result map and never an error:
// store failures become {error: message} so a broken query degrades into
// tool output the model can explain instead of aborting the turn. Denied
// calls additionally land an audit event, best-effort.
package access

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freightdesk/dispatch-ai/internal/domain"
)

// Caller identifies who is asking. It is a closed set of role variants so
// role-specific fields exist only where they are valid. Constructed once per
// request and never persisted.
type Caller interface {
	ID() string
	RoleName() string
	caller()
}

// Carrier is a motor-carrier user, bound to one carrier profile.
type Carrier struct {
	UserID    string
	CarrierID string
}

// Broker is a brokerage rep who sees the loads they originated.
type Broker struct {
	UserID string
}

// Operations is a back-office dispatcher with full row visibility.
type Operations struct {
	UserID string
}

// Accounting is a back-office finance user with full row visibility.
type Accounting struct {
	UserID string
}

// Admin has full visibility.
type Admin struct {
	UserID string
}

// Public is an unauthenticated caller. It matches no rows and is denied every
// gated capability, so an anonymous session can chat but never reads data.
type Public struct{}

func (c Carrier) ID() string    { return c.UserID }
func (b Broker) ID() string     { return b.UserID }
func (o Operations) ID() string { return o.UserID }
func (a Accounting) ID() string { return a.UserID }
func (a Admin) ID() string      { return a.UserID }
func (Public) ID() string       { return "" }

func (Carrier) RoleName() string    { return "carrier" }
func (Broker) RoleName() string     { return "broker" }
func (Operations) RoleName() string { return "operations" }
func (Accounting) RoleName() string { return "accounting" }
func (Admin) RoleName() string      { return "admin" }
func (Public) RoleName() string     { return "public" }

func (Carrier) caller()    {}
func (Broker) caller()     {}
func (Operations) caller() {}
func (Accounting) caller() {}
func (Admin) caller()      {}
func (Public) caller()     {}

// scopeFor derives the row filter from the caller's role. Derived exactly
// once per accessor call and handed to the store.
func scopeFor(c Caller) domain.LoadScope {
	switch c := c.(type) {
	case Carrier:
		return domain.ScopeCarrier(c.CarrierID)
	case Broker:
		return domain.ScopeBroker(c.UserID)
	case Public:
		return domain.ScopeNone()
	default:
		return domain.ScopeAll()
	}
}

// Result is the uniform accessor return shape. A failed call carries a
// single "error" key.
type Result map[string]any

// Err returns the error message if the result is a failure.
func (r Result) Err() (string, bool) {
	msg, ok := r["error"].(string)
	return msg, ok
}

// Store is the persistence surface the access layer reads.
type Store interface {
	LoadByID(ctx context.Context, id string, scope domain.LoadScope) (*domain.Load, error)
	LoadByReference(ctx context.Context, ref string, scope domain.LoadScope) (*domain.Load, error)
	SearchLoads(ctx context.Context, query string, scope domain.LoadScope, limit int) ([]domain.Load, error)
	ActiveLoads(ctx context.Context, scope domain.LoadScope, limit int) ([]domain.Load, error)
	LoadsSince(ctx context.Context, since time.Time, scope domain.LoadScope) ([]domain.Load, error)

	CarrierByID(ctx context.Context, id string) (*domain.CarrierProfile, error)
	CarrierByMCNumber(ctx context.Context, mc string) (*domain.CarrierProfile, error)
	CarrierByDOTNumber(ctx context.Context, dot string) (*domain.CarrierProfile, error)
	SearchCarriers(ctx context.Context, query string, limit int) ([]domain.CarrierProfile, error)

	CustomerByID(ctx context.Context, id string) (*domain.Customer, error)
	SearchCustomers(ctx context.Context, query string, limit int) ([]domain.Customer, error)

	OpenInvoices(ctx context.Context, limit int) ([]domain.Invoice, error)
	InvoicesForCustomer(ctx context.Context, customerID string, limit int) ([]domain.Invoice, error)
	PaymentsForCarrier(ctx context.Context, carrierID string, limit int) ([]domain.CarrierPayment, error)
	UnresolvedComplianceAlerts(ctx context.Context, carrierID string, limit int) ([]domain.ComplianceAlert, error)

	RecentAuditEvents(ctx context.Context, limit int) ([]domain.AuditEvent, error)
	InsertAuditEvent(ctx context.Context, ev domain.AuditEvent) error
}

// Service exposes the role-scoped accessors.
type Service struct {
	store Store

	// now is swapped in tests to pin risk-window arithmetic.
	now func() time.Time
}

// New creates the access service over the given store.
func New(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

const defaultListLimit = 20

func errResult(msg string) Result { return Result{"error": msg} }

// anonymous reports whether the caller carries no authenticated identity.
// Anonymous callers are denied every accessor whose query is not already
// row-scoped to nothing.
func anonymous(c Caller) bool {
	_, ok := c.(Public)
	return ok
}

func storeErr(op string, err error) Result {
	return Result{"error": fmt.Sprintf("%s failed: %v", op, err)}
}

// denied builds the structured access-denied result and records the refusal
// on the audit trail. The audit write is best-effort.
func (s *Service) denied(ctx context.Context, c Caller, capability string) Result {
	if err := s.store.InsertAuditEvent(ctx, domain.AuditEvent{
		UserID:     c.ID(),
		Action:     "access_denied",
		EntityType: "capability",
		EntityID:   capability,
		Detail:     fmt.Sprintf("role %s requested %s", c.RoleName(), capability),
	}); err != nil {
		log.Warn().Err(err).Str("capability", capability).Msg("access: audit write failed")
	}
	return Result{"error": fmt.Sprintf("Access denied: %s is not available to the %s role", capability, c.RoleName())}
}
