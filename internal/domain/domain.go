// Package domain defines the freight entities the AI core reads.
//
// DESIGN: These are plain data structs shared by the storage layer and the
// role-scoped access layer. The core never mutates them; all writes beyond
// usage events, conversations, and audit entries live outside this module.
package domain

import "time"

// Load is a freight movement from a shipper origin to a destination,
// assigned to a carrier and originated by a broker.
type Load struct {
	ID                string     `json:"id"`
	ReferenceNumber   string     `json:"referenceNumber"`
	Status            string     `json:"status"`
	OriginCity        string     `json:"originCity"`
	OriginState       string     `json:"originState"`
	DestinationCity   string     `json:"destinationCity"`
	DestinationState  string     `json:"destinationState"`
	EquipmentType     string     `json:"equipmentType"`
	Miles             float64    `json:"miles"`
	CarrierRate       float64    `json:"carrierRate"`
	CustomerRate      float64    `json:"customerRate"`
	CarrierID         string     `json:"carrierId"`
	BrokerID          string     `json:"brokerId"`
	CustomerID        string     `json:"customerId"`
	PickupDate        time.Time  `json:"pickupDate"`
	ScheduledDelivery time.Time  `json:"scheduledDelivery"`
	ActualDelivery    *time.Time `json:"actualDelivery,omitempty"`
	LastCheckCallAt   *time.Time `json:"lastCheckCallAt,omitempty"`
	RiskLevel         string     `json:"riskLevel"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// Load status values.
const (
	LoadStatusPending   = "pending"
	LoadStatusBooked    = "booked"
	LoadStatusInTransit = "in_transit"
	LoadStatusDelivered = "delivered"
	LoadStatusCancelled = "cancelled"
)

// Risk level values, least to most severe.
const (
	RiskLevelLow      = "low"
	RiskLevelMedium   = "medium"
	RiskLevelHigh     = "high"
	RiskLevelCritical = "critical"
)

// Active reports whether the load is still moving or waiting to move.
func (l Load) Active() bool {
	return l.Status == LoadStatusBooked || l.Status == LoadStatusInTransit || l.Status == LoadStatusPending
}

// OnTime reports the delivery classification: a load is on time when it has
// not delivered yet or delivered no later than scheduled.
func (l Load) OnTime() bool {
	return l.ActualDelivery == nil || !l.ActualDelivery.After(l.ScheduledDelivery)
}

// GrossMargin is customer rate minus carrier rate.
func (l Load) GrossMargin() float64 {
	return l.CustomerRate - l.CarrierRate
}

// MarginPercent is gross margin over customer rate, in percent.
func (l Load) MarginPercent() float64 {
	if l.CustomerRate == 0 {
		return 0
	}
	return l.GrossMargin() / l.CustomerRate * 100
}

// CarrierProfile is a motor carrier the brokerage works with.
type CarrierProfile struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	MCNumber        string    `json:"mcNumber"`
	DOTNumber       string    `json:"dotNumber"`
	Status          string    `json:"status"`
	SafetyRating    string    `json:"safetyRating"`
	OnTimePercent   float64   `json:"onTimePercent"`
	InsuranceExpiry time.Time `json:"insuranceExpiry"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Customer is a shipper account.
type Customer struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	City         string    `json:"city"`
	State        string    `json:"state"`
	CreditLimit  float64   `json:"creditLimit"`
	PaymentTerms string    `json:"paymentTerms"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Invoice bills a customer for a delivered load.
type Invoice struct {
	ID         string     `json:"id"`
	LoadID     string     `json:"loadId"`
	CustomerID string     `json:"customerId"`
	Amount     float64    `json:"amount"`
	Status     string     `json:"status"`
	DueDate    time.Time  `json:"dueDate"`
	PaidAt     *time.Time `json:"paidAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// CarrierPayment pays a carrier for a completed load.
type CarrierPayment struct {
	ID          string     `json:"id"`
	LoadID      string     `json:"loadId"`
	CarrierID   string     `json:"carrierId"`
	Amount      float64    `json:"amount"`
	Status      string     `json:"status"`
	ScheduledAt time.Time  `json:"scheduledAt"`
	PaidAt      *time.Time `json:"paidAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// ComplianceAlert flags an expiring or missing carrier credential.
type ComplianceAlert struct {
	ID        string    `json:"id"`
	CarrierID string    `json:"carrierId"`
	Type      string    `json:"type"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	Resolved  bool      `json:"resolved"`
	CreatedAt time.Time `json:"createdAt"`
}

// AuditEvent records a user-visible action for the activity feed.
type AuditEvent struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Action     string    `json:"action"`
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Conversation groups chat messages per (user, console) pair.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Console   string    `json:"console"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ConversationMessage is one chat message, optionally decorated with UI
// action suggestions serialized as JSON.
type ConversationMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	ActionsJSON    string    `json:"actionsJson,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Message roles.
const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

// LoadScope is a row-level filter derived from the caller's role, applied at
// the query boundary by the storage layer.
type LoadScope struct {
	All       bool
	CarrierID string
	BrokerID  string
}

// ScopeAll returns an unrestricted scope for back-office roles.
func ScopeAll() LoadScope { return LoadScope{All: true} }

// ScopeCarrier restricts rows to loads assigned to one carrier.
func ScopeCarrier(carrierID string) LoadScope { return LoadScope{CarrierID: carrierID} }

// ScopeBroker restricts rows to loads originated by one broker user.
func ScopeBroker(brokerID string) LoadScope { return LoadScope{BrokerID: brokerID} }

// ScopeNone matches no rows.
func ScopeNone() LoadScope { return LoadScope{} }
