package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/freightdesk/dispatch-ai/internal/domain"
	"github.com/freightdesk/dispatch-ai/internal/storage/sqlite"
)

// GetShipper fetches one shipper account by id, with a billing snapshot of
// its recent invoices. Carrier callers may not see the customer base.
func (s *Service) GetShipper(ctx context.Context, c Caller, identifier string) Result {
	if _, isCarrier := c.(Carrier); isCarrier || anonymous(c) {
		return s.denied(ctx, c, "shipper lookup")
	}
	customer, err := s.store.CustomerByID(ctx, identifier)
	if errors.Is(err, sqlite.ErrNotFound) {
		return errResult(fmt.Sprintf("shipper not found: %s", identifier))
	}
	if err != nil {
		return storeErr("shipper lookup", err)
	}

	invoices, err := s.store.InvoicesForCustomer(ctx, customer.ID, defaultListLimit)
	if err != nil {
		return storeErr("invoice lookup", err)
	}
	var outstanding float64
	var overdue int
	now := s.now().UTC()
	for _, inv := range invoices {
		if inv.PaidAt != nil {
			continue
		}
		outstanding += inv.Amount
		if inv.DueDate.Before(now) {
			overdue++
		}
	}

	return Result{
		"shipper": customerPayload(*customer),
		"billing": map[string]any{
			"invoiceCount":      len(invoices),
			"outstandingAmount": round2(outstanding),
			"overdueInvoices":   overdue,
		},
	}
}

// SearchShippers matches shipper name, city, and state.
func (s *Service) SearchShippers(ctx context.Context, c Caller, query string) Result {
	if _, isCarrier := c.(Carrier); isCarrier || anonymous(c) {
		return s.denied(ctx, c, "shipper search")
	}
	customers, err := s.store.SearchCustomers(ctx, query, defaultListLimit)
	if err != nil {
		return storeErr("shipper search", err)
	}
	out := make([]map[string]any, 0, len(customers))
	for _, customer := range customers {
		out = append(out, customerPayload(customer))
	}
	return Result{"shippers": out, "count": len(customers)}
}

func customerPayload(c domain.Customer) map[string]any {
	return map[string]any{
		"id":           c.ID,
		"name":         c.Name,
		"city":         c.City,
		"state":        c.State,
		"creditLimit":  c.CreditLimit,
		"paymentTerms": c.PaymentTerms,
		"createdAt":    c.CreatedAt,
	}
}
