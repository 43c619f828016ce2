// Package billing holds the payment reconciliation and split-allocation core.
// Everything in this package is a pure function of its inputs: handlers load
// an order and its payments, reconcile them into a TableStatus, and persist
// nothing derived. Money is shopspring/decimal throughout, so comparisons
// against the order total are exact and never misclassify a fully paid table
// as partial due to float rounding.
package billing

import (
	"github.com/shopspring/decimal"
)

// Status classifies how much of an order has been settled.
type Status string

const (
	StatusUnpaid  Status = "unpaid"
	StatusPartial Status = "partial"
	StatusPaid    Status = "paid"
)

// PaymentRecord is the slice of a stored payment that reconciliation needs.
type PaymentRecord struct {
	Amount  decimal.Decimal
	ItemIDs []string
}

// TableStatus is the derived payment state of one table. It is recomputed on
// every read and never stored.
type TableStatus struct {
	TableID      string          `json:"table_id"`
	OrderTotal   decimal.Decimal `json:"order_total"`
	TotalPaid    decimal.Decimal `json:"total_paid"`
	Remaining    decimal.Decimal `json:"remaining"`
	Status       Status          `json:"status"`
	PaidItems    []LineItem      `json:"paid_items"`
	UnpaidItems  []LineItem      `json:"unpaid_items"`
	PaymentCount int             `json:"payment_count"`

	// CoercedPrices counts item prices that were lenient-coerced to zero
	// while decoding. Callers log these; clients never see them.
	CoercedPrices int `json:"-"`
}

// Reconcile computes the TableStatus for one order and its payments.
//
// Item paid/unpaid partitioning follows the itemized payments only: payments
// without item IDs (equal splits, custom amounts) raise the paid total but
// claim no specific items, so the item breakdown undercounts what those
// payments actually settled. That is intentional; the breakdown is only
// meaningful for the "pay what I ate" mode.
func Reconcile(tableID string, items []LineItem, payments []PaymentRecord) TableStatus {
	orderTotal := decimal.Zero
	for _, it := range items {
		orderTotal = orderTotal.Add(it.Price.Decimal)
	}

	totalPaid := decimal.Zero
	paidIDs := make(map[string]struct{})
	for _, p := range payments {
		totalPaid = totalPaid.Add(p.Amount)
		for _, id := range p.ItemIDs {
			paidIDs[id] = struct{}{}
		}
	}

	// Equality with the order total counts as fully paid, never partial.
	status := StatusUnpaid
	switch {
	case totalPaid.IsZero():
		status = StatusUnpaid
	case totalPaid.GreaterThanOrEqual(orderTotal):
		status = StatusPaid
	default:
		status = StatusPartial
	}

	remaining := orderTotal.Sub(totalPaid)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	paidItems := make([]LineItem, 0, len(items))
	unpaidItems := make([]LineItem, 0, len(items))
	for _, it := range items {
		if _, ok := paidIDs[it.ID]; ok {
			paidItems = append(paidItems, it)
		} else {
			unpaidItems = append(unpaidItems, it)
		}
	}

	return TableStatus{
		TableID:       tableID,
		OrderTotal:    orderTotal,
		TotalPaid:     totalPaid,
		Remaining:     remaining,
		Status:        status,
		PaidItems:     paidItems,
		UnpaidItems:   unpaidItems,
		PaymentCount:  len(payments),
		CoercedPrices: CountCoercedPrices(items),
	}
}
