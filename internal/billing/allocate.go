package billing

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Mode selects how the charge amount for one payment attempt is derived.
type Mode string

const (
	// ModeFull charges the remaining balance of the order.
	ModeFull Mode = "full"
	// ModeItems charges the sum of selected unpaid line items.
	ModeItems Mode = "items"
	// ModeEqualSplit charges an equal N-way share of the whole order total.
	ModeEqualSplit Mode = "equal_split"
	// ModeCustom charges a caller-supplied amount.
	ModeCustom Mode = "custom"
)

// Errors returned by Allocate.
var (
	ErrUnknownMode        = errors.New("unknown payment mode")
	ErrFullyPaid          = errors.New("order is already fully paid")
	ErrNoItemsSelected    = errors.New("item_ids are required for itemized payments")
	ErrUnknownItem        = errors.New("selected item is not on the order")
	ErrItemAlreadyPaid    = errors.New("selected item is already paid")
	ErrPeopleCount        = errors.New("people_count must be a positive integer")
	ErrAmountNotPositive  = errors.New("amount must be positive")
	ErrAmountExceedsTotal = errors.New("amount exceeds order total")
	ErrTipConflict        = errors.New("tip_percent and tip_amount are mutually exclusive")
	ErrTipNegative        = errors.New("tip must not be negative")
)

// AllocationRequest captures the customer's split choice for one payment
// attempt. Exactly the fields relevant to Mode are consulted.
type AllocationRequest struct {
	Mode        Mode
	ItemIDs     []string        // ModeItems
	PeopleCount int             // ModeEqualSplit
	Amount      decimal.Decimal // ModeCustom
	TipPercent  decimal.Decimal // percentage of the base amount
	TipAmount   decimal.Decimal // flat tip, alternative to TipPercent
}

// Quote is the server-computed charge for a payment attempt.
type Quote struct {
	Base  decimal.Decimal `json:"base"`
	Tip   decimal.Decimal `json:"tip"`
	Total decimal.Decimal `json:"total"`
}

// Allocate derives the charge amount for the chosen mode and validates it
// against the reconciled table state. It performs no I/O; the authoritative
// over-payment check still happens at insert time inside a transaction.
//
// ModeFull charges the remaining balance rather than the whole order total:
// charging the whole total with prior payments present would always trip the
// balance invariant and be rejected.
//
// ModeEqualSplit divides the whole order total, not the remaining balance, so
// every diner's share is the same no matter when they pay. Late payers of an
// almost-settled table are still bounded by the insert-time balance check.
func Allocate(ts TableStatus, req AllocationRequest) (Quote, error) {
	base, err := baseAmount(ts, req)
	if err != nil {
		return Quote{}, err
	}

	tip, err := tipAmount(base, req)
	if err != nil {
		return Quote{}, err
	}

	return Quote{Base: base, Tip: tip, Total: base.Add(tip)}, nil
}

func baseAmount(ts TableStatus, req AllocationRequest) (decimal.Decimal, error) {
	switch req.Mode {
	case ModeFull:
		if !ts.Remaining.IsPositive() {
			return decimal.Zero, ErrFullyPaid
		}
		return ts.Remaining, nil

	case ModeItems:
		if len(req.ItemIDs) == 0 {
			return decimal.Zero, ErrNoItemsSelected
		}
		return itemsAmount(ts, req.ItemIDs)

	case ModeEqualSplit:
		if req.PeopleCount <= 0 {
			return decimal.Zero, ErrPeopleCount
		}
		return ts.OrderTotal.Div(decimal.NewFromInt(int64(req.PeopleCount))), nil

	case ModeCustom:
		if !req.Amount.IsPositive() {
			return decimal.Zero, ErrAmountNotPositive
		}
		if req.Amount.GreaterThan(ts.OrderTotal) {
			return decimal.Zero, ErrAmountExceedsTotal
		}
		return req.Amount, nil
	}
	return decimal.Zero, ErrUnknownMode
}

func itemsAmount(ts TableStatus, itemIDs []string) (decimal.Decimal, error) {
	unpaid := make(map[string]decimal.Decimal, len(ts.UnpaidItems))
	for _, it := range ts.UnpaidItems {
		unpaid[it.ID] = it.Price.Decimal
	}
	paid := make(map[string]struct{}, len(ts.PaidItems))
	for _, it := range ts.PaidItems {
		paid[it.ID] = struct{}{}
	}

	sum := decimal.Zero
	seen := make(map[string]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := paid[id]; ok {
			return decimal.Zero, ErrItemAlreadyPaid
		}
		price, ok := unpaid[id]
		if !ok {
			return decimal.Zero, ErrUnknownItem
		}
		sum = sum.Add(price)
	}
	return sum, nil
}

func tipAmount(base decimal.Decimal, req AllocationRequest) (decimal.Decimal, error) {
	if req.TipPercent.IsNegative() || req.TipAmount.IsNegative() {
		return decimal.Zero, ErrTipNegative
	}
	if !req.TipPercent.IsZero() && !req.TipAmount.IsZero() {
		return decimal.Zero, ErrTipConflict
	}
	if !req.TipAmount.IsZero() {
		return req.TipAmount, nil
	}
	return base.Mul(req.TipPercent).Div(decimal.NewFromInt(100)), nil
}
