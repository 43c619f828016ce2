package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/Musicofilo701/splicy-api/internal/billing"
	"github.com/Musicofilo701/splicy-api/internal/database"
)

// Errors returned by the payment service.
var (
	ErrPaymentNotFound = errors.New("payment not found")
	ErrInvalidAmount   = errors.New("amount must be > 0")
	ErrExceedsBalance  = errors.New("payment exceeds remaining balance")
	ErrUnknownItem     = errors.New("item not on the order")
	ErrItemAlreadyPaid = errors.New("item already paid")
)

// PaymentStore defines the DB methods needed to record payments.
// Satisfied by *database.Queries (and its WithTx variant).
type PaymentStore interface {
	GetOrderByTableForUpdate(ctx context.Context, tableID string) (database.Order, error)
	ListPaymentsByTable(ctx context.Context, tableID string) ([]database.Payment, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	GetPayment(ctx context.Context, id uuid.UUID) (database.Payment, error)
	UpdatePayment(ctx context.Context, arg database.UpdatePaymentParams) (database.Payment, error)
}

// NewPaymentStore creates a PaymentStore from a DBTX (pool or tx).
type NewPaymentStore func(db database.DBTX) PaymentStore

// SubmitPaymentRequest is the validated input for recording a payment.
type SubmitPaymentRequest struct {
	TableID      string
	Amount       decimal.Decimal
	ItemIDs      []string
	CustomerName string
}

// SubmitPaymentResult is the stored payment plus the table's status after it.
type SubmitPaymentResult struct {
	Payment database.Payment
	Order   database.Order
	Status  billing.TableStatus
}

// UpdatePaymentRequest is the validated input for correcting a payment.
type UpdatePaymentRequest struct {
	PaymentID    uuid.UUID
	Amount       decimal.Decimal
	ItemIDs      []string
	CustomerName string
}

// PaymentService records settlement events against table orders. All balance
// checks run inside a transaction holding the order row lock, so two guests
// confirming at the same instant cannot overpay the table together.
type PaymentService struct {
	pool     TxBeginner
	newStore NewPaymentStore
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(pool TxBeginner, newStore NewPaymentStore) *PaymentService {
	return &PaymentService{pool: pool, newStore: newStore}
}

// Submit validates a payment against the table's live balance and records it.
//
// The transaction begins before any read: the order row lock taken by
// GetOrderByTableForUpdate serializes concurrent submissions for the same
// table, so the balance read here cannot go stale before the insert.
func (s *PaymentService) Submit(ctx context.Context, req SubmitPaymentRequest) (*SubmitPaymentResult, error) {
	if req.TableID == "" {
		return nil, ErrEmptyTableID
	}
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderByTableForUpdate(ctx, req.TableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}

	payments, err := store.ListPaymentsByTable(ctx, req.TableID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	records := paymentRecords(payments)
	status := billing.Reconcile(order.TableID, order.Items, records)

	if req.Amount.GreaterThan(status.Remaining) {
		return nil, ErrExceedsBalance
	}

	covered, err := coveredItems(order.Items, req.ItemIDs, status.PaidItems)
	if err != nil {
		return nil, err
	}

	customerName := pgtype.Text{}
	if req.CustomerName != "" {
		customerName = pgtype.Text{String: req.CustomerName, Valid: true}
	}

	payment, err := store.CreatePayment(ctx, database.CreatePaymentParams{
		TableID:      req.TableID,
		Amount:       database.DecimalToNumeric(req.Amount),
		Items:        covered,
		ItemIDs:      req.ItemIDs,
		CustomerName: customerName,
	})
	if err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	records = append(records, billing.PaymentRecord{Amount: req.Amount, ItemIDs: req.ItemIDs})
	status = billing.Reconcile(order.TableID, order.Items, records)

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &SubmitPaymentResult{Payment: payment, Order: order, Status: status}, nil
}

// Update rewrites a payment's amount, covered items, and payer label. The
// invariant is re-validated with the edited payment excluded: the other
// payments plus the new amount must not exceed the order total.
func (s *PaymentService) Update(ctx context.Context, req UpdatePaymentRequest) (*SubmitPaymentResult, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	existing, err := store.GetPayment(ctx, req.PaymentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}

	order, err := store.GetOrderByTableForUpdate(ctx, existing.TableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}

	payments, err := store.ListPaymentsByTable(ctx, existing.TableID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	var others []billing.PaymentRecord
	for _, p := range payments {
		if p.ID == req.PaymentID {
			continue
		}
		amount, err := database.NumericToDecimal(p.Amount)
		if err != nil {
			amount = decimal.Zero
		}
		others = append(others, billing.PaymentRecord{Amount: amount, ItemIDs: p.ItemIDs})
	}

	status := billing.Reconcile(order.TableID, order.Items, others)
	if req.Amount.GreaterThan(status.Remaining) {
		return nil, ErrExceedsBalance
	}

	// status was reconciled over the other payments only, so its PaidItems
	// are exactly the claims this correction must not collide with. The
	// snapshot is recomputed from the corrected item_ids, same as Submit.
	covered, err := coveredItems(order.Items, req.ItemIDs, status.PaidItems)
	if err != nil {
		return nil, err
	}

	customerName := pgtype.Text{}
	if req.CustomerName != "" {
		customerName = pgtype.Text{String: req.CustomerName, Valid: true}
	}

	payment, err := store.UpdatePayment(ctx, database.UpdatePaymentParams{
		ID:           req.PaymentID,
		Amount:       database.DecimalToNumeric(req.Amount),
		Items:        covered,
		ItemIDs:      req.ItemIDs,
		CustomerName: customerName,
	})
	if err != nil {
		return nil, fmt.Errorf("update payment: %w", err)
	}

	others = append(others, billing.PaymentRecord{Amount: req.Amount, ItemIDs: req.ItemIDs})
	status = billing.Reconcile(order.TableID, order.Items, others)

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &SubmitPaymentResult{Payment: payment, Order: order, Status: status}, nil
}

// paymentRecords projects stored payments into the shape reconciliation
// wants. Amounts that fail to decode count as zero rather than aborting the
// whole table view.
func paymentRecords(payments []database.Payment) []billing.PaymentRecord {
	records := make([]billing.PaymentRecord, 0, len(payments))
	for _, p := range payments {
		amount, err := database.NumericToDecimal(p.Amount)
		if err != nil {
			amount = decimal.Zero
		}
		records = append(records, billing.PaymentRecord{Amount: amount, ItemIDs: p.ItemIDs})
	}
	return records
}

// coveredItems snapshots the order items an itemized payment claims. Unknown
// IDs and items already claimed by an earlier payment are rejected.
func coveredItems(items []billing.LineItem, itemIDs []string, paidItems []billing.LineItem) ([]billing.LineItem, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}

	paid := make(map[string]bool, len(paidItems))
	for _, item := range paidItems {
		paid[item.ID] = true
	}
	byID := make(map[string]billing.LineItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	covered := make([]billing.LineItem, 0, len(itemIDs))
	seen := make(map[string]bool, len(itemIDs))
	for _, id := range itemIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		item, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownItem, id)
		}
		if paid[id] {
			return nil, fmt.Errorf("%w: %s", ErrItemAlreadyPaid, id)
		}
		covered = append(covered, item)
	}
	return covered, nil
}
