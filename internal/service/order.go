// Package service holds the transactional business logic shared by the POS
// webhook and the admin endpoints. Handlers translate HTTP to these calls and
// map the returned errors to status codes.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Musicofilo701/splicy-api/internal/billing"
	"github.com/Musicofilo701/splicy-api/internal/database"
)

const maxUpsertRetries = 3

// Errors returned by the order service.
var (
	ErrOrderNotFound = errors.New("no active order for table")
	ErrEmptyTableID  = errors.New("table_id is required")
	ErrEmptyItems    = errors.New("items are required")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to manage table orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetOrderByTableForUpdate(ctx context.Context, tableID string) (database.Order, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	ReplaceOrderItems(ctx context.Context, tableID string, items []billing.LineItem) (database.Order, error)
	DeleteOrderByTable(ctx context.Context, tableID string) (int64, error)
	DeletePaymentsByTable(ctx context.Context, tableID string) error
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// UpsertOrderResult is the stored order plus whether this call created it.
type UpsertOrderResult struct {
	Order   database.Order
	Created bool
}

// OrderService owns the order lifecycle: POS pushes create or replace a
// table's order, and clearing a table removes the order together with its
// payment history.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, newStore: newStore}
}

// UpsertOrder stores the order for a table. An existing order has its items
// replaced wholesale; payments already recorded against the table are kept,
// so a kitchen correction mid-meal does not erase what guests paid.
//
// Retries on the table_id unique constraint: two concurrent pushes for a
// fresh table can both see no row, and the loser of the insert race replaces
// items on the next attempt instead.
func (s *OrderService) UpsertOrder(ctx context.Context, req database.CreateOrderParams) (*UpsertOrderResult, error) {
	if req.TableID == "" {
		return nil, ErrEmptyTableID
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	var lastErr error
	for attempt := 0; attempt < maxUpsertRetries; attempt++ {
		result, err := s.upsertOrderTx(ctx, req)
		if err == nil {
			return result, nil
		}
		if isTableConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func (s *OrderService) upsertOrderTx(ctx context.Context, req database.CreateOrderParams) (*UpsertOrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	_, err = store.GetOrderByTableForUpdate(ctx, req.TableID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		order, err := store.CreateOrder(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("create order: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit tx: %w", err)
		}
		return &UpsertOrderResult{Order: order, Created: true}, nil
	case err != nil:
		return nil, fmt.Errorf("lock order: %w", err)
	}

	order, err := store.ReplaceOrderItems(ctx, req.TableID, req.Items)
	if err != nil {
		return nil, fmt.Errorf("replace order items: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &UpsertOrderResult{Order: order, Created: false}, nil
}

// ClearTable deletes a table's order and every payment recorded against it,
// atomically. Returns the deleted order so the caller can broadcast which
// restaurant's dashboard to refresh.
func (s *OrderService) ClearTable(ctx context.Context, tableID string) (*database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderByTableForUpdate(ctx, tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}

	if err := store.DeletePaymentsByTable(ctx, tableID); err != nil {
		return nil, fmt.Errorf("delete payments: %w", err)
	}
	if _, err := store.DeleteOrderByTable(ctx, tableID); err != nil {
		return nil, fmt.Errorf("delete order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &order, nil
}

// isTableConflict checks if the error is a unique constraint violation on the
// active-order-per-table index (pgconn error code 23505).
func isTableConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
