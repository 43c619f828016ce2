package database

import (
	"context"

	"github.com/google/uuid"

	"github.com/Musicofilo701/splicy-api/internal/billing"
)

const orderColumns = `id, restaurant_id, table_id, items, created_at, updated_at`

func scanOrder(row rowScanner) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.RestaurantID, &o.TableID, &o.Items, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// GetOrderByTable returns the active order for a table, or pgx.ErrNoRows.
func (q *Queries) GetOrderByTable(ctx context.Context, tableID string) (Order, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE table_id = $1`, tableID)
	return scanOrder(row)
}

// GetOrderByTableForUpdate locks the order row for the duration of the
// enclosing transaction. Payment submission locks here first so concurrent
// balance checks against the same table serialize.
func (q *Queries) GetOrderByTableForUpdate(ctx context.Context, tableID string) (Order, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE table_id = $1 FOR UPDATE`, tableID)
	return scanOrder(row)
}

// ListOrders returns every active order.
func (q *Queries) ListOrders(ctx context.Context) ([]Order, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY table_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// CreateOrderParams are the inputs for CreateOrder.
type CreateOrderParams struct {
	RestaurantID uuid.NullUUID
	TableID      string
	Items        []billing.LineItem
}

// CreateOrder inserts a new order. The unique index on table_id rejects a
// second active order for the same table.
func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO orders (restaurant_id, table_id, items)
		 VALUES ($1, $2, $3)
		 RETURNING `+orderColumns,
		arg.RestaurantID, arg.TableID, arg.Items)
	return scanOrder(row)
}

// ReplaceOrderItems swaps the full item list of a table's order.
func (q *Queries) ReplaceOrderItems(ctx context.Context, tableID string, items []billing.LineItem) (Order, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE orders SET items = $2, updated_at = now()
		 WHERE table_id = $1
		 RETURNING `+orderColumns,
		tableID, items)
	return scanOrder(row)
}

// DeleteOrderByTable removes a table's order, returning the number of rows
// deleted (0 when the table had no order).
func (q *Queries) DeleteOrderByTable(ctx context.Context, tableID string) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM orders WHERE table_id = $1`, tableID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
