package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/Musicofilo701/splicy-api/internal/billing"
)

const paymentColumns = `id, table_id, amount, items, item_ids, customer_name, created_at`

func scanPayment(row rowScanner) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.TableID, &p.Amount, &p.Items, &p.ItemIDs, &p.CustomerName, &p.CreatedAt)
	return p, err
}

// ListPaymentsByTable returns a table's payments, oldest first.
func (q *Queries) ListPaymentsByTable(ctx context.Context, tableID string) ([]Payment, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE table_id = $1 ORDER BY created_at ASC`,
		tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPayments(rows)
}

// ListPayments returns every payment, oldest first. Used by the admin
// all-tables view.
func (q *Queries) ListPayments(ctx context.Context) ([]Payment, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPayments(rows)
}

func collectPayments(rows interface {
	rowScanner
	Next() bool
	Err() error
}) ([]Payment, error) {
	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// GetPayment returns one payment by ID, or pgx.ErrNoRows.
func (q *Queries) GetPayment(ctx context.Context, id uuid.UUID) (Payment, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	return scanPayment(row)
}

// CreatePaymentParams are the inputs for CreatePayment.
type CreatePaymentParams struct {
	TableID      string
	Amount       pgtype.Numeric
	Items        []billing.LineItem
	ItemIDs      []string
	CustomerName pgtype.Text
}

// CreatePayment appends a settlement event for a table.
func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	items := arg.Items
	if items == nil {
		items = []billing.LineItem{}
	}
	itemIDs := arg.ItemIDs
	if itemIDs == nil {
		itemIDs = []string{}
	}
	row := q.db.QueryRow(ctx,
		`INSERT INTO payments (table_id, amount, items, item_ids, customer_name)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+paymentColumns,
		arg.TableID, arg.Amount, items, itemIDs, arg.CustomerName)
	return scanPayment(row)
}

// UpdatePaymentParams are the inputs for UpdatePayment.
type UpdatePaymentParams struct {
	ID           uuid.UUID
	Amount       pgtype.Numeric
	Items        []billing.LineItem
	ItemIDs      []string
	CustomerName pgtype.Text
}

// UpdatePayment rewrites a payment's amount, covered items, and payer label.
// Correction path only. The items snapshot is rewritten together with
// item_ids so the two never disagree.
func (q *Queries) UpdatePayment(ctx context.Context, arg UpdatePaymentParams) (Payment, error) {
	items := arg.Items
	if items == nil {
		items = []billing.LineItem{}
	}
	itemIDs := arg.ItemIDs
	if itemIDs == nil {
		itemIDs = []string{}
	}
	row := q.db.QueryRow(ctx,
		`UPDATE payments SET amount = $2, items = $3, item_ids = $4, customer_name = $5
		 WHERE id = $1
		 RETURNING `+paymentColumns,
		arg.ID, arg.Amount, items, itemIDs, arg.CustomerName)
	return scanPayment(row)
}

// DeletePayment removes one payment, returning the number of rows deleted.
func (q *Queries) DeletePayment(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeletePaymentsByTable removes all payments for a table. Runs inside the
// clear-table transaction together with the order delete.
func (q *Queries) DeletePaymentsByTable(ctx context.Context, tableID string) error {
	_, err := q.db.Exec(ctx, `DELETE FROM payments WHERE table_id = $1`, tableID)
	return err
}
