package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/Musicofilo701/splicy-api/internal/billing"
)

// Order is the active order for one table. table_id is unique: at most one
// active order exists per table at a time.
type Order struct {
	ID           uuid.UUID
	RestaurantID uuid.NullUUID
	TableID      string
	Items        []billing.LineItem
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Payment is one settlement event against a table's order. Rows are
// append-only in the customer flow; only privileged correction endpoints
// update or delete them.
type Payment struct {
	ID           uuid.UUID
	TableID      string
	Amount       pgtype.Numeric
	Items        []billing.LineItem
	ItemIDs      []string
	CustomerName pgtype.Text
	CreatedAt    time.Time
}

// Restaurant is a registered restaurant account. The API key authenticates
// POS integrations; the session token is the currently valid login session.
type Restaurant struct {
	ID             uuid.UUID
	Name           string
	Email          string
	PasswordHash   string
	PosSystem      pgtype.Text
	APIKey         string
	SessionToken   pgtype.Text
	SessionExpires pgtype.Timestamptz
	CreatedAt      time.Time
}
