package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const restaurantColumns = `id, name, email, password_hash, pos_system, api_key, session_token, session_expires, created_at`

func scanRestaurant(row rowScanner) (Restaurant, error) {
	var r Restaurant
	err := row.Scan(&r.ID, &r.Name, &r.Email, &r.PasswordHash, &r.PosSystem,
		&r.APIKey, &r.SessionToken, &r.SessionExpires, &r.CreatedAt)
	return r, err
}

// CreateRestaurantParams are the inputs for CreateRestaurant.
type CreateRestaurantParams struct {
	Name           string
	Email          string
	PasswordHash   string
	PosSystem      pgtype.Text
	APIKey         string
	SessionToken   pgtype.Text
	SessionExpires pgtype.Timestamptz
}

// CreateRestaurant registers a restaurant account. The unique index on email
// rejects duplicate registrations.
func (q *Queries) CreateRestaurant(ctx context.Context, arg CreateRestaurantParams) (Restaurant, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO restaurants (name, email, password_hash, pos_system, api_key, session_token, session_expires)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+restaurantColumns,
		arg.Name, arg.Email, arg.PasswordHash, arg.PosSystem, arg.APIKey,
		arg.SessionToken, arg.SessionExpires)
	return scanRestaurant(row)
}

// GetRestaurantByEmail returns the restaurant with the given email, or pgx.ErrNoRows.
func (q *Queries) GetRestaurantByEmail(ctx context.Context, email string) (Restaurant, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+restaurantColumns+` FROM restaurants WHERE email = $1`, email)
	return scanRestaurant(row)
}

// GetRestaurantByID returns the restaurant with the given ID, or pgx.ErrNoRows.
func (q *Queries) GetRestaurantByID(ctx context.Context, id uuid.UUID) (Restaurant, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+restaurantColumns+` FROM restaurants WHERE id = $1`, id)
	return scanRestaurant(row)
}

// GetRestaurantByAPIKey returns the restaurant owning the given API key, or
// pgx.ErrNoRows.
func (q *Queries) GetRestaurantByAPIKey(ctx context.Context, apiKey string) (Restaurant, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+restaurantColumns+` FROM restaurants WHERE api_key = $1`, apiKey)
	return scanRestaurant(row)
}

// UpdateRestaurantSessionParams are the inputs for UpdateRestaurantSession.
type UpdateRestaurantSessionParams struct {
	ID             uuid.UUID
	SessionToken   pgtype.Text
	SessionExpires pgtype.Timestamptz
}

// UpdateRestaurantSession rotates the stored session token. Storing the
// current token revokes any previously issued one.
func (q *Queries) UpdateRestaurantSession(ctx context.Context, arg UpdateRestaurantSessionParams) (Restaurant, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE restaurants SET session_token = $2, session_expires = $3
		 WHERE id = $1
		 RETURNING `+restaurantColumns,
		arg.ID, arg.SessionToken, arg.SessionExpires)
	return scanRestaurant(row)
}
