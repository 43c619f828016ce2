package handler_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/Musicofilo701/splicy-api/internal/billing"
	"github.com/Musicofilo701/splicy-api/internal/database"
	"github.com/Musicofilo701/splicy-api/internal/handler"
	"github.com/Musicofilo701/splicy-api/internal/service"
)

const testBaseURL = "http://localhost:8080"

// --- In-memory store ---

// memStore is a map-backed stand-in for *database.Queries. Payments keep
// insertion order, matching the oldest-first queries.
type memStore struct {
	orders      map[string]database.Order // keyed by table_id
	payments    []database.Payment
	restaurants map[string]database.Restaurant // keyed by email
}

func newMemStore() *memStore {
	return &memStore{
		orders:      make(map[string]database.Order),
		restaurants: make(map[string]database.Restaurant),
	}
}

func (m *memStore) GetOrderByTable(_ context.Context, tableID string) (database.Order, error) {
	o, ok := m.orders[tableID]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *memStore) GetOrderByTableForUpdate(ctx context.Context, tableID string) (database.Order, error) {
	return m.GetOrderByTable(ctx, tableID)
}

func (m *memStore) ListOrders(_ context.Context) ([]database.Order, error) {
	var orders []database.Order
	for _, o := range m.orders {
		orders = append(orders, o)
	}
	return orders, nil
}

func (m *memStore) CreateOrder(_ context.Context, arg database.CreateOrderParams) (database.Order, error) {
	if _, exists := m.orders[arg.TableID]; exists {
		return database.Order{}, &pgconn.PgError{Code: "23505"}
	}
	now := time.Now()
	o := database.Order{
		ID:           uuid.New(),
		RestaurantID: arg.RestaurantID,
		TableID:      arg.TableID,
		Items:        arg.Items,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.orders[arg.TableID] = o
	return o, nil
}

func (m *memStore) ReplaceOrderItems(_ context.Context, tableID string, items []billing.LineItem) (database.Order, error) {
	o, ok := m.orders[tableID]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	o.Items = items
	o.UpdatedAt = time.Now()
	m.orders[tableID] = o
	return o, nil
}

func (m *memStore) DeleteOrderByTable(_ context.Context, tableID string) (int64, error) {
	if _, ok := m.orders[tableID]; !ok {
		return 0, nil
	}
	delete(m.orders, tableID)
	return 1, nil
}

func (m *memStore) ListPaymentsByTable(_ context.Context, tableID string) ([]database.Payment, error) {
	var result []database.Payment
	for _, p := range m.payments {
		if p.TableID == tableID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *memStore) ListPayments(_ context.Context) ([]database.Payment, error) {
	return append([]database.Payment(nil), m.payments...), nil
}

func (m *memStore) GetPayment(_ context.Context, id uuid.UUID) (database.Payment, error) {
	for _, p := range m.payments {
		if p.ID == id {
			return p, nil
		}
	}
	return database.Payment{}, pgx.ErrNoRows
}

func (m *memStore) CreatePayment(_ context.Context, arg database.CreatePaymentParams) (database.Payment, error) {
	p := database.Payment{
		ID:           uuid.New(),
		TableID:      arg.TableID,
		Amount:       arg.Amount,
		Items:        arg.Items,
		ItemIDs:      arg.ItemIDs,
		CustomerName: arg.CustomerName,
		CreatedAt:    time.Now(),
	}
	m.payments = append(m.payments, p)
	return p, nil
}

func (m *memStore) UpdatePayment(_ context.Context, arg database.UpdatePaymentParams) (database.Payment, error) {
	for i, p := range m.payments {
		if p.ID == arg.ID {
			p.Amount = arg.Amount
			p.Items = arg.Items
			p.ItemIDs = arg.ItemIDs
			p.CustomerName = arg.CustomerName
			m.payments[i] = p
			return p, nil
		}
	}
	return database.Payment{}, pgx.ErrNoRows
}

func (m *memStore) DeletePayment(_ context.Context, id uuid.UUID) (int64, error) {
	for i, p := range m.payments {
		if p.ID == id {
			m.payments = append(m.payments[:i], m.payments[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (m *memStore) DeletePaymentsByTable(_ context.Context, tableID string) error {
	var kept []database.Payment
	for _, p := range m.payments {
		if p.TableID != tableID {
			kept = append(kept, p)
		}
	}
	m.payments = kept
	return nil
}

func (m *memStore) CreateRestaurant(_ context.Context, arg database.CreateRestaurantParams) (database.Restaurant, error) {
	if _, exists := m.restaurants[arg.Email]; exists {
		return database.Restaurant{}, &pgconn.PgError{Code: "23505"}
	}
	r := database.Restaurant{
		ID:           uuid.New(),
		Name:         arg.Name,
		Email:        arg.Email,
		PasswordHash: arg.PasswordHash,
		PosSystem:    arg.PosSystem,
		APIKey:       arg.APIKey,
		CreatedAt:    time.Now(),
	}
	m.restaurants[arg.Email] = r
	return r, nil
}

func (m *memStore) GetRestaurantByEmail(_ context.Context, email string) (database.Restaurant, error) {
	r, ok := m.restaurants[email]
	if !ok {
		return database.Restaurant{}, pgx.ErrNoRows
	}
	return r, nil
}

func (m *memStore) UpdateRestaurantSession(_ context.Context, arg database.UpdateRestaurantSessionParams) (database.Restaurant, error) {
	for email, r := range m.restaurants {
		if r.ID == arg.ID {
			r.SessionToken = arg.SessionToken
			r.SessionExpires = arg.SessionExpires
			m.restaurants[email] = r
			return r, nil
		}
	}
	return database.Restaurant{}, pgx.ErrNoRows
}

// --- Transaction mocks ---

// memTx implements pgx.Tx over the memStore; commit and rollback are no-ops
// since the store mutates in place.
type memTx struct{}

func (memTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (memTx) Commit(ctx context.Context) error          { return nil }
func (memTx) Rollback(ctx context.Context) error        { return nil }
func (memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { panic("not implemented") }
func (memTx) LargeObjects() pgx.LargeObjects                               { panic("not implemented") }
func (memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (memTx) Conn() *pgx.Conn { panic("not implemented") }

type memPool struct{}

func (memPool) Begin(ctx context.Context) (pgx.Tx, error) { return memTx{}, nil }

// --- Router setup ---

// newTestRouter wires the full public + admin surface over one memStore,
// without the auth middleware (middleware has its own tests).
func newTestRouter(store *memStore) *chi.Mux {
	pool := memPool{}
	orderSvc := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore { return store })
	paymentSvc := service.NewPaymentService(pool, func(db database.DBTX) service.PaymentStore { return store })

	orders := handler.NewOrderHandler(store, orderSvc, nil)
	payments := handler.NewPaymentHandler(store, paymentSvc, nil)
	tables := handler.NewTableHandler(store)
	qr := handler.NewQRHandler(testBaseURL)
	webhook := handler.NewWebhookHandler(store, orderSvc, nil)

	r := chi.NewRouter()
	orders.RegisterPublicRoutes(r)
	orders.RegisterAdminRoutes(r)
	payments.RegisterPublicRoutes(r)
	payments.RegisterAdminRoutes(r)
	tables.RegisterPublicRoutes(r)
	tables.RegisterAdminRoutes(r)
	qr.RegisterRoutes(r)
	webhook.RegisterRoutes(r)
	return r
}

// --- Data helpers ---

func demoItems() []billing.LineItem {
	return []billing.LineItem{
		{ID: "1", Name: "Pizza Margherita", Price: billing.NewFlexPrice(decimal.RequireFromString("8.50"))},
		{ID: "2", Name: "Birra Moretti", Price: billing.NewFlexPrice(decimal.RequireFromString("4.00"))},
		{ID: "3", Name: "Tiramisù", Price: billing.NewFlexPrice(decimal.RequireFromString("5.00"))},
	}
}

func seedOrder(store *memStore, tableID string) database.Order {
	o, _ := store.CreateOrder(context.Background(), database.CreateOrderParams{
		TableID: tableID,
		Items:   demoItems(),
	})
	return o
}

func seedPayment(store *memStore, tableID, amount string, itemIDs ...string) database.Payment {
	p, _ := store.CreatePayment(context.Background(), database.CreatePaymentParams{
		TableID: tableID,
		Amount:  database.DecimalToNumeric(decimal.RequireFromString(amount)),
		ItemIDs: itemIDs,
	})
	return p
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, rr.Body.String())
	}
	return resp
}

func jsonDecode(rr *httptest.ResponseRecorder, v interface{}) error {
	return json.NewDecoder(rr.Body).Decode(v)
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return b
}
