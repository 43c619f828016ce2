package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Musicofilo701/splicy-api/internal/billing"
	"github.com/Musicofilo701/splicy-api/internal/database"
	"github.com/Musicofilo701/splicy-api/internal/middleware"
	"github.com/Musicofilo701/splicy-api/internal/service"
)

// OrderStore defines the database methods needed by order handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrderByTable(ctx context.Context, tableID string) (database.Order, error)
	ListOrders(ctx context.Context) ([]database.Order, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	ReplaceOrderItems(ctx context.Context, tableID string, items []billing.LineItem) (database.Order, error)
	ListPaymentsByTable(ctx context.Context, tableID string) ([]database.Payment, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	store  OrderStore
	orders *service.OrderService
	hub    broadcaster
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(store OrderStore, orders *service.OrderService, hub broadcaster) *OrderHandler {
	return &OrderHandler{store: store, orders: orders, hub: hub}
}

// RegisterPublicRoutes registers the unauthenticated order endpoints.
func (h *OrderHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/orders", h.Get)
}

// RegisterAdminRoutes registers the authenticated order endpoints.
func (h *OrderHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/orders", h.Create)
	r.Put("/orders", h.Replace)
	r.Delete("/orders", h.Delete)
}

// --- Request / Response types ---

type orderItemsRequest struct {
	TableID string             `json:"table_id"`
	Items   []billing.LineItem `json:"items"`
}

type orderResponse struct {
	ID           uuid.UUID          `json:"id"`
	RestaurantID *uuid.UUID         `json:"restaurant_id,omitempty"`
	TableID      string             `json:"table_id"`
	Items        []billing.LineItem `json:"items"`
	OrderTotal   decimal.Decimal    `json:"order_total"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

func dbOrderToResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:         o.ID,
		TableID:    o.TableID,
		Items:      o.Items,
		OrderTotal: billing.Reconcile(o.TableID, o.Items, nil).OrderTotal,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
	if o.RestaurantID.Valid {
		id := o.RestaurantID.UUID
		resp.RestaurantID = &id
	}
	return resp
}

// --- Handlers ---

// Get handles GET /orders. With table_id it returns that table's order;
// without it, every active order.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	tableID := r.URL.Query().Get("table_id")
	if tableID == "" {
		orders, err := h.store.ListOrders(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("list orders")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		resp := make([]orderResponse, len(orders))
		for i, o := range orders {
			resp[i] = dbOrderToResponse(o)
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	order, err := h.store.GetOrderByTable(r.Context(), tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no order for table"})
			return
		}
		log.Error().Err(err).Str("table_id", tableID).Msg("get order")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, dbOrderToResponse(order))
}

// Create handles POST /orders. Duplicate tables are rejected by the unique
// constraint, not a read-then-write check.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeOrderItems(w, r)
	if !ok {
		return
	}

	order, err := h.store.CreateOrder(r.Context(), database.CreateOrderParams{
		RestaurantID: restaurantIDFromContext(r.Context()),
		TableID:      req.TableID,
		Items:        req.Items,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "table already has an active order"})
			return
		}
		log.Error().Err(err).Str("table_id", req.TableID).Msg("create order")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	broadcastTableUpdate(h.hub, order, billing.Reconcile(order.TableID, order.Items, nil))
	writeJSON(w, http.StatusCreated, dbOrderToResponse(order))
}

// Replace handles PUT /orders: the full item list is swapped, payments stand.
func (h *OrderHandler) Replace(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeOrderItems(w, r)
	if !ok {
		return
	}

	order, err := h.store.ReplaceOrderItems(r.Context(), req.TableID, req.Items)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no order for table"})
			return
		}
		log.Error().Err(err).Str("table_id", req.TableID).Msg("replace order items")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	broadcastReconciledStatus(r.Context(), h.hub, h.store, order)
	writeJSON(w, http.StatusOK, dbOrderToResponse(order))
}

// Delete handles DELETE /orders?table_id=: the order and its payment history
// go together, in one transaction.
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tableID := r.URL.Query().Get("table_id")
	if tableID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "table_id is required"})
		return
	}

	order, err := h.orders.ClearTable(r.Context(), tableID)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no order for table"})
			return
		}
		log.Error().Err(err).Str("table_id", tableID).Msg("clear table")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	broadcastTableCleared(h.hub, *order)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "table_id": tableID})
}

// --- Helpers ---

func decodeOrderItems(w http.ResponseWriter, r *http.Request) (orderItemsRequest, bool) {
	var req orderItemsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return req, false
	}
	if req.TableID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "table_id is required"})
		return req, false
	}
	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return req, false
	}
	logCoercions(req.TableID, req.Items)
	return req, true
}

func restaurantIDFromContext(ctx context.Context) uuid.NullUUID {
	if restaurant := middleware.RestaurantFromContext(ctx); restaurant != nil {
		return uuid.NullUUID{UUID: restaurant.ID, Valid: true}
	}
	return uuid.NullUUID{}
}

// toRecords projects stored payments for reconciliation. Undecodable amounts
// count as zero.
func toRecords(payments []database.Payment) []billing.PaymentRecord {
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
