package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/Musicofilo701/splicy-api/internal/billing"
	"github.com/Musicofilo701/splicy-api/internal/database"
)

// TableStore defines the database methods needed by the status endpoints.
type TableStore interface {
	GetOrderByTable(ctx context.Context, tableID string) (database.Order, error)
	ListOrders(ctx context.Context) ([]database.Order, error)
	ListPaymentsByTable(ctx context.Context, tableID string) ([]database.Payment, error)
	ListPayments(ctx context.Context) ([]database.Payment, error)
}

// TableHandler serves the derived table status views. Every response is
// recomputed from the stored order and payments; nothing here is cached.
type TableHandler struct {
	store TableStore
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(store TableStore) *TableHandler {
	return &TableHandler{store: store}
}

// RegisterPublicRoutes registers the customer-facing status endpoints.
func (h *TableHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/table-access", h.TableAccess)
	r.Get("/payment-status", h.PaymentStatus)
}

// RegisterAdminRoutes registers the dashboard endpoints.
func (h *TableHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/tables", h.ListTables)
	r.Get("/tables/{table_id}", h.GetTable)
}

// --- Response types ---

type paymentSummary struct {
	TotalPaid    string         `json:"total_paid"`
	Remaining    string         `json:"remaining"`
	Status       billing.Status `json:"status"`
	PaymentCount int            `json:"payment_count"`
}

type itemBreakdown struct {
	PaidItems   []billing.LineItem `json:"paid_items"`
	UnpaidItems []billing.LineItem `json:"unpaid_items"`
}

type tableAccessResponse struct {
	TableID        string            `json:"table_id"`
	HasOrder       bool              `json:"has_order"`
	Order          *orderResponse    `json:"order,omitempty"`
	PaymentSummary *paymentSummary   `json:"payment_summary,omitempty"`
	ItemBreakdown  *itemBreakdown    `json:"item_breakdown,omitempty"`
	Payments       []paymentResponse `json:"payments"`
}

// --- Handlers ---

// TableAccess handles GET /table-access?table_id=&restaurant_id=. This is the
// view a customer's phone loads after scanning the table QR code. A table
// without an order is a normal answer, not an error.
func (h *TableHandler) TableAccess(w http.ResponseWriter, r *http.Request) {
	tableID := r.URL.Query().Get("table_id")
	if tableID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "table_id is required"})
		return
	}

	order, err := h.store.GetOrderByTable(r.Context(), tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusOK, tableAccessResponse{
				TableID:  tableID,
				HasOrder: false,
				Payments: []paymentResponse{},
			})
			return
		}
		log.Error().Err(err).Str("table_id", tableID).Msg("get order for table access")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if rid := r.URL.Query().Get("restaurant_id"); rid != "" {
		restaurantID, err := uuid.Parse(rid)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant_id"})
			return
		}
		if !order.RestaurantID.Valid || order.RestaurantID.UUID != restaurantID {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no order for table"})
			return
		}
	}

	payments, err := h.store.ListPaymentsByTable(r.Context(), tableID)
	if err != nil {
		log.Error().Err(err).Str("table_id", tableID).Msg("list payments for table access")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	status := h.reconcile(order, payments)
	orderResp := dbOrderToResponse(order)
	paymentResps := make([]paymentResponse, len(payments))
	for i, p := range payments {
		paymentResps[i] = dbPaymentToResponse(p)
	}

	writeJSON(w, http.StatusOK, tableAccessResponse{
		TableID:  tableID,
		HasOrder: true,
		Order:    &orderResp,
		PaymentSummary: &paymentSummary{
			TotalPaid:    status.TotalPaid.String(),
			Remaining:    status.Remaining.String(),
			Status:       status.Status,
			PaymentCount: status.PaymentCount,
		},
		ItemBreakdown: &itemBreakdown{
			PaidItems:   status.PaidItems,
			UnpaidItems: status.UnpaidItems,
		},
		Payments: paymentResps,
	})
}

// PaymentStatus handles GET /payment-status?table_id=, the compact polling
// view.
func (h *TableHandler) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	tableID := r.URL.Query().Get("table_id")
	if tableID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "table_id is required"})
		return
	}

	status, err := h.statusForTable(r.Context(), tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no order for table"})
			return
		}
		log.Error().Err(err).Str("table_id", tableID).Msg("payment status")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"table_id":    status.TableID,
		"order_total": status.OrderTotal,
		"total_paid":  status.TotalPaid,
		"remaining":   status.Remaining,
		"status":      status.Status,
	})
}

// ListTables handles GET /tables: TableStatus for every active order.
func (h *TableHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.ListOrders(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list orders for tables view")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	payments, err := h.store.ListPayments(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list payments for tables view")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	byTable := make(map[string][]database.Payment)
	for _, p := range payments {
		byTable[p.TableID] = append(byTable[p.TableID], p)
	}

	tables := make([]billing.TableStatus, len(orders))
	for i, order := range orders {
		tables[i] = h.reconcile(order, byTable[order.TableID])
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"tables": tables})
}

// GetTable handles GET /tables/{table_id}.
func (h *TableHandler) GetTable(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "table_id")

	status, err := h.statusForTable(r.Context(), tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no order for table"})
			return
		}
		log.Error().Err(err).Str("table_id", tableID).Msg("get table status")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// --- Helpers ---

func (h *TableHandler) statusForTable(ctx context.Context, tableID string) (billing.TableStatus, error) {
	order, err := h.store.GetOrderByTable(ctx, tableID)
	if err != nil {
		return billing.TableStatus{}, err
	}
	payments, err := h.store.ListPaymentsByTable(ctx, tableID)
	if err != nil {
		return billing.TableStatus{}, err
	}
	return h.reconcile(order, payments), nil
}

func (h *TableHandler) reconcile(order database.Order, payments []database.Payment) billing.TableStatus {
	status := billing.Reconcile(order.TableID, order.Items, toRecords(payments))
	if status.CoercedPrices > 0 {
		log.Warn().Str("table_id", order.TableID).Int("coerced_prices", status.CoercedPrices).
			Msg("table status computed over coerced item prices")
	}
	return status
}
