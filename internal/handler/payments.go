package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Musicofilo701/splicy-api/internal/billing"
	"github.com/Musicofilo701/splicy-api/internal/database"
	"github.com/Musicofilo701/splicy-api/internal/service"
)

// PaymentStore defines the database methods needed by payment handlers.
type PaymentStore interface {
	GetOrderByTable(ctx context.Context, tableID string) (database.Order, error)
	ListPaymentsByTable(ctx context.Context, tableID string) ([]database.Payment, error)
	GetPayment(ctx context.Context, id uuid.UUID) (database.Payment, error)
	DeletePayment(ctx context.Context, id uuid.UUID) (int64, error)
}

// PaymentHandler handles payment endpoints.
type PaymentHandler struct {
	store    PaymentStore
	payments *service.PaymentService
	hub      broadcaster
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(store PaymentStore, payments *service.PaymentService, hub broadcaster) *PaymentHandler {
	return &PaymentHandler{store: store, payments: payments, hub: hub}
}

// RegisterPublicRoutes registers the customer-facing payment endpoints.
func (h *PaymentHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/payments", h.List)
	r.Post("/payments", h.Submit)
	r.Post("/payments/quote", h.Quote)
}

// RegisterAdminRoutes registers the privileged correction endpoints.
func (h *PaymentHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/payments/{payment_id}", h.GetOne)
	r.Put("/payments/{payment_id}", h.Update)
	r.Delete("/payments/{payment_id}", h.Delete)
}

// --- Request / Response types ---

type submitPaymentRequest struct {
	TableID      string          `json:"table_id"`
	Amount       decimal.Decimal `json:"amount"`
	ItemIDs      []string        `json:"item_ids"`
	CustomerName string          `json:"customer_name"`
}

type quoteRequest struct {
	TableID     string          `json:"table_id"`
	Mode        string          `json:"mode"`
	ItemIDs     []string        `json:"item_ids"`
	PeopleCount int             `json:"people_count"`
	Amount      decimal.Decimal `json:"amount"`
	TipPercent  decimal.Decimal `json:"tip_percent"`
	TipAmount   decimal.Decimal `json:"tip_amount"`
}

type paymentResponse struct {
	ID           uuid.UUID          `json:"id"`
	TableID      string             `json:"table_id"`
	Amount       decimal.Decimal    `json:"amount"`
	Items        []billing.LineItem `json:"items"`
	ItemIDs      []string           `json:"item_ids"`
	CustomerName string             `json:"customer_name,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

func dbPaymentToResponse(p database.Payment) paymentResponse {
	amount, err := database.NumericToDecimal(p.Amount)
	if err != nil {
		amount = decimal.Zero
	}
	items := p.Items
	if items == nil {
		items = []billing.LineItem{}
	}
	itemIDs := p.ItemIDs
	if itemIDs == nil {
		itemIDs = []string{}
	}
	return paymentResponse{
		ID:           p.ID,
		TableID:      p.TableID,
		Amount:       amount,
		Items:        items,
		ItemIDs:      itemIDs,
		CustomerName: p.CustomerName.String,
		CreatedAt:    p.CreatedAt,
	}
}

// --- Handlers ---

// List handles GET /payments?table_id=, oldest first.
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	tableID := r.URL.Query().Get("table_id")
	if tableID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "table_id is required"})
		return
	}

	payments, err := h.store.ListPaymentsByTable(r.Context(), tableID)
	if err != nil {
		log.Error().Err(err).Str("table_id", tableID).Msg("list payments")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]paymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = dbPaymentToResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Submit handles POST /payments. The balance check and insert run atomically
// in the service; the handler only maps errors to status codes.
func (h *PaymentHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.payments.Submit(r.Context(), service.SubmitPaymentRequest{
		TableID:      req.TableID,
		Amount:       req.Amount,
		ItemIDs:      req.ItemIDs,
		CustomerName: req.CustomerName,
	})
	if err != nil {
		h.writePaymentError(w, err)
		return
	}

	broadcastTableUpdate(h.hub, result.Order, result.Status)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"payment":      dbPaymentToResponse(result.Payment),
		"table_status": result.Status,
	})
}

// Quote handles POST /payments/quote: an authoritative server-side amount for
// the chosen split mode, computed against the live table state.
func (h *PaymentHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.TableID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "table_id is required"})
		return
	}

	order, err := h.store.GetOrderByTable(r.Context(), req.TableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no order for table"})
			return
		}
		log.Error().Err(err).Str("table_id", req.TableID).Msg("get order for quote")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	payments, err := h.store.ListPaymentsByTable(r.Context(), req.TableID)
	if err != nil {
		log.Error().Err(err).Str("table_id", req.TableID).Msg("list payments for quote")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	status := billing.Reconcile(order.TableID, order.Items, toRecords(payments))
	quote, err := billing.Allocate(status, billing.AllocationRequest{
		Mode:        billing.Mode(req.Mode),
		ItemIDs:     req.ItemIDs,
		PeopleCount: req.PeopleCount,
		Amount:      req.Amount,
		TipPercent:  req.TipPercent,
		TipAmount:   req.TipAmount,
	})
	if err != nil {
		if errors.Is(err, billing.ErrFullyPaid) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"table_id": req.TableID,
		"mode":     req.Mode,
		"quote":    quote,
	})
}

// GetOne handles GET /payments/{payment_id}.
func (h *PaymentHandler) GetOne(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := parsePaymentID(w, r)
	if !ok {
		return
	}

	payment, err := h.store.GetPayment(r.Context(), paymentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "payment not found"})
			return
		}
		log.Error().Err(err).Str("payment_id", paymentID.String()).Msg("get payment")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, dbPaymentToResponse(payment))
}

// Update handles PUT /payments/{payment_id}. The balance invariant is
// re-validated against the table's other payments.
func (h *PaymentHandler) Update(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := parsePaymentID(w, r)
	if !ok {
		return
	}

	var req submitPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.payments.Update(r.Context(), service.UpdatePaymentRequest{
		PaymentID:    paymentID,
		Amount:       req.Amount,
		ItemIDs:      req.ItemIDs,
		CustomerName: req.CustomerName,
	})
	if err != nil {
		h.writePaymentError(w, err)
		return
	}

	broadcastTableUpdate(h.hub, result.Order, result.Status)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"payment":      dbPaymentToResponse(result.Payment),
		"table_status": result.Status,
	})
}

// Delete handles DELETE /payments/{payment_id}.
func (h *PaymentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := parsePaymentID(w, r)
	if !ok {
		return
	}

	payment, err := h.store.GetPayment(r.Context(), paymentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "payment not found"})
			return
		}
		log.Error().Err(err).Str("payment_id", paymentID.String()).Msg("get payment for delete")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	rows, err := h.store.DeletePayment(r.Context(), paymentID)
	if err != nil {
		log.Error().Err(err).Str("payment_id", paymentID.String()).Msg("delete payment")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if rows == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "payment not found"})
		return
	}

	h.broadcastAfterDelete(r.Context(), payment.TableID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// --- Helpers ---

func parsePaymentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "payment_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment ID"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *PaymentHandler) writePaymentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no order for table"})
	case errors.Is(err, service.ErrPaymentNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "payment not found"})
	case errors.Is(err, service.ErrExceedsBalance):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "payment exceeds remaining balance"})
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrEmptyTableID),
		errors.Is(err, service.ErrUnknownItem),
		errors.Is(err, service.ErrItemAlreadyPaid):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		log.Error().Err(err).Msg("payment operation")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func (h *PaymentHandler) broadcastAfterDelete(ctx context.Context, tableID string) {
	if h.hub == nil {
		return
	}
	order, err := h.store.GetOrderByTable(ctx, tableID)
	if err != nil {
		return
	}
	payments, err := h.store.ListPaymentsByTable(ctx, tableID)
	if err != nil {
		return
	}
	broadcastTableUpdate(h.hub, order, billing.Reconcile(order.TableID, order.Items, toRecords(payments)))
}
