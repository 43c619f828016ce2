package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/Musicofilo701/splicy-api/internal/database"
	"github.com/Musicofilo701/splicy-api/internal/service"
)

// WebhookHandler receives order pushes from POS integrations. One endpoint,
// create-or-replace: the POS does not track whether the table already has an
// order on our side.
type WebhookHandler struct {
	store  OrderStore
	orders *service.OrderService
	hub    broadcaster
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(store OrderStore, orders *service.OrderService, hub broadcaster) *WebhookHandler {
	return &WebhookHandler{store: store, orders: orders, hub: hub}
}

// RegisterRoutes registers the webhook endpoint on the given Chi router.
// Mounted behind API-key authentication.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/pos-webhook", h.Receive)
}

// Receive handles POST /pos-webhook.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var req orderItemsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	logCoercions(req.TableID, req.Items)

	result, err := h.orders.UpsertOrder(r.Context(), database.CreateOrderParams{
		RestaurantID: restaurantIDFromContext(r.Context()),
		TableID:      req.TableID,
		Items:        req.Items,
	})
	if err != nil {
		switch err {
		case service.ErrEmptyTableID, service.ErrEmptyItems:
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			log.Error().Err(err).Str("table_id", req.TableID).Msg("upsert order from webhook")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	broadcastReconciledStatus(r.Context(), h.hub, h.store, result.Order)

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]interface{}{
		"order":   dbOrderToResponse(result.Order),
		"created": result.Created,
	})
}
