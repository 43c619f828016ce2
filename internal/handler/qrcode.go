package handler

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
)

// QRHandler builds the payment deep links encoded into table QR codes. The
// server owns the URL format so reprinting codes never requires a client
// redeploy.
type QRHandler struct {
	baseURL string
}

// NewQRHandler creates a new QRHandler.
func NewQRHandler(baseURL string) *QRHandler {
	return &QRHandler{baseURL: baseURL}
}

// RegisterRoutes registers the QR endpoints on the given Chi router.
func (h *QRHandler) RegisterRoutes(r chi.Router) {
	r.Get("/qr-code", h.Get)
	r.Post("/qr-code", h.Post)
}

type qrRequest struct {
	TableID      string `json:"table_id"`
	RestaurantID string `json:"restaurant_id"`
}

type qrResponse struct {
	TableID    string `json:"table_id"`
	PaymentURL string `json:"payment_url"`
	QRData     string `json:"qr_data"`
}

// Get handles GET /qr-code?table_id=&restaurant_id=.
func (h *QRHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r.URL.Query().Get("table_id"), r.URL.Query().Get("restaurant_id"))
}

// Post handles POST /qr-code with the same parameters in the body.
func (h *QRHandler) Post(w http.ResponseWriter, r *http.Request) {
	var req qrRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	h.respond(w, req.TableID, req.RestaurantID)
}

func (h *QRHandler) respond(w http.ResponseWriter, tableID, restaurantID string) {
	if tableID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "table_id is required"})
		return
	}

	paymentURL := h.baseURL + "/pay?table=" + url.QueryEscape(tableID)
	if restaurantID != "" {
		paymentURL += "&restaurant=" + url.QueryEscape(restaurantID)
	}

	writeJSON(w, http.StatusOK, qrResponse{
		TableID:    tableID,
		PaymentURL: paymentURL,
		QRData:     paymentURL,
	})
}
