// Package handler implements the HTTP surface. Handlers hold narrow store
// interfaces satisfied by *database.Queries, translate requests into service
// or store calls, and map errors to status codes.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Musicofilo701/splicy-api/internal/billing"
	"github.com/Musicofilo701/splicy-api/internal/database"
	"github.com/Musicofilo701/splicy-api/internal/ws"
)

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode JSON response")
	}
}

// broadcaster is the slice of *ws.Hub the handlers use. Nil in tests.
type broadcaster interface {
	BroadcastToRestaurant(restaurantID uuid.UUID, event ws.Event)
}

// broadcastTableUpdate pushes a fresh TableStatus to the order's restaurant
// room. Best effort: a failed broadcast never fails the request.
func broadcastTableUpdate(hub broadcaster, order database.Order, status billing.TableStatus) {
	if hub == nil || !order.RestaurantID.Valid {
		return
	}
	event, err := ws.NewEvent(ws.EventTableUpdated, status)
	if err != nil {
		log.Error().Err(err).Str("table_id", order.TableID).Msg("encode table.updated event")
		return
	}
	hub.BroadcastToRestaurant(order.RestaurantID.UUID, event)
}

func broadcastTableCleared(hub broadcaster, order database.Order) {
	if hub == nil || !order.RestaurantID.Valid {
		return
	}
	event, err := ws.NewEvent(ws.EventTableCleared, map[string]string{"table_id": order.TableID})
	if err != nil {
		log.Error().Err(err).Str("table_id", order.TableID).Msg("encode table.cleared event")
		return
	}
	hub.BroadcastToRestaurant(order.RestaurantID.UUID, event)
}

// paymentLister is the store slice broadcastReconciledStatus needs.
type paymentLister interface {
	ListPaymentsByTable(ctx context.Context, tableID string) ([]database.Payment, error)
}

// broadcastReconciledStatus reconciles the table against its stored payments
// and pushes the result. Used after mutations where prior payments count.
func broadcastReconciledStatus(ctx context.Context, hub broadcaster, store paymentLister, order database.Order) {
	if hub == nil {
		return
	}
	payments, err := store.ListPaymentsByTable(ctx, order.TableID)
	if err != nil {
		log.Error().Err(err).Str("table_id", order.TableID).Msg("list payments for broadcast")
		return
	}
	broadcastTableUpdate(hub, order, billing.Reconcile(order.TableID, order.Items, toRecords(payments)))
}

// logCoercions records item prices that were silently coerced to zero while
// decoding. The request still succeeds; the data-quality problem goes to ops.
func logCoercions(tableID string, items []billing.LineItem) {
	if n := billing.CountCoercedPrices(items); n > 0 {
		log.Warn().Str("table_id", tableID).Int("coerced_prices", n).
			Msg("malformed item prices coerced to zero")
	}
}
