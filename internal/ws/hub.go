// Package ws pushes live table payment status to admin dashboards. The hub
// only re-broadcasts what handlers computed after a mutation; it owns no
// business state of its own.
package ws

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// Event types broadcast to admin clients.
const (
	EventTableUpdated = "table.updated"
	EventTableCleared = "table.cleared"
)

// Event is a WebSocket message for admin subscribers. Payload carries the
// freshly reconciled TableStatus (or, for table.cleared, just the table_id).
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewEvent marshals payload into an Event. Marshal failures are reported so
// callers can log and drop the event rather than broadcast garbage.
func NewEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Payload: raw}, nil
}

// roomEvent routes an event to one restaurant's subscribers.
type roomEvent struct {
	RestaurantID uuid.UUID
	Event        Event
}

// Hub maintains the set of connected admin clients, one room per restaurant.
type Hub struct {
	rooms map[uuid.UUID]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *roomEvent

	mu sync.RWMutex
}

// NewHub creates a Hub. Call Run in a goroutine before serving connections.
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *roomEvent, 256),
	}
}

// Run is the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.restaurantID] == nil {
				h.rooms[client.restaurantID] = make(map[*Client]bool)
			}
			h.rooms[client.restaurantID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.restaurantID]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.rooms, client.restaurantID)
					}
				}
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			clients := h.rooms[event.RestaurantID]

			message, err := json.Marshal(event.Event)
			if err != nil {
				h.mu.Unlock()
				continue
			}

			for client := range clients {
				select {
				case client.send <- message:
				default:
					// Slow client: drop the connection rather than block
					// everyone else in the room.
					close(client.send)
					delete(h.rooms[event.RestaurantID], client)
					if len(h.rooms[event.RestaurantID]) == 0 {
						delete(h.rooms, event.RestaurantID)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToRestaurant sends an event to every client watching the given
// restaurant's tables. Orders without a restaurant broadcast to the nil room,
// which has no subscribers until multi-tenancy is fully rolled out.
func (h *Hub) BroadcastToRestaurant(restaurantID uuid.UUID, event Event) {
	h.broadcast <- &roomEvent{RestaurantID: restaurantID, Event: event}
}
