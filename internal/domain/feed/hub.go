package feed

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/splitpay/splitpay-api/internal/pkg/events"
)

// Hub fans settlement lifecycle events out to connected websocket clients.
// Each client only receives events for its own user; operator connections
// receive everything.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan events.Event
}

// NewHub creates the event feed hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan events.Event, 256),
	}
}

// Run owns the client set until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				close(client.send)
				delete(h.clients, client)
			}

		case event := <-h.broadcast:
			payload, err := json.Marshal(event)
			if err != nil {
				log.Error().Err(err).Str("event_id", event.ID.String()).Msg("Failed to encode feed event")
				continue
			}
			for client := range h.clients {
				if !client.wants(event) {
					continue
				}
				select {
				case client.send <- payload:
				default:
					// Slow consumer; drop it rather than stall the hub.
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// Emit implements events.Sink. It never blocks: when the hub is saturated
// the event is dropped, the feed is a convenience stream, not a log.
func (h *Hub) Emit(ctx context.Context, event events.Event) {
	select {
	case h.broadcast <- event:
	default:
		log.Warn().Str("type", event.Type).Msg("Feed hub saturated, dropping event")
	}
}

func (c *Client) wants(event events.Event) bool {
	if c.operator {
		return true
	}
	return event.UserID == c.userID
}

var _ events.Sink = (*Hub)(nil)
