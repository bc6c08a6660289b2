// Package ws implements the real-time fan-out layer: a hub of WebSocket
// connections grouped by conflict topic, fed by the service layer's
// post-commit notifications.
//
// Delivery is best-effort throughout. A slow consumer whose buffer fills is
// disconnected rather than allowed to stall the hub, and nothing here ever
// reports back into the request path.
package ws

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// Hub owns all active clients and routes every published payload to the
// subscribers of its topic. All membership state is confined to the Run
// goroutine; other goroutines talk to it through channels only.
type Hub struct {
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMsg

	// done is closed when Run exits, unblocking attach/detach callers.
	done chan struct{}
}

type broadcastMsg struct {
	topic string
	data  []byte
}

// NewHub constructs an idle hub; call Run to start it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastMsg, 256),
		done:       make(chan struct{}),
	}
}

// Run is the hub's event loop. It exits when ctx is cancelled, dropping all
// clients on the way out. Call it in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
			log.Debug().
				Str("user_id", client.userID).
				Str("topic", client.topic).
				Int("clients", len(h.clients)).
				Msg("ws client connected")

		case client := <-h.unregister:
			h.drop(client)

		case msg := <-h.broadcast:
			for client := range h.clients {
				if client.topic != msg.topic {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// Consumer too slow; cut it loose.
					h.drop(client)
				}
			}

		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			close(h.done)
			return
		}
	}
}

// attach hands a client to the Run loop. It reports false, without blocking,
// when the hub has already shut down.
func (h *Hub) attach(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// detach removes a client. Returns immediately when the hub has already shut
// down (the client was dropped on the way out).
func (h *Hub) detach(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast marshals payload and queues it for every subscriber of topic.
// Safe for concurrent use; drops the payload when the hub itself is
// saturated.
func (h *Hub) Broadcast(topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("ws broadcast marshal failed")
		return
	}
	select {
	case h.broadcast <- broadcastMsg{topic: topic, data: data}:
	default:
		log.Warn().Str("topic", topic).Msg("ws broadcast queue full, payload dropped")
	}
}

// drop removes a client and signals its pumps through done. The send
// channel is never closed: the read pump may still enqueue frames
// concurrently, so teardown stays signal-only. Idempotent: the double
// unregister from read and write pump teardown is harmless.
func (h *Hub) drop(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.done)
	log.Debug().
		Str("user_id", client.userID).
		Str("topic", client.topic).
		Int("clients", len(h.clients)).
		Msg("ws client disconnected")
}
