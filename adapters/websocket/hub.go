package websocket

import (
	"github.com/palaverhq/palaver/utils/log"
)

type chatPayload struct {
	chatID  string
	message []byte
}

// Hub tracks connected clients and routes chat events to the clients
// attached to each chat. All client-map access happens on the run loop.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	dispatch   chan chatPayload
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		dispatch:   make(chan chatPayload, 256),
	}
}

// Run starts the hub.
func (h *Hub) Run() {
	go h.run()
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			log.WithCtx(client.ctx).Debug("client registered")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
				log.WithCtx(client.ctx).Debug("client unregistered")
			}

		case payload := <-h.dispatch:
			for client := range h.clients {
				if client.chatID == payload.chatID && !client.IsClosed() {
					client.SendMessage(payload.message)
				}
			}
		}
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// SendToChat delivers a message to every client attached to a chat. Delivery
// order is preserved per connection.
func (h *Hub) SendToChat(chatID string, message []byte) {
	h.dispatch <- chatPayload{chatID: chatID, message: message}
}
