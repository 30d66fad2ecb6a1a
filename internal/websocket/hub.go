package websocket

import (
	"context"
	"sync"

	"PetAlertAPI/internal/logger"
)

// Message defines the generic structure for WS communication
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type envelope struct {
	userID  string
	message Message
}

// Hub routes live notifications to the sessions of their owner.
type Hub struct {
	sessions   map[string]map[*Client]bool
	outbound   chan envelope
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	log        *logger.Logger
	mu         sync.RWMutex
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		sessions:   make(map[string]map[*Client]bool),
		outbound:   make(chan envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run starts the hub logic in a goroutine. It listens for context cancellation for clean shutdown.
// Open sessions are closed on the way out.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("WebSocket Hub started")
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.log.Info("WebSocket Hub shutting down...")
			h.mu.Lock()
			for _, clients := range h.sessions {
				for client := range clients {
					h.drop(client)
				}
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			if h.sessions[client.userID] == nil {
				h.sessions[client.userID] = make(map[*Client]bool)
			}
			h.sessions[client.userID][client] = true
			h.mu.Unlock()
			h.log.Info("WS session opened for user %s", client.userID)
		case client := <-h.unregister:
			h.mu.Lock()
			h.drop(client)
			h.mu.Unlock()
		case env := <-h.outbound:
			h.mu.Lock()
			for client := range h.sessions[env.userID] {
				select {
				case client.send <- env.message:
				default:
					h.drop(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop must be called with mu held.
func (h *Hub) drop(client *Client) {
	clients, ok := h.sessions[client.userID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.sessions, client.userID)
	}
}

// PublishToUser queues a message for every open session of the user. When the
// queue is full the message is dropped; the notification is already stored.
func (h *Hub) PublishToUser(userID, msgType string, payload interface{}) {
	select {
	case h.outbound <- envelope{userID: userID, message: Message{Type: msgType, Payload: payload}}:
	default:
		h.log.Warn("WS queue full, dropping %s for user %s", msgType, userID)
	}
}

// Sessions returns the number of open sessions across all users.
func (h *Hub) Sessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, clients := range h.sessions {
		n += len(clients)
	}
	return n
}
