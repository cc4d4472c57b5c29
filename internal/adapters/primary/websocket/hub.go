package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/lorrc/order-relay-backend/internal/core/domain"
	"github.com/lorrc/order-relay-backend/internal/core/ports"
)

// Hub is the connection registry and dispatcher. It tracks every live
// Client with its role and topic subscriptions and fans envelopes out to
// the subset matching the broadcast's target roles.
type Hub struct {
	// clients is the set of live connections.
	clients map[*Client]bool

	// Broadcast requests queued from the poller and command service.
	broadcast chan broadcastRequest

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	// mu protects the clients map
	mu sync.RWMutex

	// logger for the hub
	logger *slog.Logger
}

type broadcastRequest struct {
	env   domain.Envelope
	roles []domain.Role
}

// Ensure Hub implements the EventBroadcaster interface.
var _ ports.EventBroadcaster = (*Hub)(nil)

// NewHub creates a new WebSocket hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan broadcastRequest, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		logger:     logger.With("component", "websocket_hub"),
	}
}

// Broadcast queues an envelope for delivery to every registered client
// whose role is in roles. It blocks until the run loop accepts the
// request, so an accepted envelope is never silently lost; the run loop
// is always draining, and slow clients are evicted rather than allowed
// to stall it. This implements ports.EventBroadcaster.
func (h *Hub) Broadcast(env domain.Envelope, roles ...domain.Role) error {
	h.broadcast <- broadcastRequest{env: env, roles: roles}
	return nil
}

// Run starts the hub's event loop. This MUST be run as a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case req := <-h.broadcast:
			h.broadcastEnvelope(req.env, req.roles)
		}
	}
}

// registerClient adds a client to the hub
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("client registered",
		"client_id", client.ID,
		"total_connections", total,
	)
}

// unregisterClient removes a client from the hub and closes its send side
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	total := len(h.clients)
	h.mu.Unlock()

	client.CloseSend()

	h.logger.Info("client unregistered",
		"client_id", client.ID,
		"role", client.Role(),
		"total_connections", total,
	)
}

// broadcastEnvelope serializes the envelope once and sends it to every
// client whose role matches. A client with a full send buffer is
// scheduled for removal; it never blocks delivery to the others.
func (h *Hub) broadcastEnvelope(env domain.Envelope, roles []domain.Role) {
	payload, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("failed to serialize envelope",
			"envelope_type", env.Type,
			"error", err,
		)
		return
	}

	targets := h.snapshot(func(c *Client) bool {
		return c.Entitled(env.Type, roles)
	})

	h.logger.Debug("broadcasting envelope",
		"envelope_type", env.Type,
		"client_count", len(targets),
	)

	for _, client := range targets {
		if !client.QueueRaw(payload) {
			h.logger.Warn("client send buffer full, scheduling removal",
				"client_id", client.ID,
			)
			go func(c *Client) { h.Unregister <- c }(client)
		}
	}
}

// snapshot copies the matching clients so iteration never observes a
// connection mid-removal and no lock is held while sending.
func (h *Hub) snapshot(match func(*Client) bool) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		if match == nil || match(client) {
			clients = append(clients, client)
		}
	}
	return clients
}

// ClientCount returns the total number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CountByRole returns the number of clients holding the given role
func (h *Hub) CountByRole(role domain.Role) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for client := range h.clients {
		if client.Role() == role {
			count++
		}
	}
	return count
}

// CloseAll force-closes every connection; used during shutdown.
func (h *Hub) CloseAll() {
	for _, client := range h.snapshot(nil) {
		h.unregisterClient(client)
		client.CloseConn()
	}
}
