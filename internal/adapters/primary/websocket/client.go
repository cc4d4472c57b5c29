package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lorrc/order-relay-backend/internal/core/domain"
	apperrors "github.com/lorrc/order-relay-backend/internal/core/errors"
	"github.com/lorrc/order-relay-backend/internal/core/ports"
	"github.com/lorrc/order-relay-backend/internal/infrastructure/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1024

	// Per-command deadline for store-backed operations.
	commandTimeout = 10 * time.Second
)

// TokenValidator resolves a signed service token to a role.
type TokenValidator interface {
	RoleFromToken(token string) (domain.Role, error)
}

// Client is a middleman between the websocket connection and the hub.
// Its role is guest until a successful authenticate command, and is
// monotonic afterwards: once authenticated it never changes again.
type Client struct {
	Hub *Hub

	// The websocket connection.
	Conn *websocket.Conn

	// Buffered channel of outbound serialized envelopes.
	Send chan []byte

	// ID identifies this connection in logs and the welcome envelope.
	ID uuid.UUID

	commands ports.CommandService
	tokens   TokenValidator

	// mu protects role, authenticated, topics and lastSeen
	mu            sync.RWMutex
	role          domain.Role
	authenticated bool
	topics        map[domain.Topic]bool
	lastSeen      time.Time

	// closeOnce ensures the Send channel is only closed once
	closeOnce sync.Once

	// logger for this client
	logger *slog.Logger
}

// NewClient creates a new WebSocket client in the guest role.
func NewClient(hub *Hub, conn *websocket.Conn, commands ports.CommandService, tokens TokenValidator, logger *slog.Logger) *Client {
	id := uuid.New()
	return &Client{
		Hub:      hub,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		ID:       id,
		commands: commands,
		tokens:   tokens,
		role:     domain.RoleGuest,
		topics:   make(map[domain.Topic]bool),
		lastSeen: time.Now().UTC(),
		logger:   logger.With("client_id", id.String()),
	}
}

// CloseSend safely closes the Send channel exactly once
func (c *Client) CloseSend() {
	c.closeOnce.Do(func() {
		close(c.Send)
	})
}

// CloseConn closes the underlying socket.
func (c *Client) CloseConn() {
	_ = c.Conn.Close()
}

// Role returns the client's current role.
func (c *Client) Role() domain.Role {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.role
}

// Authenticated reports whether the client completed authentication.
func (c *Client) Authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authenticated
}

// LastSeen returns the time of the last inbound message.
func (c *Client) LastSeen() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSeen
}

// Topics returns a copy of the subscribed topic set.
func (c *Client) Topics() []domain.Topic {
	c.mu.RLock()
	defer c.mu.RUnlock()

	topics := make([]domain.Topic, 0, len(c.topics))
	for topic := range c.topics {
		topics = append(topics, topic)
	}
	return topics
}

// Entitled reports whether this client should receive an envelope of the
// given type addressed to the given roles. Order and system envelopes
// additionally require the matching topic subscription.
func (c *Client) Entitled(t domain.EnvelopeType, roles []domain.Role) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	matched := len(roles) == 0
	for _, role := range roles {
		if c.role == role {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}

	switch t {
	case domain.EnvelopeNewOrder:
		return c.topics[domain.TopicOrders]
	case domain.EnvelopeOrderUpdate:
		return c.topics[domain.TopicUpdates]
	case domain.EnvelopeSystemError:
		return c.topics[domain.TopicSystem]
	}
	return true
}

// QueueRaw enqueues a pre-serialized envelope without blocking. It
// returns false when the send buffer is full.
func (c *Client) QueueRaw(payload []byte) bool {
	select {
	case c.Send <- payload:
		return true
	default:
		return false
	}
}

// sendEnvelope serializes and queues a direct reply to this client only.
func (c *Client) sendEnvelope(env domain.Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		c.logger.Error("failed to serialize envelope", "error", err)
		return
	}
	if !c.QueueRaw(payload) {
		c.logger.Warn("send buffer full, dropping direct envelope",
			"envelope_type", env.Type,
		)
	}
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastSeen = time.Now().UTC()
	c.mu.Unlock()
}

// ReadPump pumps messages from the websocket connection to the hub.
// This method runs in its own goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	if err := c.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error("failed to set read deadline", "error", err)
		return
	}

	c.Conn.SetPongHandler(func(string) error {
		c.touch()
		if err := c.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.logger.Error("failed to set read deadline in pong handler", "error", err)
		}
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			break
		}

		c.touch()
		c.HandleMessage(message)
	}
}

// WritePump pumps serialized envelopes from the hub to the websocket
// connection. This method runs in its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.Send:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("failed to set write deadline", "error", err)
				return
			}

			if !ok {
				// The hub closed the channel. Send close message.
				if err := c.Conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					c.logger.Debug("failed to send close message", "error", err)
				}
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Error("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("failed to set write deadline for ping", "error", err)
				return
			}

			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
				return
			}
		}
	}
}

// HandleMessage processes a single raw inbound message. Errors are
// reported to this connection only; a malformed message never closes it.
func (c *Client) HandleMessage(raw []byte) {
	msg, err := DecodeClientMessage(raw)
	if err != nil {
		c.logger.Warn("malformed client message", "error", err)
		c.sendEnvelope(domain.NewErrorEnvelope("malformed message"))
		return
	}

	switch msg.Action {
	case ActionAuthenticate:
		c.handleAuthenticate(msg)

	case ActionSubscribe:
		c.handleSubscribe(msg)

	case ActionUpdateOrder:
		c.handleUpdateOrder(msg)

	case ActionPong:
		// Application-level keep-alive; lastSeen already refreshed.

	default:
		c.logger.Debug("received unknown action", "action", msg.Action)
		c.sendEnvelope(domain.NewErrorEnvelope("unknown action"))
	}
}

// handleAuthenticate sets the connection role exactly once. A failed
// attempt leaves the connection in the guest role and open.
func (c *Client) handleAuthenticate(msg *ClientMessage) {
	if c.Authenticated() {
		c.sendEnvelope(domain.NewAuthErrorEnvelope("already authenticated"))
		return
	}

	role, err := c.resolveRole(msg)
	if err != nil {
		c.logger.Warn("authentication rejected",
			"requested_type", msg.Type,
			"error", err,
		)
		c.sendEnvelope(domain.NewAuthErrorEnvelope("invalid role"))
		return
	}

	topics := role.DefaultTopics()

	c.mu.Lock()
	c.role = role
	c.authenticated = true
	for _, topic := range topics {
		c.topics[topic] = true
	}
	c.mu.Unlock()

	c.logger.Info("client authenticated", "role", role)
	c.sendEnvelope(domain.NewAuthSuccessEnvelope(role, topics))
}

// resolveRole prefers a signed token over a bare role tag.
func (c *Client) resolveRole(msg *ClientMessage) (domain.Role, error) {
	if msg.Token != "" && c.tokens != nil {
		role, err := c.tokens.RoleFromToken(msg.Token)
		if err != nil {
			return domain.RoleGuest, err
		}
		return role, nil
	}

	role, ok := domain.ParseRole(msg.Type)
	if !ok {
		return domain.RoleGuest, apperrors.ErrInvalidRole
	}
	return role, nil
}

// handleSubscribe adds the valid subset of requested topics. Invalid
// entries are dropped silently; an all-invalid request is an error.
func (c *Client) handleSubscribe(msg *ClientMessage) {
	valid := domain.FilterValidTopics(msg.Topics)
	if len(valid) == 0 {
		c.logger.Warn("subscription rejected",
			"requested_topics", msg.Topics,
			"error", apperrors.ErrNoValidTopics,
		)
		c.sendEnvelope(domain.NewErrorEnvelope(apperrors.ErrNoValidTopics.Error()))
		return
	}

	c.mu.Lock()
	for _, topic := range valid {
		c.topics[topic] = true
	}
	c.mu.Unlock()

	c.logger.Debug("client subscribed", "topics", valid)
	c.sendEnvelope(domain.NewSubscriptionEnvelope(valid))
}

// handleUpdateOrder executes a role-gated status command. Failures are
// reported to this connection only and never broadcast.
func (c *Client) handleUpdateOrder(msg *ClientMessage) {
	if msg.OrderID <= 0 || msg.Status == "" {
		c.sendEnvelope(domain.NewErrorEnvelope("order_id and status are required"))
		return
	}

	role := c.Role()

	// Tag the command context so store-side logs carry the connection.
	cmdCtx := logging.WithClientID(context.Background(), c.ID.String())
	cmdCtx = logging.WithRole(cmdCtx, string(role))
	ctx, cancel := context.WithTimeout(cmdCtx, commandTimeout)
	defer cancel()

	params := ports.UpdateOrderParams{
		OrderID:   msg.OrderID,
		Status:    domain.OrderStatus(msg.Status),
		ActorRole: role,
	}

	if _, err := c.commands.UpdateOrderStatus(ctx, params); err != nil {
		c.logger.Warn("order update rejected",
			"order_id", msg.OrderID,
			"status", msg.Status,
			"error", err,
		)
		c.sendEnvelope(domain.NewErrorEnvelope(commandErrorMessage(err)))
		return
	}
}

// commandErrorMessage maps taxonomy errors to client-facing messages.
func commandErrorMessage(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, apperrors.ErrInvalidStatus):
		return "invalid order status"
	case errors.Is(err, apperrors.ErrOrderNotFound):
		return "order not found"
	case errors.Is(err, apperrors.ErrStoreUnavailable):
		return "order store unavailable"
	default:
		return "order update failed"
	}
}
