package ports

import (
	"context"
	"time"

	"github.com/lorrc/order-relay-backend/internal/core/domain"
)

// GatewayState describes the store gateway's connection state machine.
type GatewayState string

const (
	GatewayConnected    GatewayState = "connected"
	GatewayDisconnected GatewayState = "disconnected"
	GatewayReconnecting GatewayState = "reconnecting"
	GatewayFailed       GatewayState = "failed"
)

// OrderGateway is the sole bridge to persistent order data.
type OrderGateway interface {
	// FetchChangedOrders returns snapshots changed after since and the
	// new watermark. On failure no watermark is returned alongside.
	FetchChangedOrders(ctx context.Context, since time.Time) ([]domain.OrderEvent, time.Time, error)

	// ApplyStatusChange validates and applies a status transition
	// atomically and returns the resulting snapshot.
	ApplyStatusChange(ctx context.Context, orderID int64, status domain.OrderStatus) (*domain.OrderEvent, error)

	// Healthy reports whether the gateway currently considers the
	// store reachable.
	Healthy() bool

	// State exposes the reconnect state machine's current state.
	State() GatewayState
}

// EventBroadcaster is the primary port for fanning envelopes out to the
// subset of registered connections holding one of the target roles.
type EventBroadcaster interface {
	Broadcast(env domain.Envelope, roles ...domain.Role) error
}

// UpdateOrderParams defines the input for a role-gated status command.
type UpdateOrderParams struct {
	OrderID   int64
	Status    domain.OrderStatus
	ActorRole domain.Role
}

// CommandService validates and executes mutating commands from clients.
type CommandService interface {
	UpdateOrderStatus(ctx context.Context, params UpdateOrderParams) (*domain.OrderEvent, error)
}
