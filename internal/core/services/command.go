package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lorrc/order-relay-backend/internal/core/domain"
	apperrors "github.com/lorrc/order-relay-backend/internal/core/errors"
	"github.com/lorrc/order-relay-backend/internal/core/ports"
)

// OrderCommandService validates and executes role-gated mutating commands,
// delegating persistence to the gateway and re-broadcast to the dispatcher.
type OrderCommandService struct {
	gateway     ports.OrderGateway
	broadcaster ports.EventBroadcaster
	logger      *slog.Logger
}

var _ ports.CommandService = (*OrderCommandService)(nil)

// NewOrderCommandService creates a new command service.
func NewOrderCommandService(
	gateway ports.OrderGateway,
	broadcaster ports.EventBroadcaster,
	logger *slog.Logger,
) *OrderCommandService {
	return &OrderCommandService{
		gateway:     gateway,
		broadcaster: broadcaster,
		logger:      logger.With("component", "command_service"),
	}
}

// UpdateOrderStatus applies a status transition on behalf of a connection.
// Only crew and admin roles are permitted. On gateway failure the error is
// returned to the caller and nothing is broadcast.
func (s *OrderCommandService) UpdateOrderStatus(ctx context.Context, params ports.UpdateOrderParams) (*domain.OrderEvent, error) {
	if !params.ActorRole.CanUpdateOrders() {
		return nil, fmt.Errorf("%w: role %q may not update orders", apperrors.ErrUnauthorized, params.ActorRole)
	}

	event, err := s.gateway.ApplyStatusChange(ctx, params.OrderID, params.Status)
	if err != nil {
		return nil, err
	}

	env := domain.NewOrderUpdateEnvelope(*event)
	if err := s.broadcaster.Broadcast(env, domain.OrderEventRoles()...); err != nil {
		s.logger.Error("failed to broadcast order update",
			"order_id", event.OrderID,
			"error", err,
		)
	}

	s.logger.Info("order status updated",
		"order_id", event.OrderID,
		"status", event.Status,
		"actor_role", params.ActorRole,
	)

	return event, nil
}
