package services_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/order-relay-backend/internal/core/domain"
	apperrors "github.com/lorrc/order-relay-backend/internal/core/errors"
	"github.com/lorrc/order-relay-backend/internal/core/mocks"
	"github.com/lorrc/order-relay-backend/internal/core/ports"
	"github.com/lorrc/order-relay-backend/internal/core/services"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestOrderCommandService_UpdateOrderStatus(t *testing.T) {
	ctx := context.Background()

	snapshot := &domain.OrderEvent{
		OrderID:      42,
		OrderNumber:  "ORD-042",
		CustomerName: "Ada",
		Status:       domain.StatusPreparing,
		TotalAmount:  27.50,
		OccurredAt:   time.Now().UTC(),
	}

	t.Run("admin updates order and broadcast goes out", func(t *testing.T) {
		mockGateway := mocks.NewMockOrderGateway()
		mockBroadcaster := mocks.NewMockEventBroadcaster()

		svc := services.NewOrderCommandService(mockGateway, mockBroadcaster, testLogger())

		mockGateway.On("ApplyStatusChange", ctx, int64(42), domain.StatusPreparing).
			Return(snapshot, nil)
		mockBroadcaster.On("Broadcast", mock.MatchedBy(func(env domain.Envelope) bool {
			return env.Type == domain.EnvelopeOrderUpdate && env.Order.OrderID == 42
		}), []domain.Role{domain.RoleCrew, domain.RoleAdmin}).Return(nil)

		event, err := svc.UpdateOrderStatus(ctx, ports.UpdateOrderParams{
			OrderID:   42,
			Status:    domain.StatusPreparing,
			ActorRole: domain.RoleAdmin,
		})

		require.NoError(t, err)
		assert.Equal(t, domain.StatusPreparing, event.Status)
		mockGateway.AssertExpectations(t)
		mockBroadcaster.AssertExpectations(t)
	})

	t.Run("crew is permitted", func(t *testing.T) {
		mockGateway := mocks.NewMockOrderGateway()
		mockBroadcaster := mocks.NewMockEventBroadcaster()

		svc := services.NewOrderCommandService(mockGateway, mockBroadcaster, testLogger())

		mockGateway.On("ApplyStatusChange", ctx, int64(42), domain.StatusReady).
			Return(snapshot, nil)
		mockBroadcaster.On("Broadcast", mock.Anything, mock.Anything).Return(nil)

		_, err := svc.UpdateOrderStatus(ctx, ports.UpdateOrderParams{
			OrderID:   42,
			Status:    domain.StatusReady,
			ActorRole: domain.RoleCrew,
		})

		require.NoError(t, err)
	})

	t.Run("customer is unauthorized and store is untouched", func(t *testing.T) {
		mockGateway := mocks.NewMockOrderGateway()
		mockBroadcaster := mocks.NewMockEventBroadcaster()

		svc := services.NewOrderCommandService(mockGateway, mockBroadcaster, testLogger())

		event, err := svc.UpdateOrderStatus(ctx, ports.UpdateOrderParams{
			OrderID:   42,
			Status:    domain.StatusPreparing,
			ActorRole: domain.RoleCustomer,
		})

		assert.Nil(t, event)
		assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
		mockGateway.AssertNotCalled(t, "ApplyStatusChange")
		mockBroadcaster.AssertNotCalled(t, "Broadcast")
	})

	t.Run("guest is unauthorized", func(t *testing.T) {
		mockGateway := mocks.NewMockOrderGateway()
		mockBroadcaster := mocks.NewMockEventBroadcaster()

		svc := services.NewOrderCommandService(mockGateway, mockBroadcaster, testLogger())

		_, err := svc.UpdateOrderStatus(ctx, ports.UpdateOrderParams{
			OrderID:   42,
			Status:    domain.StatusPreparing,
			ActorRole: domain.RoleGuest,
		})

		assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
		mockGateway.AssertNotCalled(t, "ApplyStatusChange")
	})

	t.Run("gateway failure is not broadcast", func(t *testing.T) {
		mockGateway := mocks.NewMockOrderGateway()
		mockBroadcaster := mocks.NewMockEventBroadcaster()

		svc := services.NewOrderCommandService(mockGateway, mockBroadcaster, testLogger())

		mockGateway.On("ApplyStatusChange", ctx, int64(7), domain.StatusCancelled).
			Return(nil, apperrors.ErrOrderNotFound)

		event, err := svc.UpdateOrderStatus(ctx, ports.UpdateOrderParams{
			OrderID:   7,
			Status:    domain.StatusCancelled,
			ActorRole: domain.RoleAdmin,
		})

		assert.Nil(t, event)
		assert.ErrorIs(t, err, apperrors.ErrOrderNotFound)
		mockBroadcaster.AssertNotCalled(t, "Broadcast")
	})
}
