package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/lorrc/order-relay-backend/internal/core/domain"
	"github.com/lorrc/order-relay-backend/internal/core/ports"
)

// MockOrderRepository is a mock implementation of ports.OrderRepository
type MockOrderRepository struct {
	mock.Mock
}

func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{}
}

func (m *MockOrderRepository) ListChangedSince(ctx context.Context, since time.Time) ([]domain.OrderEvent, time.Time, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, time.Time{}, args.Error(2)
	}
	return args.Get(0).([]domain.OrderEvent), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, orderID int64, status domain.OrderStatus) (*domain.OrderEvent, error) {
	args := m.Called(ctx, orderID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OrderEvent), args.Error(1)
}

func (m *MockOrderRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockOrderGateway is a mock implementation of ports.OrderGateway
type MockOrderGateway struct {
	mock.Mock
}

func NewMockOrderGateway() *MockOrderGateway {
	return &MockOrderGateway{}
}

func (m *MockOrderGateway) FetchChangedOrders(ctx context.Context, since time.Time) ([]domain.OrderEvent, time.Time, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, time.Time{}, args.Error(2)
	}
	return args.Get(0).([]domain.OrderEvent), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockOrderGateway) ApplyStatusChange(ctx context.Context, orderID int64, status domain.OrderStatus) (*domain.OrderEvent, error) {
	args := m.Called(ctx, orderID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OrderEvent), args.Error(1)
}

func (m *MockOrderGateway) Healthy() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockOrderGateway) State() ports.GatewayState {
	args := m.Called()
	return args.Get(0).(ports.GatewayState)
}

// MockEventBroadcaster is a mock implementation of ports.EventBroadcaster
type MockEventBroadcaster struct {
	mock.Mock
}

func NewMockEventBroadcaster() *MockEventBroadcaster {
	return &MockEventBroadcaster{}
}

func (m *MockEventBroadcaster) Broadcast(env domain.Envelope, roles ...domain.Role) error {
	args := m.Called(env, roles)
	return args.Error(0)
}

// MockCommandService is a mock implementation of ports.CommandService
type MockCommandService struct {
	mock.Mock
}

func NewMockCommandService() *MockCommandService {
	return &MockCommandService{}
}

func (m *MockCommandService) UpdateOrderStatus(ctx context.Context, params ports.UpdateOrderParams) (*domain.OrderEvent, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OrderEvent), args.Error(1)
}
