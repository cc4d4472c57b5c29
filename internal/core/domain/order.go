package domain

import (
	"time"
)

// OrderStatus represents the possible states of an order.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusPreparing  OrderStatus = "preparing"
	StatusReady      OrderStatus = "ready"
	StatusDelivering OrderStatus = "delivering"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
)

// IsValidStatus reports whether s is one of the fixed order statuses.
func IsValidStatus(s OrderStatus) bool {
	switch s {
	case StatusPending, StatusPreparing, StatusReady,
		StatusDelivering, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// OrderItem is a single line of an order snapshot.
type OrderItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// OrderEvent is an immutable snapshot of an order at the moment a change
// was observed. It is constructed by the store gateway, broadcast, and
// discarded; it is never mutated or persisted by this service.
type OrderEvent struct {
	OrderID      int64       `json:"order_id"`
	OrderNumber  string      `json:"order_number"`
	CustomerName string      `json:"customer_name"`
	Items        []OrderItem `json:"items"`
	TotalAmount  float64     `json:"total_amount"`
	Status       OrderStatus `json:"status"`
	OccurredAt   time.Time   `json:"occurred_at"`
}
