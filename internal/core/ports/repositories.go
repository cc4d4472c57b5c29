package ports

import (
	"context"
	"time"

	"github.com/lorrc/order-relay-backend/internal/core/domain"
)

// OrderRepository is the secondary port to the relational order store.
type OrderRepository interface {
	// ListChangedSince returns order snapshots whose change timestamp is
	// at or after since, ordered by change time ascending, together with
	// the highest change timestamp seen. The boundary is inclusive so
	// equal-timestamp changes are never skipped; callers deduplicate
	// re-fetched boundary rows. When no rows match it returns the zero
	// time.
	ListChangedSince(ctx context.Context, since time.Time) ([]domain.OrderEvent, time.Time, error)

	// UpdateStatus performs the transactional status transition plus
	// audit record and returns the resulting snapshot.
	UpdateStatus(ctx context.Context, orderID int64, status domain.OrderStatus) (*domain.OrderEvent, error)

	// Ping verifies store connectivity.
	Ping(ctx context.Context) error
}

// TransactionManager defines the port for running atomic operations.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
