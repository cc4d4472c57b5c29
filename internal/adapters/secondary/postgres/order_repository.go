package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorrc/order-relay-backend/internal/core/domain"
	apperrors "github.com/lorrc/order-relay-backend/internal/core/errors"
	"github.com/lorrc/order-relay-backend/internal/core/ports"
)

// OrderRepository is the secondary adapter for order persistence.
type OrderRepository struct {
	pool      *pgxpool.Pool
	txManager ports.TransactionManager
}

// Ensure OrderRepository implements the ports.OrderRepository interface.
var _ ports.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository creates a new order repository.
func NewOrderRepository(pool *pgxpool.Pool, txManager ports.TransactionManager) *OrderRepository {
	return &OrderRepository{pool: pool, txManager: txManager}
}

const listChangedQuery = `
SELECT id, order_number, customer_name, status, total_amount, updated_at
FROM orders
WHERE updated_at >= $1
ORDER BY updated_at, id`

// ListChangedSince returns snapshots of orders whose change timestamp is
// at or after since, ordered by change time ascending. The boundary is
// inclusive; the caller deduplicates boundary rows across cycles.
func (r *OrderRepository) ListChangedSince(ctx context.Context, since time.Time) ([]domain.OrderEvent, time.Time, error) {
	q := GetDBTX(ctx, r.pool)

	rows, err := q.Query(ctx, listChangedQuery, since)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer rows.Close()

	var events []domain.OrderEvent
	var watermark time.Time

	for rows.Next() {
		var ev domain.OrderEvent
		if err := rows.Scan(&ev.OrderID, &ev.OrderNumber, &ev.CustomerName, &ev.Status, &ev.TotalAmount, &ev.OccurredAt); err != nil {
			return nil, time.Time{}, err
		}
		if ev.OccurredAt.After(watermark) {
			watermark = ev.OccurredAt
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, err
	}

	if err := r.attachItems(ctx, events); err != nil {
		return nil, time.Time{}, err
	}

	return events, watermark, nil
}

const listItemsQuery = `
SELECT order_id, name, quantity, price
FROM order_items
WHERE order_id = ANY($1)
ORDER BY id`

// attachItems loads the item lines for the given snapshots in one query.
func (r *OrderRepository) attachItems(ctx context.Context, events []domain.OrderEvent) error {
	if len(events) == 0 {
		return nil
	}

	ids := make([]int64, len(events))
	byID := make(map[int64]*domain.OrderEvent, len(events))
	for i := range events {
		ids[i] = events[i].OrderID
		byID[events[i].OrderID] = &events[i]
	}

	q := GetDBTX(ctx, r.pool)
	rows, err := q.Query(ctx, listItemsQuery, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var orderID int64
		var item domain.OrderItem
		if err := rows.Scan(&orderID, &item.Name, &item.Quantity, &item.Price); err != nil {
			return err
		}
		if ev, ok := byID[orderID]; ok {
			ev.Items = append(ev.Items, item)
		}
	}
	return rows.Err()
}

const selectForUpdateQuery = `
SELECT status FROM orders WHERE id = $1 FOR UPDATE`

const updateStatusQuery = `
UPDATE orders
SET status = $2, updated_at = now()
WHERE id = $1
RETURNING id, order_number, customer_name, status, total_amount, updated_at`

const insertAuditQuery = `
INSERT INTO order_status_log (order_id, old_status, new_status)
VALUES ($1, $2, $3)`

// UpdateStatus performs the atomic read-modify-write: the status
// transition and its audit record commit together or not at all.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID int64, status domain.OrderStatus) (*domain.OrderEvent, error) {
	var event domain.OrderEvent

	err := r.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		q := GetDBTX(txCtx, r.pool)

		var oldStatus string
		if err := q.QueryRow(txCtx, selectForUpdateQuery, orderID).Scan(&oldStatus); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.ErrOrderNotFound
			}
			return err
		}

		if err := q.QueryRow(txCtx, updateStatusQuery, orderID, string(status)).
			Scan(&event.OrderID, &event.OrderNumber, &event.CustomerName, &event.Status, &event.TotalAmount, &event.OccurredAt); err != nil {
			return err
		}

		_, err := q.Exec(txCtx, insertAuditQuery, orderID, oldStatus, string(status))
		return err
	})
	if err != nil {
		return nil, err
	}

	// Items are read outside the write transaction; they are immutable
	// once the order exists.
	events := []domain.OrderEvent{event}
	if err := r.attachItems(ctx, events); err != nil {
		return nil, err
	}

	return &events[0], nil
}

// Ping verifies store connectivity.
func (r *OrderRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
