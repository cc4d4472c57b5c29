package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lorrc/order-relay-backend/internal/core/domain"
	"github.com/lorrc/order-relay-backend/internal/core/ports"
)

// ChangePoller periodically asks the gateway for orders changed past the
// watermark and hands each one to the broadcaster as a new_order event.
//
// The watermark only advances after a cycle fully completes; a failed
// cycle leaves it untouched so no change is skipped. The repository query
// is inclusive at the watermark boundary, so orders sharing the boundary
// timestamp are re-fetched and filtered through a seen-ID set instead of
// being delivered twice.
type ChangePoller struct {
	gateway     ports.OrderGateway
	broadcaster ports.EventBroadcaster
	interval    time.Duration
	logger      *slog.Logger

	mu        sync.Mutex
	watermark time.Time
	// seen holds order IDs already delivered at the current watermark
	// boundary timestamp.
	seen map[int64]struct{}
}

// NewChangePoller creates a poller starting at the given watermark,
// typically the process start time.
func NewChangePoller(
	gateway ports.OrderGateway,
	broadcaster ports.EventBroadcaster,
	interval time.Duration,
	initialWatermark time.Time,
	logger *slog.Logger,
) *ChangePoller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &ChangePoller{
		gateway:     gateway,
		broadcaster: broadcaster,
		interval:    interval,
		logger:      logger.With("component", "change_poller"),
		watermark:   initialWatermark,
		seen:        make(map[int64]struct{}),
	}
}

// Watermark returns the last fully processed change timestamp.
func (p *ChangePoller) Watermark() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.watermark
}

// Run starts the polling loop. It blocks until ctx is cancelled.
func (p *ChangePoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("change poller started", "interval", p.interval)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("change poller stopped")
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll executes a single poll cycle. Exported so a cycle can be driven
// directly in tests.
func (p *ChangePoller) Poll(ctx context.Context) {
	since := p.Watermark()

	orders, newWatermark, err := p.gateway.FetchChangedOrders(ctx, since)
	if err != nil {
		// Skip the cycle without advancing the watermark; the
		// gateway owns the reconnect path.
		p.logger.Warn("poll cycle skipped", "error", err)
		return
	}

	fresh := p.filterSeen(orders, since)
	if len(fresh) == 0 {
		return
	}

	for _, order := range fresh {
		env := domain.NewOrderEnvelope(order)
		if err := p.broadcaster.Broadcast(env, domain.OrderEventRoles()...); err != nil {
			p.logger.Error("failed to broadcast new order",
				"order_id", order.OrderID,
				"error", err,
			)
		}
	}

	p.advance(fresh, newWatermark)

	p.logger.Debug("poll cycle complete",
		"orders", len(fresh),
		"watermark", newWatermark,
	)
}

// filterSeen drops boundary-timestamp orders that were already delivered
// in a previous cycle.
func (p *ChangePoller) filterSeen(orders []domain.OrderEvent, since time.Time) []domain.OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	fresh := make([]domain.OrderEvent, 0, len(orders))
	for _, order := range orders {
		if order.OccurredAt.Equal(since) {
			if _, ok := p.seen[order.OrderID]; ok {
				continue
			}
		}
		fresh = append(fresh, order)
	}
	return fresh
}

// advance moves the watermark past the fully processed batch and rebuilds
// the boundary seen-set for the new watermark timestamp.
func (p *ChangePoller) advance(delivered []domain.OrderEvent, newWatermark time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if newWatermark.After(p.watermark) {
		p.watermark = newWatermark
		p.seen = make(map[int64]struct{})
	}
	for _, order := range delivered {
		if order.OccurredAt.Equal(p.watermark) {
			p.seen[order.OrderID] = struct{}{}
		}
	}
}
