package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lorrc/order-relay-backend/internal/core/domain"
	apperrors "github.com/lorrc/order-relay-backend/internal/core/errors"
	"github.com/lorrc/order-relay-backend/internal/core/ports"
)

// ReconnectConfig controls the gateway's reconnect state machine.
type ReconnectConfig struct {
	// DelayStep is multiplied by the attempt number to produce the
	// next delay, capped at MaxDelay.
	DelayStep   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

// DefaultReconnectConfig returns the reconnect settings used when the
// configuration does not override them.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		DelayStep:   2 * time.Second,
		MaxDelay:    30 * time.Second,
		MaxAttempts: 10,
	}
}

// StoreGateway is the sole bridge to persistent order data. It wraps the
// order repository with bounded timeouts and owns the
// Connected -> Disconnected -> Reconnecting -> Connected state machine.
// Exceeding the attempt cap moves it to a terminal Failed state which is
// surfaced to admin connections as a system_error broadcast.
type StoreGateway struct {
	repo        ports.OrderRepository
	broadcaster ports.EventBroadcaster
	cfg         ReconnectConfig
	opTimeout   time.Duration
	logger      *slog.Logger

	// ctx bounds the lifetime of background reconnect attempts.
	ctx context.Context

	mu           sync.Mutex
	state        ports.GatewayState
	attempt      int
	reconnecting bool
}

var _ ports.OrderGateway = (*StoreGateway)(nil)

// NewStoreGateway creates a gateway in the Connected state. The context
// bounds background reconnect attempts and should be the process context.
func NewStoreGateway(
	ctx context.Context,
	repo ports.OrderRepository,
	broadcaster ports.EventBroadcaster,
	cfg ReconnectConfig,
	opTimeout time.Duration,
	logger *slog.Logger,
) *StoreGateway {
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}
	return &StoreGateway{
		repo:        repo,
		broadcaster: broadcaster,
		cfg:         cfg,
		opTimeout:   opTimeout,
		logger:      logger.With("component", "store_gateway"),
		ctx:         ctx,
		state:       ports.GatewayConnected,
	}
}

// State returns the current connection state.
func (g *StoreGateway) State() ports.GatewayState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Healthy reports whether store operations may be attempted.
func (g *StoreGateway) Healthy() bool {
	return g.State() == ports.GatewayConnected
}

// Attempt returns the current reconnect attempt counter.
func (g *StoreGateway) Attempt() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.attempt
}

// FetchChangedOrders returns snapshots changed after since, with the new
// watermark. It is a pure read: on any failure no watermark is returned
// and the reconnect path is triggered.
func (g *StoreGateway) FetchChangedOrders(ctx context.Context, since time.Time) ([]domain.OrderEvent, time.Time, error) {
	if !g.Healthy() {
		return nil, time.Time{}, apperrors.ErrStoreUnavailable
	}

	opCtx, cancel := context.WithTimeout(ctx, g.opTimeout)
	defer cancel()

	orders, watermark, err := g.repo.ListChangedSince(opCtx, since)
	if err != nil {
		g.markDisconnected(err)
		return nil, time.Time{}, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}

	return orders, watermark, nil
}

// ApplyStatusChange validates the target status and performs the atomic
// transition plus audit record, returning the resulting snapshot.
func (g *StoreGateway) ApplyStatusChange(ctx context.Context, orderID int64, status domain.OrderStatus) (*domain.OrderEvent, error) {
	if !domain.IsValidStatus(status) {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidStatus, status)
	}

	if !g.Healthy() {
		return nil, apperrors.ErrStoreUnavailable
	}

	opCtx, cancel := context.WithTimeout(ctx, g.opTimeout)
	defer cancel()

	event, err := g.repo.UpdateStatus(opCtx, orderID, status)
	if err != nil {
		if errors.Is(err, apperrors.ErrOrderNotFound) {
			return nil, err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.WrapStoreError(err)
		}
		g.markDisconnected(err)
		return nil, apperrors.WrapStoreError(err)
	}

	return event, nil
}

// markDisconnected records a broken store connection and starts the
// reconnect loop unless one is already running or the gateway has
// permanently failed.
func (g *StoreGateway) markDisconnected(cause error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == ports.GatewayFailed {
		return
	}

	g.state = ports.GatewayDisconnected
	if g.reconnecting {
		return
	}
	g.reconnecting = true

	g.logger.Warn("store connection lost, starting reconnect",
		"error", cause,
	)
	go g.reconnectLoop()
}

// reconnectLoop attempts to restore store connectivity on an increasing,
// capped delay. A successful ping resets the attempt counter and returns
// the gateway to Connected; exceeding the attempt cap is terminal.
//
// The reconnecting flag is cleared inside the same locked section as each
// terminal state transition. Clearing it later would open a window where
// markDisconnected sees a loop that is already gone and never starts a
// new one.
func (g *StoreGateway) reconnectLoop() {
	for {
		g.mu.Lock()
		g.attempt++
		attempt := g.attempt
		if attempt > g.cfg.MaxAttempts {
			g.state = ports.GatewayFailed
			g.reconnecting = false
			g.mu.Unlock()
			g.logger.Error("store reconnect attempts exhausted",
				"max_attempts", g.cfg.MaxAttempts,
			)
			g.notifyFailed()
			return
		}
		g.state = ports.GatewayReconnecting
		g.mu.Unlock()

		delay := time.Duration(attempt) * g.cfg.DelayStep
		if delay > g.cfg.MaxDelay {
			delay = g.cfg.MaxDelay
		}

		g.logger.Info("store reconnect attempt scheduled",
			"attempt", attempt,
			"delay", delay,
		)

		select {
		case <-g.ctx.Done():
			g.mu.Lock()
			g.reconnecting = false
			g.mu.Unlock()
			return
		case <-time.After(delay):
		}

		pingCtx, cancel := context.WithTimeout(g.ctx, g.opTimeout)
		err := g.repo.Ping(pingCtx)
		cancel()

		if err == nil {
			g.mu.Lock()
			g.state = ports.GatewayConnected
			g.attempt = 0
			g.reconnecting = false
			g.mu.Unlock()
			g.logger.Info("store connection restored", "after_attempts", attempt)
			return
		}

		g.logger.Warn("store reconnect attempt failed",
			"attempt", attempt,
			"error", err,
		)
	}
}

// notifyFailed broadcasts the terminal failure to admin connections only.
func (g *StoreGateway) notifyFailed() {
	if g.broadcaster == nil {
		return
	}
	env := domain.NewSystemErrorEnvelope("order store connection lost; manual intervention required")
	if err := g.broadcaster.Broadcast(env, domain.SystemErrorRoles()...); err != nil {
		g.logger.Error("failed to broadcast system error", "error", err)
	}
}
