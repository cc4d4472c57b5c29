package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/lorrc/order-relay-backend/internal/core/domain"
)

// HealthMonitor periodically probes all connections with an
// application-level ping envelope and evicts clients whose lastSeen
// exceeds the staleness threshold. Transport-level liveness is already
// covered by the per-client ping/pong deadlines; this sweep reclaims
// connections whose peer vanished without the TCP stack noticing.
type HealthMonitor struct {
	hub          *Hub
	pingInterval time.Duration
	staleAfter   time.Duration
	logger       *slog.Logger
}

// NewHealthMonitor creates a monitor for the hub's connections.
func NewHealthMonitor(hub *Hub, pingInterval, staleAfter time.Duration, logger *slog.Logger) *HealthMonitor {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if staleAfter <= 0 {
		staleAfter = 5 * time.Minute
	}
	return &HealthMonitor{
		hub:          hub,
		pingInterval: pingInterval,
		staleAfter:   staleAfter,
		logger:       logger.With("component", "health_monitor"),
	}
}

// Run starts the sweep loop. It blocks until ctx is cancelled.
func (m *HealthMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.pingInterval)
	defer ticker.Stop()

	m.logger.Info("health monitor started",
		"ping_interval", m.pingInterval,
		"stale_after", m.staleAfter,
	)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("health monitor stopped")
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep sends one ping probe to every connection and evicts stale ones.
// Exported so a cycle can be driven directly in tests.
func (m *HealthMonitor) Sweep() {
	payload, err := json.Marshal(domain.NewPingEnvelope())
	if err != nil {
		m.logger.Error("failed to serialize ping envelope", "error", err)
		return
	}

	cutoff := time.Now().UTC().Add(-m.staleAfter)
	evicted := 0

	for _, client := range m.hub.snapshot(nil) {
		if client.LastSeen().Before(cutoff) {
			m.logger.Info("evicting stale client",
				"client_id", client.ID,
				"last_seen", client.LastSeen(),
			)
			m.hub.unregisterClient(client)
			client.CloseConn()
			evicted++
			continue
		}
		if !client.QueueRaw(payload) {
			m.logger.Warn("ping dropped, client send buffer full",
				"client_id", client.ID,
			)
		}
	}

	if evicted > 0 {
		m.logger.Info("stale sweep complete", "evicted", evicted)
	}
}
