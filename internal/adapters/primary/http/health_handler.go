package http

import (
	"context"
	"net/http"
	"time"

	wsAdapter "github.com/lorrc/order-relay-backend/internal/adapters/primary/websocket"
	"github.com/lorrc/order-relay-backend/internal/core/ports"
)

// HealthChecker defines the interface for health check dependencies
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db        HealthChecker
	gateway   ports.OrderGateway
	hub       *wsAdapter.Hub
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db HealthChecker, gateway ports.OrderGateway, hub *wsAdapter.Hub, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		gateway:   gateway,
		hub:       hub,
		startTime: time.Now(),
		version:   version,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Version   string           `json:"version,omitempty"`
	Uptime    string           `json:"uptime,omitempty"`
	Clients   int              `json:"clients"`
	Checks    map[string]Check `json:"checks,omitempty"`
}

// Check represents an individual health check result
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// HandleLiveness handles liveness probe requests (is the service running?)
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Clients:   h.hub.ClientCount(),
	}
	WriteJSON(w, http.StatusOK, response)
}

// HandleReadiness reports whether the service can currently serve events:
// the database must answer a ping and the gateway must not have failed
// terminally.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]Check)
	status := http.StatusOK
	overall := "healthy"

	start := time.Now()
	pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(pingCtx); err != nil {
		checks["database"] = Check{Status: "unhealthy", Message: err.Error()}
		status = http.StatusServiceUnavailable
		overall = "unhealthy"
	} else {
		checks["database"] = Check{Status: "healthy", Latency: time.Since(start).String()}
	}

	gwState := h.gateway.State()
	gwCheck := Check{Status: "healthy", Message: string(gwState)}
	if gwState == ports.GatewayFailed {
		gwCheck.Status = "unhealthy"
		status = http.StatusServiceUnavailable
		overall = "unhealthy"
	} else if gwState != ports.GatewayConnected {
		gwCheck.Status = "degraded"
	}
	checks["order_store_gateway"] = gwCheck

	response := HealthResponse{
		Status:    overall,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Clients:   h.hub.ClientCount(),
		Checks:    checks,
	}
	WriteJSON(w, status, response)
}

// HandleHealth is the combined health endpoint.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.HandleReadiness(w, r)
}
