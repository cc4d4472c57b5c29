package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wsAdapter "github.com/lorrc/order-relay-backend/internal/adapters/primary/websocket"
	"github.com/lorrc/order-relay-backend/internal/core/mocks"
	"github.com/lorrc/order-relay-backend/internal/core/ports"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error { return s.err }

func newHealthHandler(pingErr error, state ports.GatewayState) *HealthHandler {
	gateway := mocks.NewMockOrderGateway()
	gateway.On("State").Return(state)

	hub := wsAdapter.NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return NewHealthHandler(stubPinger{err: pingErr}, gateway, hub, "test")
}

func decodeHealth(t *testing.T, recorder *httptest.ResponseRecorder) HealthResponse {
	t.Helper()
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	return resp
}

func TestHealthHandler_Liveness(t *testing.T) {
	handler := newHealthHandler(nil, ports.GatewayConnected)

	recorder := httptest.NewRecorder()
	handler.HandleLiveness(recorder, httptest.NewRequest(stdhttp.MethodGet, "/health/live", nil))

	require.Equal(t, stdhttp.StatusOK, recorder.Code)
	resp := decodeHealth(t, recorder)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, 0, resp.Clients)
}

func TestHealthHandler_Readiness(t *testing.T) {
	tests := []struct {
		name     string
		pingErr  error
		state    ports.GatewayState
		code     int
		status   string
		gwStatus string
	}{
		{"all healthy", nil, ports.GatewayConnected, stdhttp.StatusOK, "healthy", "healthy"},
		{"database down", errors.New("refused"), ports.GatewayConnected, stdhttp.StatusServiceUnavailable, "unhealthy", "healthy"},
		{"gateway reconnecting is degraded not down", nil, ports.GatewayReconnecting, stdhttp.StatusOK, "healthy", "degraded"},
		{"gateway terminally failed", nil, ports.GatewayFailed, stdhttp.StatusServiceUnavailable, "unhealthy", "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newHealthHandler(tt.pingErr, tt.state)

			recorder := httptest.NewRecorder()
			handler.HandleReadiness(recorder, httptest.NewRequest(stdhttp.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.code, recorder.Code)
			resp := decodeHealth(t, recorder)
			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, tt.gwStatus, resp.Checks["order_store_gateway"].Status)
		})
	}
}
