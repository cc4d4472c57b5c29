package websocket

import (
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/order-relay-backend/internal/core/domain"
	apperrors "github.com/lorrc/order-relay-backend/internal/core/errors"
	"github.com/lorrc/order-relay-backend/internal/core/mocks"
	"github.com/lorrc/order-relay-backend/internal/core/ports"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// stubTokenValidator maps fixed token strings to roles.
type stubTokenValidator struct {
	roles map[string]domain.Role
}

func (s *stubTokenValidator) RoleFromToken(token string) (domain.Role, error) {
	role, ok := s.roles[token]
	if !ok {
		return domain.RoleGuest, apperrors.ErrInvalidToken
	}
	return role, nil
}

func newTestClient(commands ports.CommandService, tokens TokenValidator) *Client {
	hub := NewHub(testLogger())
	return NewClient(hub, nil, commands, tokens, testLogger())
}

// receiveEnvelope drains one queued envelope from the client's send buffer.
func receiveEnvelope(t *testing.T, c *Client) domain.Envelope {
	t.Helper()

	select {
	case payload := <-c.Send:
		var env domain.Envelope
		require.NoError(t, json.Unmarshal(payload, &env))
		return env
	default:
		t.Fatal("no envelope queued")
		return domain.Envelope{}
	}
}

func TestClient_HandleMessage_Authenticate(t *testing.T) {
	t.Run("crew role tag grants orders and updates topics", func(t *testing.T) {
		client := newTestClient(nil, nil)

		client.HandleMessage([]byte(`{"action":"authenticate","type":"crew"}`))

		env := receiveEnvelope(t, client)
		assert.Equal(t, domain.EnvelopeAuthentication, env.Type)
		assert.Equal(t, "success", env.Status)
		assert.Equal(t, []domain.Topic{domain.TopicOrders, domain.TopicUpdates}, env.Topics)

		assert.Equal(t, domain.RoleCrew, client.Role())
		assert.True(t, client.Authenticated())
		assert.ElementsMatch(t, []domain.Topic{domain.TopicOrders, domain.TopicUpdates}, client.Topics())
	})

	t.Run("customer role tag grants updates only", func(t *testing.T) {
		client := newTestClient(nil, nil)

		client.HandleMessage([]byte(`{"action":"authenticate","type":"customer"}`))

		env := receiveEnvelope(t, client)
		assert.Equal(t, "success", env.Status)
		assert.Equal(t, []domain.Topic{domain.TopicUpdates}, env.Topics)
		assert.Equal(t, domain.RoleCustomer, client.Role())
	})

	t.Run("unknown role tag keeps the connection as guest", func(t *testing.T) {
		client := newTestClient(nil, nil)

		client.HandleMessage([]byte(`{"action":"authenticate","type":"superuser"}`))

		env := receiveEnvelope(t, client)
		assert.Equal(t, domain.EnvelopeAuthentication, env.Type)
		assert.Equal(t, "error", env.Status)

		assert.Equal(t, domain.RoleGuest, client.Role())
		assert.False(t, client.Authenticated())
		assert.Empty(t, client.Topics())
	})

	t.Run("guest tag is not an authenticatable role", func(t *testing.T) {
		client := newTestClient(nil, nil)

		client.HandleMessage([]byte(`{"action":"authenticate","type":"guest"}`))

		env := receiveEnvelope(t, client)
		assert.Equal(t, "error", env.Status)
		assert.False(t, client.Authenticated())
	})

	t.Run("second authenticate attempt is rejected", func(t *testing.T) {
		client := newTestClient(nil, nil)

		client.HandleMessage([]byte(`{"action":"authenticate","type":"crew"}`))
		receiveEnvelope(t, client)

		client.HandleMessage([]byte(`{"action":"authenticate","type":"admin"}`))

		env := receiveEnvelope(t, client)
		assert.Equal(t, "error", env.Status)
		assert.Equal(t, "already authenticated", env.Message)
		assert.Equal(t, domain.RoleCrew, client.Role())
	})

	t.Run("signed token wins over the role tag", func(t *testing.T) {
		tokens := &stubTokenValidator{roles: map[string]domain.Role{"tok-admin": domain.RoleAdmin}}
		client := newTestClient(nil, tokens)

		client.HandleMessage([]byte(`{"action":"authenticate","type":"customer","token":"tok-admin"}`))

		env := receiveEnvelope(t, client)
		assert.Equal(t, "success", env.Status)
		assert.Equal(t, domain.RoleAdmin, client.Role())
	})

	t.Run("bad token does not fall back to the role tag", func(t *testing.T) {
		tokens := &stubTokenValidator{roles: map[string]domain.Role{}}
		client := newTestClient(nil, tokens)

		client.HandleMessage([]byte(`{"action":"authenticate","type":"crew","token":"forged"}`))

		env := receiveEnvelope(t, client)
		assert.Equal(t, "error", env.Status)
		assert.Equal(t, domain.RoleGuest, client.Role())
	})
}

func TestClient_HandleMessage_Subscribe(t *testing.T) {
	t.Run("adds the valid subset and drops the rest", func(t *testing.T) {
		client := newTestClient(nil, nil)

		client.HandleMessage([]byte(`{"action":"subscribe","topics":["orders","gossip","system"]}`))

		env := receiveEnvelope(t, client)
		assert.Equal(t, domain.EnvelopeSubscription, env.Type)
		assert.Equal(t, "success", env.Status)
		assert.Equal(t, []domain.Topic{domain.TopicOrders, domain.TopicSystem}, env.Topics)
		assert.ElementsMatch(t, []domain.Topic{domain.TopicOrders, domain.TopicSystem}, client.Topics())
	})

	t.Run("all-invalid request is an error", func(t *testing.T) {
		client := newTestClient(nil, nil)

		client.HandleMessage([]byte(`{"action":"subscribe","topics":["gossip","weather"]}`))

		env := receiveEnvelope(t, client)
		assert.Equal(t, domain.EnvelopeError, env.Type)
		assert.Equal(t, apperrors.ErrNoValidTopics.Error(), env.Message)
		assert.Empty(t, client.Topics())
	})
}

func TestClient_HandleMessage_UpdateOrder(t *testing.T) {
	t.Run("forwards the command with the client's role", func(t *testing.T) {
		commands := mocks.NewMockCommandService()
		client := newTestClient(commands, nil)

		client.HandleMessage([]byte(`{"action":"authenticate","type":"crew"}`))
		receiveEnvelope(t, client)

		snapshot := &domain.OrderEvent{OrderID: 5, Status: domain.StatusReady}
		commands.On("UpdateOrderStatus", mock.Anything, ports.UpdateOrderParams{
			OrderID:   5,
			Status:    domain.StatusReady,
			ActorRole: domain.RoleCrew,
		}).Return(snapshot, nil)

		client.HandleMessage([]byte(`{"action":"update_order","order_id":5,"status":"ready"}`))

		// Success produces no direct reply; the hub broadcast carries it.
		assert.Empty(t, client.Send)
		commands.AssertExpectations(t)
	})

	t.Run("unauthorized role gets a direct error envelope", func(t *testing.T) {
		commands := mocks.NewMockCommandService()
		client := newTestClient(commands, nil)

		client.HandleMessage([]byte(`{"action":"authenticate","type":"customer"}`))
		receiveEnvelope(t, client)

		commands.On("UpdateOrderStatus", mock.Anything, mock.Anything).
			Return(nil, apperrors.ErrUnauthorized)

		client.HandleMessage([]byte(`{"action":"update_order","order_id":5,"status":"ready"}`))

		env := receiveEnvelope(t, client)
		assert.Equal(t, domain.EnvelopeError, env.Type)
		assert.Equal(t, "unauthorized", env.Message)
	})

	t.Run("missing fields never reach the command service", func(t *testing.T) {
		commands := mocks.NewMockCommandService()
		client := newTestClient(commands, nil)

		client.HandleMessage([]byte(`{"action":"update_order","status":"ready"}`))

		env := receiveEnvelope(t, client)
		assert.Equal(t, domain.EnvelopeError, env.Type)
		commands.AssertNotCalled(t, "UpdateOrderStatus")
	})

	t.Run("store failure maps to a client-facing message", func(t *testing.T) {
		commands := mocks.NewMockCommandService()
		client := newTestClient(commands, nil)

		commands.On("UpdateOrderStatus", mock.Anything, mock.Anything).
			Return(nil, apperrors.ErrStoreUnavailable)

		client.HandleMessage([]byte(`{"action":"update_order","order_id":9,"status":"ready"}`))

		env := receiveEnvelope(t, client)
		assert.Equal(t, "order store unavailable", env.Message)
	})
}

func TestClient_HandleMessage_Malformed(t *testing.T) {
	t.Run("malformed payload gets an error without closing", func(t *testing.T) {
		client := newTestClient(nil, nil)

		client.HandleMessage([]byte(`not json`))

		env := receiveEnvelope(t, client)
		assert.Equal(t, domain.EnvelopeError, env.Type)
		assert.Equal(t, "malformed message", env.Message)
	})

	t.Run("unknown action gets an error", func(t *testing.T) {
		client := newTestClient(nil, nil)

		client.HandleMessage([]byte(`{"action":"launch"}`))

		env := receiveEnvelope(t, client)
		assert.Equal(t, domain.EnvelopeError, env.Type)
		assert.Equal(t, "unknown action", env.Message)
	})

	t.Run("pong refreshes activity without a reply", func(t *testing.T) {
		client := newTestClient(nil, nil)

		client.HandleMessage([]byte(`{"action":"pong"}`))

		assert.Empty(t, client.Send)
	})
}

func TestClient_Entitled(t *testing.T) {
	authAs := func(roleTag string) *Client {
		client := newTestClient(nil, nil)
		client.HandleMessage([]byte(`{"action":"authenticate","type":"` + roleTag + `"}`))
		<-client.Send
		return client
	}

	crewAdmin := []domain.Role{domain.RoleCrew, domain.RoleAdmin}

	t.Run("crew receives new orders, customer does not", func(t *testing.T) {
		crew := authAs("crew")
		customer := authAs("customer")

		assert.True(t, crew.Entitled(domain.EnvelopeNewOrder, crewAdmin))
		assert.False(t, customer.Entitled(domain.EnvelopeNewOrder, crewAdmin))
	})

	t.Run("topic gate applies after the role match", func(t *testing.T) {
		admin := authAs("admin")
		crew := authAs("crew")

		// Admin subscribes to system by default; crew does not.
		assert.True(t, admin.Entitled(domain.EnvelopeSystemError, []domain.Role{domain.RoleAdmin}))
		assert.False(t, crew.Entitled(domain.EnvelopeSystemError, crewAdmin))
	})

	t.Run("guest receives nothing role-targeted", func(t *testing.T) {
		guest := newTestClient(nil, nil)

		assert.False(t, guest.Entitled(domain.EnvelopeNewOrder, crewAdmin))
		assert.False(t, guest.Entitled(domain.EnvelopeOrderUpdate, crewAdmin))
	})

	t.Run("untargeted control envelopes reach everyone", func(t *testing.T) {
		guest := newTestClient(nil, nil)

		assert.True(t, guest.Entitled(domain.EnvelopePing, nil))
		assert.True(t, guest.Entitled(domain.EnvelopeError, nil))
	})
}
