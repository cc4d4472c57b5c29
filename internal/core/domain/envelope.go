package domain

import "time"

// EnvelopeType defines the type of an outbound real-time message.
type EnvelopeType string

const (
	EnvelopeWelcome        EnvelopeType = "welcome"
	EnvelopeAuthentication EnvelopeType = "authentication"
	EnvelopeSubscription   EnvelopeType = "subscription"
	EnvelopeNewOrder       EnvelopeType = "new_order"
	EnvelopeOrderUpdate    EnvelopeType = "order_update"
	EnvelopeError          EnvelopeType = "error"
	EnvelopePing           EnvelopeType = "ping"
	EnvelopeSystemError    EnvelopeType = "system_error"
)

// Envelope is the wire wrapper sent to WebSocket clients.
type Envelope struct {
	Type      EnvelopeType `json:"type"`
	ClientID  string       `json:"clientId,omitempty"`
	Status    string       `json:"status,omitempty"`
	Message   string       `json:"message,omitempty"`
	Topics    []Topic      `json:"topics,omitempty"`
	Order     *OrderEvent  `json:"order,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

func newEnvelope(t EnvelopeType) Envelope {
	return Envelope{Type: t, Timestamp: time.Now().UTC()}
}

// NewWelcomeEnvelope greets a freshly accepted connection.
func NewWelcomeEnvelope(clientID string) Envelope {
	env := newEnvelope(EnvelopeWelcome)
	env.ClientID = clientID
	return env
}

// NewAuthSuccessEnvelope confirms authentication and lists granted topics.
func NewAuthSuccessEnvelope(role Role, topics []Topic) Envelope {
	env := newEnvelope(EnvelopeAuthentication)
	env.Status = "success"
	env.Message = "authenticated as " + string(role)
	env.Topics = topics
	return env
}

// NewAuthErrorEnvelope reports a failed authentication attempt.
func NewAuthErrorEnvelope(message string) Envelope {
	env := newEnvelope(EnvelopeAuthentication)
	env.Status = "error"
	env.Message = message
	return env
}

// NewSubscriptionEnvelope confirms the accepted topic subset.
func NewSubscriptionEnvelope(topics []Topic) Envelope {
	env := newEnvelope(EnvelopeSubscription)
	env.Status = "success"
	env.Topics = topics
	return env
}

// NewOrderEnvelope wraps a newly observed order.
func NewOrderEnvelope(order OrderEvent) Envelope {
	env := newEnvelope(EnvelopeNewOrder)
	env.Order = &order
	return env
}

// NewOrderUpdateEnvelope wraps the result of a status change.
func NewOrderUpdateEnvelope(order OrderEvent) Envelope {
	env := newEnvelope(EnvelopeOrderUpdate)
	env.Order = &order
	return env
}

// NewErrorEnvelope reports a per-connection error.
func NewErrorEnvelope(message string) Envelope {
	env := newEnvelope(EnvelopeError)
	env.Message = message
	return env
}

// NewPingEnvelope is the application-level heartbeat probe.
func NewPingEnvelope() Envelope {
	return newEnvelope(EnvelopePing)
}

// NewSystemErrorEnvelope reports a store-side failure to admins.
func NewSystemErrorEnvelope(message string) Envelope {
	env := newEnvelope(EnvelopeSystemError)
	env.Message = message
	return env
}
