package websocket

import (
	"encoding/json"
	"fmt"

	apperrors "github.com/lorrc/order-relay-backend/internal/core/errors"
)

// Client actions accepted over the wire.
const (
	ActionAuthenticate = "authenticate"
	ActionSubscribe    = "subscribe"
	ActionUpdateOrder  = "update_order"
	ActionPong         = "pong"
)

// ClientMessage is the inbound command envelope. One canonical schema:
// the role tag travels in "type", order commands carry "order_id" and
// "status", and "token" optionally replaces the bare role tag with a
// signed service token.
type ClientMessage struct {
	Action  string   `json:"action"`
	Type    string   `json:"type,omitempty"`
	Token   string   `json:"token,omitempty"`
	Topics  []string `json:"topics,omitempty"`
	OrderID int64    `json:"order_id,omitempty"`
	Status  string   `json:"status,omitempty"`
}

// DecodeClientMessage parses raw bytes into a ClientMessage.
func DecodeClientMessage(raw []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedMessage, err)
	}
	if msg.Action == "" {
		return nil, fmt.Errorf("%w: missing action", apperrors.ErrMalformedMessage)
	}
	return &msg, nil
}
