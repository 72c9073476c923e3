// Package gateway is the narrow contract the booking core has with the
// external payment provider: open an order, and authenticate and decode the
// provider's webhook callbacks.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedEvent   = errors.New("malformed webhook event")
)

// EventPaymentCaptured is the only event that changes booking state.
const EventPaymentCaptured = "payment.captured"

type OrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

type Order struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
	Status   string
}

// Client opens gateway orders and authenticates webhook bodies.
type Client interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	VerifyWebhookSignature(body []byte, signature string) error
	PublicKey() string
}

type PaymentEntity struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

type WebhookEvent struct {
	Event     string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		Payment struct {
			Entity PaymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// Captured reports whether the event confirms a captured payment.
func (e *WebhookEvent) Captured() bool {
	return e.Event == EventPaymentCaptured
}

// ParseWebhookEvent decodes a verified webhook body. Captured-payment events
// must carry both the order and payment ids.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var evt WebhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if evt.Event == "" {
		return nil, fmt.Errorf("%w: missing event name", ErrMalformedEvent)
	}
	if evt.Captured() {
		entity := evt.Payload.Payment.Entity
		if entity.OrderID == "" || entity.ID == "" {
			return nil, fmt.Errorf("%w: captured payment without order or payment id", ErrMalformedEvent)
		}
	}
	return &evt, nil
}
