package gateway

import (
	"context"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
)

// Razorpay implements Client against the Razorpay Orders API.
type Razorpay struct {
	client        *razorpay.Client
	keyID         string
	webhookSecret string
}

func NewRazorpay(keyID, keySecret, webhookSecret string) *Razorpay {
	return &Razorpay{
		client:        razorpay.NewClient(keyID, keySecret),
		keyID:         keyID,
		webhookSecret: webhookSecret,
	}
}

func (r *Razorpay) PublicKey() string {
	return r.keyID
}

type orderResult struct {
	body map[string]interface{}
	err  error
}

// CreateOrder opens an auto-capture order. The SDK call has no context
// support, so the caller's deadline is enforced around it.
func (r *Razorpay) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	data := map[string]interface{}{
		"amount":          req.Amount,
		"currency":        req.Currency,
		"receipt":         req.Receipt,
		"payment_capture": 1,
	}
	if len(req.Notes) > 0 {
		data["notes"] = req.Notes
	}

	done := make(chan orderResult, 1)
	go func() {
		body, err := r.client.Order.Create(data, nil)
		done <- orderResult{body: body, err: err}
	}()

	var res orderResult
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		return nil, fmt.Errorf("razorpay create order: %w", res.err)
	}

	id, _ := res.body["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("razorpay create order: response has no order id")
	}

	order := &Order{
		ID:       id,
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
	}
	if status, ok := res.body["status"].(string); ok {
		order.Status = status
	}
	if amount, ok := res.body["amount"].(float64); ok {
		order.Amount = int64(amount)
	}
	return order, nil
}

// VerifyWebhookSignature checks the X-Razorpay-Signature header against the
// raw request body.
func (r *Razorpay) VerifyWebhookSignature(body []byte, signature string) error {
	if r.webhookSecret == "" || signature == "" {
		return ErrInvalidSignature
	}
	if !utils.VerifyWebhookSignature(string(body), signature, r.webhookSecret) {
		return ErrInvalidSignature
	}
	return nil
}
