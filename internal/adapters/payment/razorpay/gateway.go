// Package razorpaygw drives Razorpay orders and verifies checkout signatures.
package razorpaygw

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	razorpay "github.com/razorpay/razorpay-go"

	"eventsettlement/internal/adapters/payment"
	"eventsettlement/internal/domain"
)

// OrderAPI is the subset of the Razorpay orders resource the gateway uses.
type OrderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
	Fetch(orderID string, queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Config configures the Razorpay gateway.
type Config struct {
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

type gateway struct {
	orders  OrderAPI
	keyID   string
	secret  []byte
	timeout time.Duration
}

// New returns a PaymentGateway backed by the Razorpay API.
func New(cfg Config) domain.PaymentGateway {
	c := razorpay.NewClient(cfg.KeyID, cfg.KeySecret)
	return NewWithOrders(c.Order, cfg)
}

// NewWithOrders returns a gateway using the given orders client.
func NewWithOrders(orders OrderAPI, cfg Config) domain.PaymentGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &gateway{
		orders:  orders,
		keyID:   cfg.KeyID,
		secret:  []byte(cfg.KeySecret),
		timeout: timeout,
	}
}

func (g *gateway) Method() domain.PaymentMethod {
	return domain.PaymentMethodRazorpay
}

func (g *gateway) CreateIntent(ctx context.Context, req domain.PaymentIntentRequest) (*domain.PaymentIntent, error) {
	amount := payment.MinorUnits(req.Amount)
	currency := strings.ToUpper(req.Currency)
	data := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  req.Reference,
		"notes": map[string]interface{}{
			"event_id": req.EventID,
			"user_id":  req.UserID,
		},
	}
	order, err := g.call(ctx, func() (map[string]interface{}, error) {
		return g.orders.Create(data, nil)
	})
	if err != nil {
		return nil, gatewayError("create order", err)
	}
	id, _ := order["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("%w: razorpay create order: response has no id", domain.ErrGatewayUnavailable)
	}
	return &domain.PaymentIntent{
		Provider: domain.PaymentMethodRazorpay,
		Handle:   id,
		Amount:   amount,
		Currency: currency,
		KeyID:    g.keyID,
	}, nil
}

// VerifyProof checks the checkout signature, HMAC-SHA256 of "orderID|paymentID"
// keyed with the merchant secret.
func (g *gateway) VerifyProof(proof domain.PaymentProof) error {
	if proof.OrderID == "" || proof.PaymentID == "" || proof.Signature == "" {
		return domain.ErrSignatureInvalid
	}
	got, err := hex.DecodeString(proof.Signature)
	if err != nil {
		return domain.ErrSignatureInvalid
	}
	if !hmac.Equal(got, Sign(g.secret, proof.OrderID, proof.PaymentID)) {
		return domain.ErrSignatureInvalid
	}
	return nil
}

// Sign returns the raw checkout signature for an order and payment.
func Sign(secret []byte, orderID, paymentID string) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return mac.Sum(nil)
}

func (g *gateway) FetchStatus(ctx context.Context, handle string) (domain.PaymentStatus, error) {
	order, err := g.call(ctx, func() (map[string]interface{}, error) {
		return g.orders.Fetch(handle, nil, nil)
	})
	if err != nil {
		return "", gatewayError("fetch order", err)
	}
	if status, _ := order["status"].(string); status == "paid" {
		return domain.PaymentPaid, nil
	}
	return domain.PaymentUnpaid, nil
}

// Void reports whether the order can be abandoned. Razorpay has no order cancel
// call, so only an order still "created" with no payment attempts is treated as void.
func (g *gateway) Void(ctx context.Context, handle string) error {
	order, err := g.call(ctx, func() (map[string]interface{}, error) {
		return g.orders.Fetch(handle, nil, nil)
	})
	if err != nil {
		return gatewayError("fetch order", err)
	}
	status, _ := order["status"].(string)
	attempts := numberField(order["attempts"])
	if status == "created" && attempts == 0 {
		return nil
	}
	return fmt.Errorf("%w: order %s is %s with %d attempts", domain.ErrPaymentInFlight, handle, status, attempts)
}

func numberField(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int:
		return int64(n)
	case int64:
		return n
	case json.Number:
		i, _ := n.Int64()
		return i
	}
	return 0
}

// call runs fn with the gateway timeout. The Razorpay client takes no context,
// so a timed-out call is abandoned rather than cancelled.
func (g *gateway) call(ctx context.Context, fn func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type result struct {
		body map[string]interface{}
		err  error
	}
	done := make(chan result, 1)
	go func() {
		body, err := fn()
		done <- result{body: body, err: err}
	}()

	select {
	case r := <-done:
		return r.body, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func gatewayError(op string, err error) error {
	return fmt.Errorf("%w: razorpay %s: %w", domain.ErrGatewayUnavailable, op, err)
}
