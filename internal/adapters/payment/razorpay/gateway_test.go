package razorpaygw

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventsettlement/internal/domain"
)

type fakeOrders struct {
	created map[string]interface{}
	order   map[string]interface{}
	err     error
	block   chan struct{}
}

func (f *fakeOrders) Create(data map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	f.created = data
	if f.block != nil {
		<-f.block
	}
	return f.order, f.err
}

func (f *fakeOrders) Fetch(orderID string, _ map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.order, nil
}

const testSecret = "rzp_test_secret"

func TestGateway_CreateIntent(t *testing.T) {
	orders := &fakeOrders{order: map[string]interface{}{"id": "order_9A33XWu170gUtm", "status": "created"}}
	g := NewWithOrders(orders, Config{KeyID: "rzp_test_key", KeySecret: testSecret})

	intent, err := g.CreateIntent(context.Background(), domain.PaymentIntentRequest{
		Amount:    decimal.RequireFromString("500.00"),
		Currency:  "inr",
		Reference: "reg-1",
		EventID:   "ev-3",
		UserID:    "user-7",
	})
	require.NoError(t, err)
	assert.Equal(t, "order_9A33XWu170gUtm", intent.Handle)
	assert.Equal(t, int64(50000), intent.Amount)
	assert.Equal(t, "INR", intent.Currency)
	assert.Equal(t, "rzp_test_key", intent.KeyID)

	assert.Equal(t, int64(50000), orders.created["amount"])
	assert.Equal(t, "reg-1", orders.created["receipt"])
}

func TestGateway_CreateIntent_Errors(t *testing.T) {
	t.Run("provider error", func(t *testing.T) {
		g := NewWithOrders(&fakeOrders{err: errors.New("BAD_REQUEST_ERROR: amount exceeds maximum")}, Config{})
		_, err := g.CreateIntent(context.Background(), domain.PaymentIntentRequest{Amount: decimal.NewFromInt(1)})
		require.ErrorIs(t, err, domain.ErrGatewayUnavailable)
		assert.Contains(t, err.Error(), "amount exceeds maximum")
	})

	t.Run("timeout", func(t *testing.T) {
		block := make(chan struct{})
		defer close(block)
		g := NewWithOrders(&fakeOrders{block: block}, Config{Timeout: 20 * time.Millisecond})
		_, err := g.CreateIntent(context.Background(), domain.PaymentIntentRequest{Amount: decimal.NewFromInt(1)})
		require.ErrorIs(t, err, domain.ErrGatewayUnavailable)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("missing id", func(t *testing.T) {
		g := NewWithOrders(&fakeOrders{order: map[string]interface{}{}}, Config{})
		_, err := g.CreateIntent(context.Background(), domain.PaymentIntentRequest{Amount: decimal.NewFromInt(1)})
		require.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	})
}

func TestGateway_VerifyProof(t *testing.T) {
	g := NewWithOrders(&fakeOrders{}, Config{KeySecret: testSecret})
	valid := hex.EncodeToString(Sign([]byte(testSecret), "order_1", "pay_1"))

	tests := []struct {
		name    string
		proof   domain.PaymentProof
		wantErr bool
	}{
		{"valid signature", domain.PaymentProof{OrderID: "order_1", PaymentID: "pay_1", Signature: valid}, false},
		{"tampered payment id", domain.PaymentProof{OrderID: "order_1", PaymentID: "pay_2", Signature: valid}, true},
		{"signature with other secret", domain.PaymentProof{OrderID: "order_1", PaymentID: "pay_1", Signature: hex.EncodeToString(Sign([]byte("other"), "order_1", "pay_1"))}, true},
		{"not hex", domain.PaymentProof{OrderID: "order_1", PaymentID: "pay_1", Signature: "zz"}, true},
		{"missing fields", domain.PaymentProof{OrderID: "order_1"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.VerifyProof(tt.proof)
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrSignatureInvalid)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestGateway_FetchStatus(t *testing.T) {
	tests := []struct {
		name    string
		orders  *fakeOrders
		want    domain.PaymentStatus
		wantErr error
	}{
		{"paid", &fakeOrders{order: map[string]interface{}{"id": "order_1", "status": "paid"}}, domain.PaymentPaid, nil},
		{"attempted", &fakeOrders{order: map[string]interface{}{"id": "order_1", "status": "attempted"}}, domain.PaymentUnpaid, nil},
		{"provider down", &fakeOrders{err: errors.New("503")}, "", domain.ErrGatewayUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithOrders(tt.orders, Config{Timeout: time.Second})
			got, err := g.FetchStatus(context.Background(), "order_1")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGateway_Void(t *testing.T) {
	tests := []struct {
		name    string
		orders  *fakeOrders
		wantErr error
	}{
		{"never attempted", &fakeOrders{order: map[string]interface{}{"id": "order_1", "status": "created", "attempts": float64(0)}}, nil},
		{"attempted", &fakeOrders{order: map[string]interface{}{"id": "order_1", "status": "attempted", "attempts": float64(1)}}, domain.ErrPaymentInFlight},
		{"created with a failed attempt", &fakeOrders{order: map[string]interface{}{"id": "order_1", "status": "created", "attempts": float64(2)}}, domain.ErrPaymentInFlight},
		{"paid", &fakeOrders{order: map[string]interface{}{"id": "order_1", "status": "paid", "attempts": float64(1)}}, domain.ErrPaymentInFlight},
		{"provider down", &fakeOrders{err: errors.New("503")}, domain.ErrGatewayUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithOrders(tt.orders, Config{Timeout: time.Second})
			err := g.Void(context.Background(), "order_1")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}
