package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventsettlement/internal/delivery/http/helpers"
	"eventsettlement/internal/delivery/http/middleware"
	"eventsettlement/internal/domain"
)

const (
	testUser  = "user-1"
	testEvent = "6f1c2d3e-4a5b-4c6d-8e7f-9a0b1c2d3e4f"
	testReg   = "0a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d"
)

type mockRegistrationService struct {
	registerIn   domain.RegisterInput
	registerOut  *domain.RegistrationOutcome
	stripeIn     domain.StripeConfirmInput
	razorpayIn   domain.RazorpayConfirmInput
	confirmOut   *domain.ConfirmOutcome
	unregisterOK *domain.UnregisterOutcome
	unregFee     decimal.Decimal
	listPage     *domain.PaginationParams
	listOut      domain.Paged[*domain.Registration]
	mine         []*domain.Registration
	err          error
}

func (m *mockRegistrationService) Register(ctx context.Context, in domain.RegisterInput) (*domain.RegistrationOutcome, error) {
	m.registerIn = in
	return m.registerOut, m.err
}

func (m *mockRegistrationService) ConfirmStripe(ctx context.Context, in domain.StripeConfirmInput) (*domain.ConfirmOutcome, error) {
	m.stripeIn = in
	return m.confirmOut, m.err
}

func (m *mockRegistrationService) ConfirmRazorpay(ctx context.Context, in domain.RazorpayConfirmInput) (*domain.ConfirmOutcome, error) {
	m.razorpayIn = in
	return m.confirmOut, m.err
}

func (m *mockRegistrationService) Unregister(ctx context.Context, userID, eventID string, fee decimal.Decimal) (*domain.UnregisterOutcome, error) {
	m.unregFee = fee
	return m.unregisterOK, m.err
}

func (m *mockRegistrationService) ListRegistrations(ctx context.Context, page *domain.PaginationParams) (domain.Paged[*domain.Registration], error) {
	m.listPage = page
	return m.listOut, m.err
}

func (m *mockRegistrationService) ListMyRegistrations(ctx context.Context, userID string) ([]*domain.Registration, error) {
	return m.mine, m.err
}

func (m *mockRegistrationService) SweepStalePending(ctx context.Context, ttl time.Duration) (*domain.SweepResult, error) {
	return &domain.SweepResult{}, m.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func authedRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	return req.WithContext(middleware.SetUserID(req.Context(), testUser))
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder, data any) *helpers.APIError {
	t.Helper()
	var env struct {
		Data  json.RawMessage   `json:"data"`
		Error *helpers.APIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	if data != nil && env.Error == nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env.Error
}

func TestRegistrationController_Register(t *testing.T) {
	pending := &domain.Registration{ID: testReg, Status: domain.StatusPending}
	tests := []struct {
		name       string
		body       string
		authed     bool
		svc        *mockRegistrationService
		wantStatus int
		wantCode   string
		check      func(t *testing.T, m *mockRegistrationService, resp RegisterResponse)
	}{
		{
			name:   "free event confirmed",
			body:   fmt.Sprintf(`{"event_id":%q,"roll_number":"CS-042","contact":"a@example.com","fee":0}`, testEvent),
			authed: true,
			svc: &mockRegistrationService{registerOut: &domain.RegistrationOutcome{
				Kind: domain.OutcomeConfirmed, Message: "Registration successful",
				Registration: &domain.Registration{ID: testReg, Status: domain.StatusFree},
			}},
			wantStatus: http.StatusCreated,
			check: func(t *testing.T, m *mockRegistrationService, resp RegisterResponse) {
				assert.Equal(t, testUser, m.registerIn.UserID)
				assert.True(t, m.registerIn.Fee.IsZero())
				assert.True(t, resp.Success)
				assert.Equal(t, domain.StatusFree, resp.Status)
				assert.Empty(t, resp.SessionURL)
				assert.Nil(t, resp.Order)
			},
		},
		{
			name:   "stripe returns session url",
			body:   fmt.Sprintf(`{"event_id":%q,"roll_number":"CS-042","fee":"499.50","payment_method":"stripe"}`, testEvent),
			authed: true,
			svc: &mockRegistrationService{registerOut: &domain.RegistrationOutcome{
				Kind: domain.OutcomeRedirect, Registration: pending, RedirectURL: "https://checkout.stripe.com/c/pay/cs_1",
			}},
			wantStatus: http.StatusCreated,
			check: func(t *testing.T, m *mockRegistrationService, resp RegisterResponse) {
				assert.True(t, m.registerIn.Fee.Equal(decimal.RequireFromString("499.5")))
				assert.Equal(t, domain.PaymentMethodStripe, m.registerIn.PaymentMethod)
				assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_1", resp.SessionURL)
				assert.Equal(t, domain.OutcomeRedirect, resp.Outcome)
			},
		},
		{
			name:   "razorpay returns order",
			body:   fmt.Sprintf(`{"event_id":%q,"roll_number":"CS-042","fee":250,"payment_method":"razorpay"}`, testEvent),
			authed: true,
			svc: &mockRegistrationService{registerOut: &domain.RegistrationOutcome{
				Kind: domain.OutcomeCompletePayment, Registration: pending,
				Intent: &domain.PaymentIntent{Provider: domain.PaymentMethodRazorpay, Handle: "order_1", Amount: 25000, Currency: "INR", KeyID: "rzp_test"},
			}},
			wantStatus: http.StatusCreated,
			check: func(t *testing.T, m *mockRegistrationService, resp RegisterResponse) {
				require.NotNil(t, resp.Order)
				assert.Equal(t, "order_1", resp.Order.Handle)
				assert.Equal(t, int64(25000), resp.Order.Amount)
			},
		},
		{
			name:       "unauthenticated",
			body:       fmt.Sprintf(`{"event_id":%q,"roll_number":"CS-042","fee":0}`, testEvent),
			svc:        &mockRegistrationService{},
			wantStatus: http.StatusUnauthorized,
			wantCode:   helpers.ErrCodeUnauthorized,
		},
		{
			name:       "acting for another user",
			body:       fmt.Sprintf(`{"user_id":"someone-else","event_id":%q,"roll_number":"CS-042","fee":0}`, testEvent),
			authed:     true,
			svc:        &mockRegistrationService{},
			wantStatus: http.StatusForbidden,
			wantCode:   helpers.ErrCodeForbidden,
		},
		{
			name:       "invalid body",
			body:       `{"event_id":"not-a-uuid","fee":-1,"payment_method":"cash"}`,
			authed:     true,
			svc:        &mockRegistrationService{},
			wantStatus: http.StatusBadRequest,
			wantCode:   helpers.ErrCodeBadRequest,
		},
		{
			name:       "already registered",
			body:       fmt.Sprintf(`{"event_id":%q,"roll_number":"CS-042","fee":0}`, testEvent),
			authed:     true,
			svc:        &mockRegistrationService{err: domain.ErrAlreadyRegistered},
			wantStatus: http.StatusConflict,
			wantCode:   helpers.ErrCodeAlreadyRegistered,
		},
		{
			name:       "gateway down",
			body:       fmt.Sprintf(`{"event_id":%q,"roll_number":"CS-042","fee":100,"payment_method":"razorpay"}`, testEvent),
			authed:     true,
			svc:        &mockRegistrationService{err: fmt.Errorf("%w: razorpay create order: 503", domain.ErrGatewayUnavailable)},
			wantStatus: http.StatusBadGateway,
			wantCode:   helpers.ErrCodeGatewayUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := NewRegistrationController(testLogger(), tt.svc)
			req := httptest.NewRequest(http.MethodPost, "/registrations", strings.NewReader(tt.body))
			if tt.authed {
				req = authedRequest(http.MethodPost, "/registrations", tt.body)
			}
			w := httptest.NewRecorder()

			ctrl.Register(w, req)

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			var resp RegisterResponse
			apiErr := decodeEnvelope(t, w, &resp)
			if tt.wantCode != "" {
				require.NotNil(t, apiErr)
				assert.Equal(t, tt.wantCode, apiErr.Code)
				return
			}
			require.Nil(t, apiErr)
			tt.check(t, tt.svc, resp)
		})
	}
}

func TestRegistrationController_ConfirmStripe(t *testing.T) {
	svc := &mockRegistrationService{confirmOut: &domain.ConfirmOutcome{
		Registration: &domain.Registration{ID: testReg, Status: domain.StatusPaid},
		Message:      "Payment confirmed, registration successful",
	}}
	ctrl := NewRegistrationController(testLogger(), svc)
	body := fmt.Sprintf(`{"registration_id":%q,"event_id":%q,"user_id":%q,"success":true}`, testReg, testEvent, testUser)
	w := httptest.NewRecorder()

	ctrl.ConfirmStripe(w, authedRequest(http.MethodPost, "/registrations/confirm/stripe", body))

	require.Equal(t, http.StatusOK, w.Code)
	var resp ConfirmResponse
	require.Nil(t, decodeEnvelope(t, w, &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, domain.StatusPaid, resp.Status)
	assert.Equal(t, domain.StripeConfirmInput{RegistrationID: testReg, EventID: testEvent, UserID: testUser, Success: true}, svc.stripeIn)
}

func TestRegistrationController_ConfirmStripe_Cancelled(t *testing.T) {
	svc := &mockRegistrationService{err: fmt.Errorf("%w: %w", domain.ErrPaymentNotConfirmed, domain.ErrPaymentCancelled)}
	ctrl := NewRegistrationController(testLogger(), svc)
	body := fmt.Sprintf(`{"registration_id":%q,"event_id":%q,"success":false}`, testReg, testEvent)
	w := httptest.NewRecorder()

	ctrl.ConfirmStripe(w, authedRequest(http.MethodPost, "/registrations/confirm/stripe", body))

	require.Equal(t, http.StatusPaymentRequired, w.Code)
	apiErr := decodeEnvelope(t, w, nil)
	require.NotNil(t, apiErr)
	assert.Equal(t, helpers.ErrCodePaymentNotConfirmed, apiErr.Code)
}

func TestRegistrationController_ConfirmRazorpay(t *testing.T) {
	valid := fmt.Sprintf(`{"registration_id":%q,"event_id":%q,"order_id":"order_1","payment_id":"pay_1","signature":"9f86d081884c7d65"}`, testReg, testEvent)
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "settled", body: valid, wantStatus: http.StatusOK},
		{name: "bad signature", body: valid, err: domain.ErrSignatureInvalid, wantStatus: http.StatusBadRequest, wantCode: helpers.ErrCodeSignatureInvalid},
		{name: "unpaid", body: valid, err: domain.ErrPaymentNotConfirmed, wantStatus: http.StatusPaymentRequired, wantCode: helpers.ErrCodePaymentNotConfirmed},
		{name: "foreign registration", body: valid, err: domain.ErrNotFound, wantStatus: http.StatusNotFound, wantCode: helpers.ErrCodeNotFound},
		{
			name:       "signature not hex",
			body:       fmt.Sprintf(`{"registration_id":%q,"event_id":%q,"order_id":"order_1","payment_id":"pay_1","signature":"zz"}`, testReg, testEvent),
			wantStatus: http.StatusBadRequest,
			wantCode:   helpers.ErrCodeBadRequest,
		},
		{
			name:       "missing payment id",
			body:       fmt.Sprintf(`{"registration_id":%q,"event_id":%q,"order_id":"order_1","signature":"ab"}`, testReg, testEvent),
			wantStatus: http.StatusBadRequest,
			wantCode:   helpers.ErrCodeBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockRegistrationService{
				err: tt.err,
				confirmOut: &domain.ConfirmOutcome{
					Registration: &domain.Registration{ID: testReg, Status: domain.StatusPaid},
				},
			}
			ctrl := NewRegistrationController(testLogger(), svc)
			w := httptest.NewRecorder()

			ctrl.ConfirmRazorpay(w, authedRequest(http.MethodPost, "/registrations/confirm/razorpay", tt.body))

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			apiErr := decodeEnvelope(t, w, nil)
			if tt.wantCode == "" {
				assert.Nil(t, apiErr)
				assert.Equal(t, "order_1", svc.razorpayIn.OrderID)
				assert.Equal(t, testUser, svc.razorpayIn.UserID)
				return
			}
			require.NotNil(t, apiErr)
			assert.Equal(t, tt.wantCode, apiErr.Code)
		})
	}
}

func TestRegistrationController_Unregister(t *testing.T) {
	t.Run("paid", func(t *testing.T) {
		svc := &mockRegistrationService{unregisterOK: &domain.UnregisterOutcome{RefundPending: true, Message: "refund soon"}}
		ctrl := NewRegistrationController(testLogger(), svc)
		w := httptest.NewRecorder()

		ctrl.Unregister(w, authedRequest(http.MethodPost, "/registrations/unregister", fmt.Sprintf(`{"event_id":%q,"fee":"100"}`, testEvent)))

		require.Equal(t, http.StatusOK, w.Code)
		var resp UnregisterResponse
		require.Nil(t, decodeEnvelope(t, w, &resp))
		assert.True(t, resp.RefundPending)
		assert.True(t, svc.unregFee.Equal(decimal.NewFromInt(100)))
	})

	t.Run("not registered", func(t *testing.T) {
		ctrl := NewRegistrationController(testLogger(), &mockRegistrationService{err: domain.ErrNotRegistered})
		w := httptest.NewRecorder()

		ctrl.Unregister(w, authedRequest(http.MethodPost, "/registrations/unregister", fmt.Sprintf(`{"event_id":%q,"fee":0}`, testEvent)))

		require.Equal(t, http.StatusNotFound, w.Code)
		apiErr := decodeEnvelope(t, w, nil)
		require.NotNil(t, apiErr)
		assert.Equal(t, helpers.ErrCodeNotRegistered, apiErr.Code)
	})
}

func TestRegistrationController_ListRegistrations(t *testing.T) {
	regs := []*domain.Registration{{ID: "r1"}, {ID: "r2"}}

	t.Run("paged", func(t *testing.T) {
		svc := &mockRegistrationService{listOut: domain.Paged[*domain.Registration]{Items: regs, Total: 5}}
		ctrl := NewRegistrationController(testLogger(), svc)
		w := httptest.NewRecorder()

		ctrl.ListRegistrations(w, authedRequest(http.MethodGet, "/registrations?page=2&page_size=2", ""))

		require.Equal(t, http.StatusOK, w.Code)
		var resp ListRegistrationsResponse
		require.Nil(t, decodeEnvelope(t, w, &resp))
		require.NotNil(t, svc.listPage)
		assert.Equal(t, domain.PaginationParams{Page: 2, PageSize: 2}, *svc.listPage)
		assert.Len(t, resp.Items, 2)
		assert.Equal(t, helpers.PaginationMeta{Page: 2, PageSize: 2, Total: 5, TotalPages: 3}, resp.Pagination)
	})

	t.Run("all", func(t *testing.T) {
		svc := &mockRegistrationService{listOut: domain.Paged[*domain.Registration]{Items: regs, Total: 2}}
		ctrl := NewRegistrationController(testLogger(), svc)
		w := httptest.NewRecorder()

		ctrl.ListRegistrations(w, authedRequest(http.MethodGet, "/registrations", ""))

		require.Equal(t, http.StatusOK, w.Code)
		var resp ListRegistrationsResponse
		require.Nil(t, decodeEnvelope(t, w, &resp))
		assert.Nil(t, svc.listPage)
		assert.Equal(t, helpers.PaginationMeta{Page: 1, PageSize: 2, Total: 2, TotalPages: 1}, resp.Pagination)
	})

	t.Run("storage error is hidden", func(t *testing.T) {
		ctrl := NewRegistrationController(testLogger(), &mockRegistrationService{err: errors.New("pq: too many connections")})
		w := httptest.NewRecorder()

		ctrl.ListRegistrations(w, authedRequest(http.MethodGet, "/registrations", ""))

		require.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "pq:")
	})
}

func TestRegistrationController_ListMyRegistrations(t *testing.T) {
	svc := &mockRegistrationService{mine: []*domain.Registration{{ID: "r1", UserID: testUser, PaymentRef: "order_secret"}}}
	ctrl := NewRegistrationController(testLogger(), svc)

	w := httptest.NewRecorder()
	ctrl.ListMyRegistrations(w, httptest.NewRequest(http.MethodGet, "/attendee/registrations", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	ctrl.ListMyRegistrations(w, authedRequest(http.MethodGet, "/attendee/registrations", ""))
	require.Equal(t, http.StatusOK, w.Code)
	var resp []*domain.Registration
	require.Nil(t, decodeEnvelope(t, w, &resp))
	require.Len(t, resp, 1)
	assert.NotContains(t, w.Body.String(), "order_secret")
}
