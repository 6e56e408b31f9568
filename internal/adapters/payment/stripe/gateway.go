// Package stripegw drives hosted Stripe Checkout sessions.
package stripegw

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"eventsettlement/internal/adapters/payment"
	"eventsettlement/internal/domain"
)

// SessionAPI is the subset of the Checkout Sessions client the gateway uses.
type SessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Expire(id string, params *stripe.CheckoutSessionExpireParams) (*stripe.CheckoutSession, error)
}

// Stripe accepts a Checkout Session lifetime between 30 minutes and 24 hours.
const (
	minSessionTTL = 30 * time.Minute
	maxSessionTTL = 24 * time.Hour
)

// Config configures the Stripe gateway.
type Config struct {
	SecretKey string
	// FrontendURL is where the browser returns after checkout.
	FrontendURL string
	Timeout     time.Duration
	// SessionTTL caps how long a checkout stays payable. Zero keeps Stripe's default.
	SessionTTL time.Duration
}

type gateway struct {
	sessions    SessionAPI
	frontendURL string
	timeout     time.Duration
	sessionTTL  time.Duration
	now         func() time.Time
}

// New returns a PaymentGateway backed by the Stripe API.
func New(cfg Config) domain.PaymentGateway {
	sc := client.New(cfg.SecretKey, nil)
	return NewWithSessions(sc.CheckoutSessions, cfg)
}

// NewWithSessions returns a gateway using the given sessions client.
func NewWithSessions(sessions SessionAPI, cfg Config) domain.PaymentGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ttl := cfg.SessionTTL
	if ttl > 0 {
		ttl = min(max(ttl, minSessionTTL), maxSessionTTL)
	}
	return &gateway{
		sessions:    sessions,
		frontendURL: strings.TrimSuffix(cfg.FrontendURL, "/"),
		timeout:     timeout,
		sessionTTL:  ttl,
		now:         time.Now,
	}
}

func (g *gateway) Method() domain.PaymentMethod {
	return domain.PaymentMethodStripe
}

func (g *gateway) CreateIntent(ctx context.Context, req domain.PaymentIntentRequest) (*domain.PaymentIntent, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	amount := payment.MinorUnits(req.Amount)
	currency := strings.ToLower(req.Currency)
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(req.Reference),
		SuccessURL:        stripe.String(g.returnURL(true, req)),
		CancelURL:         stripe.String(g.returnURL(false, req)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Title),
					},
					UnitAmount: stripe.Int64(amount),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	if g.sessionTTL > 0 {
		params.ExpiresAt = stripe.Int64(g.now().Add(g.sessionTTL).Unix())
	}
	params.Context = ctx
	params.SetIdempotencyKey("checkout-" + req.Reference)
	params.AddMetadata("registration_id", req.Reference)
	params.AddMetadata("event_id", req.EventID)
	params.AddMetadata("user_id", req.UserID)

	s, err := g.sessions.New(params)
	if err != nil {
		return nil, gatewayError("create checkout session", err)
	}
	return &domain.PaymentIntent{
		Provider:    domain.PaymentMethodStripe,
		Handle:      s.ID,
		RedirectURL: s.URL,
		Amount:      amount,
		Currency:    currency,
	}, nil
}

// returnURL builds the success or cancel URL. Both carry the registration and event IDs
// so the confirm endpoint can be called from the landing page.
func (g *gateway) returnURL(success bool, req domain.PaymentIntentRequest) string {
	q := url.Values{}
	q.Set("success", strconv.FormatBool(success))
	q.Set("registrationID", req.Reference)
	q.Set("eventID", req.EventID)
	return g.frontendURL + "/verify?" + q.Encode()
}

// VerifyProof only sees the redirect outcome. Stripe sends no signed proof to the
// browser, so payment is established by FetchStatus.
func (g *gateway) VerifyProof(proof domain.PaymentProof) error {
	if !proof.Success {
		return domain.ErrPaymentCancelled
	}
	return nil
}

func (g *gateway) FetchStatus(ctx context.Context, handle string) (domain.PaymentStatus, error) {
	if handle == "" {
		return "", fmt.Errorf("%w: missing checkout session id", domain.ErrGatewayUnavailable)
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := g.sessions.Get(handle, params)
	if err != nil {
		return "", gatewayError("get checkout session", err)
	}
	switch s.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		return domain.PaymentPaid, nil
	}
	return domain.PaymentUnpaid, nil
}

// Void expires an open session. A session that is already expired and unpaid is
// also void; a completed or paid one is reported as ErrPaymentInFlight.
func (g *gateway) Void(ctx context.Context, handle string) error {
	if handle == "" {
		return fmt.Errorf("%w: missing checkout session id", domain.ErrGatewayUnavailable)
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx
	s, expireErr := g.sessions.Expire(handle, params)
	if expireErr == nil && s.Status == stripe.CheckoutSessionStatusExpired {
		return nil
	}

	// Expire refuses sessions that are no longer open, so look at what it is now.
	getParams := &stripe.CheckoutSessionParams{}
	getParams.Context = ctx
	s, err := g.sessions.Get(handle, getParams)
	if err != nil {
		if expireErr != nil {
			return gatewayError("expire checkout session", expireErr)
		}
		return gatewayError("get checkout session", err)
	}
	if s.Status == stripe.CheckoutSessionStatusExpired && s.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		return nil
	}
	return fmt.Errorf("%w: checkout session %s is %s/%s", domain.ErrPaymentInFlight, handle, s.Status, s.PaymentStatus)
}

func gatewayError(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return fmt.Errorf("%w: stripe %s: %s (%s)", domain.ErrGatewayUnavailable, op, se.Msg, se.Code)
	}
	return fmt.Errorf("%w: stripe %s: %w", domain.ErrGatewayUnavailable, op, err)
}
