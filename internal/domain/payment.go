package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// PaymentStatus is a provider's authoritative view of an intent.
type PaymentStatus string

const (
	PaymentPaid   PaymentStatus = "paid"
	PaymentUnpaid PaymentStatus = "unpaid"
)

// PaymentIntentRequest asks a gateway to open a payment for a registration.
type PaymentIntentRequest struct {
	Amount    decimal.Decimal
	Currency  string
	Reference string // registration ID
	EventID   string
	UserID    string
	Title     string
}

// PaymentIntent is what the client needs to complete a payment out of band.
// Handle identifies the intent at the provider (session or order ID).
// swagger:model PaymentIntent
type PaymentIntent struct {
	Provider    PaymentMethod `json:"provider"`
	Handle      string        `json:"id"`
	RedirectURL string        `json:"redirect_url,omitempty"`
	Amount      int64         `json:"amount"`
	Currency    string        `json:"currency"`
	KeyID       string        `json:"key_id,omitempty"`
}

// PaymentProof is the client's claim that a payment finished.
type PaymentProof struct {
	Success   bool
	OrderID   string
	PaymentID string
	Signature string
}

// PaymentGateway is the capability every payment provider adapter offers.
type PaymentGateway interface {
	Method() PaymentMethod
	CreateIntent(ctx context.Context, req PaymentIntentRequest) (*PaymentIntent, error)
	// VerifyProof checks the client's proof without calling the provider.
	VerifyProof(proof PaymentProof) error
	// FetchStatus asks the provider whether the intent identified by handle was paid.
	FetchStatus(ctx context.Context, handle string) (PaymentStatus, error)
	// Void makes the intent unpayable. A nil error means no payment can land on
	// handle any more, so its Pending registration may be deleted.
	Void(ctx context.Context, handle string) error
}

// PaymentGatewayRegistry resolves the adapter for a stored payment method tag.
type PaymentGatewayRegistry interface {
	Get(method PaymentMethod) (PaymentGateway, error)
}
