package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// RegistrationStatus is the state of a live registration.
type RegistrationStatus string

const (
	StatusPending RegistrationStatus = "Pending"
	StatusFree    RegistrationStatus = "Free"
	StatusPaid    RegistrationStatus = "Paid"
)

// Counted reports whether a registration in this status is included in the event's registered count.
func (s RegistrationStatus) Counted() bool {
	return s == StatusFree || s == StatusPaid
}

// PaymentMethod tags the provider a registration is settled through.
type PaymentMethod string

const (
	PaymentMethodNone     PaymentMethod = ""
	PaymentMethodStripe   PaymentMethod = "stripe"
	PaymentMethodRazorpay PaymentMethod = "razorpay"
)

// Registration is a user's registration for an event.
// At most one exists per (UserID, EventID).
// swagger:model Registration
type Registration struct {
	ID               string             `json:"id"`
	UserID           string             `json:"user_id"`
	EventID          string             `json:"event_id"`
	RollNumber       string             `json:"roll_number"`
	Contact          string             `json:"contact"`
	Status           RegistrationStatus `json:"status"`
	PaymentMethod    PaymentMethod      `json:"payment_method,omitempty"`
	PaymentRef       string             `json:"-"`
	NotificationSent bool               `json:"notification_sent"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// NewRegistration returns a registration in the status implied by fee.
func NewRegistration(id, userID, eventID, rollNumber, contact string, fee decimal.Decimal, method PaymentMethod, now time.Time) *Registration {
	reg := &Registration{
		ID:         id,
		UserID:     userID,
		EventID:    eventID,
		RollNumber: rollNumber,
		Contact:    contact,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if fee.IsZero() {
		reg.Status = StatusFree
		return reg
	}
	reg.PaymentMethod = method
	return reg
}

// ReminderCandidate is a registration whose event starts soon and has not been reminded yet.
type ReminderCandidate struct {
	RegistrationID string
	UserID         string
	Contact        string
	RollNumber     string
	EventID        string
	EventTitle     string
	StartDate      time.Time
}

// RegistrationRepository is the registration ledger. Each mutating method runs
// in its own transaction, and every change to an event's registered count
// happens inside the transaction that changes the registration's status.
type RegistrationRepository interface {
	// Create inserts reg. Returns ErrAlreadyRegistered if a row exists for the same user and event.
	// A Free registration also increments the event's registered count.
	Create(ctx context.Context, reg *Registration) error
	GetByID(ctx context.Context, id string) (*Registration, error)
	GetByEventAndUser(ctx context.Context, eventID, userID string) (*Registration, error)
	List(ctx context.Context, page *PaginationParams) (Paged[*Registration], error)
	ListByUserID(ctx context.Context, userID string) ([]*Registration, error)
	SetPaymentRef(ctx context.Context, id, ref string) error
	// MarkPaid moves a Pending registration to Paid and increments the count.
	// changed is false when the registration was already Free or Paid.
	MarkPaid(ctx context.Context, id string, method PaymentMethod) (changed bool, err error)
	// DeletePending deletes the registration only if it is still Pending.
	DeletePending(ctx context.Context, id string) (deleted bool, err error)
	// Unregister deletes the (user, event) registration and returns the removed row.
	// The count is decremented only if the removed row was Free or Paid.
	Unregister(ctx context.Context, userID, eventID string) (*Registration, error)
	ListStalePending(ctx context.Context, before time.Time) ([]*Registration, error)
	ListDueForReminder(ctx context.Context, from, to time.Time) ([]*ReminderCandidate, error)
	MarkNotificationSent(ctx context.Context, id string) error
}

// RegisterInput is the input of RegistrationService.Register.
type RegisterInput struct {
	UserID        string
	EventID       string
	RollNumber    string
	Contact       string
	Fee           decimal.Decimal
	PaymentMethod PaymentMethod
}

// OutcomeKind says what the client has to do next after registering.
type OutcomeKind string

const (
	OutcomeConfirmed       OutcomeKind = "confirmed"
	OutcomeRedirect        OutcomeKind = "redirect"
	OutcomeCompletePayment OutcomeKind = "complete_payment"
)

// RegistrationOutcome is the result of a successful Register call.
type RegistrationOutcome struct {
	Kind         OutcomeKind
	Registration *Registration
	Message      string
	// RedirectURL is set for OutcomeRedirect.
	RedirectURL string
	// Intent is set for OutcomeCompletePayment.
	Intent *PaymentIntent
}

// StripeConfirmInput is the browser redirect result of a hosted checkout.
type StripeConfirmInput struct {
	RegistrationID string
	EventID        string
	UserID         string
	Success        bool
}

// RazorpayConfirmInput is the client-side proof of a completed order payment.
type RazorpayConfirmInput struct {
	RegistrationID string
	EventID        string
	UserID         string
	OrderID        string
	PaymentID      string
	Signature      string
}

// ConfirmOutcome is the result of a settled confirm call.
type ConfirmOutcome struct {
	Registration *Registration
	// AlreadySettled is true when the registration was already Free or Paid.
	AlreadySettled bool
	Message        string
}

// UnregisterOutcome is the result of a successful Unregister call.
type UnregisterOutcome struct {
	Registration  *Registration
	RefundPending bool
	Message       string
}

// SweepResult summarises one stale-pending reconciliation run.
type SweepResult struct {
	Scanned   int `json:"scanned"`
	Confirmed int `json:"confirmed"`
	Deleted   int `json:"deleted"`
	Skipped   int `json:"skipped"`
}

// RegistrationService is the settlement engine.
type RegistrationService interface {
	Register(ctx context.Context, in RegisterInput) (*RegistrationOutcome, error)
	ConfirmStripe(ctx context.Context, in StripeConfirmInput) (*ConfirmOutcome, error)
	ConfirmRazorpay(ctx context.Context, in RazorpayConfirmInput) (*ConfirmOutcome, error)
	Unregister(ctx context.Context, userID, eventID string, fee decimal.Decimal) (*UnregisterOutcome, error)
	ListRegistrations(ctx context.Context, page *PaginationParams) (Paged[*Registration], error)
	ListMyRegistrations(ctx context.Context, userID string) ([]*Registration, error)
	SweepStalePending(ctx context.Context, ttl time.Duration) (*SweepResult, error)
}
