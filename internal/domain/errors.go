package domain

import "errors"

// Sentinel errors shared by repositories, services and controllers.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")

	// ErrAlreadyRegistered is returned when a live registration exists for the (user, event) pair.
	ErrAlreadyRegistered = errors.New("user already registered for this event")

	// ErrNotRegistered is returned by unregister when there is no registration to remove.
	ErrNotRegistered = errors.New("registration not found for the given user and event")

	ErrRegistrationClosed = errors.New("registration deadline has passed")
	ErrEventFull          = errors.New("event is fully booked")
	ErrFeeMismatch        = errors.New("registration fee has changed")

	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrSignatureInvalid     = errors.New("payment signature verification failed")
	ErrPaymentNotConfirmed  = errors.New("payment not confirmed")

	// ErrGatewayUnavailable wraps any provider or network failure. The registration stays Pending.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrPaymentCancelled is returned by a gateway when the client reports an abandoned payment.
	ErrPaymentCancelled = errors.New("payment cancelled")

	// ErrPaymentInFlight is returned by Void when the intent can still be paid or already was.
	ErrPaymentInFlight = errors.New("payment may still complete")
)
