package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Event is the catalog's view of an event as read by the settlement engine.
// Only RegisteredCount is ever written here, and only by the registration ledger.
// swagger:model Event
type Event struct {
	ID                   string          `json:"id"`
	Title                string          `json:"title"`
	OwnerID              string          `json:"owner_id"`
	VenueID              *string         `json:"venue_id,omitempty"`
	StartDate            time.Time       `json:"start_date"`
	EndDate              *time.Time      `json:"end_date,omitempty"`
	RegistrationDeadline *time.Time      `json:"registration_deadline,omitempty"`
	RegistrationFee      decimal.Decimal `json:"registration_fee"`
	MaxParticipants      *int            `json:"max_participants,omitempty"`
	RegisteredCount      int             `json:"registered_count"`
}

// IsFree reports whether the event has no registration fee.
func (e *Event) IsFree() bool {
	return e.RegistrationFee.IsZero()
}

// RegistrationOpen reports whether registrations are still accepted at now.
func (e *Event) RegistrationOpen(now time.Time) bool {
	if e.RegistrationDeadline == nil {
		return now.Before(e.StartDate)
	}
	return !now.After(*e.RegistrationDeadline)
}

// Full reports whether the event has reached its participant cap.
func (e *Event) Full() bool {
	return e.MaxParticipants != nil && e.RegisteredCount >= *e.MaxParticipants
}

// EventRepository defines the interface for event storage
type EventRepository interface {
	GetByID(ctx context.Context, id string) (*Event, error)
	// Delete removes the event together with its registrations, images,
	// sponsor links and extended info in a single transaction.
	Delete(ctx context.Context, id string) error
}

// EventService exposes the catalog operations the settlement engine cooperates with.
type EventService interface {
	GetEvent(ctx context.Context, eventID string) (*Event, error)
	// DeleteEvent is allowed only for the event's owner.
	DeleteEvent(ctx context.Context, eventID, ownerID string) error
}
