package domain

import (
	"context"
	"time"
)

// Mailer defines the contract for sending emails (infrastructure port).
type Mailer interface {
	Send(to, subject, html, text string) error
}

// EmailTemplateRenderer renders email content from a named template with the given data.
type EmailTemplateRenderer interface {
	Render(templateName string, data any) (subject, htmlBody, textBody string, err error)
}

// RegistrationConfirmedEmailData holds data for the registration confirmation email.
type RegistrationConfirmedEmailData struct {
	Email          string
	RollNumber     string
	RegistrationID string
	EventTitle     string
	StartDate      time.Time
	Status         RegistrationStatus
}

// EventReminderEmailData holds data for the event-starting-soon email.
type EventReminderEmailData struct {
	Email      string
	RollNumber string
	EventTitle string
	StartDate  time.Time
}

// EmailService defines the contract for sending domain-level emails.
type EmailService interface {
	SendRegistrationConfirmation(ctx context.Context, data *RegistrationConfirmedEmailData) error
	SendEventReminder(ctx context.Context, data *EventReminderEmailData) error
}
