package services

import (
	"context"
	"fmt"
	"log/slog"

	"eventsettlement/internal/domain"
)

type emailService struct {
	logger   *slog.Logger
	mailer   domain.Mailer
	renderer domain.EmailTemplateRenderer
}

// NewEmailService returns an EmailService that uses the given Mailer and template renderer.
func NewEmailService(logger *slog.Logger, mailer domain.Mailer, renderer domain.EmailTemplateRenderer) domain.EmailService {
	return &emailService{logger: logger, mailer: mailer, renderer: renderer}
}

// SendRegistrationConfirmation sends the "registration_confirmed" template.
func (s *emailService) SendRegistrationConfirmation(ctx context.Context, data *domain.RegistrationConfirmedEmailData) error {
	if data == nil {
		return fmt.Errorf("registration confirmation data is nil")
	}
	if err := s.send(data.Email, "registration_confirmed", data); err != nil {
		return err
	}
	s.logger.Info("registration confirmation sent", "registration_id", data.RegistrationID)
	return nil
}

// SendEventReminder sends the "event_reminder" template.
func (s *emailService) SendEventReminder(ctx context.Context, data *domain.EventReminderEmailData) error {
	if data == nil {
		return fmt.Errorf("event reminder data is nil")
	}
	return s.send(data.Email, "event_reminder", data)
}

func (s *emailService) send(to, template string, data any) error {
	if to == "" {
		return fmt.Errorf("%w: recipient is empty", domain.ErrInvalidInput)
	}
	subject, htmlBody, textBody, err := s.renderer.Render(template, data)
	if err != nil {
		return fmt.Errorf("failed to render %s template: %w", template, err)
	}
	if err := s.mailer.Send(to, subject, htmlBody, textBody); err != nil {
		return fmt.Errorf("failed to send %s email: %w", template, err)
	}
	return nil
}
