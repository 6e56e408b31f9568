package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"eventsettlement/internal/domain"
)

type notificationService struct {
	logger         *slog.Logger
	regRepo        domain.RegistrationRepository
	emailService   domain.EmailService
	lookahead      time.Duration
	contextTimeout time.Duration
	now            func() time.Time
}

// NewNotificationService returns a NotificationService that reminds registrants of
// events starting within lookahead.
func NewNotificationService(
	logger *slog.Logger,
	regRepo domain.RegistrationRepository,
	emailService domain.EmailService,
	lookahead time.Duration,
	timeout time.Duration,
) domain.NotificationService {
	return &notificationService{
		logger:         logger,
		regRepo:        regRepo,
		emailService:   emailService,
		lookahead:      lookahead,
		contextTimeout: timeout,
		now:            time.Now,
	}
}

// SendDueReminders sends one reminder per Free or Paid registration whose event
// starts in (now, now+lookahead]. A failed row is logged, left unmarked and
// retried on the next run. The flag is set only after a successful send, so a
// crash between the two can repeat a reminder but never skip one.
func (s *notificationService) SendDueReminders(ctx context.Context) (*domain.ReminderBatchResult, error) {
	now := s.now()
	listCtx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	candidates, err := s.regRepo.ListDueForReminder(listCtx, now, now.Add(s.lookahead))
	cancel()
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}

	res := &domain.ReminderBatchResult{Candidates: len(candidates)}
	for _, c := range candidates {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if err := s.remind(ctx, c); err != nil {
			s.logger.Warn("event reminder failed",
				"registration_id", c.RegistrationID, "event_id", c.EventID, "error", err)
			res.Failed++
			continue
		}
		res.Sent++
	}
	if res.Candidates > 0 {
		s.logger.Info("event reminders processed", "candidates", res.Candidates, "sent", res.Sent, "failed", res.Failed)
	}
	return res, nil
}

func (s *notificationService) remind(ctx context.Context, c *domain.ReminderCandidate) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if c.Contact == "" {
		return fmt.Errorf("%w: registration has no contact address", domain.ErrInvalidInput)
	}
	err := s.emailService.SendEventReminder(ctx, &domain.EventReminderEmailData{
		Email:      c.Contact,
		RollNumber: c.RollNumber,
		EventTitle: c.EventTitle,
		StartDate:  c.StartDate,
	})
	if err != nil {
		return err
	}
	if err := s.regRepo.MarkNotificationSent(ctx, c.RegistrationID); err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	return nil
}
