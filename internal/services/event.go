package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"eventsettlement/internal/domain"
)

type eventService struct {
	logger         *slog.Logger
	eventRepo      domain.EventRepository
	contextTimeout time.Duration
}

func NewEventService(logger *slog.Logger, eventRepo domain.EventRepository, timeout time.Duration) domain.EventService {
	return &eventService{
		logger:         logger,
		eventRepo:      eventRepo,
		contextTimeout: timeout,
	}
}

func (s *eventService) GetEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

// DeleteEvent removes the event and everything that references it, registrations
// included. Only the event's owner may delete it.
func (s *eventService) DeleteEvent(ctx context.Context, eventID, ownerID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if eventID == "" || ownerID == "" {
		return fmt.Errorf("%w: event and owner are required", domain.ErrInvalidInput)
	}
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("get event: %w", err)
	}
	if event.OwnerID != ownerID {
		return domain.ErrForbidden
	}
	if err := s.eventRepo.Delete(ctx, eventID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("delete event: %w", err)
	}
	s.logger.Info("event deleted", "event_id", eventID, "owner_id", ownerID)
	return nil
}
