package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"eventsettlement/internal/domain"
)

type registrationService struct {
	logger         *slog.Logger
	eventRepo      domain.EventRepository
	regRepo        domain.RegistrationRepository
	gateways       domain.PaymentGatewayRegistry
	emailService   domain.EmailService
	currency       string
	contextTimeout time.Duration
	now            func() time.Time
	newID          func() string
}

// NewRegistrationService returns the settlement engine. currency is the ISO code
// every payment intent is opened in.
func NewRegistrationService(
	logger *slog.Logger,
	eventRepo domain.EventRepository,
	regRepo domain.RegistrationRepository,
	gateways domain.PaymentGatewayRegistry,
	emailService domain.EmailService,
	currency string,
	timeout time.Duration,
) domain.RegistrationService {
	return &registrationService{
		logger:         logger,
		eventRepo:      eventRepo,
		regRepo:        regRepo,
		gateways:       gateways,
		emailService:   emailService,
		currency:       currency,
		contextTimeout: timeout,
		now:            time.Now,
		newID:          uuid.NewString,
	}
}

func (s *registrationService) Register(ctx context.Context, in domain.RegisterInput) (*domain.RegistrationOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	in.UserID = strings.TrimSpace(in.UserID)
	in.EventID = strings.TrimSpace(in.EventID)
	in.RollNumber = strings.TrimSpace(in.RollNumber)
	in.Contact = strings.TrimSpace(in.Contact)
	if in.UserID == "" || in.EventID == "" || in.RollNumber == "" {
		return nil, fmt.Errorf("%w: user, event and roll number are required", domain.ErrInvalidInput)
	}
	if in.Fee.IsNegative() {
		return nil, fmt.Errorf("%w: fee must not be negative", domain.ErrInvalidInput)
	}

	event, err := s.eventRepo.GetByID(ctx, in.EventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	existing, err := s.regRepo.GetByEventAndUser(ctx, in.EventID, in.UserID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("check existing registration: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrAlreadyRegistered
	}

	now := s.now()
	if !event.RegistrationOpen(now) {
		return nil, domain.ErrRegistrationClosed
	}
	if event.Full() {
		return nil, domain.ErrEventFull
	}
	if !in.Fee.Equal(event.RegistrationFee) {
		return nil, domain.ErrFeeMismatch
	}

	// Resolve the gateway before inserting so an unknown method leaves no Pending row behind.
	var gateway domain.PaymentGateway
	if !event.IsFree() {
		gateway, err = s.gateways.Get(in.PaymentMethod)
		if err != nil {
			return nil, err
		}
	}

	reg := domain.NewRegistration(s.newID(), in.UserID, in.EventID, in.RollNumber, in.Contact, event.RegistrationFee, in.PaymentMethod, now)
	if err := s.regRepo.Create(ctx, reg); err != nil {
		if errors.Is(err, domain.ErrAlreadyRegistered) || errors.Is(err, domain.ErrEventFull) || errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("create registration: %w", err)
	}

	if reg.Status == domain.StatusFree {
		s.sendConfirmation(ctx, reg, event)
		return &domain.RegistrationOutcome{
			Kind:         domain.OutcomeConfirmed,
			Registration: reg,
			Message:      "Registration successful",
		}, nil
	}

	intent, err := gateway.CreateIntent(ctx, domain.PaymentIntentRequest{
		Amount:    event.RegistrationFee,
		Currency:  s.currency,
		Reference: reg.ID,
		EventID:   reg.EventID,
		UserID:    reg.UserID,
		Title:     event.Title,
	})
	if err != nil {
		s.releasePending(ctx, reg.ID)
		if !errors.Is(err, domain.ErrGatewayUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrGatewayUnavailable, err)
		}
		return nil, err
	}
	if err := s.regRepo.SetPaymentRef(ctx, reg.ID, intent.Handle); err != nil {
		if voidErr := gateway.Void(ctx, intent.Handle); voidErr != nil {
			s.logger.Error("void unrecorded payment intent",
				"registration_id", reg.ID, "payment_ref", intent.Handle, "error", voidErr)
		}
		s.releasePending(ctx, reg.ID)
		return nil, fmt.Errorf("store payment reference: %w", err)
	}
	reg.PaymentRef = intent.Handle

	s.logger.Info("registration pending payment",
		"registration_id", reg.ID, "event_id", reg.EventID, "payment_method", reg.PaymentMethod)

	if intent.RedirectURL != "" {
		return &domain.RegistrationOutcome{
			Kind:         domain.OutcomeRedirect,
			Registration: reg,
			Message:      "Redirecting to payment",
			RedirectURL:  intent.RedirectURL,
		}, nil
	}
	return &domain.RegistrationOutcome{
		Kind:         domain.OutcomeCompletePayment,
		Registration: reg,
		Message:      "Complete the payment to confirm your registration",
		Intent:       intent,
	}, nil
}

// releasePending deletes a Pending row whose payment could not be opened.
func (s *registrationService) releasePending(ctx context.Context, id string) {
	if _, err := s.regRepo.DeletePending(ctx, id); err != nil {
		s.logger.Error("release pending registration", "registration_id", id, "error", err)
	}
}

// voidPending deletes a Pending row only after its provider intent can no longer be
// paid. Otherwise the row stays Pending so a late payment still has a registration
// to settle, and the next sweep looks at it again.
func (s *registrationService) voidPending(ctx context.Context, gateway domain.PaymentGateway, reg *domain.Registration) (bool, error) {
	if err := gateway.Void(ctx, reg.PaymentRef); err != nil {
		return false, fmt.Errorf("void payment intent: %w", err)
	}
	deleted, err := s.regRepo.DeletePending(ctx, reg.ID)
	if err != nil {
		return false, fmt.Errorf("delete pending registration: %w", err)
	}
	return deleted, nil
}

func (s *registrationService) ConfirmStripe(ctx context.Context, in domain.StripeConfirmInput) (*domain.ConfirmOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	reg, err := s.ownedRegistration(ctx, in.RegistrationID, in.EventID, in.UserID)
	if err != nil {
		return nil, err
	}
	if reg.Status.Counted() {
		return settled(reg), nil
	}
	if reg.PaymentMethod != domain.PaymentMethodStripe {
		return nil, fmt.Errorf("%w: registration is not settled through stripe", domain.ErrInvalidPaymentMethod)
	}
	gateway, err := s.gateways.Get(domain.PaymentMethodStripe)
	if err != nil {
		return nil, err
	}
	if err := gateway.VerifyProof(domain.PaymentProof{Success: in.Success}); err != nil {
		if errors.Is(err, domain.ErrPaymentCancelled) {
			if _, voidErr := s.voidPending(ctx, gateway, reg); voidErr != nil {
				s.logger.Warn("cancelled checkout left pending", "registration_id", reg.ID, "error", voidErr)
			}
			return nil, fmt.Errorf("%w: %w", domain.ErrPaymentNotConfirmed, err)
		}
		return nil, err
	}
	// A successful redirect is only a hint; the session decides.
	status, err := gateway.FetchStatus(ctx, reg.PaymentRef)
	if err != nil {
		return nil, err
	}
	if status != domain.PaymentPaid {
		return nil, fmt.Errorf("%w: checkout session is not paid yet", domain.ErrPaymentNotConfirmed)
	}
	return s.settle(ctx, reg, domain.PaymentMethodStripe)
}

func (s *registrationService) ConfirmRazorpay(ctx context.Context, in domain.RazorpayConfirmInput) (*domain.ConfirmOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	reg, err := s.ownedRegistration(ctx, in.RegistrationID, in.EventID, in.UserID)
	if err != nil {
		return nil, err
	}
	gateway, err := s.gateways.Get(domain.PaymentMethodRazorpay)
	if err != nil {
		return nil, err
	}
	if err := gateway.VerifyProof(domain.PaymentProof{
		Success:   true,
		OrderID:   in.OrderID,
		PaymentID: in.PaymentID,
		Signature: in.Signature,
	}); err != nil {
		return nil, err
	}
	if reg.Status.Counted() {
		return settled(reg), nil
	}
	if reg.PaymentMethod != domain.PaymentMethodRazorpay {
		return nil, fmt.Errorf("%w: registration is not settled through razorpay", domain.ErrInvalidPaymentMethod)
	}
	if reg.PaymentRef != in.OrderID {
		return nil, fmt.Errorf("%w: order does not belong to this registration", domain.ErrSignatureInvalid)
	}
	status, err := gateway.FetchStatus(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if status != domain.PaymentPaid {
		if _, voidErr := s.voidPending(ctx, gateway, reg); voidErr != nil {
			s.logger.Warn("unpaid order left pending", "registration_id", reg.ID, "error", voidErr)
		}
		return nil, fmt.Errorf("%w: order %s is not paid", domain.ErrPaymentNotConfirmed, in.OrderID)
	}
	return s.settle(ctx, reg, domain.PaymentMethodRazorpay)
}

// ownedRegistration loads the registration and checks it belongs to the caller's user and event.
func (s *registrationService) ownedRegistration(ctx context.Context, id, eventID, userID string) (*domain.Registration, error) {
	if id == "" || eventID == "" || userID == "" {
		return nil, fmt.Errorf("%w: registration, event and user are required", domain.ErrInvalidInput)
	}
	reg, err := s.regRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	if reg.EventID != eventID || reg.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return reg, nil
}

func (s *registrationService) settle(ctx context.Context, reg *domain.Registration, method domain.PaymentMethod) (*domain.ConfirmOutcome, error) {
	changed, err := s.regRepo.MarkPaid(ctx, reg.ID, method)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("mark registration paid: %w", err)
	}
	if !changed {
		// A concurrent confirm won the race.
		return settled(reg), nil
	}
	reg.Status = domain.StatusPaid
	reg.PaymentMethod = method
	s.logger.Info("registration paid", "registration_id", reg.ID, "event_id", reg.EventID, "payment_method", method)

	if event, err := s.eventRepo.GetByID(ctx, reg.EventID); err != nil {
		s.logger.Warn("load event for confirmation email", "event_id", reg.EventID, "error", err)
	} else {
		s.sendConfirmation(ctx, reg, event)
	}
	return &domain.ConfirmOutcome{Registration: reg, Message: "Payment confirmed, registration successful"}, nil
}

func settled(reg *domain.Registration) *domain.ConfirmOutcome {
	return &domain.ConfirmOutcome{
		Registration:   reg,
		AlreadySettled: true,
		Message:        "Registration already confirmed",
	}
}

// sendConfirmation is best-effort: the registration has already committed.
func (s *registrationService) sendConfirmation(ctx context.Context, reg *domain.Registration, event *domain.Event) {
	if reg.Contact == "" {
		return
	}
	err := s.emailService.SendRegistrationConfirmation(ctx, &domain.RegistrationConfirmedEmailData{
		Email:          reg.Contact,
		RollNumber:     reg.RollNumber,
		RegistrationID: reg.ID,
		EventTitle:     event.Title,
		StartDate:      event.StartDate,
		Status:         reg.Status,
	})
	if err != nil {
		s.logger.Warn("send registration confirmation", "registration_id", reg.ID, "error", err)
	}
}

func (s *registrationService) Unregister(ctx context.Context, userID, eventID string, fee decimal.Decimal) (*domain.UnregisterOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if userID == "" || eventID == "" {
		return nil, fmt.Errorf("%w: user and event are required", domain.ErrInvalidInput)
	}
	if fee.IsNegative() {
		return nil, fmt.Errorf("%w: fee must not be negative", domain.ErrInvalidInput)
	}

	reg, err := s.regRepo.Unregister(ctx, userID, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotRegistered) {
			return nil, domain.ErrNotRegistered
		}
		return nil, fmt.Errorf("unregister: %w", err)
	}
	s.logger.Info("registration removed", "registration_id", reg.ID, "event_id", eventID, "status", reg.Status)

	out := &domain.UnregisterOutcome{Registration: reg, Message: "Unregistered successfully"}
	if reg.Status == domain.StatusPaid {
		out.RefundPending = true
		out.Message = "Unregistered successfully. Your refund of " + fee.StringFixed(2) + " will be processed shortly"
	}
	return out, nil
}

func (s *registrationService) ListRegistrations(ctx context.Context, page *domain.PaginationParams) (domain.Paged[*domain.Registration], error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	out, err := s.regRepo.List(ctx, page)
	if err != nil {
		return domain.Paged[*domain.Registration]{}, fmt.Errorf("list registrations: %w", err)
	}
	if out.Items == nil {
		out.Items = []*domain.Registration{}
	}
	return out, nil
}

func (s *registrationService) ListMyRegistrations(ctx context.Context, userID string) ([]*domain.Registration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if userID == "" {
		return nil, fmt.Errorf("%w: user is required", domain.ErrInvalidInput)
	}
	regs, err := s.regRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	if regs == nil {
		regs = []*domain.Registration{}
	}
	return regs, nil
}

// SweepStalePending reconciles Pending registrations older than ttl with their provider.
// Rows the provider reports paid are settled. Unpaid ones are deleted once their intent
// is void. Rows whose provider cannot be reached or whose intent may still be paid are
// left for the next run.
func (s *registrationService) SweepStalePending(ctx context.Context, ttl time.Duration) (*domain.SweepResult, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: ttl must be positive", domain.ErrInvalidInput)
	}
	stale, err := s.regRepo.ListStalePending(ctx, s.now().Add(-ttl))
	if err != nil {
		return nil, fmt.Errorf("list stale pending: %w", err)
	}

	res := &domain.SweepResult{Scanned: len(stale)}
	for _, reg := range stale {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		s.sweepOne(ctx, reg, res)
	}
	if res.Scanned > 0 {
		s.logger.Info("pending sweep finished",
			"scanned", res.Scanned, "confirmed", res.Confirmed, "deleted", res.Deleted, "skipped", res.Skipped)
	}
	return res, nil
}

func (s *registrationService) sweepOne(ctx context.Context, reg *domain.Registration, res *domain.SweepResult) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	log := s.logger.With("registration_id", reg.ID, "payment_method", reg.PaymentMethod)

	// No payment reference means the intent was never opened.
	if reg.PaymentRef == "" {
		s.sweepDelete(ctx, log, reg, res)
		return
	}
	gateway, err := s.gateways.Get(reg.PaymentMethod)
	if err != nil {
		log.Warn("sweep: no gateway for registration", "error", err)
		res.Skipped++
		return
	}
	status, err := gateway.FetchStatus(ctx, reg.PaymentRef)
	if err != nil {
		log.Warn("sweep: fetch payment status", "error", err)
		res.Skipped++
		return
	}
	if status != domain.PaymentPaid {
		deleted, err := s.voidPending(ctx, gateway, reg)
		switch {
		case err != nil:
			log.Warn("sweep: payment intent still open", "error", err)
			res.Skipped++
		case deleted:
			res.Deleted++
		default:
			res.Skipped++
		}
		return
	}
	out, err := s.settle(ctx, reg, reg.PaymentMethod)
	if err != nil {
		log.Error("sweep: settle paid registration", "error", err)
		res.Skipped++
		return
	}
	if out.AlreadySettled {
		res.Skipped++
		return
	}
	res.Confirmed++
}

func (s *registrationService) sweepDelete(ctx context.Context, log *slog.Logger, reg *domain.Registration, res *domain.SweepResult) {
	deleted, err := s.regRepo.DeletePending(ctx, reg.ID)
	if err != nil {
		log.Error("sweep: delete pending registration", "error", err)
		res.Skipped++
		return
	}
	if !deleted {
		res.Skipped++
		return
	}
	res.Deleted++
}
