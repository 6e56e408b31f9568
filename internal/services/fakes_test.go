package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"eventsettlement/internal/adapters/payment"
	"eventsettlement/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeLedger is an in-memory EventRepository and RegistrationRepository sharing one
// lock, so counter updates stay consistent with status changes like the SQL version.
type fakeLedger struct {
	mu     sync.Mutex
	events map[string]*domain.Event
	regs   map[string]*domain.Registration
	sent   map[string]bool

	getErr     error
	setRefErr  error
	markErr    error
	deleteErr  error
	dueErr     error
	markPaidFn func(id string) // runs before MarkPaid takes the lock
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		events: make(map[string]*domain.Event),
		regs:   make(map[string]*domain.Registration),
		sent:   make(map[string]bool),
	}
}

func (f *fakeLedger) addEvent(e *domain.Event) *domain.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[e.ID] = e
	return e
}

func (f *fakeLedger) count(eventID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[eventID].RegisteredCount
}

// countedRows is the number of Free or Paid rows for eventID.
func (f *fakeLedger) countedRows(eventID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.regs {
		if r.EventID == eventID && r.Status.Counted() {
			n++
		}
	}
	return n
}

func (f *fakeLedger) reg(id string) (*domain.Registration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.regs[id]
	if !ok {
		return nil, false
	}
	cp := *r
	return &cp, true
}

// EventRepository

func (f *fakeLedger) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeLedger) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.events[id]; !ok {
		return domain.ErrNotFound
	}
	for rid, r := range f.regs {
		if r.EventID == id {
			delete(f.regs, rid)
		}
	}
	delete(f.events, id)
	return nil
}

// registrations is the RegistrationRepository view of the ledger.
type registrations struct{ *fakeLedger }

func (f registrations) Create(ctx context.Context, reg *domain.Registration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[reg.EventID]
	if !ok {
		return domain.ErrNotFound
	}
	for _, r := range f.regs {
		if r.UserID == reg.UserID && r.EventID == reg.EventID {
			return domain.ErrAlreadyRegistered
		}
	}
	if reg.Status.Counted() {
		if e.MaxParticipants != nil && e.RegisteredCount >= *e.MaxParticipants {
			return domain.ErrEventFull
		}
		e.RegisteredCount++
	}
	cp := *reg
	f.regs[reg.ID] = &cp
	return nil
}

func (f registrations) GetByID(ctx context.Context, id string) (*domain.Registration, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	r, ok := f.reg(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r, nil
}

func (f registrations) GetByEventAndUser(ctx context.Context, eventID, userID string) (*domain.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.regs {
		if r.EventID == eventID && r.UserID == userID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f registrations) sorted(keep func(*domain.Registration) bool) []*domain.Registration {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Registration
	for _, r := range f.regs {
		if keep(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (f registrations) List(ctx context.Context, page *domain.PaginationParams) (domain.Paged[*domain.Registration], error) {
	all := f.sorted(func(*domain.Registration) bool { return true })
	if page == nil {
		return domain.Paged[*domain.Registration]{Items: all, Total: len(all)}, nil
	}
	start := min(page.Offset(), len(all))
	end := min(start+page.PageSize, len(all))
	return domain.Paged[*domain.Registration]{Items: all[start:end], Total: len(all)}, nil
}

func (f registrations) ListByUserID(ctx context.Context, userID string) ([]*domain.Registration, error) {
	return f.sorted(func(r *domain.Registration) bool { return r.UserID == userID }), nil
}

func (f registrations) ListStalePending(ctx context.Context, before time.Time) ([]*domain.Registration, error) {
	return f.sorted(func(r *domain.Registration) bool {
		return r.Status == domain.StatusPending && r.CreatedAt.Before(before)
	}), nil
}

func (f registrations) SetPaymentRef(ctx context.Context, id, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setRefErr != nil {
		return f.setRefErr
	}
	r, ok := f.regs[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.PaymentRef = ref
	return nil
}

func (f registrations) MarkPaid(ctx context.Context, id string, method domain.PaymentMethod) (bool, error) {
	if f.markPaidFn != nil {
		f.markPaidFn(id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.regs[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if r.Status != domain.StatusPending {
		return false, nil
	}
	r.Status = domain.StatusPaid
	r.PaymentMethod = method
	f.events[r.EventID].RegisteredCount++
	return true, nil
}

func (f registrations) DeletePending(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.regs[id]
	if !ok || r.Status != domain.StatusPending {
		return false, nil
	}
	delete(f.regs, id)
	return true, nil
}

func (f registrations) Unregister(ctx context.Context, userID, eventID string) (*domain.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, r := range f.regs {
		if r.UserID != userID || r.EventID != eventID {
			continue
		}
		if r.Status.Counted() {
			e, ok := f.events[eventID]
			if !ok {
				return nil, domain.ErrNotRegistered
			}
			e.RegisteredCount--
		}
		delete(f.regs, id)
		return r, nil
	}
	return nil, domain.ErrNotRegistered
}

func (f registrations) ListDueForReminder(ctx context.Context, from, to time.Time) ([]*domain.ReminderCandidate, error) {
	if f.dueErr != nil {
		return nil, f.dueErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.ReminderCandidate
	for _, r := range f.regs {
		e := f.events[r.EventID]
		if f.sent[r.ID] || !r.Status.Counted() || e == nil {
			continue
		}
		if e.StartDate.After(from) && !e.StartDate.After(to) {
			out = append(out, &domain.ReminderCandidate{
				RegistrationID: r.ID,
				UserID:         r.UserID,
				Contact:        r.Contact,
				RollNumber:     r.RollNumber,
				EventID:        e.ID,
				EventTitle:     e.Title,
				StartDate:      e.StartDate,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegistrationID < out[j].RegistrationID })
	return out, nil
}

func (f registrations) MarkNotificationSent(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	if _, ok := f.regs[id]; !ok {
		return domain.ErrNotFound
	}
	f.sent[id] = true
	return nil
}

// fakeGateway is a scriptable PaymentGateway. A Razorpay-style proof is valid
// when its signature is "sig:<orderID>|<paymentID>".
type fakeGateway struct {
	method      domain.PaymentMethod
	redirect    bool
	createErr   error
	fetchErr    error
	voidErr     error
	status      domain.PaymentStatus
	fetchCalls  int
	voided      []string
	lastRequest domain.PaymentIntentRequest
	mu          sync.Mutex
}

func (g *fakeGateway) Method() domain.PaymentMethod { return g.method }

func (g *fakeGateway) CreateIntent(ctx context.Context, req domain.PaymentIntentRequest) (*domain.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastRequest = req
	if g.createErr != nil {
		return nil, g.createErr
	}
	intent := &domain.PaymentIntent{
		Provider: g.method,
		Handle:   string(g.method) + "_" + req.Reference,
		Amount:   payment.MinorUnits(req.Amount),
		Currency: req.Currency,
	}
	if g.redirect {
		intent.RedirectURL = "https://pay.example.com/" + intent.Handle
	}
	return intent, nil
}

func (g *fakeGateway) VerifyProof(proof domain.PaymentProof) error {
	if !proof.Success {
		return domain.ErrPaymentCancelled
	}
	if g.method == domain.PaymentMethodRazorpay && proof.Signature != "sig:"+proof.OrderID+"|"+proof.PaymentID {
		return domain.ErrSignatureInvalid
	}
	return nil
}

func (g *fakeGateway) FetchStatus(ctx context.Context, handle string) (domain.PaymentStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetchCalls++
	if g.fetchErr != nil {
		return "", g.fetchErr
	}
	return g.status, nil
}

func (g *fakeGateway) Void(ctx context.Context, handle string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.voidErr != nil {
		return g.voidErr
	}
	g.voided = append(g.voided, handle)
	return nil
}

// fakeEmailService records every email it is asked to send.
type fakeEmailService struct {
	mu            sync.Mutex
	confirmations []*domain.RegistrationConfirmedEmailData
	reminders     []*domain.EventReminderEmailData
	err           error
	failFor       map[string]bool
}

func (f *fakeEmailService) SendRegistrationConfirmation(ctx context.Context, data *domain.RegistrationConfirmedEmailData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.confirmations = append(f.confirmations, data)
	return nil
}

func (f *fakeEmailService) SendEventReminder(ctx context.Context, data *domain.EventReminderEmailData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil || f.failFor[data.Email] {
		return errors.New("smtp: mailbox unavailable")
	}
	f.reminders = append(f.reminders, data)
	return nil
}

func intPtr(n int) *int { return &n }

func fee(s string) decimal.Decimal { return decimal.RequireFromString(s) }
