package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wizardoma/radiance-wellness/internal/availability"
	"github.com/wizardoma/radiance-wellness/internal/booking"
	"github.com/wizardoma/radiance-wellness/internal/catalog"
	"github.com/wizardoma/radiance-wellness/internal/events"
	"github.com/wizardoma/radiance-wellness/internal/payments"
	"github.com/wizardoma/radiance-wellness/pkg/logging"
)

var bookingsTracer = otel.Tracer("radiance.internal.bookings")

// PaymentMethodPayAtDesk settles a walk-in at reception instead of charging
// a card.
const PaymentMethodPayAtDesk = "pay_at_desk"

const maxReferenceAttempts = 3

// SlotVerifier re-checks one start time before a booking is stored.
type SlotVerifier interface {
	IsAvailable(ctx context.Context, date, hhmm string, minutes int) (bool, error)
}

// Observer receives server side submission outcomes.
type Observer interface {
	ObserveBookingOutcome(variant, outcome string)
	ObserveCharge(provider string, amount int64)
}

// Service validates, charges and stores bookings.
type Service struct {
	repo           Repository
	catalog        catalog.Provider
	slots          SlotVerifier
	gateway        payments.Gateway
	logger         *logging.Logger
	observer       Observer
	currency       string
	depositPercent int
	maxGuests      int
	now            func() time.Time
	keys           *keyedMutex
	dates          *keyedMutex
}

// NewService wires the bookings service. The catalog is re-read on every
// submission so server side totals follow catalog updates.
func NewService(repo Repository, provider catalog.Provider, slots SlotVerifier, gateway payments.Gateway, logger *logging.Logger) *Service {
	if repo == nil {
		panic("bookings: repository required")
	}
	if provider == nil {
		panic("bookings: catalog provider required")
	}
	if slots == nil {
		panic("bookings: slot verifier required")
	}
	if gateway == nil {
		panic("bookings: payment gateway required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:           repo,
		catalog:        provider,
		slots:          slots,
		gateway:        gateway,
		logger:         logger,
		currency:       "usd",
		depositPercent: 100,
		maxGuests:      booking.DefaultMaxGuests,
		now:            time.Now,
		keys:           newKeyedMutex(),
		dates:          newKeyedMutex(),
	}
}

// WithCurrency sets the ISO currency charged.
func (s *Service) WithCurrency(currency string) *Service {
	if c := strings.ToLower(strings.TrimSpace(currency)); c != "" {
		s.currency = c
	}
	return s
}

// WithDepositPercent charges only part of the grand total up front.
func (s *Service) WithDepositPercent(percent int) *Service {
	s.depositPercent = percent
	return s
}

// WithMaxGuests sets the guest cap enforced on incoming drafts.
func (s *Service) WithMaxGuests(n int) *Service {
	if n > 0 {
		s.maxGuests = n
	}
	return s
}

// WithClock overrides the clock used for confirmation timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// WithObserver attaches metrics.
func (s *Service) WithObserver(o Observer) *Service {
	s.observer = o
	return s
}

// Submit books req exactly once per idempotency token. A token seen before
// returns the stored confirmation with replayed=true and charges nothing.
func (s *Service) Submit(ctx context.Context, req booking.SubmitRequest) (conf *booking.Confirmation, replayed bool, err error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("radiance.variant", string(req.Variant)),
		attribute.String("radiance.service_id", req.Draft.ServiceID),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		s.observeOutcome(req.Variant, err, replayed)
	}()

	key := strings.TrimSpace(req.IdempotencyToken)
	if key == "" {
		key = strings.TrimSpace(req.Draft.IdempotencyToken)
	}
	if key == "" {
		return nil, false, fmt.Errorf("%w: %w", booking.ErrPrecondition,
			&booking.ValidationError{Step: booking.StepPayment, Field: "idempotency_token", Reason: "missing"})
	}

	unlock := s.keys.Lock(key)
	defer unlock()

	existing, err := s.repo.GetByIdempotencyKey(ctx, key)
	switch {
	case err == nil:
		s.logger.Info("booking replayed", "reference", existing.Reference, "idempotency_key", key)
		return existing.Confirmation(), true, nil
	case !errors.Is(err, ErrNotFound):
		return nil, false, fmt.Errorf("bookings: lookup idempotency key: %w", err)
	}

	flow, err := booking.FlowFor(req.Variant)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", booking.ErrPrecondition,
			&booking.ValidationError{Step: booking.StepService, Field: "variant", Reason: err.Error()})
	}
	cat, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("bookings: load catalog: %w", err)
	}
	draft := req.Draft.Clone().WithMaxGuests(s.maxGuests)
	draft.IdempotencyToken = key
	if err := flow.Validate(draft, cat); err != nil {
		return nil, false, fmt.Errorf("%w: %w", booking.ErrPrecondition, err)
	}
	if !flow.NeedsSchedule() && (draft.Date == "" || draft.Time == "") {
		return nil, false, fmt.Errorf("%w: %w", booking.ErrPrecondition,
			&booking.ValidationError{Step: flow.SubmitStep(), Field: "time", Reason: "walk-in start time missing"})
	}

	totals := booking.ComputeTotal(draft, cat)
	if req.Totals != (booking.Totals{}) && req.Totals != totals {
		s.logger.Warn("client totals differ from catalog pricing",
			"idempotency_key", key,
			"client_total", req.Totals.GrandTotal,
			"server_total", totals.GrandTotal,
		)
	}
	minutes := booking.TotalMinutes(draft, cat)

	// Serialise bookings of one day so two keys cannot both take the last room.
	unlockDate := s.dates.Lock(draft.Date)
	defer unlockDate()

	ok, err := s.slots.IsAvailable(ctx, draft.Date, draft.Time, minutes)
	if err != nil {
		return nil, false, fmt.Errorf("bookings: verify availability: %w", err)
	}
	if !ok {
		return nil, false, &booking.AvailabilityConflictError{Date: draft.Date, Time: draft.Time}
	}

	charge, amount, err := s.charge(ctx, flow, draft, totals)
	if err != nil {
		return nil, false, err
	}

	rec := &Record{
		IdempotencyKey: key,
		Variant:        flow.Variant,
		ServiceID:      draft.ServiceID,
		Duration:       draft.Duration,
		Date:           draft.Date,
		Time:           draft.Time,
		Minutes:        minutes,
		Guests:         draft.Guests,
		AddOnIDs:       append([]string(nil), draft.AddOnIDs...),
		Notes:          strings.TrimSpace(draft.Notes),
		Contact:        draft.Contact,
		StaffID:        draft.StaffID,
		Items:          booking.LineItems(draft, cat),
		Totals:         totals,
		AmountCharged:  amount,
		Currency:       s.currency,
		Status:         StatusConfirmed,
		CreatedAt:      s.now().UTC(),
	}
	if charge != nil {
		rec.PaymentRef = charge.ID
	}

	stored, created, err := s.store(ctx, rec, cat)
	if err != nil {
		if charge != nil {
			s.logger.Error("booking not stored after charge",
				"error", err,
				"idempotency_key", key,
				"payment_ref", charge.ID,
			)
		}
		return nil, false, err
	}
	if !created {
		return stored.Confirmation(), true, nil
	}

	span.SetAttributes(attribute.String("radiance.reference", stored.Reference))
	s.logger.Info("booking confirmed",
		"reference", stored.Reference,
		"variant", stored.Variant,
		"service_id", stored.ServiceID,
		"date", stored.Date,
		"time", stored.Time,
		"grand_total", stored.Totals.GrandTotal,
		"amount_charged", stored.AmountCharged,
	)
	return stored.Confirmation(), false, nil
}

// charge takes the deposit. Free bookings and walk-ins settled at the desk
// skip the gateway.
func (s *Service) charge(ctx context.Context, flow booking.Flow, d booking.Draft, totals booking.Totals) (*payments.Charge, int64, error) {
	amount := totals.Deposit(s.depositPercent)
	if amount <= 0 {
		return nil, 0, nil
	}
	method := strings.TrimSpace(d.PaymentMethod)
	if flow.Variant == booking.VariantWalkIn && (method == "" || method == PaymentMethodPayAtDesk) {
		return nil, 0, nil
	}
	if method == "" {
		return nil, 0, fmt.Errorf("%w: %w", booking.ErrPrecondition,
			&booking.ValidationError{Step: booking.StepPayment, Field: "payment_method", Reason: "payment method required"})
	}

	charge, err := s.gateway.Charge(ctx, payments.ChargeRequest{
		IdempotencyKey: d.IdempotencyToken,
		Amount:         amount,
		Currency:       s.currency,
		PaymentMethod:  method,
		Description:    fmt.Sprintf("Booking %s %s %s", d.ServiceID, d.Date, d.Time),
		ReceiptEmail:   d.Contact.Email,
		Metadata: map[string]string{
			"idempotency_key": d.IdempotencyToken,
			"service_id":      d.ServiceID,
			"date":            d.Date,
			"time":            d.Time,
		},
	})
	if err != nil {
		var declined *payments.DeclinedError
		switch {
		case errors.As(err, &declined):
			return nil, 0, &booking.PaymentDeclinedError{Code: declined.Code, Reason: declined.Reason}
		case errors.Is(err, payments.ErrInvalidCharge):
			return nil, 0, &booking.PaymentDeclinedError{Code: "invalid_request", Reason: err.Error()}
		}
		return nil, 0, fmt.Errorf("bookings: charge: %w", err)
	}
	if s.observer != nil {
		s.observer.ObserveCharge(charge.Provider, charge.Amount)
	}
	return charge, charge.Amount, nil
}

func (s *Service) store(ctx context.Context, rec *Record, cat *catalog.Catalog) (*Record, bool, error) {
	for attempt := 1; ; attempt++ {
		rec.Reference = NewReference()
		env, err := events.NewEnvelope(rec.Reference, rec.IdempotencyKey, confirmedEvent(rec, cat))
		if err != nil {
			return nil, false, err
		}
		stored, created, err := s.repo.Create(ctx, rec, env)
		if errors.Is(err, ErrDuplicateReference) && attempt < maxReferenceAttempts {
			s.logger.Warn("booking reference collision; regenerating", "reference", rec.Reference)
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("bookings: store: %w", err)
		}
		return stored, created, nil
	}
}

func confirmedEvent(rec *Record, cat *catalog.Catalog) events.BookingConfirmedV1 {
	var serviceName string
	if svc, ok := cat.Service(rec.ServiceID); ok {
		serviceName = svc.Name
	}
	return events.BookingConfirmedV1{
		Reference:     rec.Reference,
		Variant:       string(rec.Variant),
		ServiceID:     rec.ServiceID,
		ServiceName:   serviceName,
		Duration:      rec.Duration,
		Date:          rec.Date,
		Time:          rec.Time,
		Guests:        rec.Guests,
		AddOnIDs:      append([]string(nil), rec.AddOnIDs...),
		ContactName:   rec.Contact.Name,
		ContactEmail:  rec.Contact.Email,
		ContactPhone:  rec.Contact.Phone,
		StaffID:       rec.StaffID,
		GrandTotal:    rec.Totals.GrandTotal,
		AmountCharged: rec.AmountCharged,
		Currency:      rec.Currency,
		ConfirmedAt:   rec.CreatedAt,
	}
}

// GetByReference loads a confirmation by its reference code.
func (s *Service) GetByReference(ctx context.Context, reference string) (*booking.Confirmation, error) {
	rec, err := s.repo.GetByReference(ctx, strings.ToUpper(strings.TrimSpace(reference)))
	if err != nil {
		return nil, err
	}
	return rec.Confirmation(), nil
}

// Reservations lists the confirmed bookings occupying date.
func (s *Service) Reservations(ctx context.Context, date string) ([]availability.Reservation, error) {
	if _, err := time.Parse(booking.DateLayout, date); err != nil {
		return nil, &booking.ValidationError{Step: booking.StepDateTime, Field: "date", Reason: "expected YYYY-MM-DD"}
	}
	return s.repo.ListReservations(ctx, date)
}

func (s *Service) observeOutcome(variant booking.Variant, err error, replayed bool) {
	if s.observer == nil {
		return
	}
	outcome := booking.Outcome(err)
	if err == nil && replayed {
		outcome = "replayed"
	}
	s.observer.ObserveBookingOutcome(string(variant), outcome)
}
