package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wizardoma/radiance-wellness/internal/catalog"
	"github.com/wizardoma/radiance-wellness/pkg/logging"
)

// ConfirmationRecorder keeps confirmations that arrive after the user has
// left the wizard.
type ConfirmationRecorder interface {
	RecordConfirmation(ctx context.Context, sessionID string, conf *Confirmation) error
}

// WizardConfig wires one wizard session.
type WizardConfig struct {
	SessionID     string
	Flow          Flow
	Catalog       *catalog.Catalog
	MaxGuests     int
	Availability  AvailabilityChecker
	LookupTimeout time.Duration
	Submitter     *Submitter
	Recorder      ConfirmationRecorder
	Location      *time.Location
	Now           func() time.Time
	Logger        *logging.Logger
}

// Wizard drives one booking flow over a single draft. Methods are safe for
// concurrent use, but the model is one user per wizard.
type Wizard struct {
	cfg WizardConfig

	mu           sync.Mutex
	draft        Draft
	step         Step
	slots        AvailabilityState
	lookupSeq    uint64
	lookupCancel context.CancelFunc
	inflight     chan struct{}
	generation   uint64 // bumped by Cancel
	confirmation *Confirmation
	lastErr      error
}

// NewWizard starts a wizard at the first step of the flow with an empty draft.
func NewWizard(cfg WizardConfig) (*Wizard, error) {
	if len(cfg.Flow.Steps) == 0 {
		return nil, fmt.Errorf("booking: wizard flow required")
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("booking: wizard catalog required")
	}
	if cfg.Submitter == nil {
		return nil, fmt.Errorf("booking: wizard submitter required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Wizard{
		cfg:   cfg,
		draft: NewDraft(cfg.MaxGuests),
		step:  cfg.Flow.First(),
		slots: AvailabilityState{Status: AvailabilityIdle},
	}, nil
}

// SessionID returns the owning session.
func (w *Wizard) SessionID() string { return w.cfg.SessionID }

// Flow returns the wizard's step sequence.
func (w *Wizard) Flow() Flow { return w.cfg.Flow }

// Step returns the current step.
func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Draft returns a copy of the current draft.
func (w *Wizard) Draft() Draft {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft.Clone()
}

// Confirmation returns the last confirmation, if any.
func (w *Wizard) Confirmation() *Confirmation {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.confirmation
}

// mutate runs fn under the lock unless a submission is pending.
func (w *Wizard) mutate(fn func() error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inflight != nil {
		return ErrSubmissionInFlight
	}
	return fn()
}

// SelectService picks a service. Add-ons are cleared, the duration resets
// to the service's first one and any picked time is dropped since slots
// depend on the service.
func (w *Wizard) SelectService(serviceID string) error {
	return w.mutate(func() error {
		svc, ok := w.cfg.Catalog.Service(serviceID)
		if !ok {
			return &ValidationError{Step: StepService, Field: "service", Reason: "unknown service"}
		}
		changed := w.draft.ServiceID != svc.ID
		w.draft.SelectService(svc)
		if changed {
			w.draft.Time = ""
			w.resetSlotsLocked()
		}
		return nil
	})
}

// SelectDuration sets the duration of the selected service.
func (w *Wizard) SelectDuration(minutes int) error {
	return w.mutate(func() error {
		svc, _ := w.cfg.Catalog.Service(w.draft.ServiceID)
		return w.draft.SelectDuration(svc, minutes)
	})
}

// SetGuests clamps and stores the guest count.
func (w *Wizard) SetGuests(n int) (int, error) {
	var applied int
	err := w.mutate(func() error {
		applied = w.draft.SetGuests(n)
		return nil
	})
	return applied, err
}

// ToggleAddOn flips an add-on of the selected service.
func (w *Wizard) ToggleAddOn(addOnID string) (bool, error) {
	var selected bool
	err := w.mutate(func() error {
		svc, _ := w.cfg.Catalog.Service(w.draft.ServiceID)
		var err error
		selected, err = w.draft.ToggleAddOn(svc, addOnID)
		return err
	})
	return selected, err
}

// SetContact stores the guest's contact details.
func (w *Wizard) SetContact(c Contact) error {
	return w.mutate(func() error {
		w.draft.SetContact(c)
		return nil
	})
}

// SetNotes stores free-text notes.
func (w *Wizard) SetNotes(notes string) error {
	return w.mutate(func() error {
		w.draft.Notes = notes
		return nil
	})
}

// SetPaymentMethod stores the payment method token or label.
func (w *Wizard) SetPaymentMethod(method string) error {
	return w.mutate(func() error {
		w.draft.PaymentMethod = method
		return nil
	})
}

// AssignStaff assigns the therapist of a walk-in.
func (w *Wizard) AssignStaff(staffID string) error {
	return w.mutate(func() error {
		w.draft.StaffID = staffID
		return nil
	})
}

// SetDate picks the calendar date. Slots of another date are dropped.
func (w *Wizard) SetDate(date string) error {
	return w.mutate(func() error {
		if err := w.draft.SetDate(date); err != nil {
			return err
		}
		if w.slots.Date != date {
			w.resetSlotsLocked()
		}
		return nil
	})
}

// SelectTime picks a start time. With an availability checker the time must
// have been reported available by the last lookup for the current date and
// service; anything else is rejected without a round trip.
func (w *Wizard) SelectTime(hhmm string) error {
	return w.mutate(func() error {
		if _, err := time.Parse(TimeLayout, hhmm); err != nil {
			return &ValidationError{Step: StepDateTime, Field: "time", Reason: "expected HH:MM"}
		}
		if w.cfg.Availability != nil && !w.slots.Bookable(w.draft.Date, w.draft.ServiceID, hhmm) {
			return ErrSlotUnavailable
		}
		return w.draft.SetTime(hhmm)
	})
}

// SetDateTime is SetDate followed by SelectTime.
func (w *Wizard) SetDateTime(date, hhmm string) error {
	if err := w.SetDate(date); err != nil {
		return err
	}
	return w.SelectTime(hhmm)
}

// LoadSlots looks up the slots of date for the selected service and makes
// date the draft's date. A failed lookup leaves the state "unknown" and
// returns an error wrapping ErrAvailabilityUnknown. A lookup superseded by a
// newer lookup, Back or Cancel returns ErrLookupAbandoned and its result is
// discarded.
func (w *Wizard) LoadSlots(ctx context.Context, date string) (AvailabilityState, error) {
	w.mu.Lock()
	if w.inflight != nil {
		w.mu.Unlock()
		return AvailabilityState{}, ErrSubmissionInFlight
	}
	if w.cfg.Availability == nil {
		w.mu.Unlock()
		return AvailabilityState{Status: AvailabilityUnknown}, fmt.Errorf("%w: no availability checker", ErrAvailabilityUnknown)
	}
	if w.draft.ServiceID == "" {
		w.mu.Unlock()
		return AvailabilityState{}, &ValidationError{Step: StepDateTime, Field: "service", Reason: "select a service first"}
	}
	if err := w.draft.SetDate(date); err != nil {
		w.mu.Unlock()
		return AvailabilityState{}, err
	}
	w.abandonLookupLocked()
	w.lookupSeq++
	seq := w.lookupSeq
	var (
		lookupCtx context.Context
		cancel    context.CancelFunc
	)
	if w.cfg.LookupTimeout > 0 {
		lookupCtx, cancel = context.WithTimeout(ctx, w.cfg.LookupTimeout)
	} else {
		lookupCtx, cancel = context.WithCancel(ctx)
	}
	w.lookupCancel = cancel
	serviceID := w.draft.ServiceID
	w.slots = AvailabilityState{Date: date, ServiceID: serviceID, Status: AvailabilityLoading}
	checker := w.cfg.Availability
	w.mu.Unlock()

	slots, err := checker.AvailableSlots(lookupCtx, date, serviceID)
	cancel()

	w.mu.Lock()
	defer w.mu.Unlock()
	if seq != w.lookupSeq {
		return w.slots, ErrLookupAbandoned
	}
	w.lookupCancel = nil
	if err != nil {
		w.slots.Status = AvailabilityUnknown
		w.slots.Error = err.Error()
		w.cfg.Logger.Warn("availability lookup failed",
			"session_id", w.cfg.SessionID,
			"date", date,
			"service_id", serviceID,
			"error", err,
		)
		return w.slots, fmt.Errorf("%w: %w", ErrAvailabilityUnknown, err)
	}
	w.slots.Status = AvailabilityLoaded
	w.slots.Slots = append([]Slot(nil), slots...)
	if w.draft.Time != "" && !w.slots.Bookable(date, serviceID, w.draft.Time) {
		w.draft.Time = ""
	}
	return w.slots, nil
}

// abandonLookupLocked cancels the in-flight lookup and invalidates its
// result.
func (w *Wizard) abandonLookupLocked() {
	if w.lookupCancel != nil {
		w.lookupCancel()
		w.lookupCancel = nil
	}
	w.lookupSeq++
	if w.slots.Status == AvailabilityLoading {
		w.slots = AvailabilityState{Status: AvailabilityIdle}
	}
}

func (w *Wizard) resetSlotsLocked() {
	w.abandonLookupLocked()
	w.slots = AvailabilityState{Status: AvailabilityIdle}
}

// Advance moves to the next step when the current step's gate passes. At
// the last step it is a no-op.
func (w *Wizard) Advance() (Step, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if verr := gateError(w.step, w.draft, w.cfg.Catalog, w.confirmation != nil); verr != nil {
		if _, ok := w.cfg.Flow.Next(w.step); !ok {
			return w.step, nil
		}
		return w.step, verr
	}
	if next, ok := w.cfg.Flow.Next(w.step); ok {
		w.step = next
	}
	return w.step, nil
}

// Back moves to the previous step and abandons any availability lookup. At
// the first step it is a no-op. A pending submission keeps running.
func (w *Wizard) Back() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.abandonLookupLocked()
	if prev, ok := w.cfg.Flow.Prev(w.step); ok {
		w.step = prev
	}
	return w.step
}

// GoTo jumps to a reachable step of the flow.
func (w *Wizard) GoTo(step Step) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.cfg.Flow.Contains(step) {
		return &ValidationError{Step: step, Reason: "step not part of this flow"}
	}
	if !w.cfg.Flow.Reachable(step, w.draft, w.cfg.Catalog, w.confirmation != nil) {
		return &ValidationError{Step: step, Reason: "earlier steps incomplete"}
	}
	w.step = step
	return nil
}

// Cancel abandons the flow: lookups are cancelled and the draft discarded.
// A pending submission is not cancelled; its result is still recorded.
func (w *Wizard) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetSlotsLocked()
	w.draft.Reset()
	w.step = w.cfg.Flow.First()
	w.lastErr = nil
	w.generation++
	if w.inflight == nil {
		w.confirmation = nil
	}
}

type submitResult struct {
	conf *Confirmation
	err  error
}

// Submit sends the draft to the booking backend. Only one submission runs
// at a time; a second call returns ErrSubmissionInFlight. Cancelling ctx
// stops the wait, not the submission: the result is reconciled into the
// wizard and the recorder either way.
func (w *Wizard) Submit(ctx context.Context) (*Confirmation, error) {
	w.mu.Lock()
	if w.inflight != nil {
		w.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	draft := w.draft.Clone()
	if !w.cfg.Flow.NeedsSchedule() && (draft.Date == "" || draft.Time == "") {
		now := w.cfg.Now().In(w.cfg.Location)
		draft.Date = now.Format(DateLayout)
		draft.Time = now.Format(TimeLayout)
	}
	done := make(chan struct{})
	w.inflight = done
	w.lastErr = nil
	generation := w.generation
	w.mu.Unlock()

	resCh := make(chan submitResult, 1)
	detached := context.WithoutCancel(ctx)
	go func() {
		defer close(done)
		conf, err := w.cfg.Submitter.Submit(detached, w.cfg.Flow, draft, w.cfg.Catalog)
		w.reconcile(detached, generation, conf, err)
		resCh <- submitResult{conf: conf, err: err}
	}()

	select {
	case r := <-resCh:
		return r.conf, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Wait blocks until no submission is pending.
func (w *Wizard) Wait(ctx context.Context) error {
	w.mu.Lock()
	done := w.inflight
	w.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// reconcile applies a submission result. The wizard stays in flight until
// the confirmation is recorded.
// A failure of a draft discarded by Cancel is only logged.
func (w *Wizard) reconcile(ctx context.Context, generation uint64, conf *Confirmation, err error) {
	defer func() {
		w.mu.Lock()
		w.inflight = nil
		w.mu.Unlock()
	}()

	w.mu.Lock()
	if err != nil && generation != w.generation {
		w.mu.Unlock()
		w.cfg.Logger.Warn("submission of cancelled draft failed",
			"session_id", w.cfg.SessionID,
			"error", err,
		)
		return
	}
	if err != nil {
		w.lastErr = err
		var conflict *AvailabilityConflictError
		if errors.As(err, &conflict) && w.cfg.Flow.NeedsSchedule() {
			w.draft.Time = ""
			w.resetSlotsLocked()
			w.step = StepDateTime
		}
		// Nothing was booked under a declined token; the next card needs its own.
		var declined *PaymentDeclinedError
		if errors.As(err, &declined) {
			w.draft.RotateToken()
		}
		w.mu.Unlock()
		return
	}
	w.confirmation = conf
	w.lastErr = nil
	w.draft.Reset()
	w.resetSlotsLocked()
	submit := w.cfg.Flow.SubmitStep()
	if next, ok := w.cfg.Flow.Next(submit); ok {
		w.step = next
	} else {
		w.step = submit
	}
	recorder := w.cfg.Recorder
	w.mu.Unlock()

	if recorder == nil {
		return
	}
	recordCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := recorder.RecordConfirmation(recordCtx, w.cfg.SessionID, conf); err != nil {
		w.cfg.Logger.Error("failed to record confirmation",
			"session_id", w.cfg.SessionID,
			"reference", conf.Reference,
			"error", err,
		)
	}
}

// StepState describes one step for rendering navigation.
type StepState struct {
	Step      Step `json:"step"`
	Reachable bool `json:"reachable"`
	Complete  bool `json:"complete"`
}

// View is a consistent snapshot of the wizard.
type View struct {
	SessionID    string            `json:"session_id"`
	Variant      Variant           `json:"variant"`
	Step         Step              `json:"step"`
	Steps        []StepState       `json:"steps"`
	Draft        Draft             `json:"draft"`
	MaxGuests    int               `json:"max_guests"`
	Totals       Totals            `json:"totals"`
	Items        []LineItem        `json:"items"`
	Availability AvailabilityState `json:"availability"`
	Submitting   bool              `json:"submitting"`
	Confirmation *Confirmation     `json:"confirmation,omitempty"`
	LastError    string            `json:"last_error,omitempty"`
	LastOutcome  string            `json:"last_outcome,omitempty"`
}

// Snapshot returns the current view.
func (w *Wizard) Snapshot() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	submitted := w.confirmation != nil
	steps := make([]StepState, 0, len(w.cfg.Flow.Steps))
	for _, s := range w.cfg.Flow.Steps {
		steps = append(steps, StepState{
			Step:      s,
			Reachable: w.cfg.Flow.Reachable(s, w.draft, w.cfg.Catalog, submitted),
			Complete:  CanAdvance(s, w.draft, w.cfg.Catalog, submitted),
		})
	}
	v := View{
		SessionID:    w.cfg.SessionID,
		Variant:      w.cfg.Flow.Variant,
		Step:         w.step,
		Steps:        steps,
		Draft:        w.draft.Clone(),
		MaxGuests:    w.draft.MaxGuests(),
		Totals:       ComputeTotal(w.draft, w.cfg.Catalog),
		Items:        LineItems(w.draft, w.cfg.Catalog),
		Availability: w.slots,
		Submitting:   w.inflight != nil,
		Confirmation: w.confirmation,
	}
	if w.lastErr != nil {
		v.LastError = w.lastErr.Error()
		v.LastOutcome = Outcome(w.lastErr)
	}
	return v
}
