package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wizardoma/radiance-wellness/internal/catalog"
	"github.com/wizardoma/radiance-wellness/pkg/logging"
)

// SubmitRequest is what the booking backend receives. The idempotency
// token is reused across retries of the same draft.
type SubmitRequest struct {
	Variant          Variant `json:"variant"`
	Draft            Draft   `json:"draft"`
	Totals           Totals  `json:"totals"`
	IdempotencyToken string  `json:"idempotency_token"`
}

// Confirmation is the durable record of a booking that went through.
type Confirmation struct {
	Reference     string     `json:"reference"`
	ServiceID     string     `json:"service_id"`
	Duration      int        `json:"duration"`
	Date          string     `json:"date"`
	Time          string     `json:"time"`
	Guests        int        `json:"guests"`
	Contact       Contact    `json:"contact"`
	StaffID       string     `json:"staff_id,omitempty"`
	Items         []LineItem `json:"items"`
	Totals        Totals     `json:"totals"`
	AmountCharged int64      `json:"amount_charged"`
	PaymentRef    string     `json:"payment_ref,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// BookingAPI is the backend that turns a request into a confirmation.
// SubmitBooking returns the typed errors of this package.
type BookingAPI interface {
	SubmitBooking(ctx context.Context, req SubmitRequest) (*Confirmation, error)
	GetBookingByReference(ctx context.Context, reference string) (*Confirmation, error)
}

// Observer receives submission telemetry.
type Observer interface {
	ObserveSubmission(outcome string, seconds float64)
	ObserveSubmitRetry()
}

// RetryPolicy bounds the retries of network failures.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy retries twice with 250ms, 500ms backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 250 * time.Millisecond, MaxDelay: 5 * time.Second}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay << (attempt - 1)
	if p.MaxDelay > 0 && (d > p.MaxDelay || d < 0) {
		d = p.MaxDelay
	}
	return d
}

// Submitter validates a draft and sends it to the BookingAPI, retrying
// transient failures with the same idempotency token.
type Submitter struct {
	api      BookingAPI
	policy   RetryPolicy
	timeout  time.Duration
	logger   *logging.Logger
	observer Observer
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewSubmitter creates a submitter with the default retry policy.
func NewSubmitter(api BookingAPI, logger *logging.Logger) *Submitter {
	if api == nil {
		panic("booking: booking api required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Submitter{
		api:     api,
		policy:  DefaultRetryPolicy(),
		timeout: 30 * time.Second,
		logger:  logger,
		sleep:   sleepContext,
	}
}

// WithRetryPolicy overrides the retry policy.
func (s *Submitter) WithRetryPolicy(p RetryPolicy) *Submitter {
	if p.MaxAttempts > 0 {
		s.policy = p
	}
	return s
}

// WithTimeout bounds one Submit call including retries.
func (s *Submitter) WithTimeout(d time.Duration) *Submitter {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// WithObserver attaches metrics.
func (s *Submitter) WithObserver(o Observer) *Submitter {
	s.observer = o
	return s
}

// Submit checks every gate before the submit step, then sends the draft.
// A failing gate returns an error wrapping ErrPrecondition and the
// *ValidationError without calling the API. The call ignores cancellation
// of ctx: once issued, a submission always runs to a definite result.
// The draft is never modified.
func (s *Submitter) Submit(ctx context.Context, flow Flow, d Draft, cat *catalog.Catalog) (*Confirmation, error) {
	if err := flow.Validate(d, cat); err != nil {
		s.observe(err, 0)
		return nil, fmt.Errorf("%w: %w", ErrPrecondition, err)
	}
	if d.IdempotencyToken == "" {
		err := &ValidationError{Step: flow.SubmitStep(), Field: "idempotency_token", Reason: "missing"}
		s.observe(err, 0)
		return nil, fmt.Errorf("%w: %w", ErrPrecondition, err)
	}

	ctx = context.WithoutCancel(ctx)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req := SubmitRequest{
		Variant:          flow.Variant,
		Draft:            d.Clone(),
		Totals:           ComputeTotal(d, cat),
		IdempotencyToken: d.IdempotencyToken,
	}

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		conf, err := s.api.SubmitBooking(ctx, req)
		if err == nil {
			s.logger.Info("booking submitted",
				"reference", conf.Reference,
				"service_id", d.ServiceID,
				"attempt", attempt,
				"grand_total", req.Totals.GrandTotal,
			)
			s.observe(nil, time.Since(start).Seconds())
			return conf, nil
		}
		lastErr = err

		var netErr *NetworkError
		if !errors.As(err, &netErr) || attempt == s.policy.MaxAttempts {
			break
		}
		delay := s.policy.delay(attempt)
		s.logger.Warn("booking submit failed; retrying",
			"error", err,
			"attempt", attempt,
			"delay_ms", delay.Milliseconds(),
		)
		if s.observer != nil {
			s.observer.ObserveSubmitRetry()
		}
		if err := s.sleep(ctx, delay); err != nil {
			lastErr = &NetworkError{Op: "submit booking", Err: err}
			break
		}
	}

	s.logger.Warn("booking submit failed", "error", lastErr, "outcome", Outcome(lastErr))
	s.observe(lastErr, time.Since(start).Seconds())
	return nil, lastErr
}

func (s *Submitter) observe(err error, seconds float64) {
	if s.observer != nil {
		s.observer.ObserveSubmission(Outcome(err), seconds)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
