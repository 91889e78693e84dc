package booking

import (
	"errors"
	"fmt"
)

var (
	// ErrPrecondition marks a submission attempted before every gate passed.
	ErrPrecondition = errors.New("booking: precondition failed")

	// ErrSlotUnavailable is returned when a time is picked that the last
	// availability lookup did not report as bookable.
	ErrSlotUnavailable = errors.New("booking: time slot unavailable")

	// ErrAvailabilityUnknown is returned when the availability lookup failed.
	ErrAvailabilityUnknown = errors.New("booking: availability unknown")

	// ErrSubmissionInFlight is returned when the draft is touched while a
	// submission is pending.
	ErrSubmissionInFlight = errors.New("booking: submission already in flight")

	// ErrLookupAbandoned is returned to a lookup superseded by navigation or a
	// newer lookup.
	ErrLookupAbandoned = errors.New("booking: availability lookup abandoned")

	// ErrNotPermitted is returned when the backend refuses the caller, e.g.
	// a walk-in submitted without staff credentials.
	ErrNotPermitted = errors.New("booking: caller not permitted")
)

// ValidationError reports a draft that fails a step gate or a field rule.
// It is fixable locally without I/O.
type ValidationError struct {
	Step   Step
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("booking: invalid %s at step %s: %s", e.Field, e.Step, e.Reason)
	}
	return fmt.Sprintf("booking: step %s incomplete: %s", e.Step, e.Reason)
}

// AvailabilityConflictError means the chosen slot was taken before the
// booking landed. The user has to pick another time.
type AvailabilityConflictError struct {
	Date    string
	Time    string
	Message string
}

func (e *AvailabilityConflictError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "slot no longer available"
	}
	return fmt.Sprintf("booking: %s %s: %s", e.Date, e.Time, msg)
}

// PaymentDeclinedError is an external payment failure. The draft is kept so
// the user can retry with another payment method.
type PaymentDeclinedError struct {
	Code   string
	Reason string
}

func (e *PaymentDeclinedError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("booking: payment declined (%s): %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("booking: payment declined: %s", e.Reason)
}

// NetworkError is a transient transport failure and the only kind retried.
type NetworkError struct {
	Op     string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("booking: %s: upstream status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("booking: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Outcome classifies a submission result for logs, metrics and HTTP
// status mapping.
func Outcome(err error) string {
	var (
		validation *ValidationError
		conflict   *AvailabilityConflictError
		declined   *PaymentDeclinedError
		network    *NetworkError
	)
	switch {
	case err == nil:
		return "confirmed"
	case errors.Is(err, ErrSubmissionInFlight):
		return "in_flight"
	case errors.Is(err, ErrNotPermitted):
		return "forbidden"
	case errors.Is(err, ErrPrecondition), errors.As(err, &validation):
		return "validation"
	case errors.As(err, &conflict):
		return "conflict"
	case errors.As(err, &declined):
		return "declined"
	case errors.As(err, &network):
		return "network"
	default:
		return "error"
	}
}
