// Package bookingapi is the HTTP wire contract of the booking backend: the
// error envelope shared by server and client, and a client implementing
// booking.BookingAPI.
package bookingapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/wizardoma/radiance-wellness/internal/booking"
)

// Error codes carried in ErrorBody.Error.
const (
	CodeValidation = "validation"
	CodeConflict   = "availability_conflict"
	CodeDeclined   = "payment_declined"
	CodeForbidden  = "forbidden"
	CodeNotFound   = "not_found"
	CodeInternal   = "internal"
)

// ErrNotFound is returned for unknown booking references.
var ErrNotFound = errors.New("bookingapi: booking not found")

// ErrorBody is the JSON error envelope of the booking API.
type ErrorBody struct {
	Error       string `json:"error"`
	Message     string `json:"message"`
	Step        string `json:"step,omitempty"`
	Field       string `json:"field,omitempty"`
	Date        string `json:"date,omitempty"`
	Time        string `json:"time,omitempty"`
	DeclineCode string `json:"decline_code,omitempty"`
}

// EncodeError maps a submission error to its HTTP status and envelope.
func EncodeError(err error) (int, ErrorBody) {
	var (
		validation *booking.ValidationError
		conflict   *booking.AvailabilityConflictError
		declined   *booking.PaymentDeclinedError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, ErrorBody{
			Error:   CodeValidation,
			Message: validation.Reason,
			Step:    string(validation.Step),
			Field:   validation.Field,
		}
	case errors.Is(err, booking.ErrPrecondition):
		return http.StatusBadRequest, ErrorBody{Error: CodeValidation, Message: err.Error()}
	case errors.Is(err, booking.ErrNotPermitted):
		return http.StatusForbidden, ErrorBody{Error: CodeForbidden, Message: err.Error()}
	case errors.As(err, &conflict):
		msg := conflict.Message
		if msg == "" {
			msg = "slot no longer available"
		}
		return http.StatusConflict, ErrorBody{
			Error:   CodeConflict,
			Message: msg,
			Step:    string(booking.StepDateTime),
			Date:    conflict.Date,
			Time:    conflict.Time,
		}
	case errors.As(err, &declined):
		return http.StatusPaymentRequired, ErrorBody{
			Error:       CodeDeclined,
			Message:     declined.Reason,
			Step:        string(booking.StepPayment),
			DeclineCode: declined.Code,
		}
	default:
		return http.StatusInternalServerError, ErrorBody{Error: CodeInternal, Message: "booking could not be completed"}
	}
}

// DecodeError turns a non-2xx response back into the typed error the
// submitter understands. Statuses worth retrying become NetworkError.
func DecodeError(op string, status int, body ErrorBody) error {
	switch {
	case status == http.StatusBadRequest:
		return &booking.ValidationError{
			Step:   booking.Step(body.Step),
			Field:  body.Field,
			Reason: body.Message,
		}
	case status == http.StatusConflict:
		return &booking.AvailabilityConflictError{Date: body.Date, Time: body.Time, Message: body.Message}
	case status == http.StatusPaymentRequired:
		return &booking.PaymentDeclinedError{Code: body.DeclineCode, Reason: body.Message}
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return fmt.Errorf("%w: %s: %s", booking.ErrNotPermitted, op, describe(body, status))
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests, status >= http.StatusInternalServerError:
		return &booking.NetworkError{Op: op, Status: status, Err: fmt.Errorf("%s", describe(body, status))}
	default:
		return fmt.Errorf("bookingapi: %s: status %d: %s", op, status, describe(body, status))
	}
}

func describe(body ErrorBody, status int) string {
	if body.Message != "" {
		return body.Message
	}
	if body.Error != "" {
		return body.Error
	}
	return http.StatusText(status)
}
