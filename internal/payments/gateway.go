// Package payments charges bookings through a payment provider.
package payments

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidCharge is returned for requests a provider would reject
// outright, before any network call.
var ErrInvalidCharge = errors.New("payments: invalid charge request")

// ChargeRequest is one payment for one booking. IdempotencyKey must be the
// booking's idempotency token so retries never charge twice.
type ChargeRequest struct {
	IdempotencyKey string
	Amount         int64
	Currency       string
	PaymentMethod  string
	Description    string
	ReceiptEmail   string
	Metadata       map[string]string
}

func (r ChargeRequest) validate() error {
	switch {
	case r.IdempotencyKey == "":
		return fmt.Errorf("%w: idempotency key required", ErrInvalidCharge)
	case r.Amount <= 0:
		return fmt.Errorf("%w: amount must be positive", ErrInvalidCharge)
	case r.Currency == "":
		return fmt.Errorf("%w: currency required", ErrInvalidCharge)
	}
	return nil
}

// Charge is a captured payment.
type Charge struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// DeclinedError is a refusal by the provider or card issuer. It is final
// for the payment method used.
type DeclinedError struct {
	Code   string
	Reason string
}

func (e *DeclinedError) Error() string {
	return fmt.Sprintf("payments: declined (%s): %s", e.Code, e.Reason)
}

// Gateway charges a payment method.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*Charge, error)
}
