// Package bookings is the server side of booking submission: it validates,
// charges and stores bookings exactly once per idempotency key.
package bookings

import (
	"encoding/base32"
	"time"

	"github.com/google/uuid"

	"github.com/wizardoma/radiance-wellness/internal/booking"
)

// StatusConfirmed is the only status a stored booking has today.
const StatusConfirmed = "confirmed"

// Record is a stored booking.
type Record struct {
	ID             uuid.UUID
	Reference      string
	IdempotencyKey string
	Variant        booking.Variant
	ServiceID      string
	Duration       int
	Date           string
	Time           string
	Minutes        int
	Guests         int
	AddOnIDs       []string
	Notes          string
	Contact        booking.Contact
	StaffID        string
	Items          []booking.LineItem
	Totals         booking.Totals
	AmountCharged  int64
	Currency       string
	PaymentRef     string
	Status         string
	CreatedAt      time.Time
}

// Confirmation renders the record for the booking flow.
func (r *Record) Confirmation() *booking.Confirmation {
	return &booking.Confirmation{
		Reference:     r.Reference,
		ServiceID:     r.ServiceID,
		Duration:      r.Duration,
		Date:          r.Date,
		Time:          r.Time,
		Guests:        r.Guests,
		Contact:       r.Contact,
		StaffID:       r.StaffID,
		Items:         append([]booking.LineItem(nil), r.Items...),
		Totals:        r.Totals,
		AmountCharged: r.AmountCharged,
		PaymentRef:    r.PaymentRef,
		CreatedAt:     r.CreatedAt,
	}
}

var referenceEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewReference returns "RW-" followed by 8 base32 characters taken from the
// random bits of a v4 uuid.
func NewReference() string {
	id := uuid.New()
	return "RW-" + referenceEncoding.EncodeToString(id[:5])
}
