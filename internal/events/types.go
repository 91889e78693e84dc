package events

import "time"

// TypeBookingConfirmed is emitted once per booking record.
const TypeBookingConfirmed = "booking.confirmed.v1"

// BookingConfirmedV1 is the payload of TypeBookingConfirmed.
type BookingConfirmedV1 struct {
	Reference     string    `json:"reference"`
	Variant       string    `json:"variant"`
	ServiceID     string    `json:"service_id"`
	ServiceName   string    `json:"service_name"`
	Duration      int       `json:"duration"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	Guests        int       `json:"guests"`
	AddOnIDs      []string  `json:"addon_ids,omitempty"`
	ContactName   string    `json:"contact_name"`
	ContactEmail  string    `json:"contact_email,omitempty"`
	ContactPhone  string    `json:"contact_phone"`
	StaffID       string    `json:"staff_id,omitempty"`
	GrandTotal    int64     `json:"grand_total"`
	AmountCharged int64     `json:"amount_charged"`
	Currency      string    `json:"currency"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
}

func (BookingConfirmedV1) EventType() string { return TypeBookingConfirmed }
