package booking

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wizardoma/radiance-wellness/internal/catalog"
)

const (
	// DateLayout is the ISO calendar date used for Draft.Date.
	DateLayout = "2006-01-02"
	// TimeLayout is the wall clock format used for Draft.Time and slots.
	TimeLayout = "15:04"

	// DefaultMaxGuests applies when no cap is configured.
	DefaultMaxGuests = 4
)

// Contact is the guest's contact information.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Draft is the in-progress selection of one wizard session. It is owned by
// a single session and never persisted.
type Draft struct {
	ServiceID        string   `json:"service_id,omitempty"`
	Duration         int      `json:"duration,omitempty"`
	Date             string   `json:"date,omitempty"`
	Time             string   `json:"time,omitempty"`
	Guests           int      `json:"guests"`
	AddOnIDs         []string `json:"addon_ids,omitempty"`
	Notes            string   `json:"notes,omitempty"`
	Contact          Contact  `json:"contact"`
	PaymentMethod    string   `json:"payment_method,omitempty"`
	StaffID          string   `json:"staff_id,omitempty"`
	IdempotencyToken string   `json:"idempotency_token"`

	maxGuests int
}

// NewDraft returns an empty draft with a fresh idempotency token.
func NewDraft(maxGuests int) Draft {
	if maxGuests < 1 {
		maxGuests = DefaultMaxGuests
	}
	return Draft{
		Guests:           1,
		IdempotencyToken: uuid.NewString(),
		maxGuests:        maxGuests,
	}
}

// MaxGuests returns the guest cap of the draft.
func (d *Draft) MaxGuests() int {
	if d.maxGuests < 1 {
		return DefaultMaxGuests
	}
	return d.maxGuests
}

// SelectService switches the draft to svc. Add-ons are service scoped, so
// they are cleared, and the duration resets to the first one offered.
func (d *Draft) SelectService(svc catalog.Service) {
	d.ServiceID = svc.ID
	d.Duration = svc.FirstDuration()
	d.AddOnIDs = nil
}

// SelectDuration sets the duration; it must be offered by svc, which must be
// the selected service.
func (d *Draft) SelectDuration(svc catalog.Service, minutes int) error {
	if d.ServiceID == "" || d.ServiceID != svc.ID {
		return &ValidationError{Step: StepService, Field: "service", Reason: "select a service first"}
	}
	if !svc.OffersDuration(minutes) {
		return &ValidationError{Step: StepService, Field: "duration", Reason: "duration not offered for this service"}
	}
	d.Duration = minutes
	return nil
}

// SetDate sets the calendar date. Changing the date clears the time.
func (d *Draft) SetDate(date string) error {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return &ValidationError{Step: StepDateTime, Field: "date", Reason: "expected YYYY-MM-DD"}
	}
	if d.Date != date {
		d.Time = ""
	}
	d.Date = date
	return nil
}

// SetTime sets the wall clock time.
func (d *Draft) SetTime(hhmm string) error {
	if _, err := time.Parse(TimeLayout, hhmm); err != nil {
		return &ValidationError{Step: StepDateTime, Field: "time", Reason: "expected HH:MM"}
	}
	d.Time = hhmm
	return nil
}

// SetGuests clamps n into [1, max] and returns the applied count.
func (d *Draft) SetGuests(n int) int {
	switch {
	case n < 1:
		n = 1
	case n > d.MaxGuests():
		n = d.MaxGuests()
	}
	d.Guests = n
	return n
}

// ToggleAddOn adds or removes an add-on and reports whether it is now
// selected. Only add-ons compatible with svc are accepted.
func (d *Draft) ToggleAddOn(svc catalog.Service, addOnID string) (bool, error) {
	if d.ServiceID == "" || d.ServiceID != svc.ID {
		return false, &ValidationError{Step: StepAddOns, Field: "service", Reason: "select a service first"}
	}
	for i, id := range d.AddOnIDs {
		if id == addOnID {
			d.AddOnIDs = append(d.AddOnIDs[:i:i], d.AddOnIDs[i+1:]...)
			return false, nil
		}
	}
	if !svc.SupportsAddOn(addOnID) {
		return false, &ValidationError{Step: StepAddOns, Field: "addon", Reason: "add-on not available for this service"}
	}
	d.AddOnIDs = append(d.AddOnIDs, addOnID)
	return true, nil
}

// HasAddOn reports whether the add-on is selected.
func (d *Draft) HasAddOn(addOnID string) bool {
	for _, id := range d.AddOnIDs {
		if id == addOnID {
			return true
		}
	}
	return false
}

// SetContact stores trimmed contact details.
func (d *Draft) SetContact(c Contact) {
	d.Contact = Contact{
		Name:  strings.TrimSpace(c.Name),
		Email: strings.TrimSpace(c.Email),
		Phone: strings.TrimSpace(c.Phone),
	}
}

// Reset discards the selection and rotates the idempotency token.
func (d *Draft) Reset() {
	*d = NewDraft(d.maxGuests)
}

// RotateToken issues a fresh idempotency token, keeping the selection.
func (d *Draft) RotateToken() {
	d.IdempotencyToken = uuid.NewString()
}

// Clone returns a deep copy safe to hand to another goroutine.
func (d Draft) Clone() Draft {
	out := d
	out.AddOnIDs = append([]string(nil), d.AddOnIDs...)
	return out
}

// WithMaxGuests returns the draft with a guest cap, e.g. after decoding.
func (d Draft) WithMaxGuests(maxGuests int) Draft {
	d.maxGuests = maxGuests
	return d
}

// ScheduledAt resolves Date and Time in loc.
func (d Draft) ScheduledAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(DateLayout+" "+TimeLayout, d.Date+" "+d.Time, loc)
}
