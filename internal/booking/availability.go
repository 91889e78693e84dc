package booking

import "context"

// Slot is one bookable start time on a date.
type Slot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

// AvailabilityChecker lists the slots of a date for a service. Calls may be
// slow or fail; a failure is not the same as an empty day.
type AvailabilityChecker interface {
	AvailableSlots(ctx context.Context, date, serviceID string) ([]Slot, error)
}

// AvailabilityStatus is the state of the last lookup.
type AvailabilityStatus string

const (
	AvailabilityIdle    AvailabilityStatus = "idle"
	AvailabilityLoading AvailabilityStatus = "loading"
	AvailabilityLoaded  AvailabilityStatus = "loaded"
	AvailabilityUnknown AvailabilityStatus = "unknown"
)

// AvailabilityState is what the wizard knows about a date's slots.
type AvailabilityState struct {
	Date      string             `json:"date,omitempty"`
	ServiceID string             `json:"service_id,omitempty"`
	Status    AvailabilityStatus `json:"status"`
	Slots     []Slot             `json:"slots,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// Bookable reports whether hhmm was reported available for the state's
// date and service.
func (s AvailabilityState) Bookable(date, serviceID, hhmm string) bool {
	if s.Status != AvailabilityLoaded || s.Date != date || s.ServiceID != serviceID {
		return false
	}
	for _, slot := range s.Slots {
		if slot.Time == hhmm {
			return slot.Available
		}
	}
	return false
}

// AvailableCount returns how many slots are open.
func (s AvailabilityState) AvailableCount() int {
	n := 0
	for _, slot := range s.Slots {
		if slot.Available {
			n++
		}
	}
	return n
}
