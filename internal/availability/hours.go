// Package availability computes bookable start times from business hours
// and existing reservations.
package availability

import (
	"fmt"
	"strings"
	"time"
)

// DayHours represents the opening hours for a single day.
// Nil means the spa is closed that day.
type DayHours struct {
	Open  string `json:"open"`  // "09:00" in 24-hour format
	Close string `json:"close"` // "20:00" in 24-hour format
}

// minutes returns open and close as minutes after midnight.
func (h DayHours) minutes() (int, int, error) {
	open, err := time.Parse("15:04", h.Open)
	if err != nil {
		return 0, 0, fmt.Errorf("availability: parse open %q: %w", h.Open, err)
	}
	closing, err := time.Parse("15:04", h.Close)
	if err != nil {
		return 0, 0, fmt.Errorf("availability: parse close %q: %w", h.Close, err)
	}
	o := open.Hour()*60 + open.Minute()
	c := closing.Hour()*60 + closing.Minute()
	if c <= o {
		return 0, 0, fmt.Errorf("availability: close %s not after open %s", h.Close, h.Open)
	}
	return o, c, nil
}

// BusinessHours maps day names to their hours.
type BusinessHours struct {
	Monday    *DayHours `json:"monday,omitempty"`
	Tuesday   *DayHours `json:"tuesday,omitempty"`
	Wednesday *DayHours `json:"wednesday,omitempty"`
	Thursday  *DayHours `json:"thursday,omitempty"`
	Friday    *DayHours `json:"friday,omitempty"`
	Saturday  *DayHours `json:"saturday,omitempty"`
	Sunday    *DayHours `json:"sunday,omitempty"`
}

// Uniform opens every day with the same hours except the closed days.
func Uniform(open, closeAt string, closed ...time.Weekday) BusinessHours {
	var b BusinessHours
	for d := time.Sunday; d <= time.Saturday; d++ {
		b.set(d, &DayHours{Open: open, Close: closeAt})
	}
	for _, d := range closed {
		b.set(d, nil)
	}
	return b
}

// GetHoursForDay returns the hours for a given weekday (0=Sunday, 6=Saturday).
func (b *BusinessHours) GetHoursForDay(weekday time.Weekday) *DayHours {
	switch weekday {
	case time.Sunday:
		return b.Sunday
	case time.Monday:
		return b.Monday
	case time.Tuesday:
		return b.Tuesday
	case time.Wednesday:
		return b.Wednesday
	case time.Thursday:
		return b.Thursday
	case time.Friday:
		return b.Friday
	case time.Saturday:
		return b.Saturday
	default:
		return nil
	}
}

func (b *BusinessHours) set(weekday time.Weekday, h *DayHours) {
	switch weekday {
	case time.Sunday:
		b.Sunday = h
	case time.Monday:
		b.Monday = h
	case time.Tuesday:
		b.Tuesday = h
	case time.Wednesday:
		b.Wednesday = h
	case time.Thursday:
		b.Thursday = h
	case time.Friday:
		b.Friday = h
	case time.Saturday:
		b.Saturday = h
	}
}

// Validate checks every configured day parses.
func (b *BusinessHours) Validate() error {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if h := b.GetHoursForDay(d); h != nil {
			if _, _, err := h.minutes(); err != nil {
				return fmt.Errorf("availability: %s: %w", d, err)
			}
		}
	}
	return nil
}

// ParseWeekdays parses day names such as "sunday" or "Sun".
func ParseWeekdays(names []string) ([]time.Weekday, error) {
	out := make([]time.Weekday, 0, len(names))
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		found := false
		for d := time.Sunday; d <= time.Saturday; d++ {
			full := strings.ToLower(d.String())
			if key == full || (len(key) >= 3 && strings.HasPrefix(full, key)) {
				out = append(out, d)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("availability: unknown weekday %q", name)
		}
	}
	return out, nil
}
