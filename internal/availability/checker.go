package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wizardoma/radiance-wellness/internal/booking"
	"github.com/wizardoma/radiance-wellness/internal/catalog"
	"github.com/wizardoma/radiance-wellness/pkg/logging"
)

var availabilityTracer = otel.Tracer("radiance.internal.availability")

// walkInGrace lets a start time slightly in the past through IsAvailable,
// so "now" stays bookable while the request travels.
const walkInGrace = 5 * time.Minute

// Reservation is an existing booking occupying a room on a date.
type Reservation struct {
	Time    string `json:"time"` // "HH:MM"
	Minutes int    `json:"minutes"`
}

// ReservationSource lists the reservations of a date.
type ReservationSource interface {
	ListReservations(ctx context.Context, date string) ([]Reservation, error)
}

// Observer receives lookup outcomes ("loaded", "error").
type Observer interface {
	ObserveAvailabilityLookup(status string)
}

// Config shapes the schedule.
type Config struct {
	Hours         BusinessHours
	Interval      time.Duration
	ParallelRooms int
	Location      *time.Location
}

// DefaultConfig opens 09:00-20:00 every day with 30 minute slots and one
// room.
func DefaultConfig() Config {
	return Config{
		Hours:         Uniform("09:00", "20:00"),
		Interval:      30 * time.Minute,
		ParallelRooms: 1,
		Location:      time.UTC,
	}
}

// ScheduleChecker implements booking.AvailabilityChecker from business
// hours and existing reservations.
type ScheduleChecker struct {
	catalog      catalog.Provider
	reservations ReservationSource
	cfg          Config
	now          func() time.Time
	logger       *logging.Logger
	observer     Observer
}

// NewScheduleChecker validates cfg and builds a checker. A nil reservation
// source means an empty book.
func NewScheduleChecker(provider catalog.Provider, reservations ReservationSource, cfg Config, logger *logging.Logger) (*ScheduleChecker, error) {
	if provider == nil {
		return nil, errors.New("availability: catalog provider required")
	}
	if err := cfg.Hours.Validate(); err != nil {
		return nil, err
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Minute
	}
	if cfg.ParallelRooms < 1 {
		cfg.ParallelRooms = 1
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ScheduleChecker{
		catalog:      provider,
		reservations: reservations,
		cfg:          cfg,
		now:          time.Now,
		logger:       logger,
	}, nil
}

// WithClock overrides the clock used to hide past slots.
func (c *ScheduleChecker) WithClock(now func() time.Time) *ScheduleChecker {
	if now != nil {
		c.now = now
	}
	return c
}

// WithObserver attaches lookup metrics.
func (c *ScheduleChecker) WithObserver(o Observer) *ScheduleChecker {
	c.observer = o
	return c
}

// Location returns the schedule's time zone.
func (c *ScheduleChecker) Location() *time.Location { return c.cfg.Location }

// AvailableSlots lists every interval start within business hours for the
// date. The service's longest duration must fit before closing and not
// overlap more reservations than there are rooms.
func (c *ScheduleChecker) AvailableSlots(ctx context.Context, date, serviceID string) ([]booking.Slot, error) {
	ctx, span := availabilityTracer.Start(ctx, "availability.slots")
	defer span.End()
	span.SetAttributes(
		attribute.String("radiance.date", date),
		attribute.String("radiance.service_id", serviceID),
	)

	slots, err := c.availableSlots(ctx, date, serviceID)
	if err != nil {
		span.RecordError(err)
		c.observe("error")
		return nil, err
	}
	c.observe("loaded")
	return slots, nil
}

func (c *ScheduleChecker) availableSlots(ctx context.Context, date, serviceID string) ([]booking.Slot, error) {
	svc, err := c.catalog.GetServiceByID(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("availability: service %s: %w", serviceID, err)
	}
	day, err := time.ParseInLocation(booking.DateLayout, date, c.cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("availability: parse date %q: %w", date, err)
	}
	hours := c.cfg.Hours.GetHoursForDay(day.Weekday())
	if hours == nil {
		return []booking.Slot{}, nil
	}
	openMin, closeMin, err := hours.minutes()
	if err != nil {
		return nil, err
	}
	booked, err := c.load(ctx, date)
	if err != nil {
		return nil, err
	}

	duration := svc.LongestDuration()
	step := int(c.cfg.Interval / time.Minute)
	if step < 1 {
		step = 1
	}
	now := c.now().In(c.cfg.Location)

	slots := make([]booking.Slot, 0, (closeMin-openMin)/step+1)
	for start := openMin; start < closeMin; start += step {
		at := wallClock(day, start, c.cfg.Location)
		slots = append(slots, booking.Slot{
			Time:      fmt.Sprintf("%02d:%02d", start/60, start%60),
			Available: start+duration <= closeMin && !at.Before(now) && c.free(booked, start, duration),
		})
	}
	return slots, nil
}

// IsAvailable checks an arbitrary start time for the given chair minutes.
// Unlike AvailableSlots it does not require the time to sit on an interval
// boundary, which is what walk-ins need.
func (c *ScheduleChecker) IsAvailable(ctx context.Context, date, hhmm string, minutes int) (bool, error) {
	ctx, span := availabilityTracer.Start(ctx, "availability.verify")
	defer span.End()
	span.SetAttributes(
		attribute.String("radiance.date", date),
		attribute.String("radiance.time", hhmm),
		attribute.Int("radiance.minutes", minutes),
	)

	day, err := time.ParseInLocation(booking.DateLayout, date, c.cfg.Location)
	if err != nil {
		return false, fmt.Errorf("availability: parse date %q: %w", date, err)
	}
	clock, err := time.Parse(booking.TimeLayout, hhmm)
	if err != nil {
		return false, fmt.Errorf("availability: parse time %q: %w", hhmm, err)
	}
	hours := c.cfg.Hours.GetHoursForDay(day.Weekday())
	if hours == nil {
		return false, nil
	}
	openMin, closeMin, err := hours.minutes()
	if err != nil {
		return false, err
	}
	start := clock.Hour()*60 + clock.Minute()
	at := wallClock(day, start, c.cfg.Location)
	if start < openMin || start+minutes > closeMin {
		return false, nil
	}
	if at.Add(walkInGrace).Before(c.now()) {
		return false, nil
	}
	booked, err := c.load(ctx, date)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	return c.free(booked, start, minutes), nil
}

// wallClock returns the instant the clocks in loc show minute on day.
// Adding minutes to midnight drifts by an hour on DST change days.
func wallClock(day time.Time, minute int, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minute/60, minute%60, 0, 0, loc)
}

type interval struct{ start, end int }

func (c *ScheduleChecker) load(ctx context.Context, date string) ([]interval, error) {
	if c.reservations == nil {
		return nil, nil
	}
	rs, err := c.reservations.ListReservations(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("availability: list reservations: %w", err)
	}
	out := make([]interval, 0, len(rs))
	for _, r := range rs {
		t, err := time.Parse(booking.TimeLayout, r.Time)
		if err != nil {
			c.logger.Warn("skipping reservation with bad time", "date", date, "time", r.Time)
			continue
		}
		start := t.Hour()*60 + t.Minute()
		out = append(out, interval{start: start, end: start + r.Minutes})
	}
	return out, nil
}

// free reports whether fewer than ParallelRooms reservations overlap
// [start, start+minutes).
func (c *ScheduleChecker) free(booked []interval, start, minutes int) bool {
	end := start + minutes
	overlapping := 0
	for _, b := range booked {
		if b.start < end && start < b.end {
			overlapping++
		}
	}
	return overlapping < c.cfg.ParallelRooms
}

func (c *ScheduleChecker) observe(status string) {
	if c.observer != nil {
		c.observer.ObserveAvailabilityLookup(status)
	}
}
