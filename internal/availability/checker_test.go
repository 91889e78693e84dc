package availability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wizardoma/radiance-wellness/internal/booking"
	"github.com/wizardoma/radiance-wellness/internal/catalog"
)

type stubReservations struct {
	byDate map[string][]Reservation
	err    error
}

func (s *stubReservations) ListReservations(ctx context.Context, date string) ([]Reservation, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byDate[date], nil
}

type countingObserver struct{ statuses []string }

func (o *countingObserver) ObserveAvailabilityLookup(status string) {
	o.statuses = append(o.statuses, status)
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func newTestChecker(t *testing.T, res ReservationSource, rooms int, now time.Time) *ScheduleChecker {
	t.Helper()
	provider, err := catalog.NewStaticProvider(catalog.DefaultMenu())
	require.NoError(t, err)
	c, err := NewScheduleChecker(provider, res, Config{
		Hours:         Uniform("09:00", "12:00", time.Sunday),
		Interval:      30 * time.Minute,
		ParallelRooms: rooms,
		Location:      time.UTC,
	}, nil)
	require.NoError(t, err)
	return c.WithClock(fixedClock(now))
}

func availableTimes(slots []booking.Slot) []string {
	var out []string
	for _, s := range slots {
		if s.Available {
			out = append(out, s.Time)
		}
	}
	return out
}

var dayBefore = time.Date(2026, 3, 13, 8, 0, 0, 0, time.UTC)

func TestAvailableSlotsRespectsHoursAndReservations(t *testing.T) {
	res := &stubReservations{byDate: map[string][]Reservation{
		"2026-03-14": {{Time: "09:00", Minutes: 60}},
	}}
	c := newTestChecker(t, res, 1, dayBefore)

	slots, err := c.AvailableSlots(context.Background(), "2026-03-14", "swedish-massage")
	require.NoError(t, err)
	require.Len(t, slots, 6)
	assert.Equal(t, "09:00", slots[0].Time)
	assert.Equal(t, "11:30", slots[5].Time)
	assert.Equal(t, []string{"10:00", "10:30"}, availableTimes(slots))
}

func TestAvailableSlotsParallelRooms(t *testing.T) {
	res := &stubReservations{byDate: map[string][]Reservation{
		"2026-03-14": {{Time: "09:00", Minutes: 60}},
	}}
	c := newTestChecker(t, res, 2, dayBefore)

	slots, err := c.AvailableSlots(context.Background(), "2026-03-14", "swedish-massage")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "09:30", "10:00", "10:30"}, availableTimes(slots))
}

func TestAvailableSlotsClosedDayIsEmptyNotError(t *testing.T) {
	c := newTestChecker(t, nil, 1, dayBefore)
	slots, err := c.AvailableSlots(context.Background(), "2026-03-15", "swedish-massage")
	require.NoError(t, err)
	assert.NotNil(t, slots)
	assert.Empty(t, slots)
}

func TestAvailableSlotsHidesPast(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 15, 0, 0, time.UTC)
	c := newTestChecker(t, nil, 1, now)
	slots, err := c.AvailableSlots(context.Background(), "2026-03-14", "swedish-massage")
	require.NoError(t, err)
	assert.Equal(t, []string{"10:30"}, availableTimes(slots))
}

func TestAvailableSlotsErrors(t *testing.T) {
	obs := &countingObserver{}
	c := newTestChecker(t, &stubReservations{err: errors.New("db down")}, 1, dayBefore)
	c.WithObserver(obs)

	_, err := c.AvailableSlots(context.Background(), "2026-03-14", "hot-yoga")
	assert.ErrorIs(t, err, catalog.ErrServiceNotFound)

	_, err = c.AvailableSlots(context.Background(), "2026-03-14", "swedish-massage")
	assert.ErrorContains(t, err, "db down")

	_, err = c.AvailableSlots(context.Background(), "14-03-2026", "swedish-massage")
	assert.Error(t, err)

	assert.Equal(t, []string{"error", "error", "error"}, obs.statuses)
}

func TestIsAvailableArbitraryStart(t *testing.T) {
	res := &stubReservations{byDate: map[string][]Reservation{
		"2026-03-14": {{Time: "09:00", Minutes: 60}, {Time: "11:00", Minutes: 30}},
	}}
	now := time.Date(2026, 3, 14, 10, 10, 30, 0, time.UTC)
	c := newTestChecker(t, res, 1, now)
	ctx := context.Background()

	ok, err := c.IsAvailable(ctx, "2026-03-14", "10:10", 45)
	require.NoError(t, err)
	assert.True(t, ok, "walk-in starting now fits before the 11:00 booking")

	ok, err = c.IsAvailable(ctx, "2026-03-14", "10:10", 60)
	require.NoError(t, err)
	assert.False(t, ok, "overlaps the 11:00 booking")

	ok, err = c.IsAvailable(ctx, "2026-03-14", "09:30", 30)
	require.NoError(t, err)
	assert.False(t, ok, "in the past")

	ok, err = c.IsAvailable(ctx, "2026-03-14", "11:45", 30)
	require.NoError(t, err)
	assert.False(t, ok, "runs past closing")

	ok, err = c.IsAvailable(ctx, "2026-03-15", "10:00", 30)
	require.NoError(t, err)
	assert.False(t, ok, "closed on sundays")
}

func TestSlotsFollowWallClockOnDSTChange(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	provider, err := catalog.NewStaticProvider(catalog.DefaultMenu())
	require.NoError(t, err)
	c, err := NewScheduleChecker(provider, &stubReservations{}, Config{
		Hours:         Uniform("09:00", "12:00"),
		Interval:      30 * time.Minute,
		ParallelRooms: 1,
		Location:      loc,
	}, nil)
	require.NoError(t, err)
	c = c.WithClock(fixedClock(time.Date(2026, 3, 7, 8, 0, 0, 0, loc)))

	// Clocks spring forward on 2026-03-08 and fall back on 2026-11-01.
	for _, date := range []string{"2026-03-08", "2026-11-01"} {
		t.Run(date, func(t *testing.T) {
			slots, err := c.AvailableSlots(context.Background(), date, "swedish-massage")
			require.NoError(t, err)
			require.Len(t, slots, 6)
			assert.Equal(t, "09:00", slots[0].Time)
			assert.Equal(t, "11:30", slots[5].Time)
			assert.Equal(t, []string{"09:00", "09:30", "10:00", "10:30"}, availableTimes(slots))

			for _, slot := range slots {
				ok, err := c.IsAvailable(context.Background(), date, slot.Time, 90)
				require.NoError(t, err)
				assert.Equal(t, slot.Available, ok, "slot %s", slot.Time)
			}
		})
	}
}

func TestNewScheduleCheckerRejectsBadHours(t *testing.T) {
	provider, err := catalog.NewStaticProvider(catalog.DefaultMenu())
	require.NoError(t, err)
	_, err = NewScheduleChecker(provider, nil, Config{Hours: Uniform("18:00", "09:00")}, nil)
	assert.Error(t, err)
	_, err = NewScheduleChecker(nil, nil, DefaultConfig(), nil)
	assert.Error(t, err)
}

func TestHandlerSlots(t *testing.T) {
	c := newTestChecker(t, nil, 1, dayBefore)
	h := NewHandler(c, nil)

	cases := []struct {
		name   string
		query  string
		status int
	}{
		{"ok", "?date=2026-03-14&service=swedish-massage", http.StatusOK},
		{"missing service", "?date=2026-03-14", http.StatusBadRequest},
		{"bad date", "?date=03/14/2026&service=swedish-massage", http.StatusBadRequest},
		{"unknown service", "?date=2026-03-14&service=hot-yoga", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/slots"+tc.query, nil)
			h.Routes().ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
}
