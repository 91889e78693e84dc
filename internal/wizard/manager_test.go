package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wizardoma/radiance-wellness/internal/booking"
	"github.com/wizardoma/radiance-wellness/internal/catalog"
	"github.com/wizardoma/radiance-wellness/internal/session"
)

type stubAPI struct {
	mu      sync.Mutex
	calls   int
	err     error
	lastReq booking.SubmitRequest
}

func (a *stubAPI) SubmitBooking(ctx context.Context, req booking.SubmitRequest) (*booking.Confirmation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.lastReq = req
	if a.err != nil {
		return nil, a.err
	}
	return &booking.Confirmation{
		Reference: fmt.Sprintf("RW-TEST%04d", a.calls),
		ServiceID: req.Draft.ServiceID,
		Date:      req.Draft.Date,
		Time:      req.Draft.Time,
		Guests:    req.Draft.Guests,
		Contact:   req.Draft.Contact,
		Totals:    req.Totals,
	}, nil
}

func (a *stubAPI) GetBookingByReference(ctx context.Context, reference string) (*booking.Confirmation, error) {
	return nil, errors.New("not implemented")
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestManager(t *testing.T, api booking.BookingAPI, store ConfirmationStore) (*Manager, *fixedClock) {
	t.Helper()
	provider, err := catalog.NewStaticProvider(catalog.DefaultMenu())
	require.NoError(t, err)
	clock := &fixedClock{now: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)}
	m, err := NewManager(Config{
		Catalog:       provider,
		Submitter:     booking.NewSubmitter(api, nil),
		Confirmations: store,
		MaxGuests:     4,
		IdleTTL:       10 * time.Minute,
	})
	require.NoError(t, err)
	return m.WithClock(clock.Now), clock
}

var (
	guest  = session.Guest()
	client = session.Session{Role: session.RoleClient, UserID: "client-1", Name: "Ada Lovelace", Email: "ada@example.com", Phone: "+15550100"}
	staff  = session.Session{Role: session.RoleStaff, UserID: "staff-7", Name: "Grace"}
)

func TestStartChecksRoles(t *testing.T) {
	m, _ := newTestManager(t, &stubAPI{}, nil)
	ctx := context.Background()

	_, err := m.Start(ctx, booking.VariantWalkIn, guest)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = m.Start(ctx, booking.VariantPortal, guest)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = m.Start(ctx, "kiosk", guest)
	assert.Error(t, err)

	wz, err := m.Start(ctx, booking.VariantWalkIn, staff)
	require.NoError(t, err)
	assert.Equal(t, booking.StepCustomer, wz.Step())
	assert.Equal(t, 1, m.Len())
}

func TestStartPortalPrefillsContact(t *testing.T) {
	m, _ := newTestManager(t, &stubAPI{}, nil)
	wz, err := m.Start(context.Background(), booking.VariantPortal, client)
	require.NoError(t, err)
	assert.Equal(t, booking.Contact{Name: "Ada Lovelace", Email: "ada@example.com", Phone: "+15550100"}, wz.Draft().Contact)
}

func TestGetEnforcesOwnership(t *testing.T) {
	m, _ := newTestManager(t, &stubAPI{}, nil)
	wz, err := m.Start(context.Background(), booking.VariantPortal, client)
	require.NoError(t, err)

	_, err = m.Get(wz.SessionID(), guest)
	assert.ErrorIs(t, err, ErrForbidden)
	other := client
	other.UserID = "client-2"
	_, err = m.Get(wz.SessionID(), other)
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := m.Get(wz.SessionID(), client)
	require.NoError(t, err)
	assert.Same(t, wz, got)

	_, err = m.Get("missing", client)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEndForgetsWizard(t *testing.T) {
	m, _ := newTestManager(t, &stubAPI{}, nil)
	wz, err := m.Start(context.Background(), booking.VariantPublic, guest)
	require.NoError(t, err)
	require.NoError(t, wz.SelectService("swedish-massage"))

	require.NoError(t, m.End(wz.SessionID(), guest))
	assert.Empty(t, wz.Draft().ServiceID, "ending cancels the draft")
	_, err = m.Get(wz.SessionID(), guest)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.End(wz.SessionID(), guest), ErrNotFound)
}

func TestSweepExpiresIdleWizards(t *testing.T) {
	m, clock := newTestManager(t, &stubAPI{}, nil)
	ctx := context.Background()
	stale, err := m.Start(ctx, booking.VariantPublic, guest)
	require.NoError(t, err)
	clock.Advance(6 * time.Minute)
	fresh, err := m.Start(ctx, booking.VariantPublic, guest)
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	assert.Equal(t, 1, m.Sweep())
	_, err = m.Get(stale.SessionID(), guest)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Get(fresh.SessionID(), guest)
	assert.NoError(t, err, "touching a wizard keeps it alive")
}

func completeWizard(t *testing.T, wz *booking.Wizard) {
	t.Helper()
	require.NoError(t, wz.SelectService("swedish-massage"))
	require.NoError(t, wz.SetDateTime("2026-03-14", "10:00"))
	require.NoError(t, wz.SetContact(booking.Contact{Name: "Ada Lovelace", Email: "ada@example.com", Phone: "+15550100"}))
	require.NoError(t, wz.SetPaymentMethod("pm_card_visa"))
}

func TestConfirmationSurvivesEnd(t *testing.T) {
	m, _ := newTestManager(t, &stubAPI{}, nil)
	ctx := context.Background()
	wz, err := m.Start(ctx, booking.VariantPublic, guest)
	require.NoError(t, err)
	completeWizard(t, wz)

	conf, err := wz.Submit(ctx)
	require.NoError(t, err)
	require.NoError(t, m.End(wz.SessionID(), guest))

	recorded, err := m.Confirmation(ctx, wz.SessionID())
	require.NoError(t, err)
	assert.Equal(t, conf.Reference, recorded.Reference)

	_, err = m.Confirmation(ctx, "never-started")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryConfirmationsExpire(t *testing.T) {
	m, clock := newTestManager(t, &stubAPI{}, nil)
	ctx := context.Background()
	wz, err := m.Start(ctx, booking.VariantPublic, guest)
	require.NoError(t, err)
	completeWizard(t, wz)
	_, err = wz.Submit(ctx)
	require.NoError(t, err)

	clock.Advance(23 * time.Hour)
	_, err = m.Confirmation(ctx, wz.SessionID())
	require.NoError(t, err, "still within the default 24h")

	clock.Advance(2 * time.Hour)
	_, err = m.Confirmation(ctx, wz.SessionID())
	assert.ErrorIs(t, err, ErrNotFound)

	store, ok := m.cfg.Confirmations.(*MemoryConfirmationStore)
	require.True(t, ok)
	m.Sweep()
	assert.Empty(t, store.confs, "sweep prunes expired confirmations")
}

func TestWalkInSubmitUsesManagerClock(t *testing.T) {
	api := &stubAPI{}
	m, _ := newTestManager(t, api, nil)
	ctx := context.Background()
	wz, err := m.Start(ctx, booking.VariantWalkIn, staff)
	require.NoError(t, err)
	require.NoError(t, wz.SetContact(booking.Contact{Name: "Walk In", Phone: "+15550111"}))
	require.NoError(t, wz.SelectService("body-scrub"))
	require.NoError(t, wz.AssignStaff("staff-7"))

	_, err = wz.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-14", api.lastReq.Draft.Date)
	assert.Equal(t, "09:30", api.lastReq.Draft.Time)
}

func TestRedisConfirmationStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	store := NewRedisConfirmationStore(rdb, time.Hour)
	ctx := context.Background()

	_, err = store.Load(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrNotFound)

	conf := &booking.Confirmation{Reference: "RW-ABCDEFGH", Guests: 2, AmountCharged: 50000}
	require.NoError(t, store.Save(ctx, "sess-1", conf))
	assert.True(t, mr.Exists(confirmationKeyPrefix+"sess-1"))
	assert.Equal(t, time.Hour, mr.TTL(confirmationKeyPrefix+"sess-1"))

	got, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, conf.Reference, got.Reference)
	assert.Equal(t, int64(50000), got.AmountCharged)
}
