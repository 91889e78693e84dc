package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBookingAPI struct {
	mu       sync.Mutex
	requests []SubmitRequest
	errs     []error
	started  chan struct{}
	release  chan struct{}
	byToken  map[string]*Confirmation
}

func newFakeBookingAPI(errs ...error) *fakeBookingAPI {
	return &fakeBookingAPI{errs: errs, byToken: map[string]*Confirmation{}}
}

func (f *fakeBookingAPI) SubmitBooking(ctx context.Context, req SubmitRequest) (*Confirmation, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	started, release := f.started, f.release
	f.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if release != nil {
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	if conf, ok := f.byToken[req.IdempotencyToken]; ok {
		return conf, nil
	}
	conf := &Confirmation{
		Reference: "RW-TEST" + string(rune('A'+len(f.byToken))),
		ServiceID: req.Draft.ServiceID,
		Duration:  req.Draft.Duration,
		Date:      req.Draft.Date,
		Time:      req.Draft.Time,
		Guests:    req.Draft.Guests,
		Contact:   req.Draft.Contact,
		StaffID:   req.Draft.StaffID,
		Totals:    req.Totals,
		CreatedAt: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
	f.byToken[req.IdempotencyToken] = conf
	return conf, nil
}

func (f *fakeBookingAPI) GetBookingByReference(ctx context.Context, reference string) (*Confirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, conf := range f.byToken {
		if conf.Reference == reference {
			return conf, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeBookingAPI) calls() []SubmitRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SubmitRequest(nil), f.requests...)
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
	retries  int
}

func (o *recordingObserver) ObserveSubmission(outcome string, seconds float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (o *recordingObserver) ObserveSubmitRetry() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retries++
}

func newTestSubmitter(api BookingAPI) *Submitter {
	s := NewSubmitter(api, nil)
	s.sleep = func(context.Context, time.Duration) error { return nil }
	return s
}

func TestSubmitRejectsIncompleteDraftWithoutCallingAPI(t *testing.T) {
	api := newFakeBookingAPI()
	s := newTestSubmitter(api)
	d := NewDraft(4)

	conf, err := s.Submit(context.Background(), MustFlow(VariantPublic), d, testMenu(t))
	require.Error(t, err)
	assert.Nil(t, conf)
	assert.ErrorIs(t, err, ErrPrecondition)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, StepService, verr.Step)
	assert.Empty(t, api.calls())
}

func TestSubmitRejectsMissingToken(t *testing.T) {
	api := newFakeBookingAPI()
	s := newTestSubmitter(api)
	d := completePublicDraft(t)
	d.IdempotencyToken = ""

	_, err := s.Submit(context.Background(), MustFlow(VariantPublic), d, testMenu(t))
	assert.ErrorIs(t, err, ErrPrecondition)
	assert.Empty(t, api.calls())
}

func TestSubmitRetriesNetworkErrorsWithSameToken(t *testing.T) {
	netErr := &NetworkError{Op: "submit booking", Err: errors.New("connection reset")}
	api := newFakeBookingAPI(netErr, netErr)
	obs := &recordingObserver{}
	s := newTestSubmitter(api).WithObserver(obs)
	d := completePublicDraft(t)

	conf, err := s.Submit(context.Background(), MustFlow(VariantPublic), d, testMenu(t))
	require.NoError(t, err)
	require.NotNil(t, conf)

	calls := api.calls()
	require.Len(t, calls, 3)
	for _, req := range calls {
		assert.Equal(t, d.IdempotencyToken, req.IdempotencyToken)
	}
	assert.Equal(t, int64(25000), calls[0].Totals.GrandTotal)
	assert.Equal(t, 2, obs.retries)
	assert.Equal(t, []string{"confirmed"}, obs.outcomes)
}

func TestSubmitGivesUpAfterMaxAttempts(t *testing.T) {
	netErr := &NetworkError{Op: "submit booking", Status: 503, Err: errors.New("unavailable")}
	api := newFakeBookingAPI(netErr, netErr, netErr, netErr)
	s := newTestSubmitter(api).WithRetryPolicy(RetryPolicy{MaxAttempts: 3})

	_, err := s.Submit(context.Background(), MustFlow(VariantPublic), completePublicDraft(t), testMenu(t))
	var got *NetworkError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, 503, got.Status)
	assert.Len(t, api.calls(), 3)
}

func TestSubmitDoesNotRetryDefiniteFailures(t *testing.T) {
	for name, failure := range map[string]error{
		"declined": &PaymentDeclinedError{Code: "card_declined", Reason: "insufficient funds"},
		"conflict": &AvailabilityConflictError{Date: "2026-03-14", Time: "10:00"},
	} {
		t.Run(name, func(t *testing.T) {
			api := newFakeBookingAPI(failure)
			s := newTestSubmitter(api)
			_, err := s.Submit(context.Background(), MustFlow(VariantPublic), completePublicDraft(t), testMenu(t))
			assert.ErrorIs(t, err, failure)
			assert.Len(t, api.calls(), 1)
			assert.Equal(t, name, Outcome(err))
		})
	}
}

func TestSubmitIgnoresCallerCancellation(t *testing.T) {
	api := newFakeBookingAPI()
	s := newTestSubmitter(api)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	conf, err := s.Submit(ctx, MustFlow(VariantPublic), completePublicDraft(t), testMenu(t))
	require.NoError(t, err)
	assert.NotEmpty(t, conf.Reference)
}

func TestSubmitDoesNotModifyDraft(t *testing.T) {
	api := newFakeBookingAPI()
	s := newTestSubmitter(api)
	d := completePublicDraft(t)
	before := d.Clone()

	_, err := s.Submit(context.Background(), MustFlow(VariantPublic), d, testMenu(t))
	require.NoError(t, err)
	assert.Equal(t, before, d)
}

func TestRetryPolicyDelay(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, p.delay(1))
	assert.Equal(t, 200*time.Millisecond, p.delay(2))
	assert.Equal(t, 300*time.Millisecond, p.delay(3))
	assert.Equal(t, time.Duration(0), RetryPolicy{MaxAttempts: 2, MaxDelay: time.Second}.delay(1))
}
