package bookingapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wizardoma/radiance-wellness/internal/booking"
	httpmiddleware "github.com/wizardoma/radiance-wellness/internal/http/middleware"
	"github.com/wizardoma/radiance-wellness/internal/session"
)

func testRequest() booking.SubmitRequest {
	d := booking.NewDraft(4)
	d.ServiceID = "swedish-massage"
	d.Duration = 60
	return booking.SubmitRequest{Variant: booking.VariantPublic, Draft: d, IdempotencyToken: d.IdempotencyToken}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(srv.URL, nil)
	require.NoError(t, err)
	return client.WithHeader("Authorization", "Bearer test")
}

func TestClientSubmitBooking(t *testing.T) {
	req := testRequest()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/bookings", r.URL.Path)
		assert.Equal(t, req.IdempotencyToken, r.Header.Get(IdempotencyHeader))
		assert.Equal(t, "Bearer test", r.Header.Get("Authorization"))

		var got booking.SubmitRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "swedish-massage", got.Draft.ServiceID)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(booking.Confirmation{Reference: "RW-ABCDEFGH", Guests: 1})
	})

	conf, err := client.SubmitBooking(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "RW-ABCDEFGH", conf.Reference)
}

func TestClientMapsErrorStatuses(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   ErrorBody
		check  func(t *testing.T, err error)
	}{
		{
			name:   "validation",
			status: http.StatusBadRequest,
			body:   ErrorBody{Error: CodeValidation, Message: "phone is required", Step: "details", Field: "phone"},
			check: func(t *testing.T, err error) {
				var verr *booking.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, booking.StepDetails, verr.Step)
				assert.Equal(t, "phone", verr.Field)
			},
		},
		{
			name:   "conflict",
			status: http.StatusConflict,
			body:   ErrorBody{Error: CodeConflict, Date: "2026-03-14", Time: "10:00"},
			check: func(t *testing.T, err error) {
				var conflict *booking.AvailabilityConflictError
				require.ErrorAs(t, err, &conflict)
				assert.Equal(t, "10:00", conflict.Time)
			},
		},
		{
			name:   "declined",
			status: http.StatusPaymentRequired,
			body:   ErrorBody{Error: CodeDeclined, DeclineCode: "insufficient_funds"},
			check: func(t *testing.T, err error) {
				var declined *booking.PaymentDeclinedError
				require.ErrorAs(t, err, &declined)
				assert.Equal(t, "insufficient_funds", declined.Code)
			},
		},
		{
			name:   "server error is retryable",
			status: http.StatusBadGateway,
			body:   ErrorBody{Error: CodeInternal},
			check: func(t *testing.T, err error) {
				var netErr *booking.NetworkError
				require.ErrorAs(t, err, &netErr)
				assert.Equal(t, http.StatusBadGateway, netErr.Status)
			},
		},
		{
			name:   "forbidden is final",
			status: http.StatusForbidden,
			body:   ErrorBody{Error: CodeForbidden},
			check: func(t *testing.T, err error) {
				var netErr *booking.NetworkError
				assert.False(t, errors.As(err, &netErr))
				assert.ErrorIs(t, err, booking.ErrNotPermitted)
				assert.Equal(t, "forbidden", booking.Outcome(err))
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_ = json.NewEncoder(w).Encode(tc.body)
			})
			_, err := client.SubmitBooking(context.Background(), testRequest())
			tc.check(t, err)
		})
	}
}

func TestClientTransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := NewClient(url, nil)
	require.NoError(t, err)
	_, err = client.SubmitBooking(context.Background(), testRequest())
	var netErr *booking.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, "network", booking.Outcome(err))
}

func TestClientGetBookingNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/bookings/RW-MISSING1", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(ErrorBody{Error: CodeNotFound})
	})
	_, err := client.GetBookingByReference(context.Background(), "RW-MISSING1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEncodeErrorRoundTrip(t *testing.T) {
	errs := []error{
		&booking.ValidationError{Step: booking.StepDetails, Field: "email", Reason: "email is required"},
		&booking.AvailabilityConflictError{Date: "2026-03-14", Time: "11:00"},
		&booking.PaymentDeclinedError{Code: "card_declined", Reason: "declined"},
	}
	for _, in := range errs {
		status, body := EncodeError(in)
		out := DecodeError("submit booking", status, body)
		assert.Equal(t, booking.Outcome(in), booking.Outcome(out), in.Error())
	}

	status, _ := EncodeError(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, status)

	_, err := NewClient("not a url", nil)
	assert.Error(t, err)
}

func TestClientForwardsStaffSessionForWalkIn(t *testing.T) {
	const secret = "staff-secret"
	srv := httptest.NewServer(httpmiddleware.Session(httpmiddleware.SessionConfig{StaffSecret: secret}, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := session.FromContext(r.Context())
			if !sess.IsStaff() {
				w.WriteHeader(http.StatusForbidden)
				_ = json.NewEncoder(w).Encode(ErrorBody{Error: CodeForbidden, Message: "walk-in bookings require staff"})
				return
			}
			assert.Equal(t, "staff-7", sess.UserID)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(booking.Confirmation{Reference: "RW-WALKIN01", StaffID: sess.UserID})
		})))
	t.Cleanup(srv.Close)

	req := testRequest()
	req.Variant = booking.VariantWalkIn
	staff := session.WithSession(context.Background(), session.Session{Role: session.RoleStaff, UserID: "staff-7"})

	client, err := NewClient(srv.URL, nil)
	require.NoError(t, err)
	client.WithStaffSecret(secret)
	conf, err := client.SubmitBooking(staff, req)
	require.NoError(t, err)
	assert.Equal(t, "RW-WALKIN01", conf.Reference)

	// Without a staff session the backend refuses and the error is typed.
	_, err = client.SubmitBooking(context.Background(), req)
	assert.ErrorIs(t, err, booking.ErrNotPermitted)

	// Without the shared secret nothing is forwarded.
	bare, err := NewClient(srv.URL, nil)
	require.NoError(t, err)
	_, err = bare.SubmitBooking(staff, req)
	assert.ErrorIs(t, err, booking.ErrNotPermitted)
}

func TestClientForwardsClientSession(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "client-42", r.Header.Get("X-Client-Id"))
		assert.Equal(t, "ada@example.com", r.Header.Get("X-Client-Email"))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(booking.Confirmation{Reference: "RW-CLIENT01"})
	})
	ctx := session.WithSession(context.Background(), session.Session{Role: session.RoleClient, UserID: "client-42", Email: "ada@example.com"})

	req := testRequest()
	req.Variant = booking.VariantPortal
	_, err := client.SubmitBooking(ctx, req)
	require.NoError(t, err)
}
