package bookings

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wizardoma/radiance-wellness/internal/booking"
	"github.com/wizardoma/radiance-wellness/internal/bookingapi"
	"github.com/wizardoma/radiance-wellness/internal/session"
)

func postBooking(t *testing.T, h http.Handler, req booking.SubmitRequest, key string, sess *session.Session) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	httpReq := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	if key != "" {
		httpReq.Header.Set(bookingapi.IdempotencyHeader, key)
	}
	if sess != nil {
		httpReq = httpReq.WithContext(session.WithSession(httpReq.Context(), *sess))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httpReq)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) bookingapi.ErrorBody {
	t.Helper()
	var body bookingapi.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandlerCreateAndReplay(t *testing.T) {
	env := newTestEnv(t)
	h := NewHandler(env.svc, nil).Routes()
	req := publicRequest(t)

	rec := postBooking(t, h, req, req.IdempotencyToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created booking.Confirmation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.Reference)

	rec = postBooking(t, h, req, req.IdempotencyToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var replayed booking.Confirmation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &replayed))
	assert.Equal(t, created.Reference, replayed.Reference)

	getRec := httptest.NewRecorder()
	h.ServeHTTP(getRec, httptest.NewRequest(http.MethodGet, "/"+created.Reference, nil))
	assert.Equal(t, http.StatusOK, getRec.Code)

	getRec = httptest.NewRecorder()
	h.ServeHTTP(getRec, httptest.NewRequest(http.MethodGet, "/RW-MISSING1", nil))
	assert.Equal(t, http.StatusNotFound, getRec.Code)
	assert.Equal(t, bookingapi.CodeNotFound, decodeError(t, getRec).Error)
}

func TestHandlerIdempotencyHeader(t *testing.T) {
	env := newTestEnv(t)
	h := NewHandler(env.svc, nil).Routes()
	req := publicRequest(t)

	rec := postBooking(t, h, req, "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "idempotency_token", decodeError(t, rec).Field)

	rec = postBooking(t, h, req, "another-key", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, env.repo.Len())
}

func TestHandlerErrorMapping(t *testing.T) {
	t.Run("validation", func(t *testing.T) {
		env := newTestEnv(t)
		req := publicRequest(t)
		req.Draft.Contact.Phone = ""
		rec := postBooking(t, NewHandler(env.svc, nil).Routes(), req, req.IdempotencyToken, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, bookingapi.CodeValidation, body.Error)
		assert.Equal(t, string(booking.StepDetails), body.Step)
		assert.Equal(t, "phone", body.Field)
	})
	t.Run("conflict", func(t *testing.T) {
		env := newTestEnv(t)
		env.slots.open = false
		req := publicRequest(t)
		rec := postBooking(t, NewHandler(env.svc, nil).Routes(), req, req.IdempotencyToken, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, bookingapi.CodeConflict, body.Error)
		assert.Equal(t, "10:00", body.Time)
	})
	t.Run("declined", func(t *testing.T) {
		env := newTestEnv(t)
		req := publicRequest(t)
		req.Draft.PaymentMethod = "pm_card_expired"
		rec := postBooking(t, NewHandler(env.svc, nil).Routes(), req, req.IdempotencyToken, nil)
		assert.Equal(t, http.StatusPaymentRequired, rec.Code)
		assert.Equal(t, "expired_card", decodeError(t, rec).DeclineCode)
	})
}

func TestHandlerWalkInRequiresStaff(t *testing.T) {
	env := newTestEnv(t)
	h := NewHandler(env.svc, nil).Routes()
	req := publicRequest(t)
	req.Variant = booking.VariantWalkIn
	req.Draft.StaffID = "staff-7"

	rec := postBooking(t, h, req, req.IdempotencyToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	staff := session.Session{Role: session.RoleStaff, UserID: "staff-7"}
	rec = postBooking(t, h, req, req.IdempotencyToken, &staff)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestHandlerReservations(t *testing.T) {
	env := newTestEnv(t)
	h := NewHandler(env.svc, nil)
	req := publicRequest(t)
	require.Equal(t, http.StatusCreated, postBooking(t, h.Routes(), req, req.IdempotencyToken, nil).Code)

	admin := h.AdminRoutes()
	rec := httptest.NewRecorder()
	admin.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reservations?date=2026-03-14", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Date         string `json:"date"`
		Reservations []struct {
			Time    string `json:"time"`
			Minutes int    `json:"minutes"`
		} `json:"reservations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Reservations, 1)
	assert.Equal(t, "10:00", body.Reservations[0].Time)

	rec = httptest.NewRecorder()
	admin.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reservations?date=14-03-2026", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
