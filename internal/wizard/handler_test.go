package wizard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wizardoma/radiance-wellness/internal/booking"
	"github.com/wizardoma/radiance-wellness/internal/session"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
	sess    session.Session
}

func newTestServer(t *testing.T, api booking.BookingAPI) (*testServer, *Manager) {
	t.Helper()
	m, _ := newTestManager(t, api, nil)
	return &testServer{t: t, handler: NewHandler(m, nil).Routes(), sess: session.Guest()}, m
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req = req.WithContext(session.WithSession(req.Context(), s.sess))
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func decodeView(t *testing.T, rr *httptest.ResponseRecorder) booking.View {
	t.Helper()
	var view booking.View
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&view))
	return view
}

func decodeProblem(t *testing.T, rr *httptest.ResponseRecorder) problem {
	t.Helper()
	var p problem
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&p))
	return p
}

func TestHandlerBookingFlow(t *testing.T) {
	api := &stubAPI{}
	srv, _ := newTestServer(t, api)

	rr := srv.do(http.MethodPost, "/sessions", map[string]string{"variant": "public"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	view := decodeView(t, rr)
	require.NotEmpty(t, view.SessionID)
	assert.Equal(t, booking.StepService, view.Step)
	base := "/sessions/" + view.SessionID

	rr = srv.do(http.MethodPut, base+"/service", map[string]string{"service_id": "swedish-massage"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = srv.do(http.MethodPut, base+"/guests", map[string]int{"guests": 2})
	require.Equal(t, http.StatusOK, rr.Code)
	rr = srv.do(http.MethodPost, base+"/addons/hot-stones", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = srv.do(http.MethodPut, base+"/datetime", map[string]string{"date": "2026-03-14", "time": "10:00"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = srv.do(http.MethodPut, base+"/contact", booking.Contact{Name: "Ada Lovelace", Email: "ada@example.com", Phone: "+15550100"})
	require.Equal(t, http.StatusOK, rr.Code)
	rr = srv.do(http.MethodPut, base+"/payment", map[string]string{"payment_method": "pm_card_visa"})
	require.Equal(t, http.StatusOK, rr.Code)
	view = decodeView(t, rr)
	assert.Equal(t, int64(55000), view.Totals.GrandTotal)

	rr = srv.do(http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	view = decodeView(t, rr)
	require.NotNil(t, view.Confirmation)
	assert.Equal(t, "RW-TEST0001", view.Confirmation.Reference)
	assert.Equal(t, booking.StepConfirmation, view.Step)
	assert.Empty(t, view.Draft.ServiceID, "draft resets after a confirmed booking")
	assert.Equal(t, 2, api.lastReq.Draft.Guests)

	rr = srv.do(http.MethodDelete, base, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = srv.do(http.MethodGet, base+"/confirmation", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var conf booking.Confirmation
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&conf))
	assert.Equal(t, "RW-TEST0001", conf.Reference)
}

func TestHandlerAdvanceReportsGate(t *testing.T) {
	srv, _ := newTestServer(t, &stubAPI{})
	view := decodeView(t, srv.do(http.MethodPost, "/sessions", nil))

	rr := srv.do(http.MethodPost, "/sessions/"+view.SessionID+"/advance", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	p := decodeProblem(t, rr)
	assert.Equal(t, "validation", p.Error)
	assert.Equal(t, "service", p.Step)
	assert.Equal(t, "service", p.Field)
	require.NotNil(t, p.View)
	assert.Equal(t, booking.StepService, p.View.Step)
}

func TestHandlerSubmitIncompleteDraft(t *testing.T) {
	api := &stubAPI{}
	srv, _ := newTestServer(t, api)
	view := decodeView(t, srv.do(http.MethodPost, "/sessions", nil))

	rr := srv.do(http.MethodPost, "/sessions/"+view.SessionID+"/submit", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "validation", decodeProblem(t, rr).Error)
	assert.Zero(t, api.calls)
}

func TestHandlerSubmitConflictReturnsToDateTime(t *testing.T) {
	api := &stubAPI{err: &booking.AvailabilityConflictError{Date: "2026-03-14", Time: "10:00"}}
	srv, m := newTestServer(t, api)
	wz, err := m.Start(t.Context(), booking.VariantPublic, session.Guest())
	require.NoError(t, err)
	completeWizard(t, wz)

	rr := srv.do(http.MethodPost, "/sessions/"+wz.SessionID()+"/submit", nil)
	require.Equal(t, http.StatusConflict, rr.Code)
	p := decodeProblem(t, rr)
	assert.Equal(t, "availability_conflict", p.Error)
	require.NotNil(t, p.View)
	assert.Equal(t, booking.StepDateTime, p.View.Step)
	assert.Empty(t, p.View.Draft.Time)
}

func TestHandlerSessionErrors(t *testing.T) {
	srv, _ := newTestServer(t, &stubAPI{})

	rr := srv.do(http.MethodGet, "/sessions/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = srv.do(http.MethodPost, "/sessions", map[string]string{"variant": "walkin"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = srv.do(http.MethodPost, "/sessions", map[string]string{"variant": "kiosk"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = srv.do(http.MethodGet, "/sessions/unknown/confirmation", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandlerStaffOnlyAssignment(t *testing.T) {
	srv, m := newTestServer(t, &stubAPI{})
	wz, err := m.Start(t.Context(), booking.VariantPublic, session.Guest())
	require.NoError(t, err)

	rr := srv.do(http.MethodPut, "/sessions/"+wz.SessionID()+"/staff", map[string]string{"staff_id": "staff-7"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	srv.sess = staff
	staffWizard, err := m.Start(t.Context(), booking.VariantWalkIn, staff)
	require.NoError(t, err)
	rr = srv.do(http.MethodPut, "/sessions/"+staffWizard.SessionID()+"/staff", map[string]string{"staff_id": "staff-7"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "staff-7", decodeView(t, rr).Draft.StaffID)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{booking.ErrSubmissionInFlight, http.StatusConflict, "in_flight"},
		{booking.ErrSlotUnavailable, http.StatusConflict, "slot_unavailable"},
		{booking.ErrAvailabilityUnknown, http.StatusServiceUnavailable, "availability_unknown"},
		{&booking.PaymentDeclinedError{Code: "card_declined"}, http.StatusPaymentRequired, "payment_declined"},
		{&booking.NetworkError{Op: "submit booking"}, http.StatusBadGateway, "network"},
		{fmt.Errorf("%w: submit booking: walk-in bookings require staff", booking.ErrNotPermitted), http.StatusForbidden, "forbidden"},
		{assert.AnError, http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		status, p := classify(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, p.Error)
	}
}
