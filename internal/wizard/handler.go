package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wizardoma/radiance-wellness/internal/booking"
	"github.com/wizardoma/radiance-wellness/internal/session"
	"github.com/wizardoma/radiance-wellness/pkg/logging"
)

const maxBodyBytes = 16 << 10

// Handler exposes wizard sessions under /api/wizard.
type Handler struct {
	manager *Manager
	logger  *logging.Logger
}

func NewHandler(manager *Manager, logger *logging.Logger) *Handler {
	if manager == nil {
		panic("wizard: manager required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{manager: manager, logger: logger}
}

// Routes mounts the session endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/sessions", h.Start)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.End)
		r.Get("/confirmation", h.Confirmation)
		r.Put("/service", h.withWizard(h.selectService))
		r.Put("/duration", h.withWizard(h.selectDuration))
		r.Put("/datetime", h.withWizard(h.setDateTime))
		r.Put("/guests", h.withWizard(h.setGuests))
		r.Put("/contact", h.withWizard(h.setContact))
		r.Put("/notes", h.withWizard(h.setNotes))
		r.Put("/payment", h.withWizard(h.setPayment))
		r.Put("/staff", h.withWizard(h.assignStaff))
		r.Post("/addons/{addonID}", h.withWizard(h.toggleAddOn))
		r.Get("/slots", h.withWizard(h.slots))
		r.Post("/advance", h.withWizard(h.advance))
		r.Post("/back", h.withWizard(h.back))
		r.Post("/goto/{step}", h.withWizard(h.goTo))
		r.Post("/cancel", h.withWizard(h.cancel))
		r.Post("/submit", h.withWizard(h.submit))
	})
	return r
}

type startRequest struct {
	Variant booking.Variant `json:"variant"`
}

// Start handles POST /sessions.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, problem{Error: "validation", Message: "invalid JSON body"})
		return
	}
	if req.Variant == "" {
		req.Variant = booking.VariantPublic
	}
	if _, err := booking.FlowFor(req.Variant); err != nil {
		writeProblem(w, http.StatusBadRequest, problem{Error: "validation", Message: err.Error(), Field: "variant"})
		return
	}
	wz, err := h.manager.Start(r.Context(), req.Variant, session.FromContext(r.Context()))
	if err != nil {
		h.fail(w, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, wz.Snapshot())
}

// Get handles GET /sessions/{sessionID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	wz, err := h.manager.Get(chi.URLParam(r, "sessionID"), session.FromContext(r.Context()))
	if err != nil {
		h.fail(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, wz.Snapshot())
}

// End handles DELETE /sessions/{sessionID}.
func (h *Handler) End(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.End(chi.URLParam(r, "sessionID"), session.FromContext(r.Context())); err != nil {
		h.fail(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Confirmation handles GET /sessions/{sessionID}/confirmation; it answers
// after the session ended too.
func (h *Handler) Confirmation(w http.ResponseWriter, r *http.Request) {
	conf, err := h.manager.Confirmation(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, conf)
}

type wizardAction func(w http.ResponseWriter, r *http.Request, wz *booking.Wizard) error

// withWizard resolves the session and answers with the wizard view, or the
// error plus the view when the action fails.
func (h *Handler) withWizard(action wizardAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wz, err := h.manager.Get(chi.URLParam(r, "sessionID"), session.FromContext(r.Context()))
		if err != nil {
			h.fail(w, err, nil)
			return
		}
		if err := action(w, r, wz); err != nil {
			view := wz.Snapshot()
			h.fail(w, err, &view)
			return
		}
		writeJSON(w, http.StatusOK, wz.Snapshot())
	}
}

var errBadBody = &booking.ValidationError{Field: "body", Reason: "invalid JSON body"}

func (h *Handler) selectService(w http.ResponseWriter, r *http.Request, wz *booking.Wizard) error {
	var body struct {
		ServiceID string `json:"service_id"`
	}
	if decodeBody(w, r, &body) != nil {
		return errBadBody
	}
	return wz.SelectService(body.ServiceID)
}

func (h *Handler) selectDuration(w http.ResponseWriter, r *http.Request, wz *booking.Wizard) error {
	var body struct {
		Minutes int `json:"minutes"`
	}
	if decodeBody(w, r, &body) != nil {
		return errBadBody
	}
	return wz.SelectDuration(body.Minutes)
}

func (h *Handler) setDateTime(w http.ResponseWriter, r *http.Request, wz *booking.Wizard) error {
	var body struct {
		Date string `json:"date"`
		Time string `json:"time"`
	}
	if decodeBody(w, r, &body) != nil {
		return errBadBody
	}
	if body.Time == "" {
		return wz.SetDate(body.Date)
	}
	return wz.SetDateTime(body.Date, body.Time)
}

func (h *Handler) setGuests(w http.ResponseWriter, r *http.Request, wz *booking.Wizard) error {
	var body struct {
		Guests int `json:"guests"`
	}
	if decodeBody(w, r, &body) != nil {
		return errBadBody
	}
	_, err := wz.SetGuests(body.Guests)
	return err
}

func (h *Handler) setContact(w http.ResponseWriter, r *http.Request, wz *booking.Wizard) error {
	var body booking.Contact
	if decodeBody(w, r, &body) != nil {
		return errBadBody
	}
	return wz.SetContact(body)
}

func (h *Handler) setNotes(w http.ResponseWriter, r *http.Request, wz *booking.Wizard) error {
	var body struct {
		Notes string `json:"notes"`
	}
	if decodeBody(w, r, &body) != nil {
		return errBadBody
	}
	return wz.SetNotes(body.Notes)
}

func (h *Handler) setPayment(w http.ResponseWriter, r *http.Request, wz *booking.Wizard) error {
	var body struct {
		PaymentMethod string `json:"payment_method"`
	}
	if decodeBody(w, r, &body) != nil {
		return errBadBody
	}
	return wz.SetPaymentMethod(body.PaymentMethod)
}

func (h *Handler) assignStaff(w http.ResponseWriter, r *http.Request, wz *booking.Wizard) error {
	if !session.FromContext(r.Context()).IsStaff() {
		return ErrForbidden
	}
	var body struct {
		StaffID string `json:"staff_id"`
	}
	if decodeBody(w, r, &body) != nil {
		return errBadBody
	}
	return wz.AssignStaff(body.StaffID)
}

func (h *Handler) toggleAddOn(w http.ResponseWriter, r *http.Request, wz *booking.Wizard) error {
	_, err := wz.ToggleAddOn(chi.URLParam(r, "addonID"))
	return err
}

func (h *Handler) slots(w http.ResponseWriter, r *http.Request, wz *booking.Wizard) error {
	_, err := wz.LoadSlots(r.Context(), r.URL.Query().Get("date"))
	return err
}

func (h *Handler) advance(w http.ResponseWriter, r *http.Request, wz *booking.Wizard) error {
	_, err := wz.Advance()
	return err
}

func (h *Handler) back(w http.ResponseWriter, r *http.Request, wz *booking.Wizard) error {
	wz.Back()
	return nil
}

func (h *Handler) goTo(w http.ResponseWriter, r *http.Request, wz *booking.Wizard) error {
	return wz.GoTo(booking.Step(chi.URLParam(r, "step")))
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request, wz *booking.Wizard) error {
	wz.Cancel()
	return nil
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, wz *booking.Wizard) error {
	_, err := wz.Submit(r.Context())
	return err
}

type problem struct {
	Error   string        `json:"error"`
	Message string        `json:"message"`
	Step    string        `json:"step,omitempty"`
	Field   string        `json:"field,omitempty"`
	View    *booking.View `json:"view,omitempty"`
}

func (h *Handler) fail(w http.ResponseWriter, err error, view *booking.View) {
	status, p := classify(err)
	p.View = view
	if status >= http.StatusInternalServerError {
		h.logger.Error("wizard request failed", "error", err, "status", status)
	}
	writeProblem(w, status, p)
}

func classify(err error) (int, problem) {
	var (
		validation *booking.ValidationError
		conflict   *booking.AvailabilityConflictError
		declined   *booking.PaymentDeclinedError
		network    *booking.NetworkError
	)
	p := problem{Message: err.Error()}
	switch {
	case errors.Is(err, ErrNotFound):
		p.Error = "not_found"
		return http.StatusNotFound, p
	case errors.Is(err, ErrForbidden), errors.Is(err, booking.ErrNotPermitted):
		p.Error = "forbidden"
		return http.StatusForbidden, p
	case errors.Is(err, booking.ErrSubmissionInFlight):
		p.Error = "in_flight"
		return http.StatusConflict, p
	case errors.Is(err, booking.ErrSlotUnavailable):
		p.Error = "slot_unavailable"
		return http.StatusConflict, p
	case errors.Is(err, booking.ErrLookupAbandoned):
		p.Error = "lookup_abandoned"
		return http.StatusConflict, p
	case errors.Is(err, booking.ErrAvailabilityUnknown):
		p.Error = "availability_unknown"
		return http.StatusServiceUnavailable, p
	case errors.As(err, &validation):
		p.Error = "validation"
		p.Message = validation.Reason
		p.Step = string(validation.Step)
		p.Field = validation.Field
		return http.StatusBadRequest, p
	case errors.Is(err, booking.ErrPrecondition):
		p.Error = "validation"
		return http.StatusBadRequest, p
	case errors.As(err, &conflict):
		p.Error = "availability_conflict"
		p.Step = string(booking.StepDateTime)
		return http.StatusConflict, p
	case errors.As(err, &declined):
		p.Error = "payment_declined"
		return http.StatusPaymentRequired, p
	case errors.As(err, &network):
		p.Error = "network"
		return http.StatusBadGateway, p
	case errors.Is(err, context.DeadlineExceeded):
		p.Error = "timeout"
		return http.StatusGatewayTimeout, p
	default:
		p.Error = "internal"
		p.Message = "wizard request failed"
		return http.StatusInternalServerError, p
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
}

func writeProblem(w http.ResponseWriter, status int, p problem) {
	writeJSON(w, status, p)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
