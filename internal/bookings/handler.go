package bookings

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wizardoma/radiance-wellness/internal/availability"
	"github.com/wizardoma/radiance-wellness/internal/booking"
	"github.com/wizardoma/radiance-wellness/internal/bookingapi"
	"github.com/wizardoma/radiance-wellness/internal/session"
	"github.com/wizardoma/radiance-wellness/pkg/logging"
)

const maxRequestBytes = 64 << 10

// Handler exposes the booking API over HTTP.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates the booking API handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("bookings: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Routes mounts POST / and GET /{reference}.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/{reference}", h.Get)
	return r
}

// AdminRoutes mounts the staff schedule board; callers must require staff.
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/reservations", h.Reservations)
	return r
}

// Create handles POST /api/bookings. The Idempotency-Key header is required
// and must agree with the token in the body.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.Header.Get(bookingapi.IdempotencyHeader))
	if key == "" {
		writeError(w, http.StatusBadRequest, bookingapi.ErrorBody{
			Error:   bookingapi.CodeValidation,
			Message: "Idempotency-Key header required",
			Field:   "idempotency_token",
		})
		return
	}

	var req booking.SubmitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, bookingapi.ErrorBody{Error: bookingapi.CodeValidation, Message: "invalid JSON body"})
		return
	}
	if req.IdempotencyToken == "" {
		req.IdempotencyToken = key
	}
	if req.IdempotencyToken != key {
		writeError(w, http.StatusBadRequest, bookingapi.ErrorBody{
			Error:   bookingapi.CodeValidation,
			Message: "Idempotency-Key header does not match body",
			Field:   "idempotency_token",
		})
		return
	}
	if req.Variant == "" {
		req.Variant = booking.VariantPublic
	}
	if req.Variant == booking.VariantWalkIn && !session.FromContext(r.Context()).IsStaff() {
		writeError(w, http.StatusForbidden, bookingapi.ErrorBody{Error: bookingapi.CodeForbidden, Message: "walk-in bookings require staff"})
		return
	}

	conf, replayed, err := h.service.Submit(r.Context(), req)
	if err != nil {
		status, body := bookingapi.EncodeError(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("booking submit failed", "error", err, "idempotency_key", key)
		}
		writeError(w, status, body)
		return
	}
	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, conf)
}

// Get handles GET /api/bookings/{reference}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	conf, err := h.service.GetByReference(r.Context(), chi.URLParam(r, "reference"))
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, bookingapi.ErrorBody{Error: bookingapi.CodeNotFound, Message: "booking not found"})
		return
	}
	if err != nil {
		h.logger.Error("get booking failed", "error", err)
		writeError(w, http.StatusInternalServerError, bookingapi.ErrorBody{Error: bookingapi.CodeInternal, Message: "booking lookup failed"})
		return
	}
	writeJSON(w, http.StatusOK, conf)
}

// Reservations handles GET /admin/bookings/reservations?date=YYYY-MM-DD.
func (h *Handler) Reservations(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	list, err := h.service.Reservations(r.Context(), date)
	if err != nil {
		status, body := bookingapi.EncodeError(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("list reservations failed", "error", err, "date", date)
		}
		writeError(w, status, body)
		return
	}
	if list == nil {
		list = []availability.Reservation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "reservations": list})
}

func writeError(w http.ResponseWriter, status int, body bookingapi.ErrorBody) {
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
