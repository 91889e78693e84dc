package availability

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wizardoma/radiance-wellness/internal/booking"
	"github.com/wizardoma/radiance-wellness/internal/catalog"
	"github.com/wizardoma/radiance-wellness/pkg/logging"
)

// Handler serves slot lookups outside a wizard session, e.g. for the
// mobile app's calendar view.
type Handler struct {
	checker booking.AvailabilityChecker
	logger  *logging.Logger
}

// NewHandler wraps a checker.
func NewHandler(checker booking.AvailabilityChecker, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{checker: checker, logger: logger}
}

// Routes mounts GET /slots?date=YYYY-MM-DD&service=ID.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/slots", h.Slots)
	return r
}

type slotsResponse struct {
	Date      string         `json:"date"`
	ServiceID string         `json:"service_id"`
	Slots     []booking.Slot `json:"slots"`
}

// Slots answers the slot list for a date and service.
func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	serviceID := r.URL.Query().Get("service")
	if date == "" || serviceID == "" {
		http.Error(w, "date and service are required", http.StatusBadRequest)
		return
	}
	if _, err := time.Parse(booking.DateLayout, date); err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	slots, err := h.checker.AvailableSlots(r.Context(), date, serviceID)
	if err != nil {
		if errors.Is(err, catalog.ErrServiceNotFound) {
			http.Error(w, "unknown service", http.StatusNotFound)
			return
		}
		h.logger.Error("availability lookup failed", "error", err, "date", date, "service_id", serviceID)
		http.Error(w, "availability unknown", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(slotsResponse{Date: date, ServiceID: serviceID, Slots: slots}); err != nil {
		h.logger.Error("failed to encode slots", "error", err)
	}
}
