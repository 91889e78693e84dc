package catalog

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wizardoma/radiance-wellness/pkg/logging"
)

// Handler serves the read-only catalog endpoints.
type Handler struct {
	provider Provider
	logger   *logging.Logger
}

// NewHandler creates a catalog handler.
func NewHandler(provider Provider, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{provider: provider, logger: logger}
}

// Routes mounts the catalog endpoints.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/services", h.ListServices)
	r.Get("/services/{serviceID}", h.GetService)
	r.Get("/categories", h.ListCategories)
	r.Get("/addons", h.ListAddOns)
	return r
}

// ListServices handles GET /services, optionally filtered by ?category=.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	var (
		services []Service
		err      error
	)
	if category := r.URL.Query().Get("category"); category != "" {
		var snapshot *Catalog
		snapshot, err = h.provider.Snapshot(r.Context())
		if err == nil {
			services = snapshot.ServicesInCategory(category)
		}
	} else {
		services, err = h.provider.ListServices(r.Context())
	}
	if err != nil {
		h.logger.Error("list services failed", "error", err)
		http.Error(w, "catalog unavailable", http.StatusServiceUnavailable)
		return
	}
	if services == nil {
		services = []Service{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

// GetService handles GET /services/{serviceID}.
func (h *Handler) GetService(w http.ResponseWriter, r *http.Request) {
	svc, err := h.provider.GetServiceByID(r.Context(), chi.URLParam(r, "serviceID"))
	if errors.Is(err, ErrServiceNotFound) {
		http.Error(w, "service not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("get service failed", "error", err)
		http.Error(w, "catalog unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

// ListCategories handles GET /categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.provider.ListCategories(r.Context())
	if err != nil {
		h.logger.Error("list categories failed", "error", err)
		http.Error(w, "catalog unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

// ListAddOns handles GET /addons.
func (h *Handler) ListAddOns(w http.ResponseWriter, r *http.Request) {
	addOns, err := h.provider.ListAddOns(r.Context())
	if err != nil {
		h.logger.Error("list add-ons failed", "error", err)
		http.Error(w, "catalog unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"addons": addOns})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
