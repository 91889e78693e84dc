package router

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wizardoma/radiance-wellness/internal/availability"
	"github.com/wizardoma/radiance-wellness/internal/bookings"
	"github.com/wizardoma/radiance-wellness/internal/catalog"
	httpmiddleware "github.com/wizardoma/radiance-wellness/internal/http/middleware"
	"github.com/wizardoma/radiance-wellness/internal/wizard"
	"github.com/wizardoma/radiance-wellness/pkg/logging"
)

// ReadinessCheck pings a dependency.
type ReadinessCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	CatalogHandler      *catalog.Handler
	AvailabilityHandler *availability.Handler
	BookingsHandler     *bookings.Handler
	WizardHandler       *wizard.Handler
	MetricsHandler      http.Handler
	ReadinessChecks     map[string]ReadinessCheck
	Session             httpmiddleware.SessionConfig
	RateLimiter         *httpmiddleware.RateLimiter
	CORSAllowedOrigins  []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	// Probes and scraping stay outside session handling and rate limits.
	r.Get("/health", health)
	r.Get("/ready", ready(cfg.ReadinessChecks, logger))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Group(func(api chi.Router) {
		api.Use(httpmiddleware.Session(cfg.Session, logger))
		api.Use(httpmiddleware.RequestLogger(logger))
		api.Use(httpmiddleware.RateLimit(cfg.RateLimiter, logger))
		api.Use(middleware.Compress(5))

		api.Route("/api", func(r chi.Router) {
			if cfg.CatalogHandler != nil {
				r.Mount("/catalog", cfg.CatalogHandler.Routes())
			}
			if cfg.AvailabilityHandler != nil {
				r.Mount("/availability", cfg.AvailabilityHandler.Routes())
			}
			if cfg.BookingsHandler != nil {
				r.Mount("/bookings", cfg.BookingsHandler.Routes())
			}
			if cfg.WizardHandler != nil {
				r.Mount("/wizard", cfg.WizardHandler.Routes())
			}
		})

		if cfg.BookingsHandler != nil {
			api.Route("/admin", func(admin chi.Router) {
				admin.Use(httpmiddleware.RequireStaff)
				admin.Mount("/bookings", cfg.BookingsHandler.AdminRoutes())
			})
		}
	})

	return r
}

func health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func ready(checks map[string]ReadinessCheck, logger *logging.Logger) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(names))
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				logger.Warn("readiness check failed", "check", name, "error", err)
				results[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		writeJSON(w, status, map[string]any{"status": http.StatusText(status), "checks": results})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
