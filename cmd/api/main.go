package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wizardoma/radiance-wellness/internal/api/router"
	"github.com/wizardoma/radiance-wellness/internal/app/bootstrap"
	appconfig "github.com/wizardoma/radiance-wellness/internal/config"
	"github.com/wizardoma/radiance-wellness/internal/observability/metrics"
	"github.com/wizardoma/radiance-wellness/internal/telemetry"
	"github.com/wizardoma/radiance-wellness/pkg/logging"
)

const serviceName = "radiance-booking-api"

func main() {
	// Local development reads .env; deployed environments set variables directly.
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting radiance booking API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	fmt.Println("Server exited gracefully")
}

func run(cfg *appconfig.Config, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: serviceName,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
		Environment: cfg.Env,
	}, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	metricsHandler, bookingMetrics := setupMetrics()

	app, err := bootstrap.Build(ctx, cfg, logger, bookingMetrics)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(router.New(app.RouterConfig(metricsHandler)), serviceName),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.SubmitTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var workers sync.WaitGroup
	startWorkers(ctx, &workers, app, logger)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		stop()
		workers.Wait()
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	workers.Wait()
	logger.Info("server stopped")
	return nil
}

// startWorkers runs the background loops until ctx is cancelled: outbox
// delivery, idle wizard expiry and rate limiter eviction.
func startWorkers(ctx context.Context, wg *sync.WaitGroup, app *bootstrap.App, logger *logging.Logger) {
	loops := map[string]func(context.Context){
		"outbox_deliverer": app.Deliverer.Start,
		"wizard_sweeper":   func(ctx context.Context) { app.Manager.Run(ctx, time.Minute) },
		"rate_limit_evict": func(ctx context.Context) { app.RateLimiter.Run(ctx, 5*time.Minute) },
	}
	for name, loop := range loops {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("worker started", "worker", name)
			loop(ctx)
			logger.Info("worker stopped", "worker", name)
		}()
	}
}

// setupMetrics registers the booking metrics on a dedicated registry along
// with the Go runtime and process collectors.
func setupMetrics() (http.Handler, *metrics.BookingMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewBookingMetrics(reg)
}
