package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wizardoma/radiance-wellness/internal/api/router"
	"github.com/wizardoma/radiance-wellness/internal/availability"
	"github.com/wizardoma/radiance-wellness/internal/booking"
	"github.com/wizardoma/radiance-wellness/internal/bookingapi"
	"github.com/wizardoma/radiance-wellness/internal/bookings"
	"github.com/wizardoma/radiance-wellness/internal/catalog"
	appconfig "github.com/wizardoma/radiance-wellness/internal/config"
	"github.com/wizardoma/radiance-wellness/internal/events"
	httpmiddleware "github.com/wizardoma/radiance-wellness/internal/http/middleware"
	"github.com/wizardoma/radiance-wellness/internal/notify"
	"github.com/wizardoma/radiance-wellness/internal/observability/metrics"
	"github.com/wizardoma/radiance-wellness/internal/payments"
	"github.com/wizardoma/radiance-wellness/internal/wizard"
	"github.com/wizardoma/radiance-wellness/pkg/logging"
)

// App is the wired booking stack.
type App struct {
	Catalog     catalog.Provider
	Checker     *availability.ScheduleChecker
	Bookings    *bookings.Service
	Manager     *wizard.Manager
	Deliverer   *events.Deliverer
	RateLimiter *httpmiddleware.RateLimiter

	cfg       *appconfig.Config
	logger    *logging.Logger
	readiness map[string]router.ReadinessCheck
	closers   []func()
}

// Build wires every component from cfg. Without DATABASE_URL bookings,
// outbox and processed events live in memory; without REDIS_ADDR the
// catalog is not cached and confirmations stay in process.
func Build(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, m *metrics.BookingMetrics) (*App, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	app := &App{cfg: cfg, logger: logger, readiness: make(map[string]router.ReadinessCheck)}
	if err := app.wire(ctx, m); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) wire(ctx context.Context, m *metrics.BookingMetrics) error {
	cfg, logger := a.cfg, a.logger

	var awsCfg *aws.Config
	if needsAWS(cfg) {
		loaded, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			return fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		awsCfg = &loaded
	}

	pool, err := ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if pool != nil {
		a.closers = append(a.closers, pool.Close)
		a.readiness["postgres"] = func(ctx context.Context) error { return pool.Ping(ctx) }
	} else if cfg.IsProduction() {
		return errors.New("bootstrap: DATABASE_URL is required in production")
	}

	redisClient := BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
		a.readiness["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	var s3Client catalog.S3GetObjectAPI
	if awsCfg != nil && cfg.CatalogS3URI != "" {
		s3Client = s3.NewFromConfig(*awsCfg, func(o *s3.Options) { o.UsePathStyle = cfg.AWSEndpointOverride != "" })
	}
	provider, err := BuildCatalogProvider(ctx, cfg, s3Client, redisClient, logger)
	if err != nil {
		return err
	}
	a.Catalog = provider

	outbox, repo, processed := buildStores(pool)

	scheduleCfg, err := BuildScheduleConfig(cfg)
	if err != nil {
		return err
	}
	checker, err := availability.NewScheduleChecker(provider, repo, scheduleCfg, logger)
	if err != nil {
		return fmt.Errorf("bootstrap: schedule: %w", err)
	}
	a.Checker = checker.WithObserver(m)

	gateway, err := BuildGateway(cfg, logger)
	if err != nil {
		return err
	}
	if redisClient != nil && cfg.ChargeVelocityMax > 0 {
		gateway = payments.NewVelocityGateway(gateway, redisClient, payments.VelocityConfig{
			MaxCharges: cfg.ChargeVelocityMax,
			Window:     cfg.ChargeVelocityWindow,
		}, logger)
	}
	a.Bookings = bookings.NewService(repo, provider, checker, gateway, logger).
		WithCurrency(cfg.Currency).
		WithDepositPercent(cfg.DepositPercent).
		WithMaxGuests(cfg.MaxGuests).
		WithObserver(m)

	api, err := BuildBookingAPI(cfg, a.Bookings, logger)
	if err != nil {
		return err
	}
	submitter := booking.NewSubmitter(api, logger).
		WithRetryPolicy(booking.RetryPolicy{
			MaxAttempts: cfg.SubmitMaxAttempts,
			BaseDelay:   cfg.SubmitRetryBaseDelay,
			MaxDelay:    5 * time.Second,
		}).
		WithTimeout(cfg.SubmitTimeout).
		WithObserver(m)

	var confirmations wizard.ConfirmationStore
	if redisClient != nil {
		confirmations = wizard.NewRedisConfirmationStore(redisClient, cfg.ConfirmationTTL)
	}
	a.Manager, err = wizard.NewManager(wizard.Config{
		Catalog:         provider,
		Availability:    checker,
		Submitter:       submitter,
		Confirmations:   confirmations,
		ConfirmationTTL: cfg.ConfirmationTTL,
		MaxGuests:       cfg.MaxGuests,
		LookupTimeout:   cfg.AvailabilityTimeout,
		IdleTTL:         cfg.WizardIdleTTL,
		Location:        scheduleCfg.Location,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("bootstrap: wizard: %w", err)
	}

	var sesClient *sesv2.Client
	if awsCfg != nil && cfg.EmailProvider == "ses" {
		sesClient = sesv2.NewFromConfig(*awsCfg)
	}
	notifier := notify.NewService(BuildEmailSender(cfg, sesClient, logger), cfg.StaffNotifyEmails, logger).
		WithLocation(scheduleCfg.Location)
	handlers := events.FanOut{notify.NewConfirmationConsumer(notifier, processed, logger)}
	if awsCfg != nil && cfg.BookingEventsQueueURL != "" {
		handlers = append(handlers, events.NewSQSPublisher(sqs.NewFromConfig(*awsCfg), cfg.BookingEventsQueueURL, logger))
		logger.Info("booking events forwarded to SQS", "queue_url", cfg.BookingEventsQueueURL)
	}
	a.Deliverer = events.NewDeliverer(outbox, handlers, logger).WithInterval(cfg.OutboxPollInterval)

	a.RateLimiter = httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	return nil
}

func buildStores(pool *pgxpool.Pool) (events.Outbox, bookings.Repository, events.ProcessedTracker) {
	if pool == nil {
		outbox := events.NewMemoryOutbox()
		return outbox, bookings.NewMemoryRepository(outbox), events.NewMemoryProcessedStore()
	}
	return events.NewOutboxStore(pool), bookings.NewPostgresRepository(pool), events.NewProcessedStore(pool)
}

// RouterConfig returns the HTTP surface over the app.
func (a *App) RouterConfig(metricsHandler http.Handler) *router.Config {
	return &router.Config{
		Logger:              a.logger,
		CatalogHandler:      catalog.NewHandler(a.Catalog, a.logger),
		AvailabilityHandler: availability.NewHandler(a.Checker, a.logger),
		BookingsHandler:     bookings.NewHandler(a.Bookings, a.logger),
		WizardHandler:       wizard.NewHandler(a.Manager, a.logger),
		MetricsHandler:      metricsHandler,
		ReadinessChecks:     a.readiness,
		Session: httpmiddleware.SessionConfig{
			StaffSecret:        a.cfg.AdminJWTSecret,
			TrustClientHeaders: a.cfg.TrustClientHeaders,
		},
		RateLimiter:        a.RateLimiter,
		CORSAllowedOrigins: a.cfg.CORSAllowedOrigins,
	}
}

// Close releases the database pool and the Redis client.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// BuildGateway selects the payment provider. The fake gateway never talks
// to a network and is refused outside development unless
// ALLOW_FAKE_PAYMENTS is set.
func BuildGateway(cfg *appconfig.Config, logger *logging.Logger) (payments.Gateway, error) {
	switch cfg.PaymentProvider {
	case "", "fake":
		if !cfg.AllowFakePayments && !strings.EqualFold(cfg.Env, "development") && !strings.EqualFold(cfg.Env, "test") {
			return nil, fmt.Errorf("bootstrap: fake payments are disabled in %s; set ALLOW_FAKE_PAYMENTS=true or PAYMENT_PROVIDER=stripe", cfg.Env)
		}
		logger.Warn("using fake payment gateway; no card is charged")
		return payments.NewFakeGateway(logger), nil
	case "stripe":
		gateway, err := payments.NewStripeGateway(cfg.StripeSecretKey, nil, logger)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		return gateway, nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown payment provider %q", cfg.PaymentProvider)
	}
}

// BuildScheduleConfig turns the business hour settings into an
// availability.Config.
func BuildScheduleConfig(cfg *appconfig.Config) (availability.Config, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return availability.Config{}, fmt.Errorf("bootstrap: timezone %q: %w", cfg.Timezone, err)
	}
	closed, err := availability.ParseWeekdays(cfg.ClosedDays)
	if err != nil {
		return availability.Config{}, fmt.Errorf("bootstrap: closed days: %w", err)
	}
	out := availability.Config{
		Hours:         availability.Uniform(cfg.BusinessOpen, cfg.BusinessClose, closed...),
		Interval:      cfg.SlotInterval,
		ParallelRooms: cfg.ParallelRooms,
		Location:      loc,
	}
	if err := out.Hours.Validate(); err != nil {
		return availability.Config{}, fmt.Errorf("bootstrap: business hours: %w", err)
	}
	return out, nil
}

// BuildCatalogProvider loads the menu from S3, a local file or the built-in
// default, in that order, and fronts it with Redis when available.
func BuildCatalogProvider(ctx context.Context, cfg *appconfig.Config, s3Client catalog.S3GetObjectAPI, redisClient *redis.Client, logger *logging.Logger) (catalog.Provider, error) {
	var (
		menu   *catalog.Catalog
		source string
		err    error
	)
	switch {
	case cfg.CatalogS3URI != "":
		if s3Client == nil {
			return nil, errors.New("bootstrap: CATALOG_S3_URI set without an S3 client")
		}
		bucket, key, perr := catalog.ParseS3URI(cfg.CatalogS3URI)
		if perr != nil {
			return nil, fmt.Errorf("bootstrap: %w", perr)
		}
		menu, err = catalog.LoadS3(ctx, s3Client, bucket, key)
		source = cfg.CatalogS3URI
	case cfg.CatalogPath != "":
		menu, err = catalog.LoadFile(cfg.CatalogPath)
		source = cfg.CatalogPath
	default:
		menu, source = catalog.DefaultMenu(), "built-in"
	}
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load catalog: %w", err)
	}
	logger.Info("catalog loaded", "source", source, "services", len(menu.Services))

	static, err := catalog.NewStaticProvider(menu)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	if redisClient == nil {
		return static, nil
	}
	return catalog.NewRedisCache(redisClient, static, cfg.CatalogCacheTTL, logger), nil
}

// BuildEmailSender picks SendGrid or SES by EMAIL_PROVIDER and falls back
// to the logging stub when the chosen provider is not configured.
func BuildEmailSender(cfg *appconfig.Config, sesClient *sesv2.Client, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "sendgrid":
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			return sender
		}
		logger.Warn("EMAIL_PROVIDER=sendgrid without SENDGRID_API_KEY; emails are logged only")
	case "ses":
		if sender := notify.NewSESSender(sesClient, notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			return sender
		}
		logger.Warn("EMAIL_PROVIDER=ses without an SES client; emails are logged only")
	}
	return notify.NewStubEmailSender(logger)
}

// BuildBookingAPI returns the remote booking backend when BOOKING_API_URL
// is set, otherwise the in-process service.
func BuildBookingAPI(cfg *appconfig.Config, service *bookings.Service, logger *logging.Logger) (booking.BookingAPI, error) {
	if strings.TrimSpace(cfg.BookingAPIURL) == "" {
		return bookings.NewLocalAPI(service), nil
	}
	client, err := bookingapi.NewClient(cfg.BookingAPIURL, logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	timeout := cfg.SubmitTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return client.
		WithStaffSecret(cfg.AdminJWTSecret).
		WithHTTPClient(&http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		}), nil
}
