package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Catalog
	CatalogPath     string
	CatalogS3URI    string
	CatalogCacheTTL time.Duration

	// Schedule and wizard
	MaxGuests           int
	SlotInterval        time.Duration
	BusinessOpen        string
	BusinessClose       string
	ClosedDays          []string
	Timezone            string
	ParallelRooms       int
	AvailabilityTimeout time.Duration
	WizardIdleTTL       time.Duration
	ConfirmationTTL     time.Duration

	// Submission
	BookingAPIURL         string
	SubmitMaxAttempts     int
	SubmitRetryBaseDelay  time.Duration
	SubmitTimeout         time.Duration
	DepositPercent        int
	Currency              string
	PaymentProvider       string
	AllowFakePayments     bool
	StripeSecretKey       string
	OutboxPollInterval    time.Duration
	BookingEventsQueueURL string
	ChargeVelocityMax     int
	ChargeVelocityWindow  time.Duration

	// HTTP surface
	AdminJWTSecret     string
	TrustClientHeaders bool
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	// Email
	EmailProvider       string
	StaffNotifyEmails   []string
	SendGridAPIKey      string
	SendGridFromEmail   string
	SendGridFromName    string
	SESFromEmail        string
	SESConfigurationSet string

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Tracing
	OTLPEndpoint string
	OTLPInsecure bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		CatalogPath:     getEnv("CATALOG_PATH", ""),
		CatalogS3URI:    getEnv("CATALOG_S3_URI", ""),
		CatalogCacheTTL: getEnvAsDuration("CATALOG_CACHE_TTL", 5*time.Minute),

		MaxGuests:           getEnvAsInt("MAX_GUESTS", 4),
		SlotInterval:        getEnvAsDuration("SLOT_INTERVAL", 30*time.Minute),
		BusinessOpen:        getEnv("BUSINESS_OPEN", "09:00"),
		BusinessClose:       getEnv("BUSINESS_CLOSE", "20:00"),
		ClosedDays:          getEnvAsList("CLOSED_DAYS"),
		Timezone:            getEnv("TIMEZONE", "UTC"),
		ParallelRooms:       getEnvAsInt("PARALLEL_ROOMS", 1),
		AvailabilityTimeout: getEnvAsDuration("AVAILABILITY_TIMEOUT", 5*time.Second),
		WizardIdleTTL:       getEnvAsDuration("WIZARD_IDLE_TTL", 30*time.Minute),
		ConfirmationTTL:     getEnvAsDuration("CONFIRMATION_TTL", 24*time.Hour),

		BookingAPIURL:         getEnv("BOOKING_API_URL", ""),
		SubmitMaxAttempts:     getEnvAsInt("SUBMIT_MAX_ATTEMPTS", 3),
		SubmitRetryBaseDelay:  getEnvAsDuration("SUBMIT_RETRY_BASE_DELAY", 250*time.Millisecond),
		SubmitTimeout:         getEnvAsDuration("SUBMIT_TIMEOUT", 15*time.Second),
		DepositPercent:        getEnvAsInt("DEPOSIT_PERCENT", 100),
		Currency:              strings.ToLower(getEnv("CURRENCY", "usd")),
		PaymentProvider:       strings.ToLower(getEnv("PAYMENT_PROVIDER", "fake")),
		AllowFakePayments:     getEnvAsBool("ALLOW_FAKE_PAYMENTS", false),
		StripeSecretKey:       getEnv("STRIPE_SECRET_KEY", ""),
		OutboxPollInterval:    getEnvAsDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		BookingEventsQueueURL: getEnv("BOOKING_EVENTS_QUEUE_URL", ""),
		ChargeVelocityMax:     getEnvAsInt("CHARGE_VELOCITY_MAX", 5),
		ChargeVelocityWindow:  getEnvAsDuration("CHARGE_VELOCITY_WINDOW", 24*time.Hour),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		TrustClientHeaders: getEnvAsBool("TRUST_CLIENT_HEADERS", false),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),

		EmailProvider:       strings.ToLower(getEnv("EMAIL_PROVIDER", "")),
		StaffNotifyEmails:   getEnvAsList("STAFF_NOTIFY_EMAILS"),
		SendGridAPIKey:      getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail:   getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:    getEnv("SENDGRID_FROM_NAME", "Radiance Wellness"),
		SESFromEmail:        getEnv("SES_FROM_EMAIL", ""),
		SESConfigurationSet: getEnv("SES_CONFIGURATION_SET", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure: getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", false),
	}
}

// IsProduction reports whether ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production") || strings.EqualFold(c.Env, "prod")
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	if c.MaxGuests < 1 {
		return fmt.Errorf("config: MAX_GUESTS must be at least 1, got %d", c.MaxGuests)
	}
	if c.DepositPercent < 0 || c.DepositPercent > 100 {
		return fmt.Errorf("config: DEPOSIT_PERCENT must be within 0-100, got %d", c.DepositPercent)
	}
	switch c.PaymentProvider {
	case "fake", "stripe":
	default:
		return fmt.Errorf("config: unknown PAYMENT_PROVIDER %q", c.PaymentProvider)
	}
	if c.SubmitMaxAttempts < 1 {
		return fmt.Errorf("config: SUBMIT_MAX_ATTEMPTS must be at least 1, got %d", c.SubmitMaxAttempts)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
