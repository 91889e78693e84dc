package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wizardoma/radiance-wellness/pkg/logging"
)

var velocityTracer = otel.Tracer("radiance.internal.payments.velocity")

// VelocityConfig limits distinct charges per receipt email.
type VelocityConfig struct {
	MaxCharges int
	Window     time.Duration
}

// DefaultVelocityConfig allows five bookings per email per day.
func DefaultVelocityConfig() VelocityConfig {
	return VelocityConfig{MaxCharges: 5, Window: 24 * time.Hour}
}

// VelocityGateway declines a charge when the receipt email has paid for too
// many distinct bookings inside the window. Retries of one idempotency key
// count once. Redis failures fail open.
type VelocityGateway struct {
	next   Gateway
	redis  *redis.Client
	config VelocityConfig
	logger *logging.Logger
}

// NewVelocityGateway wraps next.
func NewVelocityGateway(next Gateway, redisClient *redis.Client, config VelocityConfig, logger *logging.Logger) *VelocityGateway {
	if next == nil {
		panic("payments: velocity gateway needs a gateway to wrap")
	}
	if redisClient == nil {
		panic("payments: velocity gateway needs redis")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if config.Window <= 0 {
		config.Window = DefaultVelocityConfig().Window
	}
	return &VelocityGateway{next: next, redis: redisClient, config: config, logger: logger}
}

func (g *VelocityGateway) Charge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	email := strings.ToLower(strings.TrimSpace(req.ReceiptEmail))
	if g.config.MaxCharges <= 0 || email == "" || req.IdempotencyKey == "" {
		return g.next.Charge(ctx, req)
	}

	ctx, span := velocityTracer.Start(ctx, "velocity.check_charge")
	count, err := g.track(ctx, email, req.IdempotencyKey)
	span.SetAttributes(attribute.Int("velocity.count", count))
	span.End()
	if err != nil {
		g.logger.Error("velocity check failed", "error", err)
		return g.next.Charge(ctx, req)
	}
	if count > g.config.MaxCharges {
		g.logger.Warn("charge velocity exceeded",
			"idempotency_key", req.IdempotencyKey,
			"count", count,
			"max", g.config.MaxCharges,
		)
		return nil, &DeclinedError{
			Code:   "velocity_exceeded",
			Reason: fmt.Sprintf("more than %d bookings paid with this email in %s", g.config.MaxCharges, g.config.Window),
		}
	}
	return g.next.Charge(ctx, req)
}

// track adds key to the email's set and returns the set size. The window
// starts at the first charge.
func (g *VelocityGateway) track(ctx context.Context, email, key string) (int, error) {
	setKey := "velocity:charge:" + email
	pipe := g.redis.TxPipeline()
	added := pipe.SAdd(ctx, setKey, key)
	card := pipe.SCard(ctx, setKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	if added.Val() == 1 && card.Val() == 1 {
		if err := g.redis.Expire(ctx, setKey, g.config.Window).Err(); err != nil {
			return 0, err
		}
	}
	return int(card.Val()), nil
}

// Reset clears the counter for an email (staff override).
func (g *VelocityGateway) Reset(ctx context.Context, email string) error {
	return g.redis.Del(ctx, "velocity:charge:"+strings.ToLower(strings.TrimSpace(email))).Err()
}
