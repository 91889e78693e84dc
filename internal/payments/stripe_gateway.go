package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wizardoma/radiance-wellness/pkg/logging"
)

var stripeTracer = otel.Tracer("radiance.internal.payments.stripe")

// StripeGateway charges cards with confirmed PaymentIntents.
type StripeGateway struct {
	api    *client.API
	logger *logging.Logger
}

// NewStripeGateway creates a gateway for the secret key. backends may be nil
// to use Stripe's production endpoints.
func NewStripeGateway(secretKey string, backends *stripe.Backends, logger *logging.Logger) (*StripeGateway, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, errors.New("payments: stripe secret key required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &StripeGateway{api: client.New(secretKey, backends), logger: logger}, nil
}

// Charge creates and confirms a PaymentIntent. The idempotency key is sent
// to Stripe so a retried request returns the original intent.
func (g *StripeGateway) Charge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	ctx, span := stripeTracer.Start(ctx, "stripe.charge")
	defer span.End()
	span.SetAttributes(
		attribute.String("radiance.idempotency_key", req.IdempotencyKey),
		attribute.Int64("radiance.amount_cents", req.Amount),
	)

	if err := req.validate(); err != nil {
		return nil, err
	}
	if req.PaymentMethod == "" {
		return nil, fmt.Errorf("%w: payment method required", ErrInvalidCharge)
	}

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(req.Amount),
		Currency:           stripe.String(strings.ToLower(req.Currency)),
		PaymentMethod:      stripe.String(req.PaymentMethod),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Confirm:            stripe.Bool(true),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(req.ReceiptEmail)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		span.RecordError(err)
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			code := string(stripeErr.DeclineCode)
			if code == "" {
				code = string(stripeErr.Code)
			}
			g.logger.Info("stripe payment declined", "idempotency_key", req.IdempotencyKey, "code", code)
			return nil, &DeclinedError{Code: code, Reason: stripeErr.Msg}
		}
		return nil, fmt.Errorf("payments: stripe create payment intent: %w", err)
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded, stripe.PaymentIntentStatusProcessing:
	case stripe.PaymentIntentStatusRequiresAction:
		return nil, &DeclinedError{Code: "authentication_required", Reason: "card requires authentication"}
	default:
		return nil, &DeclinedError{Code: string(pi.Status), Reason: "payment intent not completed"}
	}

	g.logger.Info("stripe payment captured", "payment_intent", pi.ID, "amount", pi.Amount)
	return &Charge{
		ID:       pi.ID,
		Provider: "stripe",
		Amount:   pi.Amount,
		Currency: string(pi.Currency),
		Status:   string(pi.Status),
	}, nil
}
