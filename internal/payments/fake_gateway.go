package payments

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/wizardoma/radiance-wellness/pkg/logging"
)

// FakeGateway is a dev/demo provider that approves every payment method
// except the well-known decline tokens.
//
// This MUST be gated by configuration (ALLOW_FAKE_PAYMENTS) and should never
// be enabled in production.
type FakeGateway struct {
	logger *logging.Logger

	mu      sync.Mutex
	charges map[string]*Charge
}

// fakeDeclines maps test payment methods to decline codes.
var fakeDeclines = map[string]string{
	"pm_card_declined":                        "card_declined",
	"pm_card_chargedeclinedinsufficientfunds": "insufficient_funds",
	"pm_card_expired":                         "expired_card",
}

func NewFakeGateway(logger *logging.Logger) *FakeGateway {
	if logger == nil {
		logger = logging.Default()
	}
	return &FakeGateway{logger: logger, charges: make(map[string]*Charge)}
}

// Charge approves or declines deterministically. Replaying a key returns the
// first charge.
func (g *FakeGateway) Charge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	_ = ctx
	if err := req.validate(); err != nil {
		return nil, err
	}
	if code, ok := fakeDeclines[strings.ToLower(strings.TrimSpace(req.PaymentMethod))]; ok {
		g.logger.Info("fake payment declined", "idempotency_key", req.IdempotencyKey, "code", code)
		return nil, &DeclinedError{Code: code, Reason: "declined by test payment method"}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if existing, ok := g.charges[req.IdempotencyKey]; ok {
		return existing, nil
	}
	charge := &Charge{
		ID:       "fake_" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(req.IdempotencyKey)).String(),
		Provider: "fake",
		Amount:   req.Amount,
		Currency: strings.ToLower(req.Currency),
		Status:   "succeeded",
	}
	g.charges[req.IdempotencyKey] = charge
	g.logger.Info("fake payment captured", "idempotency_key", req.IdempotencyKey, "amount", req.Amount)
	return charge, nil
}

// Charges returns how many distinct charges were captured.
func (g *FakeGateway) Charges() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.charges)
}
