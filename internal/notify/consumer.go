package notify

import (
	"context"
	"fmt"

	"github.com/wizardoma/radiance-wellness/internal/events"
	"github.com/wizardoma/radiance-wellness/pkg/logging"
)

// ConsumerName identifies this handler in processed_events.
const ConsumerName = "booking_confirmation_email"

// ConfirmationConsumer turns booking.confirmed outbox entries into emails.
// Each event is sent at most once per tracker, so redelivery after a crash
// does not email the guest twice.
type ConfirmationConsumer struct {
	service   *Service
	processed events.ProcessedTracker
	logger    *logging.Logger
}

// NewConfirmationConsumer creates the outbox handler. processed may be nil.
func NewConfirmationConsumer(service *Service, processed events.ProcessedTracker, logger *logging.Logger) *ConfirmationConsumer {
	if service == nil {
		panic("notify: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ConfirmationConsumer{service: service, processed: processed, logger: logger}
}

func (c *ConfirmationConsumer) Handle(ctx context.Context, entry events.OutboxEntry) error {
	if entry.Type != events.TypeBookingConfirmed {
		return nil
	}
	eventID := entry.ID.String()
	if c.processed != nil {
		seen, err := c.processed.AlreadyProcessed(ctx, ConsumerName, eventID)
		if err != nil {
			return fmt.Errorf("notify: check processed: %w", err)
		}
		if seen {
			c.logger.Debug("notify: confirmation already sent", "event_id", eventID)
			return nil
		}
	}

	var evt events.BookingConfirmedV1
	if err := entry.Envelope.Decode(&evt); err != nil {
		// A payload that cannot be decoded never will be; drop it.
		c.logger.Error("notify: undecodable confirmation event", "error", err, "event_id", eventID)
		return nil
	}
	if err := c.service.NotifyBookingConfirmed(ctx, evt); err != nil {
		return err
	}

	if c.processed != nil {
		if _, err := c.processed.MarkProcessed(ctx, ConsumerName, eventID); err != nil {
			c.logger.Warn("notify: mark processed failed", "error", err, "event_id", eventID)
		}
	}
	return nil
}
