package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/wizardoma/radiance-wellness/pkg/logging"
)

// SQSSendAPI is the subset of the SQS client used by SQSPublisher.
type SQSSendAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher forwards outbox envelopes to an SQS queue for downstream
// systems (CRM sync, analytics). Delivery is at least once; receivers
// dedupe on the event_id attribute. FIFO queues also get a deduplication
// id and one message group per aggregate.
type SQSPublisher struct {
	client   SQSSendAPI
	queueURL string
	fifo     bool
	logger   *logging.Logger
}

func NewSQSPublisher(client SQSSendAPI, queueURL string, logger *logging.Logger) *SQSPublisher {
	if client == nil {
		panic("events: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("events: SQS queueURL cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SQSPublisher{
		client:   client,
		queueURL: queueURL,
		fifo:     strings.HasSuffix(queueURL, ".fifo"),
		logger:   logger,
	}
}

// Handle implements DeliveryHandler.
func (p *SQSPublisher) Handle(ctx context.Context, entry OutboxEntry) error {
	body, err := json.Marshal(entry.Envelope)
	if err != nil {
		return fmt.Errorf("events: marshal envelope %s: %w", entry.ID, err)
	}
	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"event_id":   {DataType: aws.String("String"), StringValue: aws.String(entry.ID.String())},
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(entry.Type)},
		},
	}
	if p.fifo {
		input.MessageDeduplicationId = aws.String(entry.ID.String())
		input.MessageGroupId = aws.String(entry.Aggregate)
	}
	out, err := p.client.SendMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("events: failed to send SQS message: %w", err)
	}
	p.logger.Debug("event published to SQS",
		"event_id", entry.ID,
		"type", entry.Type,
		"message_id", aws.ToString(out.MessageId),
	)
	return nil
}

// FanOut delivers each entry to every handler. All handlers run; the entry
// stays pending if any of them failed, so handlers must tolerate
// redelivery.
type FanOut []DeliveryHandler

func (f FanOut) Handle(ctx context.Context, entry OutboxEntry) error {
	var errs []error
	for _, h := range f {
		if h == nil {
			continue
		}
		if err := h.Handle(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
