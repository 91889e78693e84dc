package notify

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

func TestNewSendGridSender_NilWithoutAPIKey(t *testing.T) {
	if sender := NewSendGridSender(SendGridConfig{FromEmail: "desk@example.com"}, nil); sender != nil {
		t.Error("expected nil sender when API key is empty")
	}
}

func TestNewSendGridSender_DefaultFromName(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{APIKey: "test-key", FromEmail: "desk@example.com"}, nil)
	if sender == nil {
		t.Fatal("expected non-nil sender")
	}
	if sender.fromName != DefaultFromName {
		t.Errorf("expected default from name %q, got %q", DefaultFromName, sender.fromName)
	}
}

type fakeSendGrid struct {
	status int
	err    error
	sent   []*mail.SGMailV3
}

func (f *fakeSendGrid) SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	f.sent = append(f.sent, email)
	if f.err != nil {
		return nil, f.err
	}
	return &rest.Response{StatusCode: f.status}, nil
}

func TestSendGridSender_Send(t *testing.T) {
	client := &fakeSendGrid{status: http.StatusAccepted}
	sender := &SendGridSender{client: client, fromEmail: "desk@example.com", fromName: DefaultFromName}

	err := sender.Send(context.Background(), EmailMessage{To: "ada@example.com", ToName: "Ada", Subject: "Hi", Body: "plain"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(client.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(client.sent))
	}
	if got := client.sent[0].Subject; got != "Hi" {
		t.Errorf("unexpected subject %q", got)
	}
}

func TestSendGridSender_SendErrors(t *testing.T) {
	sender := &SendGridSender{client: &fakeSendGrid{status: http.StatusBadRequest}}
	if err := sender.Send(context.Background(), EmailMessage{To: "ada@example.com"}); err == nil {
		t.Error("expected error for 4xx status")
	}
	sender = &SendGridSender{client: &fakeSendGrid{err: errors.New("dial tcp: timeout")}}
	if err := sender.Send(context.Background(), EmailMessage{To: "ada@example.com"}); err == nil {
		t.Error("expected transport error")
	}
	sender = &SendGridSender{}
	if err := sender.Send(context.Background(), EmailMessage{To: "ada@example.com"}); err == nil {
		t.Error("expected error when client is nil")
	}
}

type fakeSES struct {
	input *sesv2.SendEmailInput
}

func (f *fakeSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESSender_Send(t *testing.T) {
	client := &fakeSES{}
	sender := newSESSender(client, SESConfig{FromEmail: "desk@example.com"}, nil)

	err := sender.Send(context.Background(), EmailMessage{
		To:      "ada@example.com",
		ToName:  "Ada Lovelace",
		Subject: "Booked",
		Body:    "plain",
		HTML:    "<p>html</p>",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	in := client.input
	if got := aws.ToString(in.FromEmailAddress); got != "Radiance Wellness <desk@example.com>" {
		t.Errorf("unexpected from %q", got)
	}
	if got := in.Destination.ToAddresses[0]; got != "Ada Lovelace <ada@example.com>" {
		t.Errorf("unexpected to %q", got)
	}
	if in.Content.Simple.Body.Text == nil || in.Content.Simple.Body.Html == nil {
		t.Error("expected both text and html bodies")
	}
}

func TestNewSESSender_NilClient(t *testing.T) {
	if sender := NewSESSender(nil, SESConfig{}, nil); sender != nil {
		t.Error("expected nil sender without a client")
	}
}

func TestStubEmailSender_Send(t *testing.T) {
	if err := NewStubEmailSender(nil).Send(context.Background(), EmailMessage{To: "ada@example.com"}); err != nil {
		t.Errorf("stub sender should not return error, got: %v", err)
	}
}
