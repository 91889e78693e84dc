package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/wizardoma/radiance-wellness/internal/events"
	"github.com/wizardoma/radiance-wellness/pkg/logging"
)

// Service formats and sends booking confirmations.
type Service struct {
	email      EmailSender
	staffEmail []string
	location   *time.Location
	logger     *logging.Logger
}

// NewService creates a notification service. staffRecipients receive a
// copy of every confirmation for the front desk.
func NewService(email EmailSender, staffRecipients []string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	var staff []string
	for _, r := range staffRecipients {
		if r = strings.TrimSpace(r); r != "" {
			staff = append(staff, r)
		}
	}
	return &Service{email: email, staffEmail: staff, location: time.UTC, logger: logger}
}

// WithLocation sets the spa's timezone for rendered times.
func (s *Service) WithLocation(loc *time.Location) *Service {
	if loc != nil {
		s.location = loc
	}
	return s
}

// NotifyBookingConfirmed emails the guest (when an address is known) and
// the staff recipients.
func (s *Service) NotifyBookingConfirmed(ctx context.Context, evt events.BookingConfirmedV1) error {
	if s.email == nil {
		s.logger.Debug("notify: email sender not configured, skipping confirmation", "reference", evt.Reference)
		return nil
	}

	var errs []error
	if evt.ContactEmail != "" {
		msg := EmailMessage{
			To:      evt.ContactEmail,
			ToName:  evt.ContactName,
			Subject: fmt.Sprintf("Your booking is confirmed (%s)", evt.Reference),
			Body:    s.guestBody(evt),
			HTML:    s.guestHTML(evt),
		}
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.Error("notify: guest confirmation failed", "error", err, "reference", evt.Reference)
			errs = append(errs, err)
		}
	}

	if len(s.staffEmail) > 0 {
		subject := fmt.Sprintf("New booking %s: %s, %s %s", evt.Reference, serviceLabel(evt), evt.Date, evt.Time)
		body := Summary(evt)
		for _, recipient := range s.staffEmail {
			if err := s.email.Send(ctx, EmailMessage{To: recipient, Subject: subject, Body: body}); err != nil {
				s.logger.Error("notify: staff notification failed", "error", err, "to", recipient)
				errs = append(errs, err)
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d notification(s) failed: %w", len(errs), errors.Join(errs...))
	}
	s.logger.Info("notify: booking confirmation sent", "reference", evt.Reference)
	return nil
}

func (s *Service) when(evt events.BookingConfirmedV1) string {
	t, err := time.ParseInLocation("2006-01-02 15:04", evt.Date+" "+evt.Time, s.location)
	if err != nil {
		return strings.TrimSpace(evt.Date + " " + evt.Time)
	}
	return t.Format("Monday, January 2 at 3:04 PM")
}

func (s *Service) guestBody(evt events.BookingConfirmedV1) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", firstName(evt.ContactName))
	fmt.Fprintf(&b, "Your %s is booked for %s.\n\n", serviceLabel(evt), s.when(evt))
	fmt.Fprintf(&b, "Reference: %s\n", evt.Reference)
	fmt.Fprintf(&b, "Guests: %d\n", evt.Guests)
	fmt.Fprintf(&b, "Total: %s\n", formatCents(evt.GrandTotal, evt.Currency))
	if evt.AmountCharged > 0 {
		fmt.Fprintf(&b, "Paid today: %s\n", formatCents(evt.AmountCharged, evt.Currency))
	}
	b.WriteString("\nPlease arrive 10 minutes early. Reply to this email to change your booking.\n\n")
	b.WriteString(DefaultFromName)
	return b.String()
}

func (s *Service) guestHTML(evt events.BookingConfirmedV1) string {
	esc := html.EscapeString
	return fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2>Your booking is confirmed</h2>
<p>Hi %s, your <strong>%s</strong> is booked for <strong>%s</strong>.</p>
<table style="border-collapse: collapse; margin: 20px 0;">
  <tr><td style="padding: 8px;"><strong>Reference</strong></td><td style="padding: 8px;">%s</td></tr>
  <tr><td style="padding: 8px;"><strong>Guests</strong></td><td style="padding: 8px;">%d</td></tr>
  <tr><td style="padding: 8px;"><strong>Total</strong></td><td style="padding: 8px;">%s</td></tr>
</table>
<p style="color: #6b7280; font-size: 12px;">%s</p>
</div>`,
		esc(firstName(evt.ContactName)), esc(serviceLabel(evt)), esc(s.when(evt)),
		esc(evt.Reference), evt.Guests, esc(formatCents(evt.GrandTotal, evt.Currency)), DefaultFromName)
}

// Summary renders a booking for staff: who, what, when and what was paid.
func Summary(evt events.BookingConfirmedV1) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Booking %s (%s)\n", evt.Reference, evt.Variant)
	fmt.Fprintf(&b, "Guest: %s", evt.ContactName)
	if evt.ContactPhone != "" {
		fmt.Fprintf(&b, ", %s", evt.ContactPhone)
	}
	if evt.ContactEmail != "" {
		fmt.Fprintf(&b, ", %s", evt.ContactEmail)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Service: %s, %d min x %d guest(s)\n", serviceLabel(evt), evt.Duration, evt.Guests)
	if len(evt.AddOnIDs) > 0 {
		fmt.Fprintf(&b, "Add-ons: %s\n", strings.Join(evt.AddOnIDs, ", "))
	}
	fmt.Fprintf(&b, "When: %s %s\n", evt.Date, evt.Time)
	if evt.StaffID != "" {
		fmt.Fprintf(&b, "Staff: %s\n", evt.StaffID)
	}
	fmt.Fprintf(&b, "Total: %s, charged %s\n", formatCents(evt.GrandTotal, evt.Currency), formatCents(evt.AmountCharged, evt.Currency))
	return b.String()
}

func serviceLabel(evt events.BookingConfirmedV1) string {
	if evt.ServiceName != "" {
		return evt.ServiceName
	}
	return evt.ServiceID
}

func firstName(name string) string {
	if fields := strings.Fields(name); len(fields) > 0 {
		return fields[0]
	}
	return "there"
}

func formatCents(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	amount := fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
	switch strings.ToLower(currency) {
	case "", "usd":
		return "$" + amount
	default:
		return amount + " " + strings.ToUpper(currency)
	}
}
