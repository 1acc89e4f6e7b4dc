package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/dental-agenda/internal/appointments"
	"github.com/wolfman30/dental-agenda/internal/share"
	"github.com/wolfman30/dental-agenda/pkg/logging"
)

// ErrNoRecipient is returned when neither the request nor the appointment
// carries an email address.
var ErrNoRecipient = errors.New("notify: no recipient email address")

// SummaryMailer sends a patient their appointment summary.
type SummaryMailer struct {
	sender  EmailSender
	builder *share.Builder
	loc     *time.Location
	logger  *logging.Logger
}

func NewSummaryMailer(sender EmailSender, builder *share.Builder, loc *time.Location, logger *logging.Logger) *SummaryMailer {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &SummaryMailer{sender: sender, builder: builder, loc: loc, logger: logger}
}

// Send emails the summary of appt to the address stored on it, never to a
// caller-chosen one.
func (m *SummaryMailer) Send(ctx context.Context, appt appointments.Appointment) error {
	to := strings.TrimSpace(appt.Email)
	if to == "" {
		return ErrNoRecipient
	}

	subject, err := m.builder.Subject(appt)
	if err != nil {
		return fmt.Errorf("notify: render subject: %w", err)
	}
	body, err := m.builder.Reminder(appt)
	if err != nil {
		return fmt.Errorf("notify: render body: %w", err)
	}
	html, err := m.builder.SummaryHTML(appt, m.loc)
	if err != nil {
		return fmt.Errorf("notify: render html: %w", err)
	}

	if err := m.sender.Send(ctx, EmailMessage{
		To:      to,
		ToName:  appt.Name,
		Subject: subject,
		Body:    body,
		HTML:    string(html),
		Tags:    map[string]string{"appointment_id": appt.ID, "kind": "summary"},
	}); err != nil {
		return err
	}
	m.logger.Info("appointment summary emailed", "appointment_id", appt.ID)
	return nil
}
