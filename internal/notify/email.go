package notify

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"sync"

	"github.com/wolfman30/dental-agenda/pkg/logging"
)

// EmailSender delivers one email. SES, SendGrid and the stub are
// interchangeable behind it.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is one outbound email. Tags travel as provider metadata
// (SES message tags, SendGrid custom args) so bounces can be traced back to
// an appointment.
type EmailMessage struct {
	To      string
	ToName  string
	Subject string
	Body    string
	HTML    string
	ReplyTo string
	Tags    map[string]string
}

const defaultFromName = "Clínica Dental"

// Sender is the identity outgoing mail is sent as.
type Sender struct {
	Email   string
	Name    string
	ReplyTo string
}

func (s Sender) withDefaults() Sender {
	s.Email = strings.TrimSpace(s.Email)
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		s.Name = defaultFromName
	}
	return s
}

// Address renders the RFC 5322 From header value.
func (s Sender) Address() string {
	return (&mail.Address{Name: s.Name, Address: s.Email}).String()
}

// replyTo prefers the per-message address over the sender default.
func (s Sender) replyTo(msg EmailMessage) string {
	if r := strings.TrimSpace(msg.ReplyTo); r != "" {
		return r
	}
	return s.ReplyTo
}

func checkRecipient(msg EmailMessage) error {
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("notify: %w", ErrNoRecipient)
	}
	return nil
}

// StubEmailSender logs instead of sending and keeps what it was given.
type StubEmailSender struct {
	logger *logging.Logger

	mu   sync.Mutex
	sent []EmailMessage
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	if err := checkRecipient(msg); err != nil {
		return err
	}
	s.logger.Info("email not delivered (stub provider)", "to", msg.To, "subject", msg.Subject, "tags", msg.Tags)
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()
	return nil
}

// Sent returns the messages captured so far.
func (s *StubEmailSender) Sent() []EmailMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EmailMessage, len(s.sent))
	copy(out, s.sent)
	return out
}

var _ EmailSender = (*StubEmailSender)(nil)
