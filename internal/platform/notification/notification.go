// Package notification delivers the outbound insurer email composed at
// pre-authorization intake.
package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wneessen/go-mail"
)

// ErrNotConfigured is returned when a send is attempted without a complete
// mail relay configuration.
var ErrNotConfigured = errors.New("mail relay is not configured")

// Email is a single plain-text message.
type Email struct {
	From    string
	To      string
	Subject string
	Body    string
}

// EmailSender is the interface for sending email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, email Email) error
}

// SMTPConfig holds the four relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
}

func (c SMTPConfig) Configured() bool {
	return c.Host != "" && c.Port > 0 && c.User != "" && c.Password != ""
}

// SMTPSender sends through an authenticated SMTP relay. A fresh connection is
// dialed per message; intake sends at most one email per request.
type SMTPSender struct {
	cfg     SMTPConfig
	timeout time.Duration
}

// NewSMTPSender never fails. An incomplete config surfaces as
// ErrNotConfigured on the first send, so intake without email still works.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, timeout: 15 * time.Second}
}

func (s *SMTPSender) Configured() bool { return s.cfg.Configured() }

func (s *SMTPSender) SendEmail(ctx context.Context, email Email) error {
	if !s.cfg.Configured() {
		return ErrNotConfigured
	}

	msg, err := buildMessage(email)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(s.cfg.Host,
		mail.WithPort(s.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.User),
		mail.WithPassword(s.cfg.Password),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(s.timeout),
	)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send email to %s: %w", email.To, err)
	}
	return nil
}

func buildMessage(email Email) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(email.From); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", email.From, err)
	}
	if err := msg.To(email.To); err != nil {
		return nil, fmt.Errorf("invalid to address %q: %w", email.To, err)
	}
	msg.Subject(email.Subject)
	msg.SetBodyString(mail.TypeTextPlain, email.Body)
	return msg, nil
}

// MockEmailSender is a test double for EmailSender.
type MockEmailSender struct {
	mu         sync.Mutex
	calls      []Email
	ShouldFail bool
	FailError  error
}

// SendEmail records the call and optionally returns FailError.
func (m *MockEmailSender) SendEmail(_ context.Context, email Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, email)
	if m.ShouldFail {
		if m.FailError != nil {
			return m.FailError
		}
		return errors.New("mock send failure")
	}
	return nil
}

// Calls returns a copy of recorded email calls.
func (m *MockEmailSender) Calls() []Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Email, len(m.calls))
	copy(out, m.calls)
	return out
}
