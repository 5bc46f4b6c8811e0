// Package delivery renders one-time codes and hands them to the email or SMS transport.
package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/atelier-api/internal/domain"
	"github.com/atelier-api/internal/pkg/metrics"
)

// Kinds of code a message can carry.
const (
	KindRegistration  = "registration"
	KindPasswordReset = "password_reset"
	KindLogin         = "login"
)

// Message is a rendered-on-send OTP notification. It is JSON-encoded when queued.
type Message struct {
	Channel   domain.Channel `json:"channel"`
	To        string         `json:"to"`
	Name      string         `json:"name,omitempty"`
	Code      string         `json:"code"`
	Kind      string         `json:"kind"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Dispatcher accepts a message for delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

type mailer interface {
	SendEmail(to, subject, body string) error
}

type smsSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// Sender delivers messages synchronously over SMTP or SNS.
type Sender struct {
	mailer mailer
	sms    smsSender
}

func NewSender(m mailer, sms smsSender) *Sender {
	return &Sender{mailer: m, sms: sms}
}

func (s *Sender) Dispatch(ctx context.Context, msg Message) error {
	err := s.send(ctx, msg)
	status := "sent"
	if err != nil {
		status = "failed"
	}
	metrics.Deliveries.WithLabelValues(string(msg.Channel), status).Inc()
	return err
}

func (s *Sender) send(ctx context.Context, msg Message) error {
	switch msg.Channel {
	case domain.ChannelEmail:
		if s.mailer == nil {
			return fmt.Errorf("no mailer configured: %w", domain.ErrDependency)
		}
		subject, body := renderEmail(msg)
		return s.mailer.SendEmail(msg.To, subject, body)
	case domain.ChannelPhone:
		if s.sms == nil {
			return fmt.Errorf("no sms sender configured: %w", domain.ErrDependency)
		}
		return s.sms.SendSMS(ctx, msg.To, renderSMS(msg))
	}
	return fmt.Errorf("unsupported channel %q: %w", msg.Channel, domain.ErrValidation)
}

func renderEmail(msg Message) (subject, body string) {
	greeting := "Hello,"
	if msg.Name != "" {
		greeting = "Hello " + msg.Name + ","
	}
	switch msg.Kind {
	case KindPasswordReset:
		subject = "Reset your password"
	case KindLogin:
		subject = "Your sign-in code"
	default:
		subject = "Verify your account"
	}
	body = fmt.Sprintf("%s\r\n\r\nYour verification code is %s. It expires at %s UTC.\r\n",
		greeting, msg.Code, msg.ExpiresAt.UTC().Format("15:04"))
	return subject, body
}

func renderSMS(msg Message) string {
	return "Your verification code is " + msg.Code
}
