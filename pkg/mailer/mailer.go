package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"golang.org/x/time/rate"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Message is a single transactional email.
type Message struct {
	To      string
	ToName  string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers transactional email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type sendClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

var (
	ErrRecipientRequired = errors.New("recipient is required")
	ErrSubjectRequired   = errors.New("subject is required")
)

// SendgridMailer sends mail through the SendGrid v3 API, throttled to the configured rate.
type SendgridMailer struct {
	client  sendClient
	limiter *rate.Limiter
	from    *mail.Email
	logg    *logger.Logger
}

// New returns a SendGrid backed sender, or a logging no-op sender when no API key is configured.
func New(cfg config.SendgridConfig, logg *logger.Logger) (Sender, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		if logg != nil {
			logg.Warn(context.Background(), "sendgrid api key not configured; emails will only be logged")
		}
		return &LogMailer{logg: logg}, nil
	}
	if strings.TrimSpace(cfg.DefaultFrom) == "" {
		return nil, fmt.Errorf("sendgrid from email is required")
	}
	return newSendgridMailer(sendgrid.NewSendClient(cfg.APIKey), cfg, logg), nil
}

func newSendgridMailer(client sendClient, cfg config.SendgridConfig, logg *logger.Logger) *SendgridMailer {
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 1
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &SendgridMailer{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		from:    mail.NewEmail(cfg.FromName, cfg.DefaultFrom),
		logg:    logg,
	}
}

// Send validates the message, waits for a rate slot and posts it to SendGrid.
func (m *SendgridMailer) Send(ctx context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	if err := m.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for send slot: %w", err)
	}

	to := mail.NewEmail(msg.ToName, strings.TrimSpace(msg.To))
	email := mail.NewSingleEmail(m.from, msg.Subject, to, msg.Text, msg.HTML)
	resp, err := m.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp != nil && resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, truncate(resp.Body, 256))
	}

	if m.logg != nil {
		m.logg.Info(m.logg.WithFields(ctx, map[string]any{
			"to":      msg.To,
			"subject": msg.Subject,
		}), "email sent")
	}
	return nil
}

// LogMailer records emails in the log instead of sending them.
type LogMailer struct {
	logg *logger.Logger
}

func (l *LogMailer) Send(ctx context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	if l.logg != nil {
		l.logg.Info(l.logg.WithFields(ctx, map[string]any{
			"to":      msg.To,
			"subject": msg.Subject,
		}), "email send skipped")
	}
	return nil
}

func validate(msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return ErrRecipientRequired
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return ErrSubjectRequired
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
