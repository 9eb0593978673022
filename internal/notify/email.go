package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/wolfman30/patient-portal/pkg/logging"
)

const defaultFromName = "Patient Portal"

// ErrEmailRejected wraps non-2xx answers from an email provider.
var ErrEmailRejected = errors.New("notify: email rejected by provider")

// EmailSender delivers one staff email.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is a single-recipient email. HTML falls back to Body.
type EmailMessage struct {
	To      string
	ToName  string
	Subject string
	Body    string
	HTML    string
}

func (m EmailMessage) html() string {
	if m.HTML != "" {
		return m.HTML
	}
	return m.Body
}

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

type sendGridAPI interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridSender delivers staff notifications through the SendGrid v3 API.
type SendGridSender struct {
	api    sendGridAPI
	from   *mail.Email
	logger *logging.Logger
}

// NewSendGridSender returns nil without an API key so callers can fall
// through to the next provider.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	return newSendGridSender(sendgrid.NewSendClient(cfg.APIKey), cfg, logger)
}

func newSendGridSender(api sendGridAPI, cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	return &SendGridSender{
		api:    api,
		from:   mail.NewEmail(cfg.FromName, cfg.FromEmail),
		logger: logger.Component("sendgrid"),
	}
}

func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.api == nil {
		return errors.New("notify: sendgrid not configured")
	}
	to := mail.NewEmail(msg.ToName, msg.To)
	resp, err := s.api.SendWithContext(ctx, mail.NewSingleEmail(s.from, msg.Subject, to, msg.Body, msg.html()))
	if err != nil {
		return fmt.Errorf("notify: sendgrid send: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("%w: sendgrid returned no response", ErrEmailRejected)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Warn("sendgrid rejected email", "status", resp.StatusCode, "body", resp.Body)
		return fmt.Errorf("%w: sendgrid status %d", ErrEmailRejected, resp.StatusCode)
	}
	s.logger.Debug("staff email sent", "subject", msg.Subject, "status", resp.StatusCode)
	return nil
}

// StubEmailSender only logs. It is used when no provider is configured.
type StubEmailSender struct {
	logger *logging.Logger
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(_ context.Context, msg EmailMessage) error {
	s.logger.Info("no email provider configured, staff email not sent", "subject", msg.Subject)
	return nil
}

var (
	_ EmailSender = (*SendGridSender)(nil)
	_ EmailSender = (*StubEmailSender)(nil)
)
