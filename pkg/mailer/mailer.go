package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"freezefit/pkg/logger"
	"freezefit/pkg/metrics"

	"github.com/wneessen/go-mail"
)

var ErrNoRecipient = errors.New("mail has no recipient")

type Mail struct {
	To       string
	ToName   string
	Subject  string
	HTML     string
	Template string
}

type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

type SMTPMailer struct {
	cfg SMTPConfig
	log *logger.Logger
}

func NewSMTPMailer(cfg SMTPConfig, log *logger.Logger) *SMTPMailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SMTPMailer{cfg: cfg, log: log}
}

func (s *SMTPMailer) Send(ctx context.Context, m Mail) error {
	msg, err := s.buildMessage(m)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(s.cfg.Timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}

	err = client.DialAndSendWithContext(ctx, msg)
	metrics.RecordMail(m.Template, err)
	if err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", m.To, err)
	}

	s.log.Info("Mail sent", "template", m.Template, "to", m.To)
	return nil
}

func (s *SMTPMailer) buildMessage(m Mail) (*mail.Msg, error) {
	if m.To == "" {
		return nil, ErrNoRecipient
	}

	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if m.ToName != "" {
		if err := msg.AddToFormat(m.ToName, m.To); err != nil {
			return nil, fmt.Errorf("invalid recipient address: %w", err)
		}
	} else if err := msg.To(m.To); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(mail.TypeTextHTML, m.HTML)
	return msg, nil
}

// LogMailer logs mails instead of sending them. Used when no SMTP host is
// configured.
type LogMailer struct {
	log *logger.Logger
}

func NewLogMailer(log *logger.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (l *LogMailer) Send(_ context.Context, m Mail) error {
	if m.To == "" {
		return ErrNoRecipient
	}
	metrics.RecordMail(m.Template, nil)
	l.log.Info("Mail not sent (no SMTP host configured)",
		"template", m.Template,
		"to", m.To,
		"subject", m.Subject,
	)
	return nil
}
