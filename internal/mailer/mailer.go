// Package mailer delivers outbound email.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/CherryKingOne/WeiMeng/internal/observability"
)

type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	UseTLS   bool
	// From is the sender address. It falls back to User.
	From     string
	FromName string
	Timeout  time.Duration
}

type SMTPMailer struct {
	client   *mail.Client
	from     string
	fromName string
}

func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("smtp host is required")
	}
	from := strings.TrimSpace(cfg.From)
	if from == "" {
		from = strings.TrimSpace(cfg.User)
	}
	if from == "" {
		return nil, errors.New("smtp sender is required: set a from address or a user")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	tlsPolicy := mail.TLSOpportunistic
	if cfg.UseTLS {
		tlsPolicy = mail.TLSMandatory
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(tlsPolicy),
		mail.WithTimeout(cfg.Timeout),
	}
	if cfg.UseTLS && cfg.Port == 465 {
		opts = append(opts, mail.WithSSL())
	}
	if cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.User),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return &SMTPMailer{client: client, from: from, fromName: cfg.FromName}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	msg, err := m.buildMessage(to, subject, htmlBody, textBody)
	if err != nil {
		return err
	}

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (m *SMTPMailer) buildMessage(to, subject, htmlBody, textBody string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.FromFormat(m.fromName, m.from); err != nil {
		return nil, fmt.Errorf("set from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("set to: %w", err)
	}
	msg.Subject(subject)
	if textBody != "" {
		msg.SetBodyString(mail.TypeTextPlain, textBody)
		msg.AddAlternativeString(mail.TypeTextHTML, htmlBody)
	} else {
		msg.SetBodyString(mail.TypeTextHTML, htmlBody)
	}
	return msg, nil
}

// LogMailer stands in for SMTP in development: it logs the envelope and the
// text body instead of sending.
type LogMailer struct {
	logger *observability.Logger
}

func NewLogMailer(logger *observability.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, to, subject, _, textBody string) error {
	m.logger.InfoContext(ctx, "email_not_sent_dev_mode", map[string]any{
		"to":      to,
		"subject": subject,
		"body":    textBody,
	})
	return nil
}
