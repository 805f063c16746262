package mailer

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"github.com/CherryKingOne/WeiMeng/internal/observability"
)

func TestNewSMTPMailerRequiresHost(t *testing.T) {
	_, err := NewSMTPMailer(SMTPConfig{})
	assert.Error(t, err)
}

func TestNewSMTPMailerSender(t *testing.T) {
	_, err := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 25})
	assert.ErrorContains(t, err, "sender")

	m, err := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 25, From: "noreply@example.com", FromName: "WeiMeng"})
	require.NoError(t, err)

	msg, err := m.buildMessage("alice@example.com", "subject", "<p>html</p>", "text")
	require.NoError(t, err)
	from := msg.GetFromString()
	require.Len(t, from, 1)
	assert.Contains(t, from[0], "noreply@example.com")
}

func TestBuildMessage(t *testing.T) {
	m, err := NewSMTPMailer(SMTPConfig{
		Host:     "smtp.example.com",
		Port:     465,
		User:     "noreply@example.com",
		Password: "secret",
		UseTLS:   true,
		FromName: "WeiMeng",
	})
	require.NoError(t, err)

	msg, err := m.buildMessage("alice@example.com", "WeiMeng verification code", "<p>123456</p>", "123456")
	require.NoError(t, err)

	recipients, err := msg.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice@example.com"}, recipients)
	assert.Equal(t, []string{"WeiMeng verification code"}, msg.GetGenHeader(mail.HeaderSubject))

	from := msg.GetFromString()
	require.Len(t, from, 1)
	assert.Contains(t, from[0], "noreply@example.com")

	_, err = m.buildMessage("not an address", "s", "h", "t")
	assert.Error(t, err)
}

func TestLogMailer(t *testing.T) {
	logs := &bytes.Buffer{}
	m := NewLogMailer(observability.NewLoggerTo(logs))

	require.NoError(t, m.Send(context.Background(), "alice@example.com", "subject", "<p>html</p>", "text body"))
	assert.Contains(t, logs.String(), "email_not_sent_dev_mode")
	assert.Contains(t, logs.String(), "alice@example.com")
	assert.Contains(t, logs.String(), "text body")
}
