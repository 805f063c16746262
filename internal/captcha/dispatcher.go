package captcha

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"strings"
	"text/template"
	"time"

	"github.com/CherryKingOne/WeiMeng/internal/mailer"
)

var ErrCaptchaSendFailed = errors.New("captcha send failed")

type Dispatcher struct {
	store    *Store
	mailer   mailer.Mailer
	ttl      time.Duration
	fromName string
}

func NewDispatcher(store *Store, m mailer.Mailer, ttl time.Duration, fromName string) *Dispatcher {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Dispatcher{store: store, mailer: m, ttl: ttl, fromName: fromName}
}

// Send issues a fresh code for email and mails it. Delivery failures are
// reported as ErrCaptchaSendFailed; the code stays stored until its TTL.
func (d *Dispatcher) Send(ctx context.Context, email string, purpose Purpose) error {
	code, err := d.store.Issue(ctx, email, d.ttl, purpose)
	if err != nil {
		return err
	}

	msg, err := d.render(code)
	if err != nil {
		return fmt.Errorf("render captcha email: %w", err)
	}

	if err := d.mailer.Send(ctx, email, msg.Subject, msg.HTML, msg.Text); err != nil {
		return fmt.Errorf("%w: %v", ErrCaptchaSendFailed, err)
	}

	return nil
}

type message struct {
	Subject string
	HTML    string
	Text    string
}

type emailContent struct {
	FromName   string
	Heading    string
	Intro      string
	Code       string
	Footer     string
	FooterNote string
}

func (d *Dispatcher) render(code Code) (message, error) {
	minutes := int(code.TTL.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}

	content := emailContent{
		FromName: d.fromName,
		Code:     code.Code,
		Footer:   fmt.Sprintf("This code expires in %d minutes.", minutes),
	}

	var subject string
	switch code.Purpose {
	case PurposePasswordReset:
		subject = strings.TrimSpace(d.fromName + " password reset code")
		content.Heading = "Reset your password"
		content.Intro = "You asked to reset your password. Your one-time code is:"
		content.FooterNote = "If you did not ask for a password reset, you can ignore this email."
	default:
		subject = strings.TrimSpace(d.fromName + " verification code")
		content.Heading = "Verify your email"
		content.Intro = "Use this one-time code to continue:"
		content.FooterNote = "If you did not request this code, you can ignore this email."
	}

	var html bytes.Buffer
	if err := htmlBody.Execute(&html, content); err != nil {
		return message{}, err
	}
	var text bytes.Buffer
	if err := textBody.Execute(&text, content); err != nil {
		return message{}, err
	}

	return message{Subject: subject, HTML: html.String(), Text: text.String()}, nil
}

var htmlBody = htmltemplate.Must(htmltemplate.New("captcha.html").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Heading}}</title></head>
<body style="margin:0;padding:0;font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,Helvetica,Arial,sans-serif;background-color:#ffffff;color:#111827;">
  <div style="max-width:480px;margin:40px auto;padding:40px;border:1px solid #e5e7eb;border-radius:12px;">
    <h1 style="margin:0 0 16px 0;font-size:24px;font-weight:600;">{{.Heading}}</h1>
    <p style="margin:0 0 24px 0;font-size:14px;color:#4b5563;line-height:1.5;">{{.Intro}}</p>
    <div style="margin-bottom:24px;font-size:32px;font-weight:500;letter-spacing:4px;">{{.Code}}</div>
    <hr style="border:none;border-top:1px solid #e5e7eb;margin:24px 0;">
    <p style="margin:0 0 12px 0;font-size:12px;color:#6b7280;">{{.Footer}}</p>
    <p style="margin:0;font-size:12px;color:#6b7280;">{{.FooterNote}}</p>
  </div>
</body>
</html>
`))

var textBody = template.Must(template.New("captcha.txt").Parse(`{{.Heading}}

{{.Intro}}
{{.Code}}

{{.Footer}}
{{.FooterNote}}
`))
