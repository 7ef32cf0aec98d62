package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"
)

type MailerSendClient struct {
	client  *mailersend.Mailersend
	from    mailersend.From
	enabled bool
}

func NewMailerSend(apiKey, fromName, fromEmail string) *MailerSendClient {
	m := &MailerSendClient{
		enabled: apiKey != "" && fromEmail != "",
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
	}

	if m.enabled {
		m.client = mailersend.NewMailersend(apiKey)
	}

	return m
}

func (m *MailerSendClient) SendVerificationCode(toEmail, code string) error {
	if !m.enabled {
		return fmt.Errorf("MailerSend not configured")
	}

	subject := "Coastal Koffix OTP Verification"
	html := fmt.Sprintf(`
		<h2>Welcome to Coastal Koffix!</h2>
		<p>Your verification code is: <strong style="font-size: 24px;">%s</strong></p>
		<p>This code will expire in 5 minutes.</p>
		<p>If you didn't create an account with us, please ignore this email.</p>
	`, code)
	text := fmt.Sprintf("Your OTP is %s\n\nIt expires in 5 minutes.", code)

	return m.sendEmail(toEmail, subject, text, html)
}

func (m *MailerSendClient) SendPasswordResetCode(toEmail, code string) error {
	if !m.enabled {
		return fmt.Errorf("MailerSend not configured")
	}

	subject := "Password Reset OTP - Coastal Koffix"
	html := fmt.Sprintf(`
		<h2>Password Reset Request</h2>
		<p>Your password reset code is: <strong style="font-size: 24px;">%s</strong></p>
		<p>This code will expire in 5 minutes.</p>
		<p>If you didn't request a password reset, you can safely ignore this email.</p>
	`, code)
	text := fmt.Sprintf("Your password reset OTP is %s\n\nIt expires in 5 minutes.", code)

	return m.sendEmail(toEmail, subject, text, html)
}

func (m *MailerSendClient) sendEmail(toEmail, subject, text, html string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Email: toEmail}})
	msg.SetSubject(subject)

	if strings.TrimSpace(text) != "" {
		msg.SetText(text)
	}
	if strings.TrimSpace(html) != "" {
		msg.SetHTML(html)
	}

	_, err := m.client.Email.Send(ctx, msg)
	return err
}
