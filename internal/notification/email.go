package notification

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
)

// Message is a rendered email ready for delivery.
type Message struct {
	To       string
	ToName   string
	Subject  string
	HTMLBody string
	ReplyTo  string
}

// MailTrigger delivers rendered email. A non-nil error means the message was
// not sent; retrying is the implementation's business.
type MailTrigger interface {
	Send(ctx context.Context, msg Message) error
}

// ResendMailer sends mail through Resend.
type ResendMailer struct {
	client     *resend.Client
	fromEmail  string
	redirectTo string
}

// NewResendMailer creates a mailer. When redirectTo is set every message goes
// there instead, tagged with the original recipient; use it in development.
func NewResendMailer(apiKey, fromEmail, redirectTo string) *ResendMailer {
	if fromEmail == "" {
		fromEmail = "onboarding@resend.dev"
	}
	return &ResendMailer{
		client:     resend.NewClient(apiKey),
		fromEmail:  fromEmail,
		redirectTo: redirectTo,
	}
}

func (m *ResendMailer) Send(ctx context.Context, msg Message) error {
	to := msg.To
	if msg.ToName != "" {
		to = fmt.Sprintf("%s <%s>", msg.ToName, msg.To)
	}
	subject := msg.Subject
	if m.redirectTo != "" {
		subject = fmt.Sprintf("[DEV-REDIRECT] %s (Original: %s)", subject, msg.To)
		to = m.redirectTo
	}

	params := &resend.SendEmailRequest{
		From:    m.fromEmail,
		To:      []string{to},
		Subject: subject,
		Html:    msg.HTMLBody,
	}
	if msg.ReplyTo != "" {
		params.ReplyTo = msg.ReplyTo
	}

	if _, err := m.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("failed to send email via Resend: %w", err)
	}
	return nil
}
