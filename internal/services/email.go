package services

import (
	"context"
	"errors"
	"strings"

	"github.com/matchbook/notifier/pkg/mail"
	"github.com/matchbook/notifier/pkg/metrics"
)

// OutboundEmail is a rendered notification email ready for delivery.
type OutboundEmail struct {
	NotificationID string `json:"notification_id"`
	To             string `json:"to"`
	Subject        string `json:"subject"`
	TextBody       string `json:"text_body"`
	HTMLBody       string `json:"html_body,omitempty"`
}

// Message converts the email into the mail package representation.
func (e OutboundEmail) Message() mail.Message {
	return mail.Message{
		To:       []string{e.To},
		Subject:  e.Subject,
		Body:     e.TextBody,
		HTMLBody: e.HTMLBody,
	}
}

// EmailSender delivers notification emails, either inline or through a queue.
type EmailSender interface {
	SendEmail(ctx context.Context, email OutboundEmail) error
}

// MailerSender delivers emails synchronously through a mail.Mailer.
type MailerSender struct {
	mailer mail.Mailer
}

// NewMailerSender wraps mailer. A nil mailer yields a nil sender.
func NewMailerSender(mailer mail.Mailer) *MailerSender {
	if mailer == nil {
		return nil
	}
	return &MailerSender{mailer: mailer}
}

// SendEmail sends the message. A disabled SMTP configuration is not treated as a failure.
func (s *MailerSender) SendEmail(ctx context.Context, email OutboundEmail) error {
	if strings.TrimSpace(email.To) == "" {
		return errors.New("email sender: recipient is required")
	}

	err := s.mailer.Send(ensureContext(ctx), email.Message())
	switch {
	case errors.Is(err, mail.ErrSMTPDisabled):
		metrics.EmailDeliveries.WithLabelValues("inline", "disabled").Inc()
		return nil
	case err != nil:
		metrics.EmailDeliveries.WithLabelValues("inline", "failure").Inc()
		return err
	}
	metrics.EmailDeliveries.WithLabelValues("inline", "success").Inc()
	return nil
}
