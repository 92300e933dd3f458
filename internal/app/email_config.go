package app

import (
	"strings"

	"github.com/matchbook/notifier/internal/services"
	"github.com/matchbook/notifier/pkg/mail"
)

// SMTPSettings converts EmailConfig to the mail package representation.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	return mail.SMTPSettings{
		Enabled:  c.SMTP.Enabled,
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.SMTP.From,
		UseTLS:   c.SMTP.UseTLS,
		Timeout:  c.SMTP.Timeout,
	}
}

// TemplateSettings converts EmailConfig into the notification email renderer settings.
func (c EmailConfig) TemplateSettings() services.EmailTemplateSettings {
	return services.EmailTemplateSettings{
		BaseURL:     strings.TrimRight(strings.TrimSpace(c.PublicURL), "/"),
		CompanyName: strings.TrimSpace(c.CompanyName),
	}
}
