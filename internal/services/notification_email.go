package services

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/matchbook/notifier/internal/models"
)

const (
	emailPreviewLimit   = 200
	defaultCompanyName  = "MatchBook"
	defaultCompanyCity  = "Ogden, UT 84414"
	defaultCompanySite  = "matchbookrentals.com"
	fallbackListingText = "RE: Listing you liked"
)

// EmailTemplateSettings configure links and branding in notification emails.
type EmailTemplateSettings struct {
	// BaseURL is prefixed to relative notification URLs, e.g. https://matchbookrentals.com.
	BaseURL     string
	CompanyName string
}

// emailCopy holds the static wording for one notification action type.
type emailCopy struct {
	Subject      string
	HeaderText   string
	ContentTitle string
	ButtonText   string
}

var emailCopies = map[string]emailCopy{
	models.ActionTypeMessage: {
		Subject:    "You've Got a New Message on MatchBook",
		HeaderText: "You've Got a New Message on MatchBook",
		ButtonText: "View Message",
	},
	models.ActionTypeNewConversation: {
		Subject:    "A New Conversation Has Started",
		HeaderText: "A New Conversation Has Started",
		ButtonText: "Read here",
	},
}

var defaultEmailCopy = emailCopy{
	Subject:      "New Notification - MatchBook Rentals",
	HeaderText:   "New Notification",
	ContentTitle: "You have a new notification",
	ButtonText:   "View Details",
}

func emailCopyFor(actionType string) emailCopy {
	if c, ok := emailCopies[actionType]; ok {
		return c
	}
	return defaultEmailCopy
}

// EmailLink is an anchor rendered above the email body.
type EmailLink struct {
	Text string
	URL  string
}

// NotificationEmail is the view model behind both the text and HTML bodies.
type NotificationEmail struct {
	Subject        string
	CompanyName    string
	HeaderText     string
	ContentTitle   string
	SenderLine     string
	ContentText    string
	ButtonText     string
	ButtonURL      string
	FooterText     string
	TagLink        *EmailLink
	CompanyCity    string
	CompanyWebsite string
}

// EmailRenderer builds notification emails from persisted notifications.
type EmailRenderer struct {
	settings EmailTemplateSettings
}

// NewEmailRenderer constructs a renderer with the supplied settings.
func NewEmailRenderer(settings EmailTemplateSettings) *EmailRenderer {
	settings.BaseURL = strings.TrimRight(strings.TrimSpace(settings.BaseURL), "/")
	settings.CompanyName = defaultIfEmpty(strings.TrimSpace(settings.CompanyName), defaultCompanyName)
	return &EmailRenderer{settings: settings}
}

// Build assembles the email view model for a notification.
func (r *EmailRenderer) Build(actionType, content, url string, data *NotificationEmailData) NotificationEmail {
	wording := emailCopyFor(actionType)
	email := NotificationEmail{
		Subject:        wording.Subject,
		CompanyName:    r.settings.CompanyName,
		HeaderText:     wording.HeaderText,
		ContentTitle:   wording.ContentTitle,
		ContentText:    content,
		ButtonText:     wording.ButtonText,
		ButtonURL:      r.absoluteURL(url),
		CompanyCity:    defaultCompanyCity,
		CompanyWebsite: defaultCompanySite,
	}

	if data == nil || data.SenderName == "" {
		return email
	}

	switch actionType {
	case models.ActionTypeMessage:
		email.SenderLine = fmt.Sprintf("From %s,", data.SenderName)
		email.FooterText = fmt.Sprintf("You have a new message from %s", data.SenderName)
		if data.ConversationID != "" {
			text := fallbackListingText
			if data.ListingTitle != "" {
				text = "RE: " + data.ListingTitle
			}
			email.TagLink = &EmailLink{
				Text: text,
				URL:  r.absoluteURL(ConversationURL(data.ConversationID)),
			}
		}
		if data.MessageContent != "" {
			email.ContentText = truncateRunes(data.MessageContent, emailPreviewLimit)
		}
	case models.ActionTypeNewConversation:
		email.SenderLine = fmt.Sprintf("From %s,", data.SenderName)
		email.FooterText = fmt.Sprintf("You have a new conversation with %s", data.SenderName)
		if data.MessagePreview != "" {
			email.ContentText = truncateRunes(data.MessagePreview, emailPreviewLimit)
		}
	}

	return email
}

// Render produces the outbound email for recipient.
func (r *EmailRenderer) Render(to, actionType, content, url string, data *NotificationEmailData) (OutboundEmail, error) {
	email := r.Build(actionType, content, url, data)

	var html bytes.Buffer
	if err := notificationHTML.Execute(&html, email); err != nil {
		return OutboundEmail{}, fmt.Errorf("render notification email: %w", err)
	}

	return OutboundEmail{
		To:       to,
		Subject:  email.Subject,
		TextBody: email.Text(),
		HTMLBody: html.String(),
	}, nil
}

// Text renders the plain-text alternative.
func (e NotificationEmail) Text() string {
	var b strings.Builder
	b.WriteString(e.HeaderText)
	b.WriteString("\n\n")
	if e.TagLink != nil {
		fmt.Fprintf(&b, "%s (%s)\n\n", e.TagLink.Text, e.TagLink.URL)
	}
	if e.ContentTitle != "" {
		b.WriteString(e.ContentTitle)
		b.WriteString("\n\n")
	}
	if e.SenderLine != "" {
		b.WriteString(e.SenderLine)
		b.WriteString("\n")
	}
	b.WriteString(e.ContentText)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s: %s\n", e.ButtonText, e.ButtonURL)
	if e.FooterText != "" {
		b.WriteString("\n")
		b.WriteString(e.FooterText)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\n%s\n%s\n%s\n", e.CompanyName, e.CompanyCity, e.CompanyWebsite)
	return b.String()
}

func (r *EmailRenderer) absoluteURL(path string) string {
	if path == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return r.settings.BaseURL + path
}

// ConversationURL is the in-app link to a conversation thread.
func ConversationURL(conversationID string) string {
	return "/app/messages?convo=" + conversationID
}

var notificationHTML = template.Must(template.New("notification").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2937;">
  <h1 style="font-size: 20px;">{{.HeaderText}}</h1>
  {{- if .TagLink}}
  <p><a href="{{.TagLink.URL}}" style="color: #3c8787;">{{.TagLink.Text}}</a></p>
  {{- end}}
  {{- if .ContentTitle}}
  <h2 style="font-size: 16px;">{{.ContentTitle}}</h2>
  {{- end}}
  {{- if .SenderLine}}
  <p>{{.SenderLine}}</p>
  {{- end}}
  <p style="white-space: pre-line;">{{.ContentText}}</p>
  <p><a href="{{.ButtonURL}}" style="background: #3c8787; color: #ffffff; padding: 10px 16px; text-decoration: none;">{{.ButtonText}}</a></p>
  {{- if .FooterText}}
  <p style="font-size: 12px;">{{.FooterText}}</p>
  {{- end}}
  <p style="font-size: 12px; color: #6b7280;">{{.CompanyName}}<br>{{.CompanyCity}}<br>{{.CompanyWebsite}}</p>
</body>
</html>
`))
