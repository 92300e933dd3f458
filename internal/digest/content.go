package digest

import (
	"fmt"
	"strings"

	"github.com/matchbook/notifier/internal/models"
	"github.com/matchbook/notifier/internal/services"
)

const (
	previewLimit     = 1000
	previewSeparator = "\n\n"
	previewEllipsis  = "..."
)

// Content is the notification payload derived from a group.
type Content struct {
	Content        string
	MessagePreview string
	URL            string
	ActionID       string
	EmailData      services.NotificationEmailData
}

// BuildContent renders the notification text for a classified group. The text never
// mentions a message count since more messages may arrive before it is read.
func BuildContent(group *Group, actionType string) Content {
	preview := buildPreview(group.Messages)

	text := fmt.Sprintf("New message from %s", group.SenderName)
	if actionType == models.ActionTypeNewConversation {
		text = fmt.Sprintf("%s started a new conversation with you", group.SenderName)
	}

	return Content{
		Content:        text,
		MessagePreview: preview,
		URL:            services.ConversationURL(group.Key.ConversationID),
		ActionID:       group.Key.ConversationID,
		EmailData: services.NotificationEmailData{
			SenderName:     group.SenderName,
			ConversationID: group.Key.ConversationID,
			ListingTitle:   group.ListingTitle,
			MessagePreview: preview,
			MessageContent: preview,
		},
	}
}

// Request converts the content into the notification service input for recipient.
func (c Content) Request(recipientID, actionType string) services.CreateNotificationInput {
	data := c.EmailData
	return services.CreateNotificationInput{
		UserID:     recipientID,
		Content:    c.Content,
		URL:        c.URL,
		ActionType: actionType,
		ActionID:   c.ActionID,
		EmailData:  &data,
	}
}

// buildPreview joins message bodies and cuts the result at previewLimit runes.
func buildPreview(messages []models.Message) string {
	parts := make([]string, len(messages))
	for i, m := range messages {
		parts[i] = m.Content
	}
	joined := strings.Join(parts, previewSeparator)

	runes := []rune(joined)
	if len(runes) <= previewLimit {
		return joined
	}
	return string(runes[:previewLimit]) + previewEllipsis
}
