package digest

import (
	"go.uber.org/zap"

	"github.com/matchbook/notifier/internal/models"
)

// GroupKey identifies one notification: a conversation seen by one recipient.
type GroupKey struct {
	ConversationID string
	RecipientID    string
}

// Group is the set of messages consolidated into a single notification.
type Group struct {
	Key          GroupKey
	Messages     []models.Message
	SenderID     string
	SenderName   string
	ListingTitle string
}

// MessageIDs returns the ids of the grouped messages in arrival order.
func (g *Group) MessageIDs() []string {
	ids := make([]string, len(g.Messages))
	for i, m := range g.Messages {
		ids[i] = m.ID
	}
	return ids
}

// Skipped counts messages left out of grouping, by cause.
type Skipped struct {
	MissingConversation int
	MissingSender       int
	// NoRecipient counts messages whose sender is the only participant. They are rescanned
	// on every run until someone else joins the conversation.
	NoRecipient int
}

// Total is the number of skipped messages.
func (s Skipped) Total() int {
	return s.MissingConversation + s.MissingSender + s.NoRecipient
}

// GroupMessages assigns each message to the group of every participant other than its
// sender. Groups are returned in order of first appearance and keep arrival order
// internally. Messages whose conversation or sender cannot be resolved are skipped and
// stay unnotified for the next run.
func GroupMessages(messages []EligibleMessage, log *zap.Logger) ([]*Group, Skipped) {
	if log == nil {
		log = zap.NewNop()
	}

	index := make(map[GroupKey]*Group)
	var (
		groups  []*Group
		skipped Skipped
	)

	for _, m := range messages {
		if m.Conversation == nil {
			log.Warn("skipping message without conversation",
				zap.String("message_id", m.ID),
				zap.String("conversation_id", m.ConversationID),
			)
			skipped.MissingConversation++
			continue
		}
		if m.Sender == nil {
			log.Warn("skipping message without sender",
				zap.String("message_id", m.ID),
				zap.String("sender_id", m.SenderID),
			)
			skipped.MissingSender++
			continue
		}

		grouped := false
		for _, recipientID := range m.Conversation.ParticipantIDs() {
			if recipientID == m.SenderID {
				continue
			}
			grouped = true
			key := GroupKey{ConversationID: m.ConversationID, RecipientID: recipientID}
			group, ok := index[key]
			if !ok {
				group = &Group{
					Key:          key,
					SenderID:     m.SenderID,
					SenderName:   m.Sender.DisplayName(),
					ListingTitle: m.Conversation.ListingTitle(),
				}
				index[key] = group
				groups = append(groups, group)
			}
			group.Messages = append(group.Messages, m.Message)
		}
		if !grouped {
			log.Debug("skipping message without recipients",
				zap.String("message_id", m.ID),
				zap.String("conversation_id", m.ConversationID),
			)
			skipped.NoRecipient++
		}
	}

	return groups, skipped
}
