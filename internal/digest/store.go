package digest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/matchbook/notifier/internal/models"
)

// EligibleMessage is an unread, unnotified message together with the rows needed to
// address and describe its notification. Conversation or Sender are nil when the
// referenced row could not be resolved.
type EligibleMessage struct {
	models.Message
	Conversation *models.Conversation
	Sender       *models.User
}

// Store is the message persistence the digest job reads from and writes back to.
type Store interface {
	// FindEligible returns unread, unnotified messages created at or before cutoff whose
	// conversation still exists, in arrival order.
	FindEligible(ctx context.Context, cutoff time.Time) ([]EligibleMessage, error)
	// CountConversationMessages returns the total number of messages in a conversation.
	CountConversationMessages(ctx context.Context, conversationID string) (int64, error)
	// MarkNotified sets notification_sent_at on every listed message that does not have it yet.
	MarkNotified(ctx context.Context, messageIDs []string, at time.Time) (int64, error)
}

// GormStore implements Store on the primary database.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore constructs a GormStore.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, errors.New("digest store: db is required")
	}
	return &GormStore{db: db}, nil
}

// FindEligible loads the messages with an inner join on conversations so rows orphaned by
// a deleted conversation never reach the grouper. Conversations (with participants and
// listing) and senders are then loaded in two batched queries.
func (s *GormStore) FindEligible(ctx context.Context, cutoff time.Time) ([]EligibleMessage, error) {
	var messages []models.Message
	if err := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("messages.is_read = ?", false).
		Where("messages.notification_sent_at IS NULL").
		Where("messages.created_at <= ?", cutoff.UTC()).
		Order("messages.created_at ASC").
		Order("messages.id ASC").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("digest store: find eligible messages: %w", err)
	}
	if len(messages) == 0 {
		return nil, nil
	}

	conversationIDs := make([]string, 0, len(messages))
	senderIDs := make([]string, 0, len(messages))
	seenConversation := make(map[string]struct{}, len(messages))
	seenSender := make(map[string]struct{}, len(messages))
	for _, m := range messages {
		if _, ok := seenConversation[m.ConversationID]; !ok {
			seenConversation[m.ConversationID] = struct{}{}
			conversationIDs = append(conversationIDs, m.ConversationID)
		}
		if _, ok := seenSender[m.SenderID]; !ok {
			seenSender[m.SenderID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderID)
		}
	}

	var conversations []models.Conversation
	if err := s.db.WithContext(ctx).
		Preload("Participants", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at ASC").Order("id ASC")
		}).
		Preload("Listing").
		Where("id IN ?", conversationIDs).
		Find(&conversations).Error; err != nil {
		return nil, fmt.Errorf("digest store: load conversations: %w", err)
	}

	var senders []models.User
	if err := s.db.WithContext(ctx).
		Where("id IN ?", senderIDs).
		Find(&senders).Error; err != nil {
		return nil, fmt.Errorf("digest store: load senders: %w", err)
	}

	conversationByID := make(map[string]*models.Conversation, len(conversations))
	for i := range conversations {
		conversationByID[conversations[i].ID] = &conversations[i]
	}
	senderByID := make(map[string]*models.User, len(senders))
	for i := range senders {
		senderByID[senders[i].ID] = &senders[i]
	}

	out := make([]EligibleMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, EligibleMessage{
			Message:      m,
			Conversation: conversationByID[m.ConversationID],
			Sender:       senderByID[m.SenderID],
		})
	}
	return out, nil
}

// CountConversationMessages counts every message of the conversation regardless of state.
func (s *GormStore) CountConversationMessages(ctx context.Context, conversationID string) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("digest store: count conversation messages: %w", err)
	}
	return count, nil
}

// MarkNotified issues a single batch update. Messages already carrying a timestamp keep it.
func (s *GormStore) MarkNotified(ctx context.Context, messageIDs []string, at time.Time) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}
	result := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id IN ?", messageIDs).
		Where("notification_sent_at IS NULL").
		Update("notification_sent_at", at.UTC())
	if result.Error != nil {
		return 0, fmt.Errorf("digest store: mark messages notified: %w", result.Error)
	}
	return result.RowsAffected, nil
}
