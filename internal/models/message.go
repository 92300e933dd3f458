package models

import "time"

// Message is a chat message. Conversation and sender are referenced by id only: rows written
// by the chat service may outlive their conversation when a cascade delete is missing.
type Message struct {
	BaseModel

	ConversationID string `gorm:"size:36;not null;index" json:"conversation_id"`
	SenderID       string `gorm:"size:36;not null;index" json:"sender_id"`
	Content        string `gorm:"type:text" json:"content"`

	IsRead             bool       `gorm:"default:false;index" json:"is_read"`
	NotificationSentAt *time.Time `gorm:"index" json:"notification_sent_at,omitempty"`
}
