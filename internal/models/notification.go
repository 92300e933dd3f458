package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification action types produced by the unread message digest.
const (
	ActionTypeMessage         = "message"
	ActionTypeNewConversation = "new_conversation"
)

// Notification represents an in-app notification for a user.
type Notification struct {
	BaseModel

	UserID     string         `gorm:"size:36;index;not null" json:"user_id"`
	Content    string         `gorm:"type:text" json:"content"`
	URL        string         `gorm:"type:text" json:"url"`
	ActionType string         `gorm:"size:64;index;not null" json:"action_type"`
	ActionID   string         `gorm:"size:64;index" json:"action_id"`
	EmailData  datatypes.JSON `json:"email_data"`

	IsRead bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt *time.Time `json:"read_at"`
}
