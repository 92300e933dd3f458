package models

// Listing is the rental a conversation is about. Only the title is used here.
type Listing struct {
	BaseModel

	UserID string `gorm:"size:36;index" json:"user_id"`
	Title  string `gorm:"size:255" json:"title"`
}
