package models

// Conversation groups chat messages between participants, optionally about a listing.
type Conversation struct {
	BaseModel

	ListingID *string  `gorm:"size:36;index" json:"listing_id,omitempty"`
	Listing   *Listing `gorm:"foreignKey:ListingID;constraint:OnDelete:SET NULL" json:"listing,omitempty"`

	Participants []ConversationParticipant `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"participants,omitempty"`
}

// ParticipantIDs returns the distinct user ids taking part in the conversation.
func (c Conversation) ParticipantIDs() []string {
	seen := make(map[string]struct{}, len(c.Participants))
	ids := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p.UserID == "" {
			continue
		}
		if _, ok := seen[p.UserID]; ok {
			continue
		}
		seen[p.UserID] = struct{}{}
		ids = append(ids, p.UserID)
	}
	return ids
}

// ListingTitle returns the listing title or an empty string when none is attached.
func (c Conversation) ListingTitle() string {
	if c.Listing == nil {
		return ""
	}
	return c.Listing.Title
}

// ConversationParticipant links a user to a conversation.
type ConversationParticipant struct {
	BaseModel

	ConversationID string `gorm:"size:36;not null;uniqueIndex:idx_conversation_participant" json:"conversation_id"`
	UserID         string `gorm:"size:36;not null;uniqueIndex:idx_conversation_participant;index" json:"user_id"`
	Role           string `gorm:"size:32" json:"role"`
}
