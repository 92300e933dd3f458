package digest

import (
	"context"
	"fmt"

	"github.com/matchbook/notifier/internal/models"
)

// Classify reports new_conversation when every message of the conversation is in this
// group, and message otherwise. A message arriving between scan and count can make the
// answer stale by one; that is tolerated.
func Classify(ctx context.Context, store Store, group *Group) (string, error) {
	total, err := store.CountConversationMessages(ctx, group.Key.ConversationID)
	if err != nil {
		return "", fmt.Errorf("classify conversation %s: %w", group.Key.ConversationID, err)
	}
	if total == int64(len(group.Messages)) {
		return models.ActionTypeNewConversation, nil
	}
	return models.ActionTypeMessage, nil
}
