package digest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/matchbook/notifier/internal/models"
	"github.com/matchbook/notifier/internal/services"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	t  *testing.T
	db *gorm.DB
}

func (f fixture) user(first, email string) models.User {
	f.t.Helper()
	u := models.User{FirstName: first, Email: email}
	require.NoError(f.t, f.db.Create(&u).Error)
	return u
}

func (f fixture) conversation(title string, participants ...models.User) models.Conversation {
	f.t.Helper()
	c := models.Conversation{}
	if title != "" {
		listing := models.Listing{Title: title}
		require.NoError(f.t, f.db.Create(&listing).Error)
		c.ListingID = &listing.ID
	}
	require.NoError(f.t, f.db.Create(&c).Error)
	for _, p := range participants {
		require.NoError(f.t, f.db.Create(&models.ConversationParticipant{ConversationID: c.ID, UserID: p.ID}).Error)
	}
	return c
}

func (f fixture) message(convo models.Conversation, sender models.User, content string, age time.Duration) models.Message {
	f.t.Helper()
	m := models.Message{
		BaseModel:      models.BaseModel{CreatedAt: testNow.Add(-age)},
		ConversationID: convo.ID,
		SenderID:       sender.ID,
		Content:        content,
	}
	require.NoError(f.t, f.db.Create(&m).Error)
	return m
}

func (f fixture) notifiedMessage(convo models.Conversation, sender models.User, content string, age time.Duration) models.Message {
	f.t.Helper()
	m := f.message(convo, sender, content, age)
	sent := testNow.Add(-age).Add(time.Minute)
	require.NoError(f.t, f.db.Model(&m).Update("notification_sent_at", sent).Error)
	return m
}

// fakeNotifier records calls and fails for selected recipients.
type fakeNotifier struct {
	mu       sync.Mutex
	inputs   []services.CreateNotificationInput
	failFor  map[string]bool
	panicFor map[string]bool
	delegate Notifier
}

func (f *fakeNotifier) CreateNotification(ctx context.Context, input services.CreateNotificationInput) (*services.NotificationDTO, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, input)
	fail := f.failFor[input.UserID]
	boom := f.panicFor[input.UserID]
	f.mu.Unlock()

	if boom {
		panic("notifier exploded")
	}
	if fail {
		return nil, errors.New("notification backend unavailable")
	}
	if f.delegate != nil {
		return f.delegate.CreateNotification(ctx, input)
	}
	return &services.NotificationDTO{ID: "n-" + input.UserID}, nil
}

func (f *fakeNotifier) calls() []services.CreateNotificationInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]services.CreateNotificationInput, len(f.inputs))
	copy(out, f.inputs)
	return out
}

func (f *fakeNotifier) forUser(userID string) []services.CreateNotificationInput {
	var out []services.CreateNotificationInput
	for _, in := range f.calls() {
		if in.UserID == userID {
			out = append(out, in)
		}
	}
	return out
}
