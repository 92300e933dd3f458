package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/matchbook/notifier/internal/models"
	"github.com/matchbook/notifier/pkg/logger"
)

// NotificationEmailData is the structured payload stored with a notification and used to
// render its email.
type NotificationEmailData struct {
	SenderName     string `json:"senderName"`
	ConversationID string `json:"conversationId"`
	ListingTitle   string `json:"listingTitle"`
	MessagePreview string `json:"messagePreview"`
	MessageContent string `json:"messageContent"`
}

// NotificationDTO represents the API-friendly notification payload.
type NotificationDTO struct {
	ID         string                 `json:"id"`
	UserID     string                 `json:"user_id"`
	Content    string                 `json:"content"`
	URL        string                 `json:"url"`
	ActionType string                 `json:"action_type"`
	ActionID   string                 `json:"action_id"`
	EmailData  *NotificationEmailData `json:"email_data,omitempty"`
	IsRead     bool                   `json:"is_read"`
	CreatedAt  time.Time              `json:"created_at"`
	ReadAt     *time.Time             `json:"read_at,omitempty"`
	Raw        *models.Notification   `json:"-"`
}

// CreateNotificationInput defines attributes required to persist a notification.
type CreateNotificationInput struct {
	UserID     string
	Content    string
	URL        string
	ActionType string
	ActionID   string
	EmailData  *NotificationEmailData
}

// ListNotificationsInput defines filters for querying user notifications.
type ListNotificationsInput struct {
	UserID     string
	ActionType string
	Limit      int
	Offset     int
}

// NotificationOption customises a NotificationService.
type NotificationOption func(*NotificationService)

// WithEmailSender enables the email side effect of CreateNotification.
func WithEmailSender(sender EmailSender) NotificationOption {
	return func(s *NotificationService) {
		if sender != nil {
			s.emails = sender
		}
	}
}

// WithEmailRenderer overrides the renderer used to build notification emails.
func WithEmailRenderer(renderer *EmailRenderer) NotificationOption {
	return func(s *NotificationService) {
		if renderer != nil {
			s.renderer = renderer
		}
	}
}

// NotificationService manages user in-app notifications and their email side effect.
type NotificationService struct {
	db       *gorm.DB
	emails   EmailSender
	renderer *EmailRenderer
	log      *zap.Logger
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(db *gorm.DB, opts ...NotificationOption) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}

	svc := &NotificationService{
		db:       db,
		renderer: NewEmailRenderer(EmailTemplateSettings{}),
		log:      logger.WithModule("notifications"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CreateNotification persists a notification and then emails the recipient once.
// The notification is durable before the email is attempted, so an email failure is
// logged and does not fail the call.
func (s *NotificationService) CreateNotification(ctx context.Context, input CreateNotificationInput) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, errors.New("notification service: user id is required")
	}
	actionType := strings.TrimSpace(input.ActionType)
	if actionType == "" {
		return nil, errors.New("notification service: action type is required")
	}

	notification := models.Notification{
		UserID:     userID,
		Content:    strings.TrimSpace(input.Content),
		URL:        strings.TrimSpace(input.URL),
		ActionType: actionType,
		ActionID:   strings.TrimSpace(input.ActionID),
	}

	if input.EmailData != nil {
		data, err := json.Marshal(input.EmailData)
		if err != nil {
			return nil, fmt.Errorf("notification service: marshal email data: %w", err)
		}
		notification.EmailData = datatypes.JSON(data)
	}

	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		return nil, fmt.Errorf("notification service: create notification: %w", err)
	}

	if err := s.sendEmail(ctx, notification, input.EmailData); err != nil {
		s.log.Warn("notification email failed",
			zap.String("notification_id", notification.ID),
			zap.String("user_id", userID),
			zap.String("action_type", actionType),
			zap.Error(err),
		)
	}

	dto := mapNotification(notification)
	return &dto, nil
}

// ListForUser returns notifications for the supplied user ordered by recency.
func (s *NotificationService) ListForUser(ctx context.Context, input ListNotificationsInput) ([]NotificationDTO, error) {
	ctx = ensureContext(ctx)
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, errors.New("notification service: user id is required")
	}

	limit := input.Limit
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if actionType := strings.TrimSpace(input.ActionType); actionType != "" {
		query = query.Where("action_type = ?", actionType)
	}

	var rows []models.Notification
	if err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(max(0, input.Offset)).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: list notifications: %w", err)
	}

	return mapNotificationRows(rows), nil
}

func (s *NotificationService) sendEmail(ctx context.Context, notification models.Notification, data *NotificationEmailData) error {
	if s.emails == nil {
		return nil
	}

	var recipient models.User
	if err := s.db.WithContext(ctx).Select("id", "email").Take(&recipient, "id = ?", notification.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("recipient %s not found", notification.UserID)
		}
		return fmt.Errorf("load recipient: %w", err)
	}
	if strings.TrimSpace(recipient.Email) == "" {
		return fmt.Errorf("recipient %s has no email address", notification.UserID)
	}

	email, err := s.renderer.Render(recipient.Email, notification.ActionType, notification.Content, notification.URL, data)
	if err != nil {
		return err
	}
	email.NotificationID = notification.ID

	return s.emails.SendEmail(ctx, email)
}

func mapNotificationRows(rows []models.Notification) []NotificationDTO {
	items := make([]NotificationDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapNotification(row))
	}
	return items
}

func mapNotification(row models.Notification) NotificationDTO {
	return NotificationDTO{
		ID:         row.ID,
		UserID:     row.UserID,
		Content:    row.Content,
		URL:        row.URL,
		ActionType: row.ActionType,
		ActionID:   row.ActionID,
		EmailData:  decodeEmailData(row.EmailData),
		IsRead:     row.IsRead,
		CreatedAt:  row.CreatedAt,
		ReadAt:     row.ReadAt,
		Raw:        &row,
	}
}

func decodeEmailData(data datatypes.JSON) *NotificationEmailData {
	if len(data) == 0 {
		return nil
	}
	var out NotificationEmailData
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return &out
}
