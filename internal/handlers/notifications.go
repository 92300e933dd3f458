package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/matchbook/notifier/internal/services"
	appErrors "github.com/matchbook/notifier/pkg/errors"
	"github.com/matchbook/notifier/pkg/response"
)

// NotificationLister reads a user's notifications.
type NotificationLister interface {
	ListForUser(ctx context.Context, input services.ListNotificationsInput) ([]services.NotificationDTO, error)
}

// notificationFilters are the optional query filters of the user notifications listing.
type notificationFilters struct {
	ActionType string `form:"action_type" validate:"omitempty,oneof=message new_conversation"`
}

// NotificationsHandler lets operators inspect what the digest delivered to a user.
type NotificationsHandler struct {
	svc NotificationLister
}

// NewNotificationsHandler constructs a NotificationsHandler.
func NewNotificationsHandler(svc NotificationLister) (*NotificationsHandler, error) {
	if svc == nil {
		return nil, errors.New("notifications handler: service is required")
	}
	return &NotificationsHandler{svc: svc}, nil
}

// ListForUser returns the notifications of the user in the :id path parameter, newest first.
func (h *NotificationsHandler) ListForUser(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("id"))
	if userID == "" {
		response.Error(c, appErrors.NewBadRequest("user id is required"))
		return
	}

	var filters notificationFilters
	if !bindQueryAndValidate(c, &filters) {
		return
	}

	items, err := h.svc.ListForUser(requestContext(c), services.ListNotificationsInput{
		UserID:     userID,
		ActionType: filters.ActionType,
		Limit:      parseIntQuery(c, "limit", 25),
		Offset:     parseIntQuery(c, "offset", 0),
	})
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	response.Success(c, http.StatusOK, items)
}
