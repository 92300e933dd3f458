package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/matchbook/notifier/internal/digest"
	"github.com/matchbook/notifier/pkg/logger"
	"github.com/matchbook/notifier/pkg/response"
)

const defaultCronRunTimeout = 5 * time.Minute

// DigestRunner executes one unread message digest pass.
type DigestRunner interface {
	Run(ctx context.Context, trigger string) (*digest.RunResult, error)
}

// CronHandler serves the scheduler-facing cron endpoints.
type CronHandler struct {
	digest  DigestRunner
	timeout time.Duration
}

// NewCronHandler constructs a CronHandler. timeout bounds each run once it has been
// detached from the request.
func NewCronHandler(runner DigestRunner, timeout time.Duration) (*CronHandler, error) {
	if runner == nil {
		return nil, errors.New("cron handler: digest runner is required")
	}
	if timeout <= 0 {
		timeout = defaultCronRunTimeout
	}
	return &CronHandler{digest: runner, timeout: timeout}, nil
}

// GET /api/cron/unread-messages
func (h *CronHandler) UnreadMessages(c *gin.Context) {
	// A scheduler hanging up must not abort a run halfway through its write-back.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(requestContext(c)), h.timeout)
	defer cancel()

	result, err := h.digest.Run(ctx, digest.TriggerHTTP)
	writeRunResult(c, result, err)
}

type cronRunResponse struct {
	Success              bool `json:"success"`
	ProcessedMessages    int  `json:"processedMessages"`
	CreatedNotifications int  `json:"createdNotifications"`
	NotificationErrors   int  `json:"notificationErrors"`
}

type cronErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeRunResult(c *gin.Context, result *digest.RunResult, err error) {
	if err != nil {
		writeRunError(c, err)
		return
	}
	if result == nil {
		result = &digest.RunResult{}
	}
	c.JSON(http.StatusOK, cronRunResponse{
		Success:              true,
		ProcessedMessages:    result.ProcessedMessages,
		CreatedNotifications: result.CreatedNotifications,
		NotificationErrors:   result.NotificationErrors,
	})
}

func writeRunError(c *gin.Context, err error) {
	status := response.Status(err)
	message := "Internal server error"
	if status < http.StatusInternalServerError {
		message = appErrorMessage(err)
	} else {
		logger.WithModule("http").Error("cron run failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
	}
	c.JSON(status, cronErrorResponse{Success: false, Error: message})
}
