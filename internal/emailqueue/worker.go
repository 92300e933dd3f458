package emailqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/matchbook/notifier/internal/services"
	"github.com/matchbook/notifier/pkg/logger"
	"github.com/matchbook/notifier/pkg/mail"
	"github.com/matchbook/notifier/pkg/metrics"
)

// Worker consumes notification email tasks and delivers them through a mail.Mailer.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewWorker builds the asynq server for the email queue.
func NewWorker(cfg Config, mailer mail.Mailer) (*Worker, error) {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil, errors.New("emailqueue: redis url is required")
	}
	if mailer == nil {
		return nil, errors.New("emailqueue: mailer is required")
	}
	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("emailqueue: parse redis url: %w", err)
	}

	log := logger.WithModule("emailqueue")
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{cfg.Queue: 1},
		Logger:      log.Sugar(),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			log.Warn("email task failed",
				zap.String("type", task.Type()),
				zap.Int("retry", retried),
				zap.Int("max_retry", maxRetry),
				zap.Error(err),
			)
		}),
	})

	mux := asynq.NewServeMux()
	mux.Handle(TaskTypeNotificationEmail, NewHandler(mailer))

	return &Worker{server: srv, mux: mux}, nil
}

// Start begins processing in background goroutines.
func (w *Worker) Start() error {
	return w.server.Start(w.mux)
}

// Shutdown waits for in-flight tasks and stops the worker.
func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

// Handler delivers notification email tasks.
type Handler struct {
	mailer mail.Mailer
	log    *zap.Logger
}

// NewHandler returns the task handler for TaskTypeNotificationEmail.
func NewHandler(mailer mail.Mailer) *Handler {
	return &Handler{mailer: mailer, log: logger.WithModule("emailqueue")}
}

// ProcessTask sends the email. Malformed payloads are not retried.
func (h *Handler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var email services.OutboundEmail
	if err := json.Unmarshal(task.Payload(), &email); err != nil {
		return fmt.Errorf("emailqueue: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if strings.TrimSpace(email.To) == "" {
		return fmt.Errorf("emailqueue: payload has no recipient: %w", asynq.SkipRetry)
	}

	err := h.mailer.Send(ctx, email.Message())
	switch {
	case errors.Is(err, mail.ErrSMTPDisabled):
		metrics.EmailDeliveries.WithLabelValues("queued", "disabled").Inc()
		h.log.Debug("smtp disabled, dropping email", zap.String("notification_id", email.NotificationID))
		return nil
	case err != nil:
		metrics.EmailDeliveries.WithLabelValues("queued", "failure").Inc()
		return err
	}

	metrics.EmailDeliveries.WithLabelValues("queued", "success").Inc()
	return nil
}
