package emailqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/matchbook/notifier/internal/services"
	"github.com/matchbook/notifier/pkg/metrics"
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Client enqueues notification emails for the worker. It satisfies services.EmailSender.
type Client struct {
	client enqueuer
	cfg    Config
}

var _ services.EmailSender = (*Client)(nil)

// NewClient connects an asynq client to the configured Redis URL.
func NewClient(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil, errors.New("emailqueue: redis url is required")
	}
	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("emailqueue: parse redis url: %w", err)
	}
	return &Client{client: asynq.NewClient(opt), cfg: cfg}, nil
}

// SendEmail enqueues email for delivery with the configured retry budget.
func (c *Client) SendEmail(ctx context.Context, email services.OutboundEmail) error {
	task, err := NewNotificationEmailTask(email)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.cfg.Queue),
		asynq.MaxRetry(c.cfg.maxRetry()),
		asynq.Timeout(defaultTaskTimeout),
	)
	if err != nil {
		metrics.EmailDeliveries.WithLabelValues("queued", "failure").Inc()
		return fmt.Errorf("emailqueue: enqueue: %w", err)
	}

	metrics.EmailDeliveries.WithLabelValues("queued", "enqueued").Inc()
	return nil
}

// Close releases the Redis connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// NewNotificationEmailTask encodes email as an asynq task.
func NewNotificationEmailTask(email services.OutboundEmail) (*asynq.Task, error) {
	if strings.TrimSpace(email.To) == "" {
		return nil, errors.New("emailqueue: recipient is required")
	}
	payload, err := json.Marshal(email)
	if err != nil {
		return nil, fmt.Errorf("emailqueue: marshal payload: %w", err)
	}
	return asynq.NewTask(TaskTypeNotificationEmail, payload), nil
}
