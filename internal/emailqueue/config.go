package emailqueue

import "time"

// TaskTypeNotificationEmail is the asynq task type carrying a rendered notification email.
const TaskTypeNotificationEmail = "email:notification"

const (
	defaultQueue       = "email"
	defaultConcurrency = 5
	defaultMaxAttempts = 3
	defaultTaskTimeout = 30 * time.Second
)

// Config holds the Redis location and worker tuning for the email queue.
type Config struct {
	RedisURL    string
	Queue       string
	Concurrency int
	// MaxAttempts counts the first delivery, so a task is retried MaxAttempts-1 times.
	MaxAttempts int
}

func (c Config) withDefaults() Config {
	if c.Queue == "" {
		c.Queue = defaultQueue
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	return c
}

func (c Config) maxRetry() int {
	return c.MaxAttempts - 1
}
