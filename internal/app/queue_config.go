package app

import (
	"strings"

	"github.com/matchbook/notifier/internal/emailqueue"
)

// EmailQueueConfig converts QueueConfig into the email queue client and worker settings.
func (c QueueConfig) EmailQueueConfig() emailqueue.Config {
	return emailqueue.Config{
		RedisURL:    strings.TrimSpace(c.RedisURL),
		Queue:       strings.TrimSpace(c.Queue),
		Concurrency: c.Concurrency,
		MaxAttempts: c.MaxAttempts,
	}
}
