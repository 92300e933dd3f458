package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DigestRuns counts digest job runs by trigger and result (success|failed|skipped).
	DigestRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_digest_runs_total",
			Help: "Total number of unread message digest runs",
		},
		[]string{"trigger", "result"},
	)

	// DigestNotifications counts consolidated notifications by action type and result (success|failure).
	DigestNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_digest_notifications_total",
			Help: "Total number of consolidated notifications attempted",
		},
		[]string{"action_type", "result"},
	)

	// DigestMessagesProcessed counts messages marked as notified.
	DigestMessagesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_digest_messages_processed_total",
			Help: "Total number of messages marked as notified",
		},
	)

	// DigestSkippedMessages counts messages excluded from a run for data-integrity reasons.
	DigestSkippedMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_digest_skipped_messages_total",
			Help: "Messages skipped because their conversation or sender could not be resolved, or they have no recipient",
		},
		[]string{"reason"},
	)

	// DigestDuration measures end-to-end run latency.
	DigestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notifier_digest_duration_seconds",
			Help:    "Unread message digest run duration",
			Buckets: prometheus.DefBuckets,
		},
	)

	// EmailDeliveries counts outbound notification emails by mode (inline|queued) and result.
	EmailDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_email_deliveries_total",
			Help: "Notification email delivery attempts",
		},
		[]string{"mode", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notifier_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
