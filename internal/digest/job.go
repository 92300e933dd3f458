package digest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/matchbook/notifier/internal/cache"
	"github.com/matchbook/notifier/internal/models"
	"github.com/matchbook/notifier/internal/services"
	apperrors "github.com/matchbook/notifier/pkg/errors"
	"github.com/matchbook/notifier/pkg/logger"
	"github.com/matchbook/notifier/pkg/metrics"
)

const (
	// JobName identifies the digest in the run ledger and the admin API.
	JobName = "unread-messages"
	// LockKey guards against overlapping runs across replicas.
	LockKey = "digest:unread-messages:lock"

	defaultStaleness = 2 * time.Minute
	defaultLockTTL   = 10 * time.Minute
)

// Triggers recorded in the run ledger.
const (
	TriggerHTTP     = "http"
	TriggerSchedule = "schedule"
	TriggerAdmin    = "admin"
	TriggerCLI      = "cli"
)

// ErrRunInProgress is returned when another run holds the digest lock.
var ErrRunInProgress = apperrors.New("RUN_IN_PROGRESS", "Unread message digest is already running", http.StatusConflict)

// Config tunes a Job.
type Config struct {
	// Staleness is how old an unread message must be before it is digested.
	Staleness time.Duration
	// DispatchConcurrency caps concurrent notification calls; zero means one per group.
	DispatchConcurrency int
	// LockTTL bounds how long a crashed run can block the next one.
	LockTTL time.Duration
}

// RunResult summarises one digest run.
type RunResult struct {
	ProcessedMessages    int `json:"processedMessages"`
	CreatedNotifications int `json:"createdNotifications"`
	NotificationErrors   int `json:"notificationErrors"`
	Groups               int `json:"groups"`
	SkippedMessages      int `json:"skippedMessages"`

	notificationErr error
}

// RunLedger persists run records.
type RunLedger interface {
	Record(ctx context.Context, record services.CronRunRecord) (*models.CronRun, error)
}

// JobOption customises a Job.
type JobOption func(*Job)

// WithLockStore makes runs mutually exclusive through store.
func WithLockStore(store cache.Store) JobOption {
	return func(j *Job) {
		j.locks = store
	}
}

// WithRunLedger records every run in ledger.
func WithRunLedger(ledger RunLedger) JobOption {
	return func(j *Job) {
		j.ledger = ledger
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) JobOption {
	return func(j *Job) {
		if now != nil {
			j.now = now
		}
	}
}

// WithLogger overrides the job logger.
func WithLogger(log *zap.Logger) JobOption {
	return func(j *Job) {
		if log != nil {
			j.log = log
		}
	}
}

// Job consolidates stale unread messages into one notification per conversation and
// recipient, then marks the consumed messages as notified.
type Job struct {
	store    Store
	notifier Notifier
	locks    cache.Store
	ledger   RunLedger
	cfg      Config
	now      func() time.Time
	log      *zap.Logger
}

// NewJob wires a digest job.
func NewJob(store Store, notifier Notifier, cfg Config, opts ...JobOption) (*Job, error) {
	if store == nil {
		return nil, errors.New("digest job: store is required")
	}
	if notifier == nil {
		return nil, errors.New("digest job: notifier is required")
	}
	if cfg.Staleness <= 0 {
		cfg.Staleness = defaultStaleness
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}

	job := &Job{
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		log:      logger.WithModule("digest"),
	}
	for _, opt := range opts {
		opt(job)
	}
	return job, nil
}

// Name returns the job identifier.
func (j *Job) Name() string {
	return JobName
}

// Run executes one digest pass. It returns ErrRunInProgress without touching any data
// when another run holds the lock.
func (j *Job) Run(ctx context.Context, trigger string) (*RunResult, error) {
	started := j.now()
	log := j.log.With(zap.String("trigger", trigger))

	if j.locks != nil {
		lock, err := cache.AcquireLock(ctx, j.locks, LockKey, j.cfg.LockTTL)
		if errors.Is(err, cache.ErrLockHeld) {
			log.Info("digest run skipped, lock held")
			j.finish(ctx, trigger, started, models.CronRunSkipped, &RunResult{}, ErrRunInProgress)
			return nil, ErrRunInProgress
		}
		if err != nil {
			err = fmt.Errorf("digest: acquire lock: %w", err)
			j.finish(ctx, trigger, started, models.CronRunFailed, &RunResult{}, err)
			return nil, err
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				log.Warn("release digest lock", zap.String("lock", lock.Key()), zap.Error(err))
			}
		}()
	}

	result, err := j.execute(ctx, started, log)
	status, recorded := models.CronRunSuccess, result.notificationErr
	if err != nil {
		status, recorded = models.CronRunFailed, err
	}
	j.finish(ctx, trigger, started, status, result, recorded)

	return result, err
}

func (j *Job) execute(ctx context.Context, now time.Time, log *zap.Logger) (*RunResult, error) {
	result := &RunResult{}

	cutoff := now.Add(-j.cfg.Staleness)
	messages, err := j.store.FindEligible(ctx, cutoff)
	if err != nil {
		return result, err
	}
	if len(messages) == 0 {
		log.Debug("no stale unread messages")
		return result, nil
	}

	groups, skipped := GroupMessages(messages, log)
	result.Groups = len(groups)
	result.SkippedMessages = skipped.Total()
	if skipped.MissingConversation > 0 {
		metrics.DigestSkippedMessages.WithLabelValues("missing_conversation").Add(float64(skipped.MissingConversation))
	}
	if skipped.MissingSender > 0 {
		metrics.DigestSkippedMessages.WithLabelValues("missing_sender").Add(float64(skipped.MissingSender))
	}
	if skipped.NoRecipient > 0 {
		metrics.DigestSkippedMessages.WithLabelValues("no_recipient").Add(float64(skipped.NoRecipient))
	}
	if len(groups) == 0 {
		return result, nil
	}

	deliveries := make([]Delivery, len(groups))
	for i, group := range groups {
		deliveries[i] = Delivery{Group: group}
		actionType, err := Classify(ctx, j.store, group)
		if err != nil {
			deliveries[i].PrepareErr = err
			continue
		}
		deliveries[i].ActionType = actionType
		deliveries[i].Input = BuildContent(group, actionType).Request(group.Key.RecipientID, actionType)
	}

	outcomes := Dispatch(ctx, j.notifier, deliveries, j.cfg.DispatchConcurrency)

	var dispatchErr error
	for _, outcome := range outcomes {
		label := outcome.ActionType
		if label == "" {
			label = "unclassified"
		}
		if outcome.Err != nil {
			result.NotificationErrors++
			metrics.DigestNotifications.WithLabelValues(label, "failure").Inc()
			dispatchErr = multierr.Append(dispatchErr, fmt.Errorf("conversation %s recipient %s: %w",
				outcome.Group.Key.ConversationID, outcome.Group.Key.RecipientID, outcome.Err))
			log.Warn("notification failed",
				zap.String("conversation_id", outcome.Group.Key.ConversationID),
				zap.String("recipient_id", outcome.Group.Key.RecipientID),
				zap.String("action_type", label),
				zap.Error(outcome.Err),
			)
			continue
		}
		result.CreatedNotifications++
		metrics.DigestNotifications.WithLabelValues(label, "success").Inc()
	}

	result.notificationErr = dispatchErr

	ids := consumedMessageIDs(groups)
	if _, err := j.store.MarkNotified(ctx, ids, j.now()); err != nil {
		return result, multierr.Append(err, dispatchErr)
	}
	result.ProcessedMessages = len(ids)
	metrics.DigestMessagesProcessed.Add(float64(len(ids)))

	if dispatchErr != nil {
		log.Warn("digest completed with notification errors",
			zap.Int("errors", result.NotificationErrors),
			zap.Error(dispatchErr),
		)
	}
	return result, nil
}

func (j *Job) finish(ctx context.Context, trigger string, started time.Time, status string, result *RunResult, runErr error) {
	finished := j.now()

	metrics.DigestRuns.WithLabelValues(trigger, status).Inc()
	if status != models.CronRunSkipped {
		metrics.DigestDuration.Observe(finished.Sub(started).Seconds())
	}

	fields := []zap.Field{
		zap.String("trigger", trigger),
		zap.String("status", status),
		zap.Int("processed_messages", result.ProcessedMessages),
		zap.Int("created_notifications", result.CreatedNotifications),
		zap.Int("notification_errors", result.NotificationErrors),
		zap.Int("groups", result.Groups),
		zap.Duration("duration", finished.Sub(started)),
	}
	if status == models.CronRunFailed {
		j.log.Error("digest run failed", append(fields, zap.Error(runErr))...)
	} else if status == models.CronRunSuccess {
		j.log.Info("digest run finished", fields...)
	}

	if j.ledger == nil {
		return
	}
	record := services.CronRunRecord{
		Job:                  JobName,
		Trigger:              trigger,
		Status:               status,
		StartedAt:            started,
		FinishedAt:           finished,
		ProcessedMessages:    result.ProcessedMessages,
		CreatedNotifications: result.CreatedNotifications,
		NotificationErrors:   result.NotificationErrors,
		Err:                  runErr,
		Metadata: map[string]any{
			"groups":           result.Groups,
			"skipped_messages": result.SkippedMessages,
		},
	}
	if _, err := j.ledger.Record(context.WithoutCancel(ctx), record); err != nil {
		j.log.Warn("record digest run", zap.Error(err))
	}
}

// consumedMessageIDs returns each message id appearing in any group once.
func consumedMessageIDs(groups []*Group) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, group := range groups {
		for _, id := range group.MessageIDs() {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}
