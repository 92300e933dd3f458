package maintenance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/matchbook/notifier/internal/models"
	apperrors "github.com/matchbook/notifier/pkg/errors"
	"github.com/matchbook/notifier/pkg/logger"
)

// ErrJobNotFound is returned when triggering an unregistered job.
var ErrJobNotFound = apperrors.New("JOB_NOT_FOUND", "Cron job not found", http.StatusNotFound)

const (
	defaultRunTimeout = 5 * time.Minute
	triggerSchedule   = "schedule"
)

// RunFunc executes a job once. The returned value is reported to manual triggers.
type RunFunc func(ctx context.Context, trigger string) (any, error)

// Definition describes a job to register.
type Definition struct {
	ID          string
	Name        string
	Description string
	// Schedule is a five field cron expression or descriptor. Empty means manual only.
	Schedule string
	Run      RunFunc
}

// JobInfo is the registry view returned to operators.
type JobInfo struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schedule    string          `json:"schedule,omitempty"`
	Scheduled   bool            `json:"scheduled"`
	LastRun     *models.CronRun `json:"last_run,omitempty"`
}

// LatestRunLookup resolves the most recent ledger row of a job.
type LatestRunLookup interface {
	Latest(ctx context.Context, job string) (*models.CronRun, error)
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithRunTimeout bounds each scheduled execution.
func WithRunTimeout(timeout time.Duration) Option {
	return func(s *Scheduler) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithLatestRuns attaches last-run details to Jobs.
func WithLatestRuns(lookup LatestRunLookup) Option {
	return func(s *Scheduler) {
		s.latest = lookup
	}
}

// WithSchedulingDisabled keeps jobs available for manual triggers without starting timers.
func WithSchedulingDisabled() Option {
	return func(s *Scheduler) {
		s.disabled = true
	}
}

// Scheduler runs registered jobs on their cron schedules and exposes them for manual runs.
type Scheduler struct {
	cron     *cron.Cron
	timeout  time.Duration
	latest   LatestRunLookup
	disabled bool
	log      *zap.Logger

	mu      sync.RWMutex
	jobs    []Definition
	byID    map[string]int
	started bool
}

// NewScheduler constructs an empty Scheduler.
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		timeout: defaultRunTimeout,
		byID:    make(map[string]int),
		log:     logger.WithModule("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cron == nil {
		s.cron = cron.New(
			cron.WithLogger(cron.DiscardLogger),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		)
	}
	return s
}

// Register adds a job. Schedules are validated up front so a typo fails at boot.
func (s *Scheduler) Register(def Definition) error {
	if def.ID == "" || def.Run == nil {
		return errors.New("scheduler: job id and run func are required")
	}
	if def.Schedule != "" {
		if _, err := cron.ParseStandard(def.Schedule); err != nil {
			return fmt.Errorf("scheduler: job %s: invalid schedule %q: %w", def.ID, def.Schedule, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.New("scheduler: cannot register after start")
	}
	if _, ok := s.byID[def.ID]; ok {
		return fmt.Errorf("scheduler: job %s already registered", def.ID)
	}
	s.byID[def.ID] = len(s.jobs)
	s.jobs = append(s.jobs, def)
	return nil
}

// Start registers scheduled jobs with cron and launches it.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.disabled {
		return nil
	}

	for _, def := range s.jobs {
		if def.Schedule == "" {
			continue
		}
		def := def
		if _, err := s.cron.AddFunc(def.Schedule, func() { s.runScheduled(def) }); err != nil {
			return fmt.Errorf("scheduler: schedule %s: %w", def.ID, err)
		}
		s.log.Info("job scheduled", zap.String("job", def.ID), zap.String("schedule", def.Schedule))
	}

	s.cron.Start()
	s.started = true
	return nil
}

// Stop halts the scheduler. The returned context is done once running jobs complete.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	s.started = false
	return s.cron.Stop()
}

func (s *Scheduler) runScheduled(def Definition) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := def.Run(ctx, triggerSchedule); err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.StatusCode == http.StatusConflict {
			s.log.Debug("scheduled run skipped", zap.String("job", def.ID), zap.Error(err))
			return
		}
		s.log.Warn("scheduled run failed", zap.String("job", def.ID), zap.Error(err))
	}
}

// Jobs lists registered jobs in registration order.
func (s *Scheduler) Jobs(ctx context.Context) ([]JobInfo, error) {
	s.mu.RLock()
	defs := make([]Definition, len(s.jobs))
	copy(defs, s.jobs)
	s.mu.RUnlock()

	out := make([]JobInfo, 0, len(defs))
	for _, def := range defs {
		info := JobInfo{
			ID:          def.ID,
			Name:        def.Name,
			Description: def.Description,
			Schedule:    def.Schedule,
			Scheduled:   def.Schedule != "" && !s.disabled,
		}
		if s.latest != nil {
			run, err := s.latest.Latest(ctx, def.ID)
			if err != nil {
				return nil, err
			}
			info.LastRun = run
		}
		out = append(out, info)
	}
	return out, nil
}

// Trigger runs one job immediately on the caller's goroutine.
func (s *Scheduler) Trigger(ctx context.Context, id, trigger string) (any, error) {
	s.mu.RLock()
	idx, ok := s.byID[id]
	var def Definition
	if ok {
		def = s.jobs[idx]
	}
	s.mu.RUnlock()

	if !ok {
		return nil, ErrJobNotFound
	}
	return def.Run(ctx, trigger)
}

// RunOnce executes every registered job sequentially and aggregates their errors.
func (s *Scheduler) RunOnce(ctx context.Context, trigger string) error {
	s.mu.RLock()
	defs := make([]Definition, len(s.jobs))
	copy(defs, s.jobs)
	s.mu.RUnlock()

	var errs error
	for _, def := range defs {
		if _, err := def.Run(ctx, trigger); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", def.ID, err))
		}
	}
	return errs
}
