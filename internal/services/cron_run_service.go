package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/matchbook/notifier/internal/models"
)

// CronRunRecord captures one finished job execution to persist.
type CronRunRecord struct {
	Job                  string
	Trigger              string
	Status               string
	StartedAt            time.Time
	FinishedAt           time.Time
	ProcessedMessages    int
	CreatedNotifications int
	NotificationErrors   int
	Err                  error
	Metadata             map[string]any
}

// CronRunFilters encapsulates optional filters when querying the run ledger.
type CronRunFilters struct {
	Job     string     `form:"job" validate:"omitempty,max=64"`
	Status  string     `form:"status" validate:"omitempty,oneof=success failed skipped"`
	Trigger string     `form:"trigger" validate:"omitempty,oneof=http schedule admin cli"`
	Since   *time.Time `form:"since" time_format:"2006-01-02T15:04:05Z07:00"`
	Until   *time.Time `form:"until" time_format:"2006-01-02T15:04:05Z07:00"`
}

// CronRunListOptions controls pagination and filtering for run ledger queries.
type CronRunListOptions struct {
	Page     int
	PageSize int
	Filters  CronRunFilters
}

// CronRunService persists and retrieves cron run records.
type CronRunService struct {
	db *gorm.DB
}

// NewCronRunService constructs a CronRunService using the provided database handle.
func NewCronRunService(db *gorm.DB) (*CronRunService, error) {
	if db == nil {
		return nil, errors.New("cron run service: db is required")
	}
	return &CronRunService{db: db}, nil
}

// Record stores a run, deriving its duration from the start and finish times.
func (s *CronRunService) Record(ctx context.Context, record CronRunRecord) (*models.CronRun, error) {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(record.Job) == "" {
		return nil, errors.New("cron run service: job is required")
	}
	if strings.TrimSpace(record.Status) == "" {
		return nil, errors.New("cron run service: status is required")
	}

	finished := record.FinishedAt
	if finished.IsZero() {
		finished = time.Now().UTC()
	}

	run := models.CronRun{
		Job:                  strings.TrimSpace(record.Job),
		Trigger:              defaultIfEmpty(strings.TrimSpace(record.Trigger), "schedule"),
		Status:               strings.TrimSpace(record.Status),
		StartedAt:            record.StartedAt.UTC(),
		FinishedAt:           finished.UTC(),
		DurationMS:           finished.Sub(record.StartedAt).Milliseconds(),
		ProcessedMessages:    record.ProcessedMessages,
		CreatedNotifications: record.CreatedNotifications,
		NotificationErrors:   record.NotificationErrors,
	}
	if record.Err != nil {
		run.Error = record.Err.Error()
	}

	if record.Metadata != nil {
		encoded, err := json.Marshal(record.Metadata)
		if err != nil {
			return nil, fmt.Errorf("cron run service: marshal metadata: %w", err)
		}
		run.Metadata = datatypes.JSON(encoded)
	}

	if err := s.db.WithContext(ctx).Create(&run).Error; err != nil {
		return nil, fmt.Errorf("cron run service: record run: %w", err)
	}
	return &run, nil
}

// List returns paginated runs ordered by start time descending.
func (s *CronRunService) List(ctx context.Context, opts CronRunListOptions) ([]models.CronRun, int64, error) {
	ctx = ensureContext(ctx)

	page := opts.Page
	if page <= 0 {
		page = 1
	}
	perPage := opts.PageSize
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}

	var (
		results []models.CronRun
		total   int64
	)

	query := s.db.WithContext(ctx).Model(&models.CronRun{})
	query = applyCronRunFilters(query, opts.Filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("cron run service: count runs: %w", err)
	}

	if err := query.
		Order("started_at DESC").
		Order("id DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&results).Error; err != nil {
		return nil, 0, fmt.Errorf("cron run service: list runs: %w", err)
	}

	return results, total, nil
}

// Latest returns the most recent run of job, or nil when it never ran.
func (s *CronRunService) Latest(ctx context.Context, job string) (*models.CronRun, error) {
	ctx = ensureContext(ctx)

	var run models.CronRun
	err := s.db.WithContext(ctx).
		Where("job = ?", job).
		Order("started_at DESC").
		Take(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cron run service: latest run: %w", err)
	}
	return &run, nil
}

// CleanupOlderThan removes runs that started before now minus retention.
func (s *CronRunService) CleanupOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	ctx = ensureContext(ctx)

	if retention <= 0 {
		return 0, errors.New("cron run service: retention must be positive")
	}

	cutoff := time.Now().UTC().Add(-retention)

	result := s.db.WithContext(ctx).Where("started_at < ?", cutoff).Delete(&models.CronRun{})
	if result.Error != nil {
		return 0, fmt.Errorf("cron run service: cleanup runs: %w", result.Error)
	}

	return result.RowsAffected, nil
}

func applyCronRunFilters(query *gorm.DB, filters CronRunFilters) *gorm.DB {
	if filters.Job != "" {
		query = query.Where("job = ?", filters.Job)
	}
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if filters.Trigger != "" {
		query = query.Where("triggered_by = ?", filters.Trigger)
	}
	if filters.Since != nil {
		query = query.Where("started_at >= ?", filters.Since.UTC())
	}
	if filters.Until != nil {
		query = query.Where("started_at <= ?", filters.Until.UTC())
	}
	return query
}
