package models

import (
	"time"

	"gorm.io/datatypes"
)

// Cron run statuses.
const (
	CronRunSuccess = "success"
	CronRunFailed  = "failed"
	CronRunSkipped = "skipped"
)

// CronRun records one execution of a scheduled job.
type CronRun struct {
	BaseModel

	Job        string    `gorm:"size:64;not null;index" json:"job"`
	Trigger    string    `gorm:"column:triggered_by;size:32;not null" json:"trigger"`
	Status     string    `gorm:"size:16;not null;index" json:"status"`
	StartedAt  time.Time `gorm:"index" json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMS int64     `json:"duration_ms"`

	ProcessedMessages    int `json:"processed_messages"`
	CreatedNotifications int `json:"created_notifications"`
	NotificationErrors   int `json:"notification_errors"`

	Error    string         `gorm:"type:text" json:"error,omitempty"`
	Metadata datatypes.JSON `json:"metadata,omitempty"`
}
