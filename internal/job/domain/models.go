package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Kind string

const (
	KindWarehouseSync Kind = "warehouse_sync"
	KindUpload        Kind = "upload"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type Trigger string

const (
	TriggerManual   Trigger = "manual"
	TriggerUpload   Trigger = "upload"
	TriggerSchedule Trigger = "schedule"
	TriggerAPI      Trigger = "api"
)

// SyncJob records one warehouse sync or upload processing run.
type SyncJob struct {
	ID               snowflake.ID   `gorm:"primaryKey" json:"id"`
	Name             string         `gorm:"size:255;not null" json:"name"`
	Kind             Kind           `gorm:"size:32;not null;index:ix_sync_jobs_kind_status" json:"kind"`
	Trigger          Trigger        `gorm:"size:32;not null" json:"trigger"`
	Status           Status         `gorm:"size:32;not null;index:ix_sync_jobs_kind_status" json:"status"`
	FilePath         string         `gorm:"size:512" json:"file_path,omitempty"`
	CreatedAt        time.Time      `gorm:"not null;index" json:"created_at"`
	StartedAt        *time.Time     `json:"started_at,omitempty"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	RecordsProcessed int            `gorm:"not null;default:0" json:"records_processed"`
	RecordsInserted  int            `gorm:"not null;default:0" json:"records_inserted"`
	RecordsUpdated   int            `gorm:"not null;default:0" json:"records_updated"`
	RecordsSkipped   int            `gorm:"not null;default:0" json:"records_skipped"`
	RecordsErrored   int            `gorm:"not null;default:0" json:"records_errored"`
	Stats            datatypes.JSON `json:"stats,omitempty"`
	ErrorMessage     string         `gorm:"type:text" json:"error_message,omitempty"`
	Notes            string         `gorm:"type:text" json:"notes,omitempty"`
}

func (SyncJob) TableName() string { return "sync_jobs" }

// Duration is the wall time between start and completion, zero while unfinished.
func (j *SyncJob) Duration() time.Duration {
	if j == nil || j.StartedAt == nil || j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(*j.StartedAt)
}

type ListJobFilter struct {
	Kind   Kind
	Status Status
}
