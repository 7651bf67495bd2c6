package domain

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/smallbiznis/ordersync/pkg/db/pagination"
)

type RunSyncRequest struct {
	Trigger Trigger
	// Force skips the recent-run guard. It never bypasses the single-flight lock.
	Force bool
}

type UploadRequest struct {
	FileName string
	Body     io.Reader
}

type IngestFileRequest struct {
	Path     string
	AutoSync bool
}

type ListJobRequest struct {
	PageToken string
	PageSize  int32
	Kind      string
	Status    string
}

type ListJobResponse struct {
	pagination.PageInfo
	Jobs []SyncJob `json:"jobs"`
}

type Service interface {
	RunWarehouseSync(context.Context, RunSyncRequest) (SyncJob, error)
	// SubmitUpload stores the file and queues an upload job that is processed in the background.
	SubmitUpload(context.Context, UploadRequest) (SyncJob, error)
	// RunUpload processes a pending upload job and starts a warehouse sync when enough
	// new orders were loaded.
	RunUpload(ctx context.Context, id string) (SyncJob, error)
	// IngestFile runs an upload job for a local file in the foreground.
	IngestFile(context.Context, IngestFileRequest) (SyncJob, error)
	// SweepPendingUploads processes upload jobs left pending since before createdBefore.
	SweepPendingUploads(ctx context.Context, createdBefore time.Time, limit int) (int, error)
	Get(ctx context.Context, id string) (SyncJob, error)
	List(context.Context, ListJobRequest) (ListJobResponse, error)
}

var (
	ErrSyncInProgress = errors.New("sync_in_progress")
	ErrRecentSync     = errors.New("recent_sync_completed")
	ErrNotPending     = errors.New("job_not_pending")
	ErrInvalidID      = errors.New("invalid_id")
	ErrInvalidKind    = errors.New("invalid_kind")
	ErrInvalidStatus  = errors.New("invalid_status")
	ErrInvalidTrigger = errors.New("invalid_trigger")
	ErrInvalidFile    = errors.New("invalid_file")
	ErrNotFound       = errors.New("not_found")
)
