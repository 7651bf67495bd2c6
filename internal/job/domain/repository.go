package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ordersync/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, job *SyncJob) error
	Update(ctx context.Context, db *gorm.DB, job *SyncJob) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*SyncJob, error)
	List(ctx context.Context, db *gorm.DB, filter ListJobFilter, page pagination.Pagination) ([]*SyncJob, error)
	// LatestCompleted returns the newest completed job of kind finished at or after since.
	LatestCompleted(ctx context.Context, db *gorm.DB, kind Kind, since time.Time) (*SyncJob, error)
	ListPending(ctx context.Context, db *gorm.DB, kind Kind, createdBefore time.Time, limit int) ([]*SyncJob, error)
	// ClaimPending moves a pending job to running; false means another worker got there first.
	ClaimPending(ctx context.Context, db *gorm.DB, id snowflake.ID, startedAt time.Time) (bool, error)
}
