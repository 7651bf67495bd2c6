package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ordersync/internal/job/domain"
	"github.com/smallbiznis/ordersync/pkg/db/option"
	"github.com/smallbiznis/ordersync/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, job *domain.SyncJob) error {
	return db.WithContext(ctx).Create(job).Error
}

// Update persists every column of job, zero counters included.
func (r *repo) Update(ctx context.Context, db *gorm.DB, job *domain.SyncJob) error {
	return db.WithContext(ctx).Save(job).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.SyncJob, error) {
	var job domain.SyncJob
	err := db.WithContext(ctx).Where("id = ?", id).Take(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListJobFilter, page pagination.Pagination) ([]*domain.SyncJob, error) {
	var jobs []*domain.SyncJob
	stmt := db.WithContext(ctx).Model(&domain.SyncJob{})
	if filter.Kind != "" {
		stmt = stmt.Where("kind = ?", filter.Kind)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *repo) LatestCompleted(ctx context.Context, db *gorm.DB, kind domain.Kind, since time.Time) (*domain.SyncJob, error) {
	var jobs []domain.SyncJob
	err := db.WithContext(ctx).
		Where("kind = ? AND status = ? AND completed_at >= ?", kind, domain.StatusCompleted, since).
		Order("completed_at desc").
		Limit(1).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return &jobs[0], nil
}

func (r *repo) ListPending(ctx context.Context, db *gorm.DB, kind domain.Kind, createdBefore time.Time, limit int) ([]*domain.SyncJob, error) {
	if limit <= 0 {
		limit = 50
	}
	var jobs []*domain.SyncJob
	err := db.WithContext(ctx).
		Where("kind = ? AND status = ? AND created_at < ?", kind, domain.StatusPending, createdBefore).
		Order("created_at asc, id asc").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *repo) ClaimPending(ctx context.Context, db *gorm.DB, id snowflake.ID, startedAt time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.SyncJob{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Updates(map[string]any{
			"status":     domain.StatusRunning,
			"started_at": startedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
