package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/ordersync/internal/clock"
	"github.com/smallbiznis/ordersync/internal/config"
	ingestiondomain "github.com/smallbiznis/ordersync/internal/ingestion/domain"
	"github.com/smallbiznis/ordersync/internal/job/domain"
	"github.com/smallbiznis/ordersync/internal/job/guard"
	obscontext "github.com/smallbiznis/ordersync/internal/observability/context"
	obslogger "github.com/smallbiznis/ordersync/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/ordersync/internal/observability/metrics"
	"github.com/smallbiznis/ordersync/internal/syncengine"
	"github.com/smallbiznis/ordersync/internal/synclock"
	"github.com/smallbiznis/ordersync/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultLockTTL = 30 * time.Minute
	uploadNameMax  = 64
)

type Params struct {
	fx.In

	DB        *gorm.DB `name:"oltp"`
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      domain.Repository
	Runner    syncengine.Runner
	Ingestion ingestiondomain.Service
	Locker    synclock.Locker
	Clock     clock.Clock
	Config    config.Config
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      domain.Repository
	runner    syncengine.Runner
	ingestion ingestiondomain.Service
	locker    synclock.Locker
	clock     clock.Clock
	metrics   *obsmetrics.Metrics

	uploadDir    string
	recentWindow time.Duration
	autoSyncMin  int
	lockTTL      time.Duration

	// dispatch hands a queued upload to the background.
	dispatch func(id snowflake.ID)
}

func New(p Params) domain.Service {
	lockTTL := p.Config.Sync.LockTTL
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	s := &Service{
		db:           p.DB,
		log:          p.Log.Named("job.service"),
		genID:        p.GenID,
		repo:         p.Repo,
		runner:       p.Runner,
		ingestion:    p.Ingestion,
		locker:       p.Locker,
		clock:        p.Clock,
		metrics:      p.Metrics,
		uploadDir:    p.Config.UploadDir,
		recentWindow: p.Config.Sync.RecentJobWindow,
		autoSyncMin:  p.Config.Sync.AutoSyncMinInserted,
		lockTTL:      lockTTL,
	}
	s.dispatch = s.runUploadInBackground
	return s
}

func (s *Service) RunWarehouseSync(ctx context.Context, req domain.RunSyncRequest) (domain.SyncJob, error) {
	if err := guard.EnsureTrigger(req.Trigger); err != nil {
		return domain.SyncJob{}, err
	}
	log := obslogger.WithContext(ctx, s.log).With(zap.String("trigger", string(req.Trigger)))

	if !req.Force {
		since := s.clock.Now().Add(-s.recentWindow)
		latest, err := s.repo.LatestCompleted(ctx, s.db, domain.KindWarehouseSync, since)
		if err != nil {
			return domain.SyncJob{}, err
		}
		if err := guard.EnsureNoRecentSync(latest, s.recentWindow, s.clock.Now(), req.Force); err != nil {
			obsmetrics.Sync().ObserveRun(string(req.Trigger), obsmetrics.SyncStatusSkipped, 0, time.Time{})
			log.Info("sync.skipped", zap.String("reason", "recent_run"), zap.String("last_job_id", latest.ID.String()))
			return *latest, err
		}
	}

	token, ok, err := s.locker.TryLock(ctx, synclock.KeyWarehouseSync, s.lockTTL)
	if err != nil {
		return domain.SyncJob{}, fmt.Errorf("acquire sync lock: %w", err)
	}
	if !ok {
		obsmetrics.Sync().ObserveRun(string(req.Trigger), obsmetrics.SyncStatusSkipped, 0, time.Time{})
		log.Info("sync.skipped", zap.String("reason", "lock_held"))
		return domain.SyncJob{}, domain.ErrSyncInProgress
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), synclock.KeyWarehouseSync, token); err != nil {
			log.Warn("sync lock release failed", zap.Error(err))
		}
	}()

	job := domain.SyncJob{
		ID:        s.genID.Generate(),
		Name:      "Warehouse sync (" + string(req.Trigger) + ")",
		Kind:      domain.KindWarehouseSync,
		Trigger:   req.Trigger,
		Status:    domain.StatusPending,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, s.db, &job); err != nil {
		return domain.SyncJob{}, err
	}
	if err := s.start(ctx, &job); err != nil {
		return job, err
	}

	ctx = obscontext.WithJobID(ctx, job.ID.String())
	stats, runErr := s.runner.RunFullSync(ctx)

	totals := stats.Totals()
	job.RecordsProcessed = totals.Processed
	job.RecordsInserted = totals.Inserted
	job.RecordsUpdated = totals.Updated
	job.RecordsSkipped = totals.Skipped
	job.RecordsErrored = totals.Errors
	job.Stats = encodeStats(stats)

	status := obsmetrics.SyncStatusCompleted
	if runErr != nil {
		status = obsmetrics.SyncStatusFailed
	}
	saveErr := s.finish(context.WithoutCancel(ctx), &job, runErr)

	obsmetrics.Sync().ObserveRun(string(req.Trigger), status, job.Duration(), s.clock.Now())
	s.metrics.RecordSyncRun(ctx, string(req.Trigger), status)
	log.Info("sync.job.finish",
		zap.String("job_id", job.ID.String()),
		zap.String("status", string(job.Status)),
		zap.Int("records_processed", job.RecordsProcessed),
		zap.Int("records_inserted", job.RecordsInserted),
		zap.Int("records_updated", job.RecordsUpdated),
	)

	if runErr != nil {
		return job, errors.Join(runErr, saveErr)
	}
	return job, saveErr
}

func (s *Service) SubmitUpload(ctx context.Context, req domain.UploadRequest) (domain.SyncJob, error) {
	if err := guard.EnsureCSV(req.FileName); err != nil {
		return domain.SyncJob{}, err
	}
	if req.Body == nil {
		return domain.SyncJob{}, domain.ErrInvalidFile
	}

	id := s.genID.Generate()
	path, err := s.store(id, req.FileName, req.Body)
	if err != nil {
		return domain.SyncJob{}, err
	}

	job := domain.SyncJob{
		ID:        id,
		Name:      filepath.Base(req.FileName),
		Kind:      domain.KindUpload,
		Trigger:   domain.TriggerUpload,
		Status:    domain.StatusPending,
		FilePath:  path,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, s.db, &job); err != nil {
		_ = os.Remove(path)
		return domain.SyncJob{}, err
	}

	obslogger.WithContext(ctx, s.log).Info("upload.queued",
		zap.String("job_id", job.ID.String()),
		zap.String("file_path", path),
	)
	s.dispatch(job.ID)
	return job, nil
}

func (s *Service) RunUpload(ctx context.Context, id string) (domain.SyncJob, error) {
	jobID, err := parseID(id)
	if err != nil {
		return domain.SyncJob{}, err
	}
	return s.runUpload(ctx, jobID, true)
}

func (s *Service) IngestFile(ctx context.Context, req domain.IngestFileRequest) (domain.SyncJob, error) {
	if err := guard.EnsureCSV(req.Path); err != nil {
		return domain.SyncJob{}, err
	}
	if _, err := os.Stat(req.Path); err != nil {
		return domain.SyncJob{}, fmt.Errorf("%w: %w", domain.ErrInvalidFile, err)
	}

	job := domain.SyncJob{
		ID:        s.genID.Generate(),
		Name:      filepath.Base(req.Path),
		Kind:      domain.KindUpload,
		Trigger:   domain.TriggerManual,
		Status:    domain.StatusPending,
		FilePath:  req.Path,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, s.db, &job); err != nil {
		return domain.SyncJob{}, err
	}
	return s.runUpload(ctx, job.ID, req.AutoSync)
}

func (s *Service) SweepPendingUploads(ctx context.Context, createdBefore time.Time, limit int) (int, error) {
	jobs, err := s.repo.ListPending(ctx, s.db, domain.KindUpload, createdBefore, limit)
	if err != nil {
		return 0, err
	}

	var (
		processed int
		errs      []error
	)
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		_, err := s.runUpload(ctx, job.ID, true)
		switch {
		case errors.Is(err, domain.ErrNotPending):
			continue
		case err != nil:
			errs = append(errs, fmt.Errorf("upload %s: %w", job.ID, err))
		}
		processed++
	}
	return processed, errors.Join(errs...)
}

func (s *Service) Get(ctx context.Context, id string) (domain.SyncJob, error) {
	jobID, err := parseID(id)
	if err != nil {
		return domain.SyncJob{}, err
	}
	job, err := s.repo.FindByID(ctx, s.db, jobID)
	if err != nil {
		return domain.SyncJob{}, err
	}
	if job == nil {
		return domain.SyncJob{}, domain.ErrNotFound
	}
	return *job, nil
}

func (s *Service) List(ctx context.Context, req domain.ListJobRequest) (domain.ListJobResponse, error) {
	kind, err := guard.ParseKind(req.Kind)
	if err != nil {
		return domain.ListJobResponse{}, err
	}
	status, err := guard.ParseStatus(req.Status)
	if err != nil {
		return domain.ListJobResponse{}, err
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, domain.ListJobFilter{Kind: kind, Status: status}, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListJobResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, int(pageSize), func(job *domain.SyncJob) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        job.ID.String(),
			CreatedAt: job.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	jobs := make([]domain.SyncJob, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		jobs = append(jobs, *item)
	}

	resp := domain.ListJobResponse{Jobs: jobs}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) runUploadInBackground(id snowflake.ID) {
	go func() {
		ctx := obscontext.WithJobID(context.Background(), id.String())
		if _, err := s.runUpload(ctx, id, true); err != nil && !errors.Is(err, domain.ErrNotPending) {
			s.log.Error("upload.failed", zap.String("job_id", id.String()), zap.Error(err))
		}
	}()
}

// runUpload claims a pending upload job, ingests its file and optionally chains a warehouse sync.
func (s *Service) runUpload(ctx context.Context, id snowflake.ID, autoSync bool) (domain.SyncJob, error) {
	claimed, err := s.repo.ClaimPending(ctx, s.db, id, s.clock.Now())
	if err != nil {
		return domain.SyncJob{}, err
	}
	if !claimed {
		return domain.SyncJob{}, domain.ErrNotPending
	}
	found, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.SyncJob{}, err
	}
	if found == nil {
		return domain.SyncJob{}, domain.ErrNotFound
	}
	job := *found
	ctx = obscontext.WithJobID(ctx, job.ID.String())
	log := obslogger.WithContext(ctx, s.log)

	stats, ingestErr := s.ingestion.IngestFile(ctx, job.FilePath)
	job.RecordsProcessed = stats.Processed
	job.RecordsInserted = stats.Inserted
	job.RecordsUpdated = stats.Updated
	job.RecordsSkipped = stats.Skipped
	job.RecordsErrored = stats.Errors
	job.Stats = encodeStats(stats)

	if ingestErr == nil && autoSync && stats.Inserted >= s.autoSyncMin && stats.Inserted > 0 {
		job.Notes = s.chainSync(ctx, stats.Inserted)
	}

	saveErr := s.finish(context.WithoutCancel(ctx), &job, ingestErr)
	s.metrics.RecordUpload(ctx, string(job.Status))
	log.Info("upload.finish",
		zap.String("status", string(job.Status)),
		zap.Int("records_processed", job.RecordsProcessed),
		zap.Int("records_inserted", job.RecordsInserted),
		zap.Int("records_errored", job.RecordsErrored),
	)

	if ingestErr != nil {
		return job, errors.Join(ingestErr, saveErr)
	}
	return job, saveErr
}

// chainSync runs the upload-triggered warehouse sync and describes its outcome for the notes.
func (s *Service) chainSync(ctx context.Context, inserted int) string {
	syncJob, err := s.RunWarehouseSync(ctx, domain.RunSyncRequest{Trigger: domain.TriggerUpload, Force: true})
	switch {
	case errors.Is(err, domain.ErrSyncInProgress):
		return fmt.Sprintf("loaded %d new orders; warehouse sync skipped: another sync is running", inserted)
	case err != nil && syncJob.ID == 0:
		return fmt.Sprintf("loaded %d new orders; warehouse sync not started: %v", inserted, err)
	case err != nil:
		return fmt.Sprintf("loaded %d new orders; warehouse sync %s failed: %v", inserted, syncJob.ID, err)
	default:
		return fmt.Sprintf("loaded %d new orders; warehouse sync %s completed", inserted, syncJob.ID)
	}
}

func (s *Service) start(ctx context.Context, job *domain.SyncJob) error {
	now := s.clock.Now()
	job.Status = domain.StatusRunning
	job.StartedAt = &now
	return s.repo.Update(ctx, s.db, job)
}

func (s *Service) finish(ctx context.Context, job *domain.SyncJob, runErr error) error {
	now := s.clock.Now()
	job.CompletedAt = &now
	job.Status = domain.StatusCompleted
	if runErr != nil {
		job.Status = domain.StatusFailed
		job.ErrorMessage = runErr.Error()
	}
	return s.repo.Update(ctx, s.db, job)
}

// store copies the upload under the upload dir with a collision free, slugged name.
func (s *Service) store(id snowflake.ID, fileName string, body io.Reader) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0o750); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	name := slug.Make(base)
	if len(name) > uploadNameMax {
		name = name[:uploadNameMax]
	}
	if name == "" {
		name = "upload"
	}
	path := filepath.Join(s.uploadDir, fmt.Sprintf("%s-%s.csv", id, name))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	return path, nil
}

func encodeStats(stats any) datatypes.JSON {
	raw, err := json.Marshal(stats)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
