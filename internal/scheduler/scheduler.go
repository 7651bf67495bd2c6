package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/robfig/cron/v3"
	"github.com/smallbiznis/ordersync/internal/clock"
	jobdomain "github.com/smallbiznis/ordersync/internal/job/domain"
	obsmetrics "github.com/smallbiznis/ordersync/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobWarehouseSync = "warehouse_sync"
	JobUploadSweep   = "upload_sweep"
)

var (
	ErrInvalidConfig   = errors.New("invalid_scheduler_config")
	ErrInvalidSchedule = errors.New("invalid_sync_schedule")
)

type Params struct {
	fx.In

	Log    *zap.Logger
	Jobs   jobdomain.Service
	GenID  *snowflake.Node
	Clock  clock.Clock
	Config Config `optional:"true"`
}

type Scheduler struct {
	log   *zap.Logger
	cfg   Config
	genID *snowflake.Node
	clock clock.Clock
	jobs  jobdomain.Service

	schedule cron.Schedule

	mu       sync.Mutex
	nextSync time.Time
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Jobs == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.withDefaults()
	s := &Scheduler{
		log:   p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:   cfg,
		genID: p.GenID,
		clock: p.Clock,
		jobs:  p.Jobs,
	}
	if cfg.SyncEnabled {
		schedule, err := cron.ParseStandard(cfg.SyncSchedule)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, cfg.SyncSchedule, err)
		}
		s.schedule = schedule
		s.nextSync = schedule.Next(s.clock.Now())
	}
	return s, nil
}

// NextSync returns the next planned warehouse sync, zero when the timer is off.
func (s *Scheduler) NextSync() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSync
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// deadline is a soft timeout; the next tick picks the work up again
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{JobWarehouseSync, s.schedule != nil && s.isJobEnabled(JobWarehouseSync), func(ctx context.Context) error {
			if !s.syncDue() {
				return nil
			}
			return s.runJob(ctx, JobWarehouseSync, 1, s.cfg.SyncTimeout, s.WarehouseSyncJob)
		}},
		{JobUploadSweep, s.isJobEnabled(JobUploadSweep), func(ctx context.Context) error {
			return s.runJob(ctx, JobUploadSweep, s.cfg.SweepBatchSize, s.cfg.SweepTimeout, s.UploadSweepJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

func (s *Scheduler) syncDue() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.nextSync.IsZero() && !s.clock.Now().Before(s.nextSync)
}

func (s *Scheduler) advanceSync(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schedule == nil {
		return
	}
	s.nextSync = s.schedule.Next(now)
}

// WarehouseSyncJob starts the timed warehouse sync. A recent completed run
// skips the slot; a held lock leaves the slot due so the next tick retries.
func (s *Scheduler) WarehouseSyncJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobWarehouseSync, 1)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	now := s.clock.Now()
	schedMetrics := obsmetrics.Scheduler()

	job, err := s.jobs.RunWarehouseSync(ctx, jobdomain.RunSyncRequest{Trigger: jobdomain.TriggerSchedule})
	switch {
	case errors.Is(err, jobdomain.ErrRecentSync):
		schedMetrics.IncBatchDeferred(JobWarehouseSync, obsmetrics.SchedulerBatchDeferredReasonRecent)
		s.advanceSync(now)
		s.logSyncDeferred(ctx, obsmetrics.SchedulerBatchDeferredReasonRecent)
		return nil
	case errors.Is(err, jobdomain.ErrSyncInProgress):
		schedMetrics.IncBatchDeferred(JobWarehouseSync, obsmetrics.SchedulerBatchDeferredReasonLockHeld)
		s.logSyncDeferred(ctx, obsmetrics.SchedulerBatchDeferredReasonLockHeld)
		return nil
	}

	s.advanceSync(now)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.sync.failed", JobWarehouseSync, err,
			zap.String("job_id", idString(job.ID)),
		)
		return err
	}
	run.AddProcessed(1)
	schedMetrics.AddBatchProcessed(JobWarehouseSync, "sync_jobs", 1)
	s.logSyncCompleted(ctx, job)
	return nil
}

// UploadSweepJob processes upload jobs whose background worker never ran.
func (s *Scheduler) UploadSweepJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobUploadSweep, s.cfg.SweepBatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	cutoff := s.clock.Now().Add(-s.cfg.SweepAfter)

	processed, err := s.jobs.SweepPendingUploads(ctx, cutoff, s.cfg.SweepBatchSize)
	run.AddProcessed(processed)
	obsmetrics.Scheduler().AddBatchProcessed(JobUploadSweep, "uploads", processed)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.upload_sweep.failed", JobUploadSweep, err,
			zap.Time("created_before", cutoff),
		)
		return err
	}
	return nil
}
