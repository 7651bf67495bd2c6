package service

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ordersync/internal/clock"
	"github.com/smallbiznis/ordersync/internal/config"
	ingestiondomain "github.com/smallbiznis/ordersync/internal/ingestion/domain"
	"github.com/smallbiznis/ordersync/internal/job/domain"
	"github.com/smallbiznis/ordersync/internal/job/repository"
	"github.com/smallbiznis/ordersync/internal/syncengine"
	"github.com/smallbiznis/ordersync/internal/synclock"
	"github.com/smallbiznis/ordersync/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// -- Mocks --

type runnerMock struct {
	mock.Mock
}

func (m *runnerMock) RunFullSync(ctx context.Context) (syncengine.Stats, error) {
	args := m.Called(ctx)
	stats, _ := args.Get(0).(syncengine.Stats)
	return stats, args.Error(1)
}

type ingestionMock struct {
	mock.Mock
}

func (m *ingestionMock) IngestFile(ctx context.Context, path string) (ingestiondomain.Stats, error) {
	args := m.Called(ctx, path)
	return args.Get(0).(ingestiondomain.Stats), args.Error(1)
}

func (m *ingestionMock) Ingest(ctx context.Context, r io.Reader) (ingestiondomain.Stats, error) {
	args := m.Called(ctx, r)
	return args.Get(0).(ingestiondomain.Stats), args.Error(1)
}

// -- Harness --

var start = time.Date(2024, 6, 15, 2, 0, 0, 0, time.UTC)

type harness struct {
	svc       *Service
	conn      *gorm.DB
	clock     *clock.FakeClock
	locker    *synclock.LocalLocker
	runner    *runnerMock
	ingestion *ingestionMock
	queued    []snowflake.ID
}

func newHarness(t *testing.T, mutate ...func(*config.Config)) *harness {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.SyncJob{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := config.Config{
		UploadDir: t.TempDir(),
		Sync: config.SyncConfig{
			RecentJobWindow:     time.Hour,
			AutoSyncMinInserted: 1,
			LockTTL:             time.Minute,
		},
	}
	for _, fn := range mutate {
		fn(&cfg)
	}

	h := &harness{
		conn:      conn,
		clock:     clock.NewFakeClock(start),
		runner:    &runnerMock{},
		ingestion: &ingestionMock{},
	}
	h.locker = synclock.NewLocalLocker(h.clock)
	h.svc = New(Params{
		DB:        conn,
		Log:       zap.NewNop(),
		GenID:     node,
		Repo:      repository.Provide(),
		Runner:    h.runner,
		Ingestion: h.ingestion,
		Locker:    h.locker,
		Clock:     h.clock,
		Config:    cfg,
	}).(*Service)
	h.svc.dispatch = func(id snowflake.ID) { h.queued = append(h.queued, id) }
	return h
}

func syncStats() syncengine.Stats {
	stats := syncengine.NewStats()
	stats.Merge("dim_customer", syncengine.TableStats{Processed: 3, Inserted: 3})
	stats.Merge("fact_orders", syncengine.TableStats{Processed: 4, Inserted: 3, Skipped: 1})
	return stats
}

func (h *harness) countJobs(t *testing.T, kind domain.Kind) int64 {
	t.Helper()
	var count int64
	require.NoError(t, h.conn.Model(&domain.SyncJob{}).Where("kind = ?", kind).Count(&count).Error)
	return count
}

// -- Tests --

func TestRunWarehouseSyncRecordsStats(t *testing.T) {
	h := newHarness(t)
	h.runner.On("RunFullSync", mock.Anything).Return(syncStats(), nil).Once()

	job, err := h.svc.RunWarehouseSync(context.Background(), domain.RunSyncRequest{Trigger: domain.TriggerManual})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCompleted, job.Status)
	assert.Equal(t, 7, job.RecordsProcessed)
	assert.Equal(t, 6, job.RecordsInserted)
	assert.Equal(t, 1, job.RecordsSkipped)
	require.NotNil(t, job.StartedAt)
	require.NotNil(t, job.CompletedAt)
	assert.Contains(t, string(job.Stats), `"fact_orders":{"processed":4,"inserted":3,"updated":0,"errors":0,"skipped":1}`)

	stored, err := h.svc.Get(context.Background(), job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
	assert.Equal(t, domain.TriggerManual, stored.Trigger)
	h.runner.AssertExpectations(t)
}

func TestRunWarehouseSyncRefusesRecentRunUnlessForced(t *testing.T) {
	h := newHarness(t)
	h.runner.On("RunFullSync", mock.Anything).Return(syncStats(), nil)
	ctx := context.Background()

	_, err := h.svc.RunWarehouseSync(ctx, domain.RunSyncRequest{Trigger: domain.TriggerManual})
	require.NoError(t, err)

	h.clock.Advance(10 * time.Minute)
	_, err = h.svc.RunWarehouseSync(ctx, domain.RunSyncRequest{Trigger: domain.TriggerManual})
	assert.ErrorIs(t, err, domain.ErrRecentSync)
	h.runner.AssertNumberOfCalls(t, "RunFullSync", 1)

	_, err = h.svc.RunWarehouseSync(ctx, domain.RunSyncRequest{Trigger: domain.TriggerManual, Force: true})
	require.NoError(t, err)
	h.runner.AssertNumberOfCalls(t, "RunFullSync", 2)

	h.clock.Advance(2 * time.Hour)
	_, err = h.svc.RunWarehouseSync(ctx, domain.RunSyncRequest{Trigger: domain.TriggerSchedule})
	require.NoError(t, err)
	h.runner.AssertNumberOfCalls(t, "RunFullSync", 3)
}

func TestRunWarehouseSyncFailureMarksJobFailed(t *testing.T) {
	h := newHarness(t)
	failure := &syncengine.ResolverError{Table: "dim_customer", Err: errors.New("connection refused")}
	h.runner.On("RunFullSync", mock.Anything).Return(syncengine.NewStats(), failure).Once()

	job, err := h.svc.RunWarehouseSync(context.Background(), domain.RunSyncRequest{Trigger: domain.TriggerAPI})
	require.Error(t, err)

	var resolverErr *syncengine.ResolverError
	require.ErrorAs(t, err, &resolverErr)
	assert.Equal(t, domain.StatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "dim_customer")

	stored, err := h.svc.Get(context.Background(), job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, stored.Status)
	require.NotNil(t, stored.CompletedAt)
}

func TestRunWarehouseSyncIsSingleFlight(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	token, ok, err := h.locker.TryLock(ctx, synclock.KeyWarehouseSync, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = h.svc.RunWarehouseSync(ctx, domain.RunSyncRequest{Trigger: domain.TriggerSchedule, Force: true})
	assert.ErrorIs(t, err, domain.ErrSyncInProgress)
	h.runner.AssertNotCalled(t, "RunFullSync", mock.Anything)
	assert.Zero(t, h.countJobs(t, domain.KindWarehouseSync))

	require.NoError(t, h.locker.Release(ctx, synclock.KeyWarehouseSync, token))
	h.runner.On("RunFullSync", mock.Anything).Return(syncStats(), nil).Once()
	_, err = h.svc.RunWarehouseSync(ctx, domain.RunSyncRequest{Trigger: domain.TriggerSchedule, Force: true})
	require.NoError(t, err)
}

func TestRunWarehouseSyncRejectsUnknownTrigger(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.RunWarehouseSync(context.Background(), domain.RunSyncRequest{Trigger: "cron"})
	assert.ErrorIs(t, err, domain.ErrInvalidTrigger)
}

func TestUploadIsQueuedThenChainsSync(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	job, err := h.svc.SubmitUpload(ctx, domain.UploadRequest{FileName: "June Orders.csv", Body: strings.NewReader("order_id\n1\n")})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, job.Status)
	assert.Equal(t, domain.KindUpload, job.Kind)
	assert.Equal(t, []snowflake.ID{job.ID}, h.queued)
	assert.True(t, strings.HasSuffix(job.FilePath, "-june-orders.csv"), job.FilePath)

	content, err := os.ReadFile(job.FilePath)
	require.NoError(t, err)
	assert.Equal(t, "order_id\n1\n", string(content))

	h.ingestion.On("IngestFile", mock.Anything, job.FilePath).Return(ingestiondomain.Stats{Processed: 2, Inserted: 2}, nil).Once()
	h.runner.On("RunFullSync", mock.Anything).Return(syncStats(), nil).Once()

	done, err := h.svc.RunUpload(ctx, job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, done.Status)
	assert.Equal(t, 2, done.RecordsInserted)
	assert.Contains(t, done.Notes, "warehouse sync")
	assert.Contains(t, done.Notes, "completed")
	assert.Equal(t, int64(1), h.countJobs(t, domain.KindWarehouseSync))

	_, err = h.svc.RunUpload(ctx, job.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotPending)
	h.ingestion.AssertExpectations(t)
	h.runner.AssertExpectations(t)
}

func TestUploadBelowThresholdDoesNotSync(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.Sync.AutoSyncMinInserted = 5 })
	ctx := context.Background()

	job, err := h.svc.SubmitUpload(ctx, domain.UploadRequest{FileName: "small.csv", Body: strings.NewReader("x")})
	require.NoError(t, err)
	h.ingestion.On("IngestFile", mock.Anything, job.FilePath).Return(ingestiondomain.Stats{Processed: 2, Inserted: 2}, nil).Once()

	done, err := h.svc.RunUpload(ctx, job.ID.String())
	require.NoError(t, err)
	assert.Empty(t, done.Notes)
	h.runner.AssertNotCalled(t, "RunFullSync", mock.Anything)
}

func TestSubmitUploadRejectsNonCSV(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.SubmitUpload(context.Background(), domain.UploadRequest{FileName: "orders.xlsx", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, domain.ErrInvalidFile)
	assert.Empty(t, h.queued)
}

func TestIngestFileRecordsFailure(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "orders.csv")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))
	h.ingestion.On("IngestFile", mock.Anything, path).Return(ingestiondomain.Stats{}, ingestiondomain.ErrMissingColumn).Once()

	job, err := h.svc.IngestFile(context.Background(), domain.IngestFileRequest{Path: path, AutoSync: true})
	assert.ErrorIs(t, err, ingestiondomain.ErrMissingColumn)
	assert.Equal(t, domain.StatusFailed, job.Status)
	assert.Equal(t, domain.TriggerManual, job.Trigger)
	h.runner.AssertNotCalled(t, "RunFullSync", mock.Anything)
}

func TestSweepPendingUploads(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.svc.SubmitUpload(ctx, domain.UploadRequest{FileName: "a.csv", Body: strings.NewReader("a")})
	require.NoError(t, err)
	second, err := h.svc.SubmitUpload(ctx, domain.UploadRequest{FileName: "b.csv", Body: strings.NewReader("b")})
	require.NoError(t, err)

	h.ingestion.On("IngestFile", mock.Anything, first.FilePath).Return(ingestiondomain.Stats{Processed: 1, Skipped: 1}, nil).Once()
	h.ingestion.On("IngestFile", mock.Anything, second.FilePath).Return(ingestiondomain.Stats{Processed: 1, Skipped: 1}, nil).Once()

	processed, err := h.svc.SweepPendingUploads(ctx, start, 10)
	require.NoError(t, err)
	assert.Zero(t, processed)

	h.clock.Advance(10 * time.Minute)
	processed, err = h.svc.SweepPendingUploads(ctx, h.clock.Now().Add(-5*time.Minute), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, processed)
	h.ingestion.AssertExpectations(t)
}

func TestGetAndListValidate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Get(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
	_, err = h.svc.Get(ctx, "12345")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = h.svc.List(ctx, domain.ListJobRequest{Kind: "backfill"})
	assert.ErrorIs(t, err, domain.ErrInvalidKind)
	_, err = h.svc.List(ctx, domain.ListJobRequest{Status: "done"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	h.runner.On("RunFullSync", mock.Anything).Return(syncStats(), nil)
	for i := 0; i < 3; i++ {
		_, err := h.svc.RunWarehouseSync(ctx, domain.RunSyncRequest{Trigger: domain.TriggerAPI, Force: true})
		require.NoError(t, err)
		h.clock.Advance(time.Minute)
	}

	page, err := h.svc.List(ctx, domain.ListJobRequest{PageSize: 2, Kind: "warehouse_sync"})
	require.NoError(t, err)
	assert.Len(t, page.Jobs, 2)
	assert.True(t, page.HasMore)
	assert.NotEmpty(t, page.NextPageToken)

	next, err := h.svc.List(ctx, domain.ListJobRequest{PageSize: 2, Kind: "warehouse_sync", PageToken: page.NextPageToken})
	require.NoError(t, err)
	assert.Len(t, next.Jobs, 1)
	assert.False(t, next.HasMore)
}
