package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	jobdomain "github.com/smallbiznis/ordersync/internal/job/domain"
	"github.com/smallbiznis/ordersync/internal/observability"
	"github.com/smallbiznis/ordersync/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeJobService struct {
	mock.Mock
}

func (f *fakeJobService) RunWarehouseSync(ctx context.Context, req jobdomain.RunSyncRequest) (jobdomain.SyncJob, error) {
	args := f.Called(ctx, req)
	job, _ := args.Get(0).(jobdomain.SyncJob)
	return job, args.Error(1)
}

func (f *fakeJobService) SubmitUpload(ctx context.Context, req jobdomain.UploadRequest) (jobdomain.SyncJob, error) {
	args := f.Called(ctx, req)
	job, _ := args.Get(0).(jobdomain.SyncJob)
	return job, args.Error(1)
}

func (f *fakeJobService) RunUpload(ctx context.Context, id string) (jobdomain.SyncJob, error) {
	args := f.Called(ctx, id)
	job, _ := args.Get(0).(jobdomain.SyncJob)
	return job, args.Error(1)
}

func (f *fakeJobService) IngestFile(ctx context.Context, req jobdomain.IngestFileRequest) (jobdomain.SyncJob, error) {
	args := f.Called(ctx, req)
	job, _ := args.Get(0).(jobdomain.SyncJob)
	return job, args.Error(1)
}

func (f *fakeJobService) SweepPendingUploads(ctx context.Context, createdBefore time.Time, limit int) (int, error) {
	args := f.Called(ctx, createdBefore, limit)
	return args.Int(0), args.Error(1)
}

func (f *fakeJobService) Get(ctx context.Context, id string) (jobdomain.SyncJob, error) {
	args := f.Called(ctx, id)
	job, _ := args.Get(0).(jobdomain.SyncJob)
	return job, args.Error(1)
}

func (f *fakeJobService) List(ctx context.Context, req jobdomain.ListJobRequest) (jobdomain.ListJobResponse, error) {
	args := f.Called(ctx, req)
	resp, _ := args.Get(0).(jobdomain.ListJobResponse)
	return resp, args.Error(1)
}

type apiResponse struct {
	Data  json.RawMessage `json:"data"`
	Error *errorPayload   `json:"error"`
}

func newTestServer(t *testing.T) (*Server, *fakeJobService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	jobs := &fakeJobService{}
	srv := NewServer(ServerParams{
		Gin:  NewEngine(observability.Config{Environment: "test"}, nil),
		Jobs: jobs,
	})
	return srv, jobs
}

func serve(t *testing.T, srv *Server, req *http.Request) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)

	var body apiResponse
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	}
	return w, body
}

func decodeJob(t *testing.T, raw json.RawMessage) jobdomain.SyncJob {
	t.Helper()
	var job jobdomain.SyncJob
	require.NoError(t, json.Unmarshal(raw, &job))
	return job
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRunSyncPassesForceFlag(t *testing.T) {
	srv, jobs := newTestServer(t)
	jobs.On("RunWarehouseSync", mock.Anything, jobdomain.RunSyncRequest{Trigger: jobdomain.TriggerAPI, Force: true}).
		Return(jobdomain.SyncJob{ID: 77, Kind: jobdomain.KindWarehouseSync, Status: jobdomain.StatusCompleted}, nil).Once()

	w, body := serve(t, srv, httptest.NewRequest(http.MethodPost, "/api/v1/sync?force=true", nil))

	require.Equal(t, http.StatusOK, w.Code)
	job := decodeJob(t, body.Data)
	assert.EqualValues(t, 77, job.ID)
	assert.Equal(t, jobdomain.StatusCompleted, job.Status)
	jobs.AssertExpectations(t)
}

func TestRunSyncConflicts(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantType string
	}{
		{name: "lock_held", err: jobdomain.ErrSyncInProgress, wantType: "sync_in_progress"},
		{name: "recent_run", err: jobdomain.ErrRecentSync, wantType: "recent_sync_completed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, jobs := newTestServer(t)
			jobs.On("RunWarehouseSync", mock.Anything, jobdomain.RunSyncRequest{Trigger: jobdomain.TriggerAPI}).
				Return(jobdomain.SyncJob{ID: 3, Status: jobdomain.StatusCompleted}, tc.err).Once()

			w, body := serve(t, srv, httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil))

			assert.Equal(t, http.StatusConflict, w.Code)
			require.NotNil(t, body.Error)
			assert.Equal(t, tc.wantType, body.Error.Type)
		})
	}
}

func TestRunSyncReturnsFailedJobRecord(t *testing.T) {
	srv, jobs := newTestServer(t)
	jobs.On("RunWarehouseSync", mock.Anything, mock.Anything).
		Return(jobdomain.SyncJob{ID: 9, Status: jobdomain.StatusFailed, ErrorMessage: "dim_customer: boom"}, errors.New("dim_customer: boom")).Once()

	w, body := serve(t, srv, httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil))

	require.Equal(t, http.StatusOK, w.Code)
	job := decodeJob(t, body.Data)
	assert.Equal(t, jobdomain.StatusFailed, job.Status)
	assert.Equal(t, "dim_customer: boom", job.ErrorMessage)
}

func TestRunSyncRejectsBadForce(t *testing.T) {
	srv, jobs := newTestServer(t)

	w, body := serve(t, srv, httptest.NewRequest(http.MethodPost, "/api/v1/sync?force=maybe", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, body.Error)
	require.Len(t, body.Error.Errors, 1)
	assert.Equal(t, "invalid_force", body.Error.Errors[0].Code)
	jobs.AssertNotCalled(t, "RunWarehouseSync", mock.Anything, mock.Anything)
}

func TestListJobsForwardsFilters(t *testing.T) {
	srv, jobs := newTestServer(t)
	jobs.On("List", mock.Anything, jobdomain.ListJobRequest{
		PageToken: "abc",
		PageSize:  5,
		Kind:      "upload",
		Status:    "failed",
	}).Return(jobdomain.ListJobResponse{
		PageInfo: pagination.PageInfo{NextPageToken: "next"},
		Jobs:     []jobdomain.SyncJob{{ID: 1, Kind: jobdomain.KindUpload, Status: jobdomain.StatusFailed}},
	}, nil).Once()

	w, body := serve(t, srv, httptest.NewRequest(http.MethodGet, "/api/v1/jobs?kind=upload&status=failed&page_token=abc&page_size=5", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp jobdomain.ListJobResponse
	require.NoError(t, json.Unmarshal(body.Data, &resp))
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, "next", resp.NextPageToken)
}

func TestListJobsInvalidKind(t *testing.T) {
	srv, jobs := newTestServer(t)
	jobs.On("List", mock.Anything, mock.Anything).Return(jobdomain.ListJobResponse{}, jobdomain.ErrInvalidKind).Once()

	w, body := serve(t, srv, httptest.NewRequest(http.MethodGet, "/api/v1/jobs?kind=bogus", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, body.Error)
	require.Len(t, body.Error.Errors, 1)
	assert.Equal(t, "invalid_kind", body.Error.Errors[0].Code)
	assert.Equal(t, "kind", body.Error.Errors[0].Field)
}

func TestGetJobNotFound(t *testing.T) {
	srv, jobs := newTestServer(t)
	jobs.On("Get", mock.Anything, "123").Return(jobdomain.SyncJob{}, jobdomain.ErrNotFound).Once()

	w, body := serve(t, srv, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/123", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "not_found", body.Error.Type)
}

func TestUploadOrdersQueuesJob(t *testing.T) {
	srv, jobs := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "orders.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("order_id,customer_id,restaurant_name\n1,2,Nobu\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	var uploaded string
	jobs.On("SubmitUpload", mock.Anything, mock.MatchedBy(func(req jobdomain.UploadRequest) bool {
		if req.FileName != "orders.csv" {
			return false
		}
		data, err := io.ReadAll(req.Body)
		uploaded = string(data)
		return err == nil
	})).Return(jobdomain.SyncJob{ID: 42, Kind: jobdomain.KindUpload, Status: jobdomain.StatusPending}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w, body := serve(t, srv, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	job := decodeJob(t, body.Data)
	assert.Equal(t, jobdomain.StatusPending, job.Status)
	assert.Contains(t, uploaded, "Nobu")
}

func TestUploadOrdersRequiresFile(t *testing.T) {
	srv, jobs := newTestServer(t)

	w, body := serve(t, srv, httptest.NewRequest(http.MethodPost, "/api/v1/uploads", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, body.Error)
	require.Len(t, body.Error.Errors, 1)
	assert.Equal(t, "file", body.Error.Errors[0].Field)
	jobs.AssertNotCalled(t, "SubmitUpload", mock.Anything, mock.Anything)
}

func TestUploadOrdersRejectsNonCSV(t *testing.T) {
	srv, jobs := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "orders.xlsx")
	require.NoError(t, err)
	_, err = part.Write([]byte("binary"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	jobs.On("SubmitUpload", mock.Anything, mock.Anything).Return(jobdomain.SyncJob{}, jobdomain.ErrInvalidFile).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w, body := serve(t, srv, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "invalid_file", body.Error.Errors[0].Code)
}

func TestUnknownRouteReturnsJSONNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	w, body := serve(t, srv, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "not_found", body.Error.Type)
}
