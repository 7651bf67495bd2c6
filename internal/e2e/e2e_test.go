package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/ordersync/internal/clock"
	"github.com/smallbiznis/ordersync/internal/config"
	"github.com/smallbiznis/ordersync/internal/ingestion"
	"github.com/smallbiznis/ordersync/internal/job"
	jobdomain "github.com/smallbiznis/ordersync/internal/job/domain"
	"github.com/smallbiznis/ordersync/internal/migration"
	"github.com/smallbiznis/ordersync/internal/observability"
	obsmetrics "github.com/smallbiznis/ordersync/internal/observability/metrics"
	"github.com/smallbiznis/ordersync/internal/operational"
	"github.com/smallbiznis/ordersync/internal/server"
	"github.com/smallbiznis/ordersync/internal/synclock"
	"github.com/smallbiznis/ordersync/internal/syncengine"
	"github.com/smallbiznis/ordersync/internal/warehouse"
	warehousedomain "github.com/smallbiznis/ordersync/internal/warehouse/domain"
	"github.com/smallbiznis/ordersync/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const ordersCSV = "order_id,customer_id,delivery_person_id,cost_of_the_order,tip_amount,food_preparation_time,delivery_time,rating,day_of_the_week,is_weekend,is_holiday," +
	"cust_first_name,cust_last_name,cust_email,cust_phone,cust_address,cust_city,cust_registration_date," +
	"restaurant_name,cuisine_type,rest_address,rest_city,rest_phone,rest_website,rest_price_range,rest_rating_avg,rest_opening_hour,rest_closing_hour,rest_established_date," +
	"del_first_name,del_last_name,del_phone,del_email,del_vehicle,del_hire_date,del_rating\n" +
	`1477147,337525,7,30.75,2.5,25,20,Not given,Weekend,true,false,Ann,Lee,ann@example.com,555-0100,"12 Elm St, Boston 02110",Boston,05/10/2023,Hangawi,Korean,"12 E 32nd St, New York 10016",New York,555-0199,hangawi.example,$$$,4.6,11:00 AM,22:30,1994-03-01,Dee,Ray,555-0142,dee@example.com,bicycle,2022-01-20,4.8` + "\n" +
	`1477685,337525,7,12.08,0,31,24,5,Weekday,false,false,Ann,Lee,ann@example.com,555-0100,"12 Elm St, Boston 02110",Boston,05/10/2023,Hangawi,Korean,"12 E 32nd St, New York 10016",New York,555-0199,hangawi.example,$$$,4.6,11:00 AM,22:30,1994-03-01,Dee,Ray,555-0142,dee@example.com,bicycle,2022-01-20,4.8` + "\n" +
	`1477070,48282,7,29.20,1,44,28,4,Weekday,false,false,Bo,Park,bo@example.com,555-0111,,,2024-01-02,Hangawi,Korean,"12 E 32nd St, New York 10016",New York,555-0199,hangawi.example,$$$,4.6,11:00 AM,22:30,1994-03-01,Dee,Ray,555-0142,dee@example.com,bicycle,2022-01-20,4.8` + "\n"

type testEnv struct {
	app     *fx.App
	server  *server.Server
	jobs    jobdomain.Service
	oltp    *gorm.DB
	olap    *gorm.DB
	httpSrv *httptest.Server
	baseURL string
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Type string `json:"type"`
	} `json:"error"`
}

func startEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	oltp, err := db.NewTest()
	require.NoError(t, err)
	olap, err := db.NewTest()
	require.NoError(t, err)

	cfg := config.Config{
		AppName:     "ordersync",
		Environment: "test",
		UploadDir:   t.TempDir(),
		Sync: config.SyncConfig{
			SynthesisSeed:       42,
			RecentJobWindow:     time.Hour,
			AutoSyncMinInserted: 1,
			LockTTL:             time.Minute,
		},
	}
	clk := clock.NewFakeClock(time.Date(2024, 6, 15, 9, 30, 0, 0, time.UTC))

	env := &testEnv{oltp: oltp, olap: olap}
	env.app = fx.New(
		fx.NopLogger,
		fx.Supply(cfg),
		fx.Supply(config.NewStaticSyncRulesHolder(config.DefaultSyncRules())),
		fx.Supply(zap.NewNop()),
		fx.Supply(observability.Config{Environment: "test"}),
		fx.Provide(
			func() clock.Clock { return clk },
			func() (*snowflake.Node, error) { return snowflake.NewNode(1) },
			func() *obsmetrics.HTTPMetrics { return nil },
			fx.Annotate(func() *gorm.DB { return oltp }, fx.ResultTags(`name:"oltp"`)),
			fx.Annotate(func() *gorm.DB { return olap }, fx.ResultTags(`name:"olap"`)),
		),
		migration.Module,
		operational.Module,
		warehouse.Module,
		syncengine.Module,
		ingestion.Module,
		synclock.Module,
		job.Module,
		fx.Provide(server.NewEngine, server.NewServer),
		fx.Populate(&env.server, &env.jobs),
	)
	require.NoError(t, env.app.Err())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, env.app.Start(ctx))

	env.httpSrv = httptest.NewServer(env.server.Engine())
	env.baseURL = env.httpSrv.URL

	t.Cleanup(env.shutdown)
	return env
}

func (e *testEnv) shutdown() {
	if e.httpSrv != nil {
		e.httpSrv.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = e.app.Stop(ctx)
}

func doRequest(t *testing.T, req *http.Request) (*http.Response, envelope) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body envelope
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return resp, body
}

func postSync(t *testing.T, env *testEnv, query string) (*http.Response, envelope) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, env.baseURL+"/api/v1/sync"+query, nil)
	require.NoError(t, err)
	return doRequest(t, req)
}

func getJob(t *testing.T, env *testEnv, id snowflake.ID) jobdomain.SyncJob {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, env.baseURL+"/api/v1/jobs/"+id.String(), nil)
	require.NoError(t, err)
	resp, body := doRequest(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out jobdomain.SyncJob
	require.NoError(t, json.Unmarshal(body.Data, &out))
	return out
}

func countRows(t *testing.T, conn *gorm.DB, model any) int64 {
	t.Helper()
	var count int64
	require.NoError(t, conn.Model(model).Count(&count).Error)
	return count
}

func TestE2E_HealthCheck(t *testing.T) {
	env := startEnv(t)

	resp, err := http.Get(env.baseURL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestE2E_UploadLoadsOrdersAndSyncsWarehouse(t *testing.T) {
	env := startEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "Orders June.csv")
	require.NoError(t, err)
	_, err = io.WriteString(part, ordersCSV)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, env.baseURL+"/api/v1/uploads", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, body := doRequest(t, req)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var queued jobdomain.SyncJob
	require.NoError(t, json.Unmarshal(body.Data, &queued))
	assert.Equal(t, jobdomain.KindUpload, queued.Kind)
	assert.Equal(t, jobdomain.StatusPending, queued.Status)

	var upload jobdomain.SyncJob
	require.Eventually(t, func() bool {
		upload = getJob(t, env, queued.ID)
		return upload.Status.Terminal()
	}, 10*time.Second, 20*time.Millisecond)

	assert.Equal(t, jobdomain.StatusCompleted, upload.Status)
	assert.Equal(t, 3, upload.RecordsProcessed)
	assert.Equal(t, 3, upload.RecordsInserted)
	assert.Contains(t, upload.Notes, "completed")

	listReq, err := http.NewRequest(http.MethodGet, env.baseURL+"/api/v1/jobs?kind=warehouse_sync", nil)
	require.NoError(t, err)
	resp, body = doRequest(t, listReq)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list jobdomain.ListJobResponse
	require.NoError(t, json.Unmarshal(body.Data, &list))
	require.Len(t, list.Jobs, 1)
	assert.Equal(t, jobdomain.TriggerUpload, list.Jobs[0].Trigger)
	assert.Equal(t, jobdomain.StatusCompleted, list.Jobs[0].Status)

	assert.Equal(t, int64(2), countRows(t, env.olap, &warehousedomain.DimCustomer{}))
	assert.Equal(t, int64(1), countRows(t, env.olap, &warehousedomain.DimRestaurant{}))
	assert.Equal(t, int64(1), countRows(t, env.olap, &warehousedomain.DimDeliveryPerson{}))
	assert.Equal(t, int64(3), countRows(t, env.olap, &warehousedomain.FactOrder{}))

	var sentinel int64
	require.NoError(t, env.olap.Model(&warehousedomain.DimLocation{}).
		Where("location_id = ?", config.DefaultSyncRules().SentinelLocationID).
		Count(&sentinel).Error)
	assert.Equal(t, int64(1), sentinel)
}

func TestE2E_ManualSyncIsGuardedAfterRecentRun(t *testing.T) {
	env := startEnv(t)

	resp, body := postSync(t, env, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var first jobdomain.SyncJob
	require.NoError(t, json.Unmarshal(body.Data, &first))
	assert.Equal(t, jobdomain.StatusCompleted, first.Status)
	assert.Equal(t, jobdomain.TriggerAPI, first.Trigger)

	resp, body = postSync(t, env, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	require.NotNil(t, body.Error)
	assert.Equal(t, "recent_sync_completed", body.Error.Type)

	resp, _ = postSync(t, env, "?force=true")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestE2E_IngestFileWithoutSync(t *testing.T) {
	env := startEnv(t)

	path := filepath.Join(t.TempDir(), "orders.csv")
	require.NoError(t, os.WriteFile(path, []byte(ordersCSV), 0o600))

	result, err := env.jobs.IngestFile(context.Background(), jobdomain.IngestFileRequest{Path: path})
	require.NoError(t, err)
	assert.Equal(t, jobdomain.StatusCompleted, result.Status)
	assert.Equal(t, 3, result.RecordsInserted)
	assert.Empty(t, result.Notes)

	assert.Equal(t, int64(0), countRows(t, env.olap, &warehousedomain.FactOrder{}))
}
