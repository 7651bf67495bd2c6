package syncengine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/ordersync/internal/clock"
	"github.com/smallbiznis/ordersync/internal/config"
	operationaldomain "github.com/smallbiznis/ordersync/internal/operational/domain"
	operationalrepo "github.com/smallbiznis/ordersync/internal/operational/repository"
	warehousedomain "github.com/smallbiznis/ordersync/internal/warehouse/domain"
	warehouserepo "github.com/smallbiznis/ordersync/internal/warehouse/repository"
	"github.com/smallbiznis/ordersync/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testToday = time.Date(2024, 6, 15, 9, 30, 0, 0, time.UTC)

type harness struct {
	oltp  *gorm.DB
	olap  *gorm.DB
	clock *clock.FakeClock
	orch  *Orchestrator
}

func newHarness(t *testing.T, opts ...func(*Params)) *harness {
	t.Helper()

	oltp, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, oltp.AutoMigrate(operationaldomain.Models()...))
	olap, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, olap.AutoMigrate(warehousedomain.Models()...))

	clk := clock.NewFakeClock(testToday)
	p := Params{
		OLTP:        oltp,
		OLAP:        olap,
		Operational: operationalrepo.Provide(),
		Warehouse:   warehouserepo.Provide(),
		Rules:       config.NewStaticSyncRulesHolder(config.DefaultSyncRules()),
		Config:      config.Config{Sync: config.SyncConfig{SynthesisSeed: 42}},
		Clock:       clk,
		Log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&p)
	}
	return &harness{oltp: oltp, olap: olap, clock: clk, orch: New(p)}
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func int64Ptr(v int64) *int64 { return &v }

func floatPtr(v float64) *float64 { return &v }

func seedOperational(t *testing.T, conn *gorm.DB) {
	t.Helper()

	require.NoError(t, conn.Create(&[]operationaldomain.Customer{
		{CustomerID: 1, FirstName: "Ann", LastName: "Lee", Address: "12 Elm St, Boston 02110", City: "Boston", RegistrationDate: date(2023, 5, 10)},
		{CustomerID: 2, FirstName: "Bo"},
		{CustomerID: 3, FirstName: "Cy", LastName: "Diaz", Address: "9 Bay Rd, Miami 33101", City: "Miami", RegistrationDate: date(2024, 6, 13)},
	}).Error)
	require.NoError(t, conn.Create(&[]operationaldomain.Restaurant{
		{RestaurantID: 10, RestaurantName: "Shake Shack", CuisineType: "American", Address: "5 Pier, Boston", City: "Boston", RatingAvg: floatPtr(4.5), EstablishedDate: date(2015, 3, 1)},
		{RestaurantID: 11, RestaurantName: "Blue Ribbon", CuisineType: "Japanese", Address: "77 Pike St, Seattle 98101", City: "Seattle"},
	}).Error)
	require.NoError(t, conn.Create(&[]operationaldomain.DeliveryPerson{
		{DeliveryPersonID: 100, FirstName: "Dee", LastName: "Ray", VehicleType: "car", HireDate: date(2022, 1, 20)},
		{DeliveryPersonID: 101, FirstName: "Eli", LastName: "Fox", VehicleType: "bicycle"},
	}).Error)
	require.NoError(t, conn.Create(&operationaldomain.Day{DayID: 1, DayName: "Weekday"}).Error)
	require.NoError(t, conn.Create(&[]operationaldomain.Order{
		{OrderID: 5001, CustomerID: 1, RestaurantID: 10, DayID: 1, DeliveryPersonID: int64Ptr(100), CostOfTheOrder: 3075, Rating: intPtr(5), FoodPreparationTime: intPtr(15), DeliveryTime: intPtr(20)},
		{OrderID: 5002, CustomerID: 2, RestaurantID: 11, DayID: 1, DeliveryPersonID: int64Ptr(101), CostOfTheOrder: 1250, FoodPreparationTime: intPtr(25)},
		{OrderID: 5003, CustomerID: 3, RestaurantID: 10, DayID: 1, CostOfTheOrder: 990, FoodPreparationTime: intPtr(30), DeliveryTime: intPtr(18)},
		{OrderID: 5004, CustomerID: 2, RestaurantID: 10, DayID: 1, DeliveryPersonID: int64Ptr(100), CostOfTheOrder: 2210, FoodPreparationTime: intPtr(45), DeliveryTime: intPtr(30)},
	}).Error)
}

func TestRunFullSyncPopulatesWarehouse(t *testing.T) {
	h := newHarness(t)
	seedOperational(t, h.oltp)

	stats, err := h.orch.RunFullSync(context.Background())
	require.NoError(t, err)

	assert.Len(t, stats, len(Tables()))
	assert.Equal(t, TableStats{Processed: 3, Inserted: 3}, stats[warehousedomain.TableDimCustomer])
	assert.Equal(t, TableStats{Processed: 2, Inserted: 2}, stats[warehousedomain.TableDimRestaurant])
	assert.Equal(t, TableStats{Processed: 2, Inserted: 2}, stats[warehousedomain.TableDimDeliveryPerson])
	assert.Equal(t, TableStats{Processed: 6, Inserted: 6}, stats[warehousedomain.TableDimTimeSlot])
	assert.Equal(t, TableStats{Processed: 4, Inserted: 4}, stats[warehousedomain.TableDimLocation])
	assert.Equal(t, TableStats{Processed: 4, Inserted: 3, Skipped: 1}, stats[warehousedomain.TableFactOrders])

	dates := stats[warehousedomain.TableDimDate]
	assert.GreaterOrEqual(t, dates.Processed, 3)
	assert.Equal(t, dates.Processed, dates.Inserted)

	var customers []warehousedomain.DimCustomer
	require.NoError(t, h.olap.Order("customer_id").Find(&customers).Error)
	require.Len(t, customers, 3)
	assert.Equal(t, "Ann Lee", customers[0].CustomerName)
	assert.Equal(t, SegmentRegular, customers[0].Segment)
	assert.Equal(t, SegmentUnknown, customers[1].Segment)
	assert.Equal(t, SegmentNew, customers[2].Segment)

	var courier warehousedomain.DimDeliveryPerson
	require.NoError(t, h.olap.First(&courier, "delivery_person_id = ?", 100).Error)
	assert.Equal(t, ZoneWideRange, courier.OperationZone)
	assert.Equal(t, 29, courier.TenureMonths)

	var facts []warehousedomain.FactOrder
	require.NoError(t, h.olap.Order("order_id").Find(&facts).Error)
	require.Len(t, facts, 3)

	byID := map[int64]warehousedomain.FactOrder{}
	for _, fact := range facts {
		byID[fact.OrderID] = fact
	}
	assert.Equal(t, TimeSlotEarlyMorning, byID[5001].TimeSlotID)
	assert.Equal(t, 35, byID[5001].TotalTime)
	assert.Equal(t, int64(1), byID[5001].LocationID)
	assert.Equal(t, int64(3075), byID[5001].OrderCost)

	assert.Equal(t, TimeSlotLunch, byID[5002].TimeSlotID)
	assert.Equal(t, 25, byID[5002].TotalTime)
	assert.Equal(t, int64(999999), byID[5002].LocationID)

	assert.Equal(t, TimeSlotDinner, byID[5004].TimeSlotID)
	assert.Equal(t, 75, byID[5004].TotalTime)
	assert.Equal(t, int64(999999), byID[5004].LocationID)

	for _, fact := range facts {
		assert.Equal(t, DateID(fact.OrderDate), fact.DateID)
	}
}

func TestRunFullSyncCreatesSentinelOnce(t *testing.T) {
	h := newHarness(t)
	seedOperational(t, h.oltp)

	_, err := h.orch.RunFullSync(context.Background())
	require.NoError(t, err)

	var sentinels []warehousedomain.DimLocation
	require.NoError(t, h.olap.Where("location_id = ?", 999999).Find(&sentinels).Error)
	require.Len(t, sentinels, 1)
	assert.Equal(t, Unknown, sentinels[0].City)
	assert.Equal(t, DefaultPostalCode, sentinels[0].PostalCode)

	var locations []warehousedomain.DimLocation
	require.NoError(t, h.olap.Where("location_id <> ?", 999999).Order("location_id").Find(&locations).Error)
	require.Len(t, locations, 3)
	assert.Equal(t, "Boston", locations[0].City)
	assert.Equal(t, "East", locations[0].Region)
	assert.Equal(t, "12 Elm St", locations[0].Neighborhood)
	assert.Equal(t, "02110", locations[0].PostalCode)
	assert.Equal(t, "Miami", locations[1].City)
	assert.Equal(t, "Seattle", locations[2].City)
	assert.Equal(t, "West", locations[2].Region)
}

func TestRunFullSyncIsIdempotent(t *testing.T) {
	h := newHarness(t)
	seedOperational(t, h.oltp)

	_, err := h.orch.RunFullSync(context.Background())
	require.NoError(t, err)

	stats, err := h.orch.RunFullSync(context.Background())
	require.NoError(t, err)
	for table, tableStats := range stats {
		assert.Zero(t, tableStats.Inserted, table)
		assert.Zero(t, tableStats.Updated, table)
		assert.Zero(t, tableStats.Errors, table)
	}
	assert.Equal(t, 4, stats[warehousedomain.TableFactOrders].Processed)
	assert.Equal(t, 1, stats[warehousedomain.TableFactOrders].Skipped)

	var customers int64
	require.NoError(t, h.olap.Model(&warehousedomain.DimCustomer{}).Count(&customers).Error)
	assert.Equal(t, int64(3), customers)
}

func TestRunFullSyncPicksUpDrift(t *testing.T) {
	h := newHarness(t)
	seedOperational(t, h.oltp)

	_, err := h.orch.RunFullSync(context.Background())
	require.NoError(t, err)

	require.NoError(t, h.oltp.Model(&operationaldomain.Customer{}).Where("customer_id = ?", 1).Update("last_name", "Lee-Park").Error)
	h.clock.Advance(62 * 24 * time.Hour)

	stats, err := h.orch.RunFullSync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats[warehousedomain.TableDimCustomer].Updated)
	assert.Equal(t, 1, stats[warehousedomain.TableDimDeliveryPerson].Updated)

	var customer warehousedomain.DimCustomer
	require.NoError(t, h.olap.First(&customer, "customer_id = ?", 1).Error)
	assert.Equal(t, "Ann Lee-Park", customer.CustomerName)

	var courier warehousedomain.DimDeliveryPerson
	require.NoError(t, h.olap.First(&courier, "delivery_person_id = ?", 100).Error)
	assert.Equal(t, 31, courier.TenureMonths)
}

func TestRunFullSyncLeavesNoOrphanFacts(t *testing.T) {
	h := newHarness(t)
	seedOperational(t, h.oltp)

	_, err := h.orch.RunFullSync(context.Background())
	require.NoError(t, err)

	var facts []warehousedomain.FactOrder
	require.NoError(t, h.olap.Find(&facts).Error)
	require.NotEmpty(t, facts)

	exists := func(model any, column string, value any) bool {
		var count int64
		require.NoError(t, h.olap.Model(model).Where(column+" = ?", value).Count(&count).Error)
		return count == 1
	}
	for _, fact := range facts {
		assert.True(t, exists(&warehousedomain.DimCustomer{}, "customer_id", fact.CustomerID))
		assert.True(t, exists(&warehousedomain.DimRestaurant{}, "restaurant_id", fact.RestaurantID))
		assert.True(t, exists(&warehousedomain.DimDeliveryPerson{}, "delivery_person_id", fact.DeliveryPersonID))
		assert.True(t, exists(&warehousedomain.DimDate{}, "date_id", fact.DateID))
		assert.True(t, exists(&warehousedomain.DimLocation{}, "location_id", fact.LocationID))
		assert.True(t, exists(&warehousedomain.DimTimeSlot{}, "time_slot_id", fact.TimeSlotID))
	}
}

type failingDeliveryPersons struct {
	operationaldomain.Repository
}

func (failingDeliveryPersons) ListDeliveryPersons(context.Context, *gorm.DB) ([]operationaldomain.DeliveryPerson, error) {
	return nil, errors.New("connection refused")
}

func TestRunFullSyncResolverFailureSkipsFacts(t *testing.T) {
	h := newHarness(t, func(p *Params) {
		p.Operational = failingDeliveryPersons{Repository: operationalrepo.Provide()}
	})
	seedOperational(t, h.oltp)

	stats, err := h.orch.RunFullSync(context.Background())
	require.Error(t, err)

	var resolverErr *ResolverError
	require.ErrorAs(t, err, &resolverErr)
	assert.Equal(t, warehousedomain.TableDimDeliveryPerson, FailedTable(err))

	assert.Equal(t, 3, stats[warehousedomain.TableDimCustomer].Inserted)
	assert.Zero(t, stats[warehousedomain.TableFactOrders].Processed)

	var facts int64
	require.NoError(t, h.olap.Model(&warehousedomain.FactOrder{}).Count(&facts).Error)
	assert.Zero(t, facts)
}

type blockingResolver struct{}

func (blockingResolver) Table() string { return warehousedomain.TableDimDeliveryPerson }

func (blockingResolver) Resolve(ctx context.Context, _ *Run) (TableStats, error) {
	<-ctx.Done()
	return TableStats{}, ctx.Err()
}

func TestRunFullSyncResolverTimeout(t *testing.T) {
	h := newHarness(t, func(p *Params) {
		p.Config.Sync.ResolverTimeout = 50 * time.Millisecond
	})
	seedOperational(t, h.oltp)
	h.orch.resolvers[len(h.orch.resolvers)-1] = blockingResolver{}

	_, err := h.orch.RunFullSync(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, warehousedomain.TableDimDeliveryPerson, FailedTable(err))
}

func TestReconcileRequiresDimensionsReady(t *testing.T) {
	h := newHarness(t)
	run := &Run{ID: "run-1", Today: testToday, Rules: config.DefaultSyncRules(), Synth: NewSynthesizer(1, config.DefaultSyncRules()), Log: zap.NewNop()}

	_, err := h.orch.facts.Reconcile(context.Background(), run, DimensionsReady{})
	assert.ErrorIs(t, err, ErrDimensionsNotReady)

	_, err = h.orch.facts.Reconcile(context.Background(), run, DimensionsReady{runID: "other"})
	assert.ErrorIs(t, err, ErrDimensionsNotReady)
}

func TestReconcileSkipsDuplicateOrderIDs(t *testing.T) {
	h := newHarness(t)
	seedOperational(t, h.oltp)
	require.NoError(t, h.oltp.Create(&operationaldomain.Order{
		OrderID: 5001, CustomerID: 3, RestaurantID: 11, DayID: 1, DeliveryPersonID: int64Ptr(101), FoodPreparationTime: intPtr(10),
	}).Error)

	stats, err := h.orch.RunFullSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TableStats{Processed: 5, Inserted: 3, Skipped: 2}, stats[warehousedomain.TableFactOrders])

	var fact warehousedomain.FactOrder
	require.NoError(t, h.olap.First(&fact, "order_id = ?", 5001).Error)
	assert.Equal(t, int64(1), fact.CustomerID)
}
