package syncengine

import (
	"context"
	"fmt"
	"strings"

	operationaldomain "github.com/smallbiznis/ordersync/internal/operational/domain"
	obslogger "github.com/smallbiznis/ordersync/internal/observability/logger"
	warehousedomain "github.com/smallbiznis/ordersync/internal/warehouse/domain"
	"github.com/smallbiznis/ordersync/pkg/repository"
	"go.uber.org/zap"
)

// DimensionsReady proves every dimension resolver finished without error. Only the
// dimension phase of RunFullSync can mint a valid one.
type DimensionsReady struct {
	runID string
}

// FactReconciler writes fact_orders rows once all dimensions are in place.
type FactReconciler struct {
	stores
}

func (f *FactReconciler) Table() string { return warehousedomain.TableFactOrders }

type dimensionKeys struct {
	customers       warehousedomain.KeySet
	restaurants     warehousedomain.KeySet
	deliveryPersons warehousedomain.KeySet
	dates           warehousedomain.KeySet
	locations       warehousedomain.KeySet
	timeSlots       warehousedomain.KeySet
	cities          map[string]int64
}

// Reconcile upserts one fact row per order_id. Orders missing any dimension key are
// skipped and logged. The returned stats also carry the sentinel location insert.
func (f *FactReconciler) Reconcile(ctx context.Context, run *Run, ready DimensionsReady) (Stats, error) {
	out := Stats{}
	if ready.runID == "" || ready.runID != run.ID {
		return out, ErrDimensionsNotReady
	}

	customers, err := f.operational.ListCustomers(ctx, f.oltp)
	if err != nil {
		return out, fmt.Errorf("scan customers: %w", err)
	}
	orders, err := f.operational.ListOrders(ctx, f.oltp)
	if err != nil {
		return out, fmt.Errorf("scan orders: %w", err)
	}
	keys, err := f.loadKeys(ctx, run)
	if err != nil {
		return out, err
	}

	log := obslogger.WithTable(run.Log, f.Table())
	byID := indexCustomers(customers)
	sentinel := &sentinelLocation{id: run.Rules.SentinelLocationID, ready: keys.locations.Has(run.Rules.SentinelLocationID)}
	written := make(map[int64]struct{}, len(orders))

	var facts, locations TableStats
	for i := range orders {
		if err := ctx.Err(); err != nil {
			out.Merge(f.Table(), facts)
			out.Merge(warehousedomain.TableDimLocation, locations)
			return out, err
		}
		order := &orders[i]
		facts.Processed++

		if _, dup := written[order.OrderID]; dup {
			facts.Skipped++
			log.Warn("sync.fact.skipped", zap.Int64("order_id", order.OrderID), zap.String("reason", "duplicate_order_id"))
			continue
		}
		written[order.OrderID] = struct{}{}

		customer := byID[order.CustomerID]
		if missing := missingParty(order, customer, keys); missing != "" {
			facts.Skipped++
			logMissing(log, order.OrderID, missing)
			continue
		}

		locationID, err := f.resolveLocation(ctx, customer, keys, sentinel, &locations)
		if err != nil {
			facts.Errors++
			log.Warn("sync.row.error", zap.Int64("order_id", order.OrderID), zap.Error(err))
			continue
		}

		fact, missing := buildFact(run, order, customer, locationID, keys)
		if missing != "" {
			facts.Skipped++
			logMissing(log, order.OrderID, missing)
			continue
		}

		outcome, err := repository.Upsert(ctx, f.olap, fact)
		if err != nil {
			facts.Errors++
			log.Warn("sync.row.error", zap.Int64("order_id", order.OrderID), zap.Error(err))
			continue
		}
		facts.Count(outcome)
	}

	out.Merge(f.Table(), facts)
	out.Merge(warehousedomain.TableDimLocation, locations)
	return out, nil
}

func (f *FactReconciler) loadKeys(ctx context.Context, run *Run) (*dimensionKeys, error) {
	keys := &dimensionKeys{}
	targets := []struct {
		table string
		dst   *warehousedomain.KeySet
	}{
		{warehousedomain.TableDimCustomer, &keys.customers},
		{warehousedomain.TableDimRestaurant, &keys.restaurants},
		{warehousedomain.TableDimDeliveryPerson, &keys.deliveryPersons},
		{warehousedomain.TableDimDate, &keys.dates},
		{warehousedomain.TableDimLocation, &keys.locations},
		{warehousedomain.TableDimTimeSlot, &keys.timeSlots},
	}
	for _, target := range targets {
		set, err := f.warehouse.Keys(ctx, f.olap, target.table)
		if err != nil {
			return nil, err
		}
		*target.dst = set
	}

	cities, err := f.warehouse.CityLocations(ctx, f.olap, run.Rules.SentinelLocationID)
	if err != nil {
		return nil, err
	}
	keys.cities = cities
	return keys, nil
}

// missingParty names the first customer, restaurant or delivery person dimension the order
// cannot resolve by natural key.
func missingParty(order *operationaldomain.Order, customer *operationaldomain.Customer, keys *dimensionKeys) string {
	if customer == nil || !keys.customers.Has(order.CustomerID) {
		return warehousedomain.TableDimCustomer
	}
	if !keys.restaurants.Has(order.RestaurantID) {
		return warehousedomain.TableDimRestaurant
	}
	if order.DeliveryPersonID == nil || !keys.deliveryPersons.Has(*order.DeliveryPersonID) {
		return warehousedomain.TableDimDeliveryPerson
	}
	return ""
}

// buildFact assembles the fact row, or names the first remaining dimension without a row.
func buildFact(
	run *Run,
	order *operationaldomain.Order,
	customer *operationaldomain.Customer,
	locationID int64,
	keys *dimensionKeys,
) (*warehousedomain.FactOrder, string) {
	orderDate, orderTime := run.Synth.OrderMoment(order.OrderID, orderBase(customer, run.Today))
	dateID := DateID(orderDate)
	if !keys.dates.Has(int64(dateID)) {
		return nil, warehousedomain.TableDimDate
	}
	if !keys.locations.Has(locationID) {
		return nil, warehousedomain.TableDimLocation
	}
	slotID := TimeSlotForPrep(order.FoodPreparationTime)
	if !keys.timeSlots.Has(int64(slotID)) {
		return nil, warehousedomain.TableDimTimeSlot
	}

	return &warehousedomain.FactOrder{
		OrderID:             order.OrderID,
		CustomerID:          order.CustomerID,
		RestaurantID:        order.RestaurantID,
		DeliveryPersonID:    *order.DeliveryPersonID,
		DateID:              dateID,
		LocationID:          locationID,
		TimeSlotID:          slotID,
		OrderDate:           orderDate,
		OrderTime:           orderTime,
		OrderCost:           order.CostOfTheOrder,
		Rating:              order.Rating,
		FoodPreparationTime: order.FoodPreparationTime,
		DeliveryTime:        order.DeliveryTime,
		TotalTime:           TotalTime(order.FoodPreparationTime, order.DeliveryTime),
	}, ""
}

func logMissing(log *zap.Logger, orderID int64, dimension string) {
	log.Warn("sync.fact.skipped",
		zap.Int64("order_id", orderID),
		zap.String("reason", "missing_dimension"),
		zap.String("dimension", dimension),
	)
}

type sentinelLocation struct {
	id    int64
	ready bool
}

// resolveLocation matches the customer's city exactly, falling back to the sentinel row,
// which is created at most once per run.
func (f *FactReconciler) resolveLocation(
	ctx context.Context,
	customer *operationaldomain.Customer,
	keys *dimensionKeys,
	sentinel *sentinelLocation,
	stats *TableStats,
) (int64, error) {
	city := ""
	if customer != nil {
		city = strings.TrimSpace(customer.City)
	}
	if id, ok := keys.cities[city]; ok && city != "" {
		return id, nil
	}
	if sentinel.ready {
		return sentinel.id, nil
	}

	if city == "" {
		city = Unknown
	}
	row := &warehousedomain.DimLocation{
		LocationID:   sentinel.id,
		Neighborhood: Unknown,
		PostalCode:   DefaultPostalCode,
		City:         city,
		Region:       Unknown,
	}
	stats.Processed++
	outcome, err := repository.InsertIfAbsent(ctx, f.olap, row)
	if err != nil {
		stats.Errors++
		return 0, fmt.Errorf("create sentinel location: %w", err)
	}
	stats.Count(outcome)
	sentinel.ready = true
	keys.locations.Add(sentinel.id)
	return sentinel.id, nil
}
