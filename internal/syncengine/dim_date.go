package syncengine

import (
	"context"
	"fmt"
	"slices"
	"time"

	obslogger "github.com/smallbiznis/ordersync/internal/observability/logger"
	warehousedomain "github.com/smallbiznis/ordersync/internal/warehouse/domain"
	"github.com/smallbiznis/ordersync/pkg/repository"
	"go.uber.org/zap"
)

type DateResolver struct {
	stores
}

func (r *DateResolver) Table() string { return warehousedomain.TableDimDate }

// Resolve inserts a dim_date row for every distinct registration date, establishment date
// and synthetic order date. Dates are immutable once written.
func (r *DateResolver) Resolve(ctx context.Context, run *Run) (TableStats, error) {
	var stats TableStats
	dates, err := r.collect(ctx, run)
	if err != nil {
		return stats, err
	}

	log := obslogger.WithTable(run.Log, r.Table())
	for _, day := range dates {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		desired := NewDimDate(day)

		stats.Processed++
		outcome, err := repository.InsertIfAbsent(ctx, r.olap, &desired)
		if err != nil {
			stats.Errors++
			log.Warn("sync.row.error", zap.Int("date_id", desired.DateID), zap.Error(err))
			continue
		}
		stats.Count(outcome)
	}
	return stats, nil
}

func (r *DateResolver) collect(ctx context.Context, run *Run) ([]time.Time, error) {
	customers, err := r.operational.ListCustomers(ctx, r.oltp)
	if err != nil {
		return nil, fmt.Errorf("scan customers: %w", err)
	}
	restaurants, err := r.operational.ListRestaurants(ctx, r.oltp)
	if err != nil {
		return nil, fmt.Errorf("scan restaurants: %w", err)
	}
	orders, err := r.operational.ListOrders(ctx, r.oltp)
	if err != nil {
		return nil, fmt.Errorf("scan orders: %w", err)
	}

	seen := make(map[int]time.Time)
	add := func(t time.Time) {
		day := DateOnly(t)
		seen[DateID(day)] = day
	}
	for _, customer := range customers {
		if customer.RegistrationDate != nil {
			add(*customer.RegistrationDate)
		}
	}
	for _, restaurant := range restaurants {
		if restaurant.EstablishedDate != nil {
			add(*restaurant.EstablishedDate)
		}
	}
	byID := indexCustomers(customers)
	for _, order := range orders {
		date, _ := run.Synth.OrderMoment(order.OrderID, orderBase(byID[order.CustomerID], run.Today))
		add(date)
	}

	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	dates := make([]time.Time, 0, len(ids))
	for _, id := range ids {
		dates = append(dates, seen[id])
	}
	return dates, nil
}
