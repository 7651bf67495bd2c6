package syncengine

import (
	"context"
	"fmt"

	obslogger "github.com/smallbiznis/ordersync/internal/observability/logger"
	warehousedomain "github.com/smallbiznis/ordersync/internal/warehouse/domain"
	"github.com/smallbiznis/ordersync/pkg/repository"
	"go.uber.org/zap"
)

type RestaurantResolver struct {
	stores
}

func (r *RestaurantResolver) Table() string { return warehousedomain.TableDimRestaurant }

func (r *RestaurantResolver) Resolve(ctx context.Context, run *Run) (TableStats, error) {
	var stats TableStats
	restaurants, err := r.operational.ListRestaurants(ctx, r.oltp)
	if err != nil {
		return stats, fmt.Errorf("scan restaurants: %w", err)
	}

	log := obslogger.WithTable(run.Log, r.Table())
	for i := range restaurants {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		restaurant := &restaurants[i]
		desired := &warehousedomain.DimRestaurant{
			RestaurantID:   restaurant.RestaurantID,
			RestaurantName: restaurant.RestaurantName,
			CuisineType:    restaurant.CuisineType,
			RatingAvg:      restaurant.RatingAvg,
		}

		stats.Processed++
		outcome, err := repository.Upsert(ctx, r.olap, desired)
		if err != nil {
			stats.Errors++
			log.Warn("sync.row.error", zap.Int64("restaurant_id", restaurant.RestaurantID), zap.Error(err))
			continue
		}
		stats.Count(outcome)
	}
	return stats, nil
}
