package syncengine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	obslogger "github.com/smallbiznis/ordersync/internal/observability/logger"
	warehousedomain "github.com/smallbiznis/ordersync/internal/warehouse/domain"
	"github.com/smallbiznis/ordersync/pkg/repository"
	"go.uber.org/zap"
)

var ErrLocationIDsExhausted = errors.New("location_ids_exhausted")

type LocationResolver struct {
	stores
}

func (r *LocationResolver) Table() string { return warehousedomain.TableDimLocation }

type addressed struct {
	address string
	city    string
}

// Resolve creates one dim_location row per distinct city, customers first then restaurants.
// The first address seen for a city wins; cities already in the warehouse are left alone.
func (r *LocationResolver) Resolve(ctx context.Context, run *Run) (TableStats, error) {
	var stats TableStats
	sources, err := r.addresses(ctx)
	if err != nil {
		return stats, err
	}

	sentinel := run.Rules.SentinelLocationID
	known, err := r.warehouse.CityLocations(ctx, r.olap, sentinel)
	if err != nil {
		return stats, err
	}
	nextID, err := r.warehouse.MaxLocationID(ctx, r.olap, sentinel)
	if err != nil {
		return stats, err
	}

	log := obslogger.WithTable(run.Log, r.Table())
	seen := make(map[string]struct{}, len(sources))
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		city := strings.TrimSpace(src.city)
		if city == "" {
			continue
		}
		if _, dup := seen[city]; dup {
			continue
		}
		seen[city] = struct{}{}

		stats.Processed++
		if _, exists := known[city]; exists {
			continue
		}

		nextID++
		if nextID >= sentinel {
			return stats, fmt.Errorf("%w: next id %d", ErrLocationIDsExhausted, nextID)
		}
		desired := &warehousedomain.DimLocation{
			LocationID:   nextID,
			Neighborhood: Neighborhood(src.address),
			PostalCode:   PostalCode(src.address),
			City:         city,
			Region:       Region(city, run.Rules.Regions),
		}
		outcome, err := repository.InsertIfAbsent(ctx, r.olap, desired)
		if err != nil {
			stats.Errors++
			log.Warn("sync.row.error", zap.String("city", city), zap.Error(err))
			continue
		}
		stats.Count(outcome)
	}
	return stats, nil
}

func (r *LocationResolver) addresses(ctx context.Context) ([]addressed, error) {
	customers, err := r.operational.ListCustomers(ctx, r.oltp)
	if err != nil {
		return nil, fmt.Errorf("scan customers: %w", err)
	}
	restaurants, err := r.operational.ListRestaurants(ctx, r.oltp)
	if err != nil {
		return nil, fmt.Errorf("scan restaurants: %w", err)
	}

	sources := make([]addressed, 0, len(customers)+len(restaurants))
	for _, customer := range customers {
		sources = append(sources, addressed{address: customer.Address, city: customer.City})
	}
	for _, restaurant := range restaurants {
		sources = append(sources, addressed{address: restaurant.Address, city: restaurant.City})
	}
	return sources, nil
}
