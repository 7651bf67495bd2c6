package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/smallbiznis/ordersync/internal/warehouse/domain"
	"gorm.io/gorm"
)

var ErrUnknownTable = errors.New("unknown_warehouse_table")

var keyColumns = map[string]string{
	domain.TableDimCustomer:       "customer_id",
	domain.TableDimRestaurant:     "restaurant_id",
	domain.TableDimDate:           "date_id",
	domain.TableDimLocation:       "location_id",
	domain.TableDimTimeSlot:       "time_slot_id",
	domain.TableDimDeliveryPerson: "delivery_person_id",
	domain.TableFactOrders:        "order_id",
}

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Keys(ctx context.Context, db *gorm.DB, table string) (domain.KeySet, error) {
	column, ok := keyColumns[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	var ids []int64
	if err := db.WithContext(ctx).Table(table).Pluck(column, &ids).Error; err != nil {
		return nil, fmt.Errorf("load %s keys: %w", table, err)
	}

	keys := make(domain.KeySet, len(ids))
	for _, id := range ids {
		keys.Add(id)
	}
	return keys, nil
}

func (r *repo) CityLocations(ctx context.Context, db *gorm.DB, excludeID int64) (map[string]int64, error) {
	var rows []struct {
		City       string
		LocationID int64
	}
	err := db.WithContext(ctx).
		Model(&domain.DimLocation{}).
		Select("city, MIN(location_id) AS location_id").
		Where("location_id <> ?", excludeID).
		Group("city").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load location cities: %w", err)
	}

	cities := make(map[string]int64, len(rows))
	for _, row := range rows {
		cities[row.City] = row.LocationID
	}
	return cities, nil
}

func (r *repo) MaxLocationID(ctx context.Context, db *gorm.DB, ceiling int64) (int64, error) {
	var maxID sql.NullInt64
	err := db.WithContext(ctx).
		Model(&domain.DimLocation{}).
		Select("MAX(location_id)").
		Where("location_id < ?", ceiling).
		Row().
		Scan(&maxID)
	if err != nil {
		return 0, fmt.Errorf("load max location id: %w", err)
	}
	return maxID.Int64, nil
}
