package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ordersync/internal/ingestion/domain"
	obslogger "github.com/smallbiznis/ordersync/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/ordersync/internal/observability/metrics"
	operationaldomain "github.com/smallbiznis/ordersync/internal/operational/domain"
	"github.com/smallbiznis/ordersync/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB `name:"oltp"`
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    operationaldomain.Repository
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    operationaldomain.Repository
	metrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("ingestion.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

// rowResult reports what a committed row changed.
type rowResult struct {
	customerUpdated bool
	orderExisted    bool
}

func (s *Service) IngestFile(ctx context.Context, path string) (domain.Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return s.Ingest(ctx, f)
}

func (s *Service) Ingest(ctx context.Context, r io.Reader) (domain.Stats, error) {
	var stats domain.Stats
	log := obslogger.WithContext(ctx, s.log)
	start := time.Now()

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	columns, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return stats, domain.ErrEmptyFile
	}
	if err != nil {
		return stats, fmt.Errorf("read header: %w", err)
	}
	h, err := newHeader(columns)
	if err != nil {
		return stats, err
	}

	line := 1
	for {
		if err := ctx.Err(); err != nil {
			s.record(ctx, stats)
			return stats, err
		}
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		stats.Processed++
		if err != nil {
			stats.Errors++
			log.Warn("ingestion.row.error", zap.Int("line", line), zap.Error(err))
			continue
		}

		record, err := parseRecord(row{h: h, fields: fields})
		if err != nil {
			stats.Errors++
			log.Warn("ingestion.row.error", zap.Int("line", line), zap.Error(err))
			continue
		}

		result, err := s.ingestRecord(ctx, &record)
		if err != nil {
			stats.Errors++
			log.Warn("ingestion.row.error",
				zap.Int("line", line),
				zap.Int64("order_id", record.OrderID),
				zap.Error(err),
			)
			continue
		}
		if result.customerUpdated {
			stats.Updated++
		}
		if result.orderExisted {
			stats.Skipped++
			log.Debug("ingestion.order.exists", zap.Int64("order_id", record.OrderID))
			continue
		}
		stats.Inserted++
	}

	s.record(ctx, stats)
	log.Info("ingestion.finish",
		zap.Duration("duration", time.Since(start)),
		zap.Int("processed", stats.Processed),
		zap.Int("inserted", stats.Inserted),
		zap.Int("updated", stats.Updated),
		zap.Int("errors", stats.Errors),
		zap.Int("skipped", stats.Skipped),
	)
	return stats, nil
}

// ingestRecord writes one row in its own transaction so a failure leaves no partial entities.
func (s *Service) ingestRecord(ctx context.Context, record *domain.Record) (rowResult, error) {
	var result rowResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updated, err := s.upsertCustomer(ctx, tx, record)
		if err != nil {
			return fmt.Errorf("customer %d: %w", record.CustomerID, err)
		}
		restaurant, err := s.restaurant(ctx, tx, record)
		if err != nil {
			return fmt.Errorf("restaurant %q: %w", record.RestaurantName, err)
		}
		day, err := s.day(ctx, tx, record)
		if err != nil {
			return fmt.Errorf("day %q: %w", record.DayOfTheWeek, err)
		}
		if err := s.deliveryPerson(ctx, tx, record); err != nil {
			return fmt.Errorf("delivery person: %w", err)
		}

		exists, err := s.repo.OrderExists(ctx, tx, record.OrderID)
		if err != nil {
			return err
		}
		result = rowResult{customerUpdated: updated, orderExisted: exists}
		if exists {
			return nil
		}

		order := &operationaldomain.Order{
			OrderID:             record.OrderID,
			CustomerID:          record.CustomerID,
			RestaurantID:        restaurant.RestaurantID,
			DayID:               day.DayID,
			DeliveryPersonID:    record.DeliveryPersonID,
			CostOfTheOrder:      record.CostOfTheOrder,
			Rating:              record.Rating,
			FoodPreparationTime: record.FoodPreparationTime,
			DeliveryTime:        record.DeliveryTime,
			TipAmount:           record.TipAmount,
		}
		return s.repo.InsertOrder(ctx, tx, order)
	})
	if err != nil {
		return rowResult{}, err
	}
	return result, nil
}

// upsertCustomer creates the customer or refreshes its name and contact columns.
func (s *Service) upsertCustomer(ctx context.Context, tx *gorm.DB, record *domain.Record) (bool, error) {
	desired := &operationaldomain.Customer{
		CustomerID:       record.CustomerID,
		FirstName:        record.CustFirstName,
		LastName:         record.CustLastName,
		Email:            record.CustEmail,
		Phone:            record.CustPhone,
		Address:          record.CustAddress,
		City:             record.CustCity,
		RegistrationDate: record.CustRegistrationDate,
	}

	existing, err := s.repo.FindCustomer(ctx, tx, record.CustomerID)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, s.repo.InsertCustomer(ctx, tx, desired)
	}
	if sameProfile(existing, desired) {
		return false, nil
	}
	if err := s.repo.UpdateCustomerContact(ctx, tx, desired); err != nil {
		return false, err
	}
	return true, nil
}

func sameProfile(a, b *operationaldomain.Customer) bool {
	return a.FirstName == b.FirstName &&
		a.LastName == b.LastName &&
		a.Email == b.Email &&
		a.Phone == b.Phone &&
		a.Address == b.Address &&
		a.City == b.City
}

// restaurant finds a restaurant by (name, cuisine) or mints a new id for it.
func (s *Service) restaurant(ctx context.Context, tx *gorm.DB, record *domain.Record) (*operationaldomain.Restaurant, error) {
	existing, err := s.repo.FindRestaurant(ctx, tx, record.RestaurantName, record.CuisineType)
	if err != nil || existing != nil {
		return existing, err
	}

	restaurant := &operationaldomain.Restaurant{
		RestaurantID:    s.genID.Generate().Int64(),
		RestaurantName:  record.RestaurantName,
		CuisineType:     record.CuisineType,
		Address:         record.RestAddress,
		City:            record.RestCity,
		Phone:           record.RestPhone,
		Website:         record.RestWebsite,
		PriceRange:      record.RestPriceRange,
		RatingAvg:       record.RestRatingAvg,
		OpeningHour:     record.RestOpeningHour,
		ClosingHour:     record.RestClosingHour,
		EstablishedDate: record.RestEstablishedDate,
	}
	err = createOrFind(tx, "restaurant", func(tx *gorm.DB) error {
		return s.repo.InsertRestaurant(ctx, tx, restaurant)
	}, func(tx *gorm.DB) error {
		found, err := s.repo.FindRestaurant(ctx, tx, record.RestaurantName, record.CuisineType)
		if err == nil && found != nil {
			restaurant = found
		}
		return err
	})
	return restaurant, err
}

func (s *Service) day(ctx context.Context, tx *gorm.DB, record *domain.Record) (*operationaldomain.Day, error) {
	name := record.DayOfTheWeek
	if name == "" {
		name = "Unknown"
	}
	existing, err := s.repo.FindDay(ctx, tx, name)
	if err != nil || existing != nil {
		return existing, err
	}

	weekend, holiday := record.IsWeekend, record.IsHoliday
	day := &operationaldomain.Day{
		DayID:     s.genID.Generate().Int64(),
		DayName:   name,
		IsWeekend: &weekend,
		IsHoliday: &holiday,
	}
	err = createOrFind(tx, "day", func(tx *gorm.DB) error {
		return s.repo.InsertDay(ctx, tx, day)
	}, func(tx *gorm.DB) error {
		found, err := s.repo.FindDay(ctx, tx, name)
		if err == nil && found != nil {
			day = found
		}
		return err
	})
	return day, err
}

func (s *Service) deliveryPerson(ctx context.Context, tx *gorm.DB, record *domain.Record) error {
	if record.DeliveryPersonID == nil {
		return nil
	}
	existing, err := s.repo.FindDeliveryPerson(ctx, tx, *record.DeliveryPersonID)
	if err != nil || existing != nil {
		return err
	}
	person := &operationaldomain.DeliveryPerson{
		DeliveryPersonID: *record.DeliveryPersonID,
		FirstName:        record.DelFirstName,
		LastName:         record.DelLastName,
		Phone:            record.DelPhone,
		Email:            record.DelEmail,
		VehicleType:      record.DelVehicle,
		HireDate:         record.DelHireDate,
		Rating:           record.DelRating,
	}
	return createOrFind(tx, "delivery_person", func(tx *gorm.DB) error {
		return s.repo.InsertDeliveryPerson(ctx, tx, person)
	}, func(*gorm.DB) error { return nil })
}

// createOrFind runs create behind a savepoint. A duplicate key from a concurrent ingestion
// rolls back to the savepoint and falls back to find.
func createOrFind(tx *gorm.DB, name string, create, find func(*gorm.DB) error) error {
	if err := tx.SavePoint(name).Error; err != nil {
		return err
	}
	err := create(tx)
	if err == nil {
		return nil
	}
	if !db.IsDuplicateKeyErr(err) {
		return err
	}
	if rbErr := tx.RollbackTo(name).Error; rbErr != nil {
		return errors.Join(err, rbErr)
	}
	return find(tx)
}

func (s *Service) record(ctx context.Context, stats domain.Stats) {
	s.metrics.RecordIngestedRows(ctx, "inserted", stats.Inserted)
	s.metrics.RecordIngestedRows(ctx, "updated", stats.Updated)
	s.metrics.RecordIngestedRows(ctx, "skipped", stats.Skipped)
	s.metrics.RecordIngestedRows(ctx, "errors", stats.Errors)
}
