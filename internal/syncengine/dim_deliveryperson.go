package syncengine

import (
	"context"
	"fmt"

	obslogger "github.com/smallbiznis/ordersync/internal/observability/logger"
	warehousedomain "github.com/smallbiznis/ordersync/internal/warehouse/domain"
	"github.com/smallbiznis/ordersync/pkg/repository"
	"go.uber.org/zap"
)

type DeliveryPersonResolver struct {
	stores
}

func (r *DeliveryPersonResolver) Table() string { return warehousedomain.TableDimDeliveryPerson }

// Resolve upserts every delivery person. Tenure is recomputed against the run's date,
// so rows legitimately update as months roll over.
func (r *DeliveryPersonResolver) Resolve(ctx context.Context, run *Run) (TableStats, error) {
	var stats TableStats
	persons, err := r.operational.ListDeliveryPersons(ctx, r.oltp)
	if err != nil {
		return stats, fmt.Errorf("scan delivery persons: %w", err)
	}

	log := obslogger.WithTable(run.Log, r.Table())
	for i := range persons {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		person := &persons[i]
		desired := &warehousedomain.DimDeliveryPerson{
			DeliveryPersonID:   person.DeliveryPersonID,
			DeliveryPersonName: FullName(person.FirstName, person.LastName),
			OperationZone:      OperationZone(person.VehicleType),
			TenureMonths:       TenureMonths(person.HireDate, run.Today),
		}

		stats.Processed++
		outcome, err := repository.Upsert(ctx, r.olap, desired)
		if err != nil {
			stats.Errors++
			log.Warn("sync.row.error", zap.Int64("delivery_person_id", person.DeliveryPersonID), zap.Error(err))
			continue
		}
		stats.Count(outcome)
	}
	return stats, nil
}
