package syncengine

import (
	"context"
	"fmt"

	obslogger "github.com/smallbiznis/ordersync/internal/observability/logger"
	warehousedomain "github.com/smallbiznis/ordersync/internal/warehouse/domain"
	"github.com/smallbiznis/ordersync/pkg/repository"
	"go.uber.org/zap"
)

type CustomerResolver struct {
	stores
}

func (r *CustomerResolver) Table() string { return warehousedomain.TableDimCustomer }

// Resolve upserts one dim_customer row per operational customer. Existing rows are only
// rewritten when the derived name or segment drifted.
func (r *CustomerResolver) Resolve(ctx context.Context, run *Run) (TableStats, error) {
	var stats TableStats
	customers, err := r.operational.ListCustomers(ctx, r.oltp)
	if err != nil {
		return stats, fmt.Errorf("scan customers: %w", err)
	}

	log := obslogger.WithTable(run.Log, r.Table())
	for i := range customers {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		customer := &customers[i]
		desired := &warehousedomain.DimCustomer{
			CustomerID:       customer.CustomerID,
			CustomerName:     FullName(customer.FirstName, customer.LastName),
			Segment:          CustomerSegment(customer.RegistrationDate, run.Today),
			RegistrationDate: dateOnlyPtr(customer.RegistrationDate),
		}

		stats.Processed++
		outcome, err := repository.Upsert(ctx, r.olap, desired, "customer_name", "segment")
		if err != nil {
			stats.Errors++
			log.Warn("sync.row.error", zap.Int64("customer_id", customer.CustomerID), zap.Error(err))
			continue
		}
		stats.Count(outcome)
	}
	return stats, nil
}
