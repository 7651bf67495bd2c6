package syncengine

import (
	"context"

	obslogger "github.com/smallbiznis/ordersync/internal/observability/logger"
	warehousedomain "github.com/smallbiznis/ordersync/internal/warehouse/domain"
	"github.com/smallbiznis/ordersync/pkg/repository"
	"go.uber.org/zap"
)

// TimeSlotResolver seeds the fixed slot reference set. It reads no operational data.
type TimeSlotResolver struct {
	stores
}

func (r *TimeSlotResolver) Table() string { return warehousedomain.TableDimTimeSlot }

func (r *TimeSlotResolver) Resolve(ctx context.Context, run *Run) (TableStats, error) {
	var stats TableStats
	log := obslogger.WithTable(run.Log, r.Table())
	for _, slot := range TimeSlots() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Processed++
		outcome, err := repository.InsertIfAbsent(ctx, r.olap, &slot)
		if err != nil {
			stats.Errors++
			log.Warn("sync.row.error", zap.Int("time_slot_id", slot.TimeSlotID), zap.Error(err))
			continue
		}
		stats.Count(outcome)
	}
	return stats, nil
}
