package syncengine

import (
	"context"
	"time"

	"github.com/smallbiznis/ordersync/internal/config"
	operationaldomain "github.com/smallbiznis/ordersync/internal/operational/domain"
	warehousedomain "github.com/smallbiznis/ordersync/internal/warehouse/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Run carries the values fixed for the duration of one sync.
type Run struct {
	ID    string
	Today time.Time
	Rules config.SyncRules
	Synth *Synthesizer
	Log   *zap.Logger
}

// Resolver derives one warehouse dimension from operational rows. Row-level failures are
// counted in the returned stats; a returned error aborts the sync.
type Resolver interface {
	Table() string
	Resolve(ctx context.Context, run *Run) (TableStats, error)
}

// stores bundles the connections and repositories shared by every resolver.
type stores struct {
	oltp        *gorm.DB
	olap        *gorm.DB
	operational operationaldomain.Repository
	warehouse   warehousedomain.Repository
}

// Tables lists the warehouse tables a sync reports on.
func Tables() []string {
	return warehousedomain.Tables()
}

// orderBase is the date a synthetic order date is offset from.
func orderBase(customer *operationaldomain.Customer, today time.Time) time.Time {
	if customer != nil && customer.RegistrationDate != nil {
		return *customer.RegistrationDate
	}
	return today
}

func indexCustomers(customers []operationaldomain.Customer) map[int64]*operationaldomain.Customer {
	index := make(map[int64]*operationaldomain.Customer, len(customers))
	for i := range customers {
		index[customers[i].CustomerID] = &customers[i]
	}
	return index
}
