package domain

import (
	"context"

	"gorm.io/gorm"
)

// KeySet holds the primary keys present in one dimension table.
type KeySet map[int64]struct{}

func (k KeySet) Has(id int64) bool {
	_, ok := k[id]
	return ok
}

func (k KeySet) Add(id int64) {
	k[id] = struct{}{}
}

// Repository reads warehouse state the resolvers need beyond single-row upserts.
type Repository interface {
	Keys(ctx context.Context, db *gorm.DB, table string) (KeySet, error)
	// CityLocations maps each city to its lowest location id, ignoring excludeID.
	CityLocations(ctx context.Context, db *gorm.DB, excludeID int64) (map[string]int64, error)
	// MaxLocationID returns the largest location id strictly below ceiling, or 0.
	MaxLocationID(ctx context.Context, db *gorm.DB, ceiling int64) (int64, error)
}
