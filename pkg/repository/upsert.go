package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/smallbiznis/ordersync/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// Outcome reports what a conditional write did to the target row.
type Outcome int

const (
	Unchanged Outcome = iota
	Inserted
	Updated
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	default:
		return "unchanged"
	}
}

var (
	ErrNilEntity    = errors.New("nil_entity")
	ErrNoPrimaryKey = errors.New("no_primary_key")
)

var schemaCache sync.Map

var timeComparer = cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })

// Upsert inserts desired when no row shares its primary key. Otherwise it compares the
// persisted row field by field and writes only the columns that differ. When fields is
// non-empty only those columns take part in the comparison.
func Upsert[T any](ctx context.Context, conn *gorm.DB, desired *T, fields ...string) (Outcome, error) {
	if desired == nil {
		return Unchanged, ErrNilEntity
	}
	sch, where, err := primaryKey(conn, desired)
	if err != nil {
		return Unchanged, err
	}

	var existing T
	err = conn.WithContext(ctx).Where(where).Take(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := conn.WithContext(ctx).Create(desired).Error; err != nil {
			return Unchanged, fmt.Errorf("insert %s: %w", sch.Table, err)
		}
		return Inserted, nil
	}
	if err != nil {
		return Unchanged, fmt.Errorf("load %s: %w", sch.Table, err)
	}

	changed := Diff(ctx, sch, &existing, desired, fields...)
	if len(changed) == 0 {
		return Unchanged, nil
	}

	if err := conn.WithContext(ctx).Model(desired).Select(changed).Updates(desired).Error; err != nil {
		return Unchanged, fmt.Errorf("update %s: %w", sch.Table, err)
	}
	return Updated, nil
}

// InsertIfAbsent creates desired unless a row with a conflicting key already exists.
// Existing rows are never modified.
func InsertIfAbsent[T any](ctx context.Context, conn *gorm.DB, desired *T) (Outcome, error) {
	if desired == nil {
		return Unchanged, ErrNilEntity
	}
	res := conn.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(desired)
	if res.Error != nil {
		if db.IsDuplicateKeyErr(res.Error) {
			return Unchanged, nil
		}
		return Unchanged, res.Error
	}
	if res.RowsAffected == 0 {
		return Unchanged, nil
	}
	return Inserted, nil
}

// Diff returns the column names whose values differ between existing and desired.
// Primary key columns are never reported.
func Diff[T any](ctx context.Context, sch *schema.Schema, existing, desired *T, fields ...string) []string {
	current := reflect.ValueOf(existing)
	target := reflect.ValueOf(desired)

	var changed []string
	for _, field := range sch.Fields {
		if field.DBName == "" || field.PrimaryKey {
			continue
		}
		if len(fields) > 0 && !slices.Contains(fields, field.DBName) {
			continue
		}
		before, _ := field.ValueOf(ctx, current)
		after, _ := field.ValueOf(ctx, target)
		if !cmp.Equal(before, after, timeComparer) {
			changed = append(changed, field.DBName)
		}
	}
	return changed
}

// Schema parses (and caches) the gorm schema of T using the connection's naming strategy.
func Schema[T any](conn *gorm.DB, model *T) (*schema.Schema, error) {
	return schema.Parse(model, &schemaCache, conn.NamingStrategy)
}

func primaryKey[T any](conn *gorm.DB, desired *T) (*schema.Schema, map[string]any, error) {
	sch, err := Schema(conn, desired)
	if err != nil {
		return nil, nil, err
	}
	if len(sch.PrimaryFields) == 0 {
		return nil, nil, fmt.Errorf("%s: %w", sch.Table, ErrNoPrimaryKey)
	}

	rv := reflect.ValueOf(desired)
	where := make(map[string]any, len(sch.PrimaryFields))
	for _, field := range sch.PrimaryFields {
		value, _ := field.ValueOf(context.Background(), rv)
		where[field.DBName] = value
	}
	return sch, where, nil
}
