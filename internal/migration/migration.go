package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	jobdomain "github.com/smallbiznis/ordersync/internal/job/domain"
	operationaldomain "github.com/smallbiznis/ordersync/internal/operational/domain"
	warehousedomain "github.com/smallbiznis/ordersync/internal/warehouse/domain"
	"github.com/smallbiznis/ordersync/pkg/db"
	"gorm.io/gorm"
)

//go:embed migrations/oltp/*.sql migrations/olap/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "migrations"

var ErrUnknownStore = errors.New("unknown_store")

// Migrate brings a store's schema up to date. Postgres runs the embedded SQL; other
// dialects fall back to GORM auto-migration of the same models.
func Migrate(conn *gorm.DB, store string) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	models, err := modelsFor(store)
	if err != nil {
		return err
	}

	if conn.Dialector.Name() != "postgres" {
		if err := conn.AutoMigrate(models...); err != nil {
			return fmt.Errorf("auto migrate %s: %w", store, err)
		}
		return nil
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB, store)
}

// RunMigrations applies the embedded postgres migrations of one store. Each store keeps
// its own version table so both may share a database.
func RunMigrations(sqlDB *sql.DB, store string) error {
	if sqlDB == nil {
		return errors.New("migration database handle is required")
	}
	if _, err := modelsFor(store); err != nil {
		return err
	}

	sub, err := fs.Sub(embeddedMigrations, path.Join(migrationsDir, store))
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{
		MigrationsTable: "schema_migrations_" + store,
	})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply %s migrations: %w", store, upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

func modelsFor(store string) ([]any, error) {
	switch store {
	case db.StoreOLTP:
		return append(operationaldomain.Models(), &jobdomain.SyncJob{}), nil
	case db.StoreOLAP:
		return warehousedomain.Models(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStore, store)
	}
}
