package main

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ordersync/internal/clock"
	"github.com/smallbiznis/ordersync/internal/config"
	"github.com/smallbiznis/ordersync/internal/ingestion"
	"github.com/smallbiznis/ordersync/internal/job"
	"github.com/smallbiznis/ordersync/internal/migration"
	"github.com/smallbiznis/ordersync/internal/observability"
	"github.com/smallbiznis/ordersync/internal/operational"
	"github.com/smallbiznis/ordersync/internal/synclock"
	"github.com/smallbiznis/ordersync/internal/syncengine"
	"github.com/smallbiznis/ordersync/internal/warehouse"
	"github.com/smallbiznis/ordersync/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// oneShotTimeout bounds start and stop of the fx app for CLI commands.
const oneShotTimeout = time.Minute

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ordersync",
		Short:         "Synchronise food-delivery orders into the analytical warehouse",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		newServeCmd(),
		newWorkerCmd(),
		newSyncCmd(),
		newIngestCmd(),
		newMigrateCmd(),
	)
	return root
}

// infrastructure wires config, logging, both stores, and schema migrations.
func infrastructure() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	)
}

// domains wires the repositories and services behind every sync trigger.
func domains() fx.Option {
	return fx.Options(
		operational.Module,
		warehouse.Module,
		syncengine.Module,
		ingestion.Module,
		synclock.Module,
		job.Module,
	)
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

// runOneShot starts an app, runs fn, and stops the app again.
func runOneShot(ctx context.Context, app *fx.App, fn func(context.Context) error) error {
	startCtx, cancel := context.WithTimeout(ctx, oneShotTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	runErr := fn(ctx)

	stopCtx, cancelStop := context.WithTimeout(context.WithoutCancel(ctx), oneShotTimeout)
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
