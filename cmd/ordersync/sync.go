package main

import (
	"context"
	"errors"

	jobdomain "github.com/smallbiznis/ordersync/internal/job/domain"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newSyncCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one warehouse sync in the foreground",
		Long: `Resolves all dimensions from the operational store and reconciles fact_orders.
A sync that completed within SYNC_RECENT_JOB_WINDOW is not repeated unless --force is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var jobs jobdomain.Service
			app := fx.New(
				infrastructure(),
				domains(),
				fx.Populate(&jobs),
			)

			return runOneShot(cmd.Context(), app, func(ctx context.Context) error {
				job, err := jobs.RunWarehouseSync(ctx, jobdomain.RunSyncRequest{
					Trigger: jobdomain.TriggerManual,
					Force:   force,
				})
				if errors.Is(err, jobdomain.ErrRecentSync) {
					cmd.PrintErrln("a warehouse sync completed recently; rerun with --force to sync again")
				}
				if job.ID != 0 {
					if printErr := printJSON(cmd.OutOrStdout(), job); printErr != nil && err == nil {
						err = printErr
					}
				}
				return err
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "sync even if a recent sync completed")
	return cmd
}
