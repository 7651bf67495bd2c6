package main

import (
	"context"

	jobdomain "github.com/smallbiznis/ordersync/internal/job/domain"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newIngestCmd() *cobra.Command {
	var noSync bool

	cmd := &cobra.Command{
		Use:   "ingest FILE",
		Short: "Load an orders CSV into the operational store",
		Long: `Loads every row of FILE into the operational store. When enough new orders
were inserted a warehouse sync runs afterwards unless --no-sync is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var jobs jobdomain.Service
			app := fx.New(
				infrastructure(),
				domains(),
				fx.Populate(&jobs),
			)

			return runOneShot(cmd.Context(), app, func(ctx context.Context) error {
				job, err := jobs.IngestFile(ctx, jobdomain.IngestFileRequest{
					Path:     args[0],
					AutoSync: !noSync,
				})
				if job.ID != 0 {
					if printErr := printJSON(cmd.OutOrStdout(), job); printErr != nil && err == nil {
						err = printErr
					}
				}
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&noSync, "no-sync", false, "skip the warehouse sync after loading")
	return cmd
}
