package main

import (
	"github.com/smallbiznis/ordersync/internal/scheduler"
	"github.com/smallbiznis/ordersync/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API together with the sync scheduler",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fx.New(
				infrastructure(),
				domains(),
				scheduler.Module,
				server.Module,
			).Run()
		},
	}
}

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run only the sync scheduler, without the HTTP API",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fx.New(
				infrastructure(),
				domains(),
				scheduler.Module,
			).Run()
		},
	}
}
