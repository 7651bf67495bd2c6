package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations to the operational and warehouse stores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(infrastructure())
			return runOneShot(cmd.Context(), app, func(context.Context) error {
				cmd.Println("migrations applied")
				return nil
			})
		},
	}
}
