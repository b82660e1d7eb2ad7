package main

import (
	"github.com/smallbiznis/acquiring/internal/migration"
	"github.com/smallbiznis/acquiring/internal/reconcile"
	"github.com/smallbiznis/acquiring/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func serveCmd() *cobra.Command {
	var withReconciler bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []fx.Option{
				coreModules(),
				migration.Module,
				server.Module,
			}
			if withReconciler {
				opts = append(opts, reconcile.Module, reconcile.DaemonModule)
			}

			app := fx.New(opts...)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}

	cmd.Flags().BoolVar(&withReconciler, "with-reconciler", false, "Also run the periodic status reconciliation in this process")

	return cmd
}
