package main

import (
	"context"
	"fmt"

	"github.com/smallbiznis/acquiring/internal/config"
	"github.com/smallbiznis/acquiring/internal/migration"
	"github.com/smallbiznis/acquiring/internal/observability"
	"github.com/smallbiznis/acquiring/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			var conn *gorm.DB
			app := fx.New(
				config.Module,
				observability.Module,
				db.Module,
				fx.Populate(&conn),
				fx.NopLogger,
			)
			if err := app.Err(); err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := app.Start(ctx); err != nil {
				return err
			}
			defer app.Stop(context.Background())

			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := migration.RunMigrations(sqlDB); err != nil {
				return err
			}

			version, dirty, err := migration.Version(sqlDB)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
			return nil
		},
	}
}
