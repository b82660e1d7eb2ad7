package migration

import (
	"github.com/smallbiznis/acquiring/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module applies pending migrations at startup when DATABASE_AUTO_MIGRATE
// is set. Only postgres carries the embedded schema.
var Module = fx.Module("migration", fx.Invoke(autoMigrate))

func autoMigrate(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	log = log.Named("migration")
	if !cfg.DBAutoMigrate {
		return nil
	}
	if cfg.DBType != "postgres" {
		log.Info("schema not applied, driver has no migrations", zap.String("driver", cfg.DBType))
		return nil
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	if err := RunMigrations(sqlDB); err != nil {
		return err
	}
	version, dirty, err := Version(sqlDB)
	if err != nil {
		return err
	}
	log.Info("schema up to date", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}
