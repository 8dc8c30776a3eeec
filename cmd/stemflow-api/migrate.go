package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/stemflow/stemflow/internal/config"
	"github.com/stemflow/stemflow/internal/store"
	"github.com/stemflow/stemflow/pkg/migrations"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the db",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}

		cleanup := setupLogging(cfg)
		defer cleanup()

		zap.S().Info("Initializing data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalw("initializing data store", "error", err)
		}

		s := store.NewStore(db)
		defer s.Close()

		return migrate(cmd.Context(), cfg, db, s)
	},
}

// migrate runs goose when a migrations folder is configured and falls back to AutoMigrate otherwise.
func migrate(ctx context.Context, cfg *config.Config, db *gorm.DB, s store.Store) error {
	if cfg.Service.MigrationFolder == "" {
		zap.S().Info("no migrations folder configured, running auto migration")
		return s.InitialMigration(ctx)
	}

	if err := migrations.MigrateStore(db, cfg.Service.MigrationFolder); err != nil {
		zap.S().Errorw("running migrations", "folder", cfg.Service.MigrationFolder, "error", err)
		return err
	}
	zap.S().Info("Db migrated")
	return nil
}
