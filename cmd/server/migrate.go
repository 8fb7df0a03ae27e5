package main

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kc-allan/at-insurance/internal/config"
	"github.com/kc-allan/at-insurance/internal/db"
	"github.com/kc-allan/at-insurance/internal/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required")
		}
		logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, serviceName)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		pool, err := db.NewPool(cmd.Context(), cfg.DatabaseURL, logger)
		if err != nil {
			return err
		}
		defer pool.Close()

		sqlDB := db.OpenSQL(pool)
		defer sqlDB.Close()
		applied, err := db.Migrate(cmd.Context(), sqlDB, logger)
		if err != nil {
			return err
		}
		logger.Info("migrations complete", zap.Strings("applied", applied))
		return nil
	},
}
