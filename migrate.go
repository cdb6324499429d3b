package main

import (
	"os"
	"strconv"

	"github.com/uptrace/bun"

	"ms-lottery/internal/database/migrations"
	"ms-lottery/internal/logger"
)

// runMigrations applies the schema on startup unless AUTO_MIGRATE=false.
func runMigrations(bunDB *bun.DB, log *logger.Logger) error {
	opts := migrations.DefaultOptions()
	if dir := os.Getenv("MIGRATIONS_DIR"); dir != "" {
		opts.MigrationsDir = dir
	}
	if v := os.Getenv("AUTO_MIGRATE"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			opts.AutoMigrate = parsed
		}
	}

	if !opts.AutoMigrate {
		log.Info("DATABASE", "AUTO_MIGRATE disabled, skipping schema migrations")
		return nil
	}

	runner := migrations.NewRunner(bunDB, opts)
	if err := runner.RunMigrations(); err != nil {
		return err
	}
	log.Info("DATABASE", "Schema migrations applied")
	return nil
}
