package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"
	"sharesync/api/internal/config"
	"sharesync/api/internal/logging"
	"sharesync/api/internal/store"
)

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := store.Open(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()
	return migrate(cmd.Context(), db, cfg)
}

func migrate(ctx context.Context, db *sql.DB, cfg config.Config) error {
	logger := logging.For("migrate")
	applied, err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir)
	if err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	if len(applied) == 0 {
		logger.Info().Msg("schema up to date")
		return nil
	}
	for _, version := range applied {
		logger.Info().Str("version", version).Msg("applied migration")
	}
	return nil
}
