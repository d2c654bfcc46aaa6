package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/nikitkaralius/pollmate/internal/config"
	"github.com/nikitkaralius/pollmate/internal/database"
	"github.com/nikitkaralius/pollmate/internal/sqlitestore"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	Long: `Create or upgrade the database schema.

On Postgres this applies the application tables and River's job tables.
On SQLite it creates the poll and response tables.`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	switch cfg.Storage.Driver {
	case config.StorageSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0o755); err != nil {
			return fmt.Errorf("create sqlite directory: %w", err)
		}
		db, err := sql.Open("sqlite3", cfg.Storage.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		defer db.Close()
		if err := sqlitestore.New(db).InitSchema(ctx); err != nil {
			return err
		}
	case config.StoragePostgres:
		if cfg.Storage.DatabaseURL == "" {
			return errors.New("database url is required (env DATABASE_URL)")
		}
		pool, err := pgxpool.New(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return fmt.Errorf("create pgx pool: %w", err)
		}
		defer pool.Close()
		if err := database.RunMigration(ctx, pool); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	log.Info().Str("driver", cfg.Storage.Driver).Msg("Database schema is up to date")
	return nil
}
