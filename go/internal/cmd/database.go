package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/mcdev12/leaguedraft/go/internal/config"
	"github.com/mcdev12/leaguedraft/go/internal/dbconfig"
	"github.com/mcdev12/leaguedraft/go/internal/migrations"
	"github.com/rs/zerolog/log"
)

// setupDatabase opens the pgx pool used by the draft store. Migrations run
// over a short-lived database/sql handle since goose needs one.
func setupDatabase(ctx context.Context, cfg *config.Config, dbCfg dbconfig.Config) (*pgxpool.Pool, error) {
	if cfg.Store.AutoMigrate {
		if err := migrate(dbCfg); err != nil {
			return nil, err
		}
	}

	poolCfg, err := pgxpool.ParseConfig(dbCfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if cfg.Store.MaxConns > 0 {
		poolCfg.MaxConns = cfg.Store.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Str("dsn", dbCfg.Redacted()).Msg("connected to database")
	return pool, nil
}

func migrate(dbCfg dbconfig.Config) error {
	database, err := sql.Open("postgres", dbCfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	defer database.Close()

	if err := database.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return migrations.Up(database)
}
