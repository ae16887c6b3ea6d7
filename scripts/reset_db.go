// Drops and recreates the journal tables. Run with: go run ./scripts
package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/elys-network/clvault/internal/config"
	"github.com/elys-network/clvault/internal/logger"
	"github.com/elys-network/clvault/internal/state"
)

func main() {
	v := config.NewViper()
	logger.Initialize(v.GetString("log_level"))
	log.Info().Msg("Starting database reset script...")

	v.Set("db_enabled", true)
	if err := config.LoadDatabaseConfig(v); err != nil {
		log.Fatal().Err(err).Msg("Invalid database configuration")
	}

	if err := state.InitDB(config.Database); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer state.CloseDB()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log.Warn().Strs("tables", state.Tables).Msg("Dropping journal tables")
	if err := state.DropSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to drop tables")
	}
	if err := state.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to recreate tables")
	}

	log.Info().Str("database", config.Database.DBName).Msg("Database reset complete")
}
