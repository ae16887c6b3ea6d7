package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool. It stays nil when the journal is disabled.
var DB *sql.DB

// ErrNotInitialized is returned by every journal function while DB is nil.
var ErrNotInitialized = errors.New("database not initialized")

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// DSN renders the lib/pq connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	DB = db
	log.Info().Str("host", cfg.Host).Str("database", cfg.DBName).Msg("Connected to the PostgreSQL journal")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB == nil {
		return
	}
	log.Info().Msg("Closing database connection...")
	if err := DB.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing database connection")
	}
	DB = nil
}

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS cycle_snapshots (
		snapshot_id SERIAL PRIMARY KEY,
		cycle_number INTEGER NOT NULL,
		cycle_id UUID NOT NULL UNIQUE,
		snapshot_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,

		-- Pre-action state
		initial_assets JSONB NOT NULL,
		initial_positions JSONB,
		initial_price TEXT NOT NULL,

		-- Outcome
		rebalanced BOOLEAN NOT NULL,
		error_message TEXT,
		final_assets JSONB NOT NULL,
		final_positions JSONB,
		final_price TEXT NOT NULL,
		event_types TEXT[],
		duration_ms BIGINT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cycle_snapshots_timestamp ON cycle_snapshots(snapshot_timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_cycle_snapshots_cycle ON cycle_snapshots(cycle_number DESC);

	CREATE TABLE IF NOT EXISTS action_receipts (
		receipt_id SERIAL PRIMARY KEY,
		action_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		block_height BIGINT NOT NULL,
		msg_type VARCHAR(50) NOT NULL,
		sender TEXT NOT NULL,
		success BOOLEAN NOT NULL,
		message TEXT,
		request JSONB,
		response JSONB
	);
	CREATE INDEX IF NOT EXISTS idx_action_receipts_timestamp ON action_receipts(action_timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_action_receipts_msg_type ON action_receipts(msg_type);
	CREATE INDEX IF NOT EXISTS idx_action_receipts_sender ON action_receipts(sender);

	-- Single row holding the global cycle counter, kept across restarts
	CREATE TABLE IF NOT EXISTS cycle_counter (
		id INTEGER PRIMARY KEY DEFAULT 1,
		current_cycle INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT single_row_check CHECK (id = 1)
	);
	INSERT INTO cycle_counter (id, current_cycle)
	VALUES (1, 0)
	ON CONFLICT (id) DO NOTHING;
`

// Tables lists the journal tables in drop order.
var Tables = []string{"cycle_snapshots", "action_receipts", "cycle_counter"}

// EnsureSchema applies the DDL to create the journal tables if they don't exist.
func EnsureSchema(ctx context.Context) error {
	if DB == nil {
		return ErrNotInitialized
	}
	if _, err := DB.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Journal schema ensured")
	return nil
}

// DropSchema removes every journal table. Used by the reset script.
func DropSchema(ctx context.Context) error {
	if DB == nil {
		return ErrNotInitialized
	}
	for _, table := range Tables {
		if _, err := DB.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE"); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
		log.Warn().Str("table", table).Msg("Dropped journal table")
	}
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection(ctx context.Context) error {
	if DB == nil {
		return ErrNotInitialized
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
