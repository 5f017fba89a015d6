package repository

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{
		name: "users table",
		sql: `
		CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY,
			display_name VARCHAR(255) NOT NULL DEFAULT '',
			balance BIGINT NOT NULL DEFAULT 1000 CHECK (balance >= 0),
			wins BIGINT NOT NULL DEFAULT 0,
			losses BIGINT NOT NULL DEFAULT 0,
			last_active TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_users_balance ON users(balance DESC);
		CREATE INDEX IF NOT EXISTS idx_users_last_active ON users(last_active DESC);
		`,
	},
	{
		name: "matches table",
		sql: `
		CREATE TABLE IF NOT EXISTS matches (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			team_a VARCHAR(100) NOT NULL DEFAULT '',
			team_b VARCHAR(100) NOT NULL DEFAULT '',
			status VARCHAR(20) NOT NULL DEFAULT 'pending'
				CHECK (status IN ('pending', 'live', 'completed', 'paused')),
			total_overs INT NOT NULL DEFAULT 20 CHECK (total_overs > 0),
			current_over INT NOT NULL DEFAULT 0,
			current_ball INT NOT NULL DEFAULT 0 CHECK (current_ball BETWEEN 0 AND 6),
			score INT NOT NULL DEFAULT 0,
			wickets INT NOT NULL DEFAULT 0,
			balls_bowled INT NOT NULL DEFAULT 0,
			run_rate NUMERIC(6,2) NOT NULL DEFAULT 0,
			last_ball_result VARCHAR(50),
			started_at TIMESTAMPTZ,
			ended_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_updated TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_matches_single_live ON matches(status) WHERE status = 'live';
		`,
	},
	{
		name: "predictions table",
		sql: `
		CREATE TABLE IF NOT EXISTS predictions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			match_id BIGINT NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
			ball_over INT NOT NULL,
			ball_number INT NOT NULL,
			ball_label VARCHAR(10) NOT NULL,
			category VARCHAR(20) NOT NULL,
			actual_result VARCHAR(50) NOT NULL,
			stake BIGINT NOT NULL CHECK (stake > 0),
			winnings BIGINT NOT NULL DEFAULT 0,
			is_winner BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_predictions_user_time ON predictions(user_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_predictions_match ON predictions(match_id);
		`,
	},
	{
		name: "transactions table",
		sql: `
		CREATE TABLE IF NOT EXISTS transactions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			amount BIGINT NOT NULL,
			type VARCHAR(50) NOT NULL,
			description TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_user_time ON transactions(user_id, created_at DESC);
		`,
	},
}

// Migrate creates the schema if it does not exist.
func Migrate(ctx context.Context, db DBTX) error {
	log.Info().Msg("Running database migrations...")

	for i, m := range migrations {
		if _, err := db.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %d (%s): %w", i+1, m.name, err)
		}
		log.Info().Int("migration", i+1).Str("name", m.name).Msg("Migration applied")
	}

	log.Info().Msg("All migrations completed successfully")
	return nil
}
