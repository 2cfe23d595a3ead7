package postgres

import (
	"context"
	"fmt"
)

type migration struct {
	Version     int
	Description string
	Up          string
}

// Amounts are unsigned 64-bit values; NUMERIC(20,0) with an explicit upper
// bound keeps the database from holding anything the core cannot represent.
var migrations = []migration{
	{
		Version:     1,
		Description: "pools and balances",
		Up: `
		CREATE TABLE IF NOT EXISTS pools (
			pool_id TEXT PRIMARY KEY,
			asset_a TEXT NOT NULL,
			asset_b TEXT NOT NULL,
			custody TEXT NOT NULL,
			reserve_a NUMERIC(20,0) NOT NULL CHECK (reserve_a BETWEEN 0 AND 18446744073709551615),
			reserve_b NUMERIC(20,0) NOT NULL CHECK (reserve_b BETWEEN 0 AND 18446744073709551615),
			lp_supply NUMERIC(20,0) NOT NULL CHECK (lp_supply BETWEEN 0 AND 18446744073709551615),
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS balances (
			account TEXT NOT NULL,
			asset TEXT NOT NULL,
			amount NUMERIC(20,0) NOT NULL CHECK (amount BETWEEN 0 AND 18446744073709551615),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (account, asset)
		);
		`,
	},
	{
		Version:     2,
		Description: "pool event journal",
		Up: `
		CREATE TABLE IF NOT EXISTS pool_events (
			id BIGSERIAL PRIMARY KEY,
			pool_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			ts BIGINT NOT NULL,
			payload JSONB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_pool_events_pool_ts ON pool_events(pool_id, ts);
		`,
	},
	{
		Version:     3,
		Description: "report windows and state",
		Up: `
		CREATE TABLE IF NOT EXISTS pool_window_metrics (
			pool_id TEXT NOT NULL,
			window_size_seconds BIGINT NOT NULL,
			window_start_ts BIGINT NOT NULL,
			window_end_ts BIGINT NOT NULL,
			deposit_count BIGINT NOT NULL,
			swap_count BIGINT NOT NULL,
			volume_in_a NUMERIC NOT NULL,
			volume_in_b NUMERIC NOT NULL,
			volume_out_a NUMERIC NOT NULL,
			volume_out_b NUMERIC NOT NULL,
			fee_a NUMERIC NOT NULL,
			fee_b NUMERIC NOT NULL,
			lp_minted NUMERIC NOT NULL,
			close_reserve_a NUMERIC(20,0) NOT NULL,
			close_reserve_b NUMERIC(20,0) NOT NULL,
			close_lp_supply NUMERIC(20,0) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (pool_id, window_size_seconds, window_start_ts)
		);

		CREATE TABLE IF NOT EXISTS report_state (
			name TEXT PRIMARY KEY,
			last_reported_ts BIGINT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		`,
	},
}

// Migrate applies every migration newer than the recorded schema version.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	if _, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return 0, fmt.Errorf("create migrations table: %w", err)
	}

	var current int
	if err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin migrations: %w", err)
	}
	defer tx.Rollback(ctx)

	applied := 0
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if _, err := tx.Exec(ctx, m.Up); err != nil {
			return 0, fmt.Errorf("apply migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`,
			m.Version, m.Description,
		); err != nil {
			return 0, fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		applied++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit migrations: %w", err)
	}
	return applied, nil
}
