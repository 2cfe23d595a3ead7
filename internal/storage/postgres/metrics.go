package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"ammcore/internal/model"
)

// PutWindowMetrics upserts report windows keyed by pool, window size and
// window start.
func (s *Store) PutWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pool_window_metrics (
				pool_id, window_size_seconds, window_start_ts, window_end_ts,
				deposit_count, swap_count, volume_in_a, volume_in_b, volume_out_a, volume_out_b,
				fee_a, fee_b, lp_minted, close_reserve_a, close_reserve_b, close_lp_supply, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7::numeric,$8::numeric,$9::numeric,$10::numeric,
				$11::numeric,$12::numeric,$13::numeric,$14::numeric,$15::numeric,$16::numeric,now())
			ON CONFLICT (pool_id, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				deposit_count = EXCLUDED.deposit_count,
				swap_count = EXCLUDED.swap_count,
				volume_in_a = EXCLUDED.volume_in_a,
				volume_in_b = EXCLUDED.volume_in_b,
				volume_out_a = EXCLUDED.volume_out_a,
				volume_out_b = EXCLUDED.volume_out_b,
				fee_a = EXCLUDED.fee_a,
				fee_b = EXCLUDED.fee_b,
				lp_minted = EXCLUDED.lp_minted,
				close_reserve_a = EXCLUDED.close_reserve_a,
				close_reserve_b = EXCLUDED.close_reserve_b,
				close_lp_supply = EXCLUDED.close_lp_supply,
				updated_at = now()
		`,
			m.PoolID.Hex(),
			int64(m.WindowSizeSecs),
			int64(m.WindowStart),
			int64(m.WindowEnd),
			int64(m.DepositCount),
			int64(m.SwapCount),
			m.VolumeInA,
			m.VolumeInB,
			m.VolumeOutA,
			m.VolumeOutB,
			m.FeeA,
			m.FeeB,
			m.LPMinted,
			formatAmount(m.Close.ReserveA),
			formatAmount(m.Close.ReserveB),
			formatAmount(m.Close.LPSupply),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range metrics {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_reported_ts FROM report_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(ts), true, nil
}

func (s *Store) SaveState(ctx context.Context, name string, ts uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO report_state (name, last_reported_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_reported_ts = EXCLUDED.last_reported_ts, updated_at = now()
	`, name, int64(ts))
	return err
}
