package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ammcore/internal/ledger"
	"ammcore/internal/model"
	"ammcore/internal/safemath"
	"ammcore/internal/storage"
)

// Options controls transaction retries.
type Options struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

// Store provides Postgres persistence for pools, balances and the event
// journal.
type Store struct {
	pool *pgxpool.Pool
	opts Options
}

func NewStore(ctx context.Context, dsn string, opts Options) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, opts: opts}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InTx runs fn in one database transaction. Pools loaded through the Tx are
// row-locked, so operations on the same pool serialize. Serialization
// failures and deadlocks rerun fn from the start.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	return withRetry(ctx, s.opts.MaxRetries, s.opts.RetryBackoff, isRetryable, func(ctx context.Context) error {
		return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
			return fn(ctx, &pgTx{tx: tx})
		})
	})
}

func (s *Store) Pool(ctx context.Context, id common.Hash) (model.PoolRecord, error) {
	return loadPool(ctx, s.pool, id, false)
}

func (s *Store) Balance(ctx context.Context, account, asset common.Address) (uint64, error) {
	var amount string
	row := s.pool.QueryRow(ctx, `SELECT amount::text FROM balances WHERE account=$1 AND asset=$2`, account.Hex(), asset.Hex())
	if err := row.Scan(&amount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return parseAmount(amount)
}

func (s *Store) Credit(ctx context.Context, account, asset common.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	return credit(ctx, s.pool, account, asset, amount)
}

// PutEvents implements storage.Journal.
func (s *Store) PutEvents(ctx context.Context, events []model.PoolEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal pool event: %w", err)
		}
		batch.Queue(`INSERT INTO pool_events (pool_id, kind, ts, payload) VALUES ($1, $2, $3, $4)`,
			event.PoolID.Hex(),
			string(event.Kind),
			int64(event.Timestamp),
			payload,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LoadPool(ctx context.Context, id common.Hash) (model.PoolRecord, error) {
	return loadPool(ctx, t.tx, id, true)
}

func (t *pgTx) InsertPool(ctx context.Context, pool model.PoolRecord) error {
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO pools (
			pool_id, asset_a, asset_b, custody, reserve_a, reserve_b, lp_supply, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8, $9)
		ON CONFLICT (pool_id) DO NOTHING
	`,
		pool.ID.Hex(),
		pool.AssetA.Hex(),
		pool.AssetB.Hex(),
		pool.Custody.Hex(),
		formatAmount(pool.State.ReserveA),
		formatAmount(pool.State.ReserveB),
		formatAmount(pool.State.LPSupply),
		pool.CreatedAt,
		pool.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrPoolExists
	}
	return nil
}

func (t *pgTx) SavePool(ctx context.Context, pool model.PoolRecord) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE pools SET
			reserve_a = $2::numeric,
			reserve_b = $3::numeric,
			lp_supply = $4::numeric,
			updated_at = $5
		WHERE pool_id = $1
	`,
		pool.ID.Hex(),
		formatAmount(pool.State.ReserveA),
		formatAmount(pool.State.ReserveB),
		formatAmount(pool.State.LPSupply),
		pool.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrPoolNotFound
	}
	return nil
}

// Transfer debits with a guarded update so a short balance never goes
// negative, then credits the recipient.
func (t *pgTx) Transfer(ctx context.Context, from, to, asset common.Address, amount uint64) error {
	if amount == 0 || from == to {
		return nil
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE balances SET amount = amount - $3::numeric, updated_at = now()
		WHERE account = $1 AND asset = $2 AND amount >= $3::numeric
	`, from.Hex(), asset.Hex(), formatAmount(amount))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s needs %d of %s", ledger.ErrInsufficientFunds, from.Hex(), amount, asset.Hex())
	}
	return credit(ctx, t.tx, to, asset, amount)
}

func credit(ctx context.Context, q querier, account, asset common.Address, amount uint64) error {
	_, err := q.Exec(ctx, `
		INSERT INTO balances (account, asset, amount, updated_at)
		VALUES ($1, $2, $3::numeric, now())
		ON CONFLICT (account, asset) DO UPDATE
		SET amount = balances.amount + EXCLUDED.amount, updated_at = now()
	`, account.Hex(), asset.Hex(), formatAmount(amount))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == sqlStateCheckViolation {
		return fmt.Errorf("credit %s: %w", account.Hex(), safemath.ErrOverflow)
	}
	return err
}

func loadPool(ctx context.Context, q querier, id common.Hash, forUpdate bool) (model.PoolRecord, error) {
	query := `
		SELECT asset_a, asset_b, custody, reserve_a::text, reserve_b::text, lp_supply::text, created_at, updated_at
		FROM pools WHERE pool_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		assetA, assetB, custody      string
		reserveA, reserveB, lpSupply string
	)
	rec := model.PoolRecord{ID: id}
	row := q.QueryRow(ctx, query, id.Hex())
	if err := row.Scan(&assetA, &assetB, &custody, &reserveA, &reserveB, &lpSupply, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PoolRecord{}, storage.ErrPoolNotFound
		}
		return model.PoolRecord{}, err
	}

	rec.AssetA = common.HexToAddress(assetA)
	rec.AssetB = common.HexToAddress(assetB)
	rec.Custody = common.HexToAddress(custody)

	var err error
	if rec.State.ReserveA, err = parseAmount(reserveA); err != nil {
		return model.PoolRecord{}, err
	}
	if rec.State.ReserveB, err = parseAmount(reserveB); err != nil {
		return model.PoolRecord{}, err
	}
	if rec.State.LPSupply, err = parseAmount(lpSupply); err != nil {
		return model.PoolRecord{}, err
	}
	return rec, nil
}

func formatAmount(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func parseAmount(v string) (uint64, error) {
	parsed, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", v, err)
	}
	return parsed, nil
}
