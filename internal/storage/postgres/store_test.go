package postgres

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"ammcore/internal/amm"
	"ammcore/internal/ledger"
	"ammcore/internal/model"
	"ammcore/internal/safemath"
	"ammcore/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("AMM_PG_DSN")
	if dsn == "" {
		t.Skip("AMM_PG_DSN not set")
	}
	ctx := context.Background()
	store, err := NewStore(ctx, dsn, Options{MaxRetries: 3, RetryBackoff: 10 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(store.Close)
	_, err = store.Migrate(ctx)
	require.NoError(t, err)
	return store
}

func randomAddress(t *testing.T) common.Address {
	t.Helper()
	var addr common.Address
	_, err := rand.Read(addr[:])
	require.NoError(t, err)
	return addr
}

func randomPool(t *testing.T) model.PoolRecord {
	t.Helper()
	var id common.Hash
	_, err := rand.Read(id[:])
	require.NoError(t, err)
	now := time.Now().UTC().Truncate(time.Microsecond)
	return model.PoolRecord{
		ID:        id,
		AssetA:    randomAddress(t),
		AssetB:    randomAddress(t),
		Custody:   common.BytesToAddress(id[12:]),
		State:     amm.CreatePool(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	applied, err := store.Migrate(context.Background())
	require.NoError(t, err)
	require.Zero(t, applied)
}

func TestPoolRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	rec := randomPool(t)

	require.NoError(t, store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.InsertPool(ctx, rec)
	}))

	err := store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.InsertPool(ctx, rec)
	})
	require.ErrorIs(t, err, storage.ErrPoolExists)

	rec.State = amm.Pool{ReserveA: math.MaxUint64, ReserveB: 7, LPSupply: 1 << 40}
	require.NoError(t, store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		loaded, err := tx.LoadPool(ctx, rec.ID)
		if err != nil {
			return err
		}
		loaded.State = rec.State
		return tx.SavePool(ctx, loaded)
	}))

	got, err := store.Pool(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec.State, got.State)
	require.Equal(t, rec.AssetA, got.AssetA)
	require.Equal(t, rec.Custody, got.Custody)
}

func TestPoolNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Pool(context.Background(), common.Hash{})
	require.ErrorIs(t, err, storage.ErrPoolNotFound)
}

func TestTransferGuardsBalance(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	alice, bob, asset := randomAddress(t), randomAddress(t), randomAddress(t)

	require.NoError(t, store.Credit(ctx, alice, asset, 50))

	err := store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.Transfer(ctx, alice, bob, asset, 51)
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	require.NoError(t, store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.Transfer(ctx, alice, bob, asset, 20)
	}))

	balance, err := store.Balance(ctx, alice, asset)
	require.NoError(t, err)
	require.Equal(t, uint64(30), balance)
	balance, err = store.Balance(ctx, bob, asset)
	require.NoError(t, err)
	require.Equal(t, uint64(20), balance)
}

func TestFailedGroupRollsBack(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	alice, bob, asset := randomAddress(t), randomAddress(t), randomAddress(t)
	require.NoError(t, store.Credit(ctx, alice, asset, 10))

	boom := errors.New("boom")
	err := store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.Transfer(ctx, alice, bob, asset, 10); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	balance, err := store.Balance(ctx, alice, asset)
	require.NoError(t, err)
	require.Equal(t, uint64(10), balance)
}

func TestCreditOverflow(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	alice, asset := randomAddress(t), randomAddress(t)

	require.NoError(t, store.Credit(ctx, alice, asset, math.MaxUint64))
	err := store.Credit(ctx, alice, asset, 1)
	require.ErrorIs(t, err, safemath.ErrOverflow)
}

func TestPutEvents(t *testing.T) {
	store := openTestStore(t)
	rec := randomPool(t)
	err := store.PutEvents(context.Background(), []model.PoolEvent{
		{Kind: model.EventPoolCreated, PoolID: rec.ID, Timestamp: 1},
		{Kind: model.EventSwap, PoolID: rec.ID, AmountIn: 100, AmountOut: 90, Timestamp: 2},
	})
	require.NoError(t, err)

	var count int
	err = store.pool.QueryRow(context.Background(), `SELECT count(*) FROM pool_events WHERE pool_id = $1`, rec.ID.Hex()).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestPutEventsHonorsCancellation(t *testing.T) {
	store := openTestStore(t)
	rec := randomPool(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.PutEvents(ctx, []model.PoolEvent{{Kind: model.EventSwap, PoolID: rec.ID, Timestamp: 1}})
	require.ErrorIs(t, err, context.Canceled)

	err = store.PutWindowMetrics(ctx, []model.PoolWindowMetrics{{PoolID: rec.ID, WindowSizeSecs: 60}})
	require.ErrorIs(t, err, context.Canceled)

	var count int
	err = store.pool.QueryRow(context.Background(), `SELECT count(*) FROM pool_events WHERE pool_id = $1`, rec.ID.Hex()).Scan(&count)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestWindowMetricsAndState(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	rec := randomPool(t)

	metrics := model.PoolWindowMetrics{
		PoolID:         rec.ID,
		WindowSizeSecs: 60,
		WindowStart:    120,
		WindowEnd:      180,
		SwapCount:      2,
		VolumeInA:      "340282366920938463463374607431768211455",
		VolumeInB:      "0",
		VolumeOutA:     "0",
		VolumeOutB:     "90",
		FeeA:           "1",
		FeeB:           "0",
		LPMinted:       "0",
		Close:          amm.Pool{ReserveA: 1100, ReserveB: 910, LPSupply: 1000},
	}
	require.NoError(t, store.PutWindowMetrics(ctx, []model.PoolWindowMetrics{metrics}))
	metrics.SwapCount = 3
	require.NoError(t, store.PutWindowMetrics(ctx, []model.PoolWindowMetrics{metrics}))

	var swaps int64
	err := store.pool.QueryRow(ctx, `SELECT swap_count FROM pool_window_metrics WHERE pool_id = $1`, rec.ID.Hex()).Scan(&swaps)
	require.NoError(t, err)
	require.Equal(t, int64(3), swaps)

	name := "report:" + rec.ID.Hex()
	_, ok, err := store.LoadState(ctx, name)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.SaveState(ctx, name, 179))
	ts, ok, err := store.LoadState(ctx, name)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(179), ts)
}
