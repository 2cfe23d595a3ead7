// Package exchange runs pool operations against a store so that each core
// state transition commits together with the ledger transfers it implies.
package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"ammcore/internal/amm"
	"ammcore/internal/model"
	"ammcore/internal/storage"
)

// Service is the calling boundary for pool operations.
type Service struct {
	store   storage.Store
	journal storage.Journal
	logger  *zap.Logger
	now     func() time.Time
}

// NewService builds a Service. A nil journal discards events.
func NewService(store storage.Store, journal storage.Journal, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if journal == nil {
		journal = storage.Discard{}
	}
	return &Service{
		store:   store,
		journal: journal,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreatePool registers an empty pool for the ordered pair (assetA, assetB).
func (s *Service) CreatePool(ctx context.Context, assetA, assetB common.Address) (model.PoolRecord, error) {
	if assetA == (common.Address{}) || assetB == (common.Address{}) {
		return model.PoolRecord{}, ErrZeroAsset
	}
	if assetA == assetB {
		return model.PoolRecord{}, ErrSameAsset
	}

	id := PoolID(assetA, assetB)
	now := s.now()
	rec := model.PoolRecord{
		ID:        id,
		AssetA:    assetA,
		AssetB:    assetB,
		Custody:   Custody(id),
		State:     amm.CreatePool(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.InsertPool(ctx, rec)
	})
	if err != nil {
		return model.PoolRecord{}, fmt.Errorf("create pool %s: %w", id.Hex(), err)
	}

	s.logger.Info("pool created",
		zap.String("pool", id.Hex()),
		zap.String("asset_a", assetA.Hex()),
		zap.String("asset_b", assetB.Hex()),
	)
	s.record(ctx, model.PoolEvent{
		Kind:      model.EventPoolCreated,
		PoolID:    id,
		Pool:      rec.State,
		Timestamp: uint64(now.Unix()),
	})
	return rec, nil
}

// ProvideLiquidity deposits amountA and amountB from provider into the pool
// and mints LP shares. The receipt carries the minted amount and the pool
// state after the deposit.
//
// Minting only raises the pool's LPSupply. No per-provider share balance is
// kept, so the returned receipt and its journal event are the only record of
// who owns the minted shares. There is no withdrawal path. The pool's own
// custody account cannot deposit.
func (s *Service) ProvideLiquidity(ctx context.Context, poolID common.Hash, provider common.Address, amountA, amountB uint64) (model.PoolEvent, error) {
	var event model.PoolEvent
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		rec, err := tx.LoadPool(ctx, poolID)
		if err != nil {
			return err
		}
		if provider == rec.Custody {
			return ErrCustodyAccount
		}
		next, minted, err := amm.ProvideLiquidity(rec.State, amountA, amountB)
		if err != nil {
			return err
		}
		if err := tx.Transfer(ctx, provider, rec.Custody, rec.AssetA, amountA); err != nil {
			return fmt.Errorf("transfer asset a: %w", err)
		}
		if err := tx.Transfer(ctx, provider, rec.Custody, rec.AssetB, amountB); err != nil {
			return fmt.Errorf("transfer asset b: %w", err)
		}

		now := s.now()
		rec.State = next
		rec.UpdatedAt = now
		if err := tx.SavePool(ctx, rec); err != nil {
			return err
		}

		event = model.PoolEvent{
			Kind:      model.EventDeposit,
			PoolID:    poolID,
			Account:   provider,
			AmountA:   amountA,
			AmountB:   amountB,
			LPMinted:  minted,
			Pool:      next,
			Timestamp: uint64(now.Unix()),
		}
		return nil
	})
	if err != nil {
		return model.PoolEvent{}, fmt.Errorf("provide liquidity to %s: %w", poolID.Hex(), err)
	}

	s.logger.Info("liquidity provided",
		zap.String("pool", poolID.Hex()),
		zap.String("provider", provider.Hex()),
		zap.Uint64("amount_a", amountA),
		zap.Uint64("amount_b", amountB),
		zap.Uint64("lp_minted", event.LPMinted),
	)
	s.record(ctx, event)
	return event, nil
}

// Swap trades amountIn of the input asset for the output asset. It fails with
// ErrSlippageExceeded, and changes nothing, when the output would be below
// minOut. The pool's own custody account cannot trade against it.
func (s *Service) Swap(ctx context.Context, poolID common.Hash, trader common.Address, amountIn uint64, dir amm.Direction, minOut uint64) (model.PoolEvent, error) {
	var event model.PoolEvent
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		rec, err := tx.LoadPool(ctx, poolID)
		if err != nil {
			return err
		}
		if trader == rec.Custody {
			return ErrCustodyAccount
		}
		next, amountOut, err := amm.Swap(rec.State, amountIn, dir)
		if err != nil {
			return err
		}
		if amountOut < minOut {
			return fmt.Errorf("%w: %d < %d", ErrSlippageExceeded, amountOut, minOut)
		}

		assetIn, assetOut := rec.Assets(dir)
		if err := tx.Transfer(ctx, trader, rec.Custody, assetIn, amountIn); err != nil {
			return fmt.Errorf("transfer input: %w", err)
		}

		now := s.now()
		rec.State = next
		rec.UpdatedAt = now
		if err := tx.SavePool(ctx, rec); err != nil {
			return err
		}
		if err := tx.Transfer(ctx, rec.Custody, trader, assetOut, amountOut); err != nil {
			return fmt.Errorf("transfer output: %w", err)
		}

		event = model.PoolEvent{
			Kind:      model.EventSwap,
			PoolID:    poolID,
			Account:   trader,
			Direction: dir.String(),
			AmountIn:  amountIn,
			AmountOut: amountOut,
			Pool:      next,
			Timestamp: uint64(now.Unix()),
		}
		return nil
	})
	if err != nil {
		return model.PoolEvent{}, fmt.Errorf("swap on %s: %w", poolID.Hex(), err)
	}

	s.logger.Info("swap executed",
		zap.String("pool", poolID.Hex()),
		zap.String("trader", trader.Hex()),
		zap.Stringer("direction", dir),
		zap.Uint64("amount_in", amountIn),
		zap.Uint64("amount_out", event.AmountOut),
	)
	s.record(ctx, event)
	return event, nil
}

// Quote previews a swap against the current pool state without changing it.
func (s *Service) Quote(ctx context.Context, poolID common.Hash, amountIn uint64, dir amm.Direction) (uint64, amm.Pool, error) {
	rec, err := s.store.Pool(ctx, poolID)
	if err != nil {
		return 0, amm.Pool{}, fmt.Errorf("quote on %s: %w", poolID.Hex(), err)
	}
	next, amountOut, err := amm.Swap(rec.State, amountIn, dir)
	if err != nil {
		return 0, amm.Pool{}, fmt.Errorf("quote on %s: %w", poolID.Hex(), err)
	}
	return amountOut, next, nil
}

func (s *Service) Pool(ctx context.Context, poolID common.Hash) (model.PoolRecord, error) {
	return s.store.Pool(ctx, poolID)
}

// record appends a committed event. The operation has already committed, so
// a journal failure is only logged.
func (s *Service) record(ctx context.Context, event model.PoolEvent) {
	if err := s.journal.PutEvents(ctx, []model.PoolEvent{event}); err != nil {
		s.logger.Warn("journal append failed",
			zap.String("pool", event.PoolID.Hex()),
			zap.String("kind", string(event.Kind)),
			zap.Error(err),
		)
	}
}
