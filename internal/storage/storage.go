package storage

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"ammcore/internal/ledger"
	"ammcore/internal/model"
)

var (
	ErrPoolNotFound = errors.New("pool not found")
	ErrPoolExists   = errors.New("pool already exists")
)

// Tx is the unit of work a pool operation runs in. Its ledger transfers and
// pool writes become visible together or not at all.
type Tx interface {
	ledger.Ledger
	// LoadPool reads a pool and holds it against concurrent writers until
	// the transaction ends.
	LoadPool(ctx context.Context, id common.Hash) (model.PoolRecord, error)
	InsertPool(ctx context.Context, pool model.PoolRecord) error
	SavePool(ctx context.Context, pool model.PoolRecord) error
}

// Store owns pool records and balances.
type Store interface {
	// InTx runs fn in a transaction, committing only if fn returns nil.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Pool(ctx context.Context, id common.Hash) (model.PoolRecord, error)
	Balance(ctx context.Context, account, asset common.Address) (uint64, error)
	Credit(ctx context.Context, account, asset common.Address, amount uint64) error
	Close()
}

// Journal is a sink for committed pool events.
type Journal interface {
	PutEvents(ctx context.Context, events []model.PoolEvent) error
}
