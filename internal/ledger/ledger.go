// Package ledger defines the asset-transfer capability the exchange relies on
// and an in-memory book that implements it.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"ammcore/internal/safemath"
)

var ErrInsufficientFunds = errors.New("insufficient funds")

// Ledger moves amount of asset from one account to another.
type Ledger interface {
	Transfer(ctx context.Context, from, to, asset common.Address, amount uint64) error
}

// Balances is an account -> asset -> amount book.
type Balances map[common.Address]map[common.Address]uint64

func (b Balances) Balance(account, asset common.Address) uint64 {
	return b[account][asset]
}

// Credit adds amount of asset to account.
func (b Balances) Credit(account, asset common.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	next, err := safemath.AddU64(b[account][asset], amount)
	if err != nil {
		return fmt.Errorf("credit %s: %w", account.Hex(), err)
	}
	if b[account] == nil {
		b[account] = make(map[common.Address]uint64)
	}
	b[account][asset] = next
	return nil
}

// Transfer implements Ledger. Both sides are checked before either is written.
func (b Balances) Transfer(_ context.Context, from, to, asset common.Address, amount uint64) error {
	if amount == 0 || from == to {
		return nil
	}
	have := b[from][asset]
	if have < amount {
		return fmt.Errorf("%w: %s holds %d of %s, needs %d", ErrInsufficientFunds, from.Hex(), have, asset.Hex(), amount)
	}
	credited, err := safemath.AddU64(b[to][asset], amount)
	if err != nil {
		return fmt.Errorf("credit %s: %w", to.Hex(), err)
	}

	b[from][asset] = have - amount
	if b[to] == nil {
		b[to] = make(map[common.Address]uint64)
	}
	b[to][asset] = credited
	return nil
}

// Clone returns a deep copy.
func (b Balances) Clone() Balances {
	out := make(Balances, len(b))
	for account, assets := range b {
		copied := make(map[common.Address]uint64, len(assets))
		for asset, amount := range assets {
			copied[asset] = amount
		}
		out[account] = copied
	}
	return out
}
