// Package amm implements the reserve and share accounting of a two-asset
// constant-product pool. Every operation takes a Pool by value and returns the
// next Pool only after all checks have passed, so a failed call never leaves a
// partially updated pool behind.
package amm

import (
	"fmt"

	"github.com/holiman/uint256"

	"ammcore/internal/safemath"
)

// Phase is the lifecycle state of a pool.
type Phase uint8

const (
	PhaseEmpty Phase = iota
	PhaseActive
)

func (p Phase) String() string {
	switch p {
	case PhaseEmpty:
		return "empty"
	case PhaseActive:
		return "active"
	default:
		return "unknown"
	}
}

// Pool holds the reserves of both assets and the outstanding LP supply.
type Pool struct {
	ReserveA uint64 `json:"reserve_a,string"`
	ReserveB uint64 `json:"reserve_b,string"`
	LPSupply uint64 `json:"lp_supply,string"`
}

// CreatePool returns a pool that has never received a deposit.
func CreatePool() Pool {
	return Pool{}
}

func (p Pool) Phase() Phase {
	if p.LPSupply == 0 {
		return PhaseEmpty
	}
	return PhaseActive
}

// Validate checks the lifecycle invariants: an empty pool holds no reserves
// and an active pool holds both.
func (p Pool) Validate() error {
	switch p.Phase() {
	case PhaseEmpty:
		if p.ReserveA != 0 || p.ReserveB != 0 {
			return fmt.Errorf("%w: reserves (%d, %d) without lp supply", ErrInternalInconsistency, p.ReserveA, p.ReserveB)
		}
	case PhaseActive:
		if p.ReserveA == 0 || p.ReserveB == 0 {
			return fmt.Errorf("%w: lp supply %d with reserves (%d, %d)", ErrInternalInconsistency, p.LPSupply, p.ReserveA, p.ReserveB)
		}
	}
	return nil
}

// Product returns reserveA * reserveB. Two 64-bit factors always fit.
func (p Pool) Product() *uint256.Int {
	return new(uint256.Int).Mul(safemath.Widen(p.ReserveA), safemath.Widen(p.ReserveB))
}
