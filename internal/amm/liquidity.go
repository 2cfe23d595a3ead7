package amm

import (
	"github.com/holiman/uint256"

	"ammcore/internal/safemath"
)

// ProvideLiquidity deposits amountA and amountB into the pool and returns the
// updated pool together with the LP shares minted for the deposit.
//
// Shares are priced off the more constrained side. Whatever the depositor
// supplies beyond the current reserve ratio stays in the pool unrewarded.
func ProvideLiquidity(pool Pool, amountA, amountB uint64) (Pool, uint64, error) {
	if amountA == 0 || amountB == 0 {
		return pool, 0, ErrInvalidAmount
	}
	if err := pool.Validate(); err != nil {
		return pool, 0, err
	}

	minted, err := sharesFor(pool, amountA, amountB)
	if err != nil {
		return pool, 0, err
	}

	next := pool
	if next.ReserveA, err = safemath.AddU64(pool.ReserveA, amountA); err != nil {
		return pool, 0, err
	}
	if next.ReserveB, err = safemath.AddU64(pool.ReserveB, amountB); err != nil {
		return pool, 0, err
	}
	if next.LPSupply, err = safemath.AddU64(pool.LPSupply, minted); err != nil {
		return pool, 0, err
	}
	return next, minted, nil
}

// sharesFor expects a validated pool.
func sharesFor(pool Pool, amountA, amountB uint64) (uint64, error) {
	if pool.LPSupply == 0 {
		product, err := safemath.Mul(safemath.Widen(amountA), safemath.Widen(amountB))
		if err != nil {
			return 0, err
		}
		return safemath.Narrow(safemath.Sqrt(product))
	}

	fromA, err := proportional(amountA, pool.LPSupply, pool.ReserveA)
	if err != nil {
		return 0, err
	}
	fromB, err := proportional(amountB, pool.LPSupply, pool.ReserveB)
	if err != nil {
		return 0, err
	}
	// Narrow only the minimum: one side may exceed 64 bits while the
	// binding side still fits.
	if fromB.Lt(fromA) {
		return safemath.Narrow(fromB)
	}
	return safemath.Narrow(fromA)
}

func proportional(amount, supply, reserve uint64) (*uint256.Int, error) {
	num, err := safemath.Mul(safemath.Widen(amount), safemath.Widen(supply))
	if err != nil {
		return nil, err
	}
	return safemath.Div(num, safemath.Widen(reserve))
}
