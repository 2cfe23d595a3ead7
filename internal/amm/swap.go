package amm

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"ammcore/internal/safemath"
)

// fee: 0.3% => multiplier 997/1000, retained by the pool
var (
	feeMul = uint256.NewInt(997)
	feeDen = uint256.NewInt(1000)
)

// Direction selects which asset a swap takes in.
type Direction uint8

const (
	AToB Direction = iota
	BToA
)

func (d Direction) String() string {
	switch d {
	case AToB:
		return "a-to-b"
	case BToA:
		return "b-to-a"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// ParseDirection accepts "a-to-b", "atob" or "a2b" and "b-to-a", "btoa" or
// "b2a", ignoring case and surrounding space. Anything else fails with
// ErrInvalidDirection.
func ParseDirection(input string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "a-to-b", "atob", "a2b":
		return AToB, nil
	case "b-to-a", "btoa", "b2a":
		return BToA, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, input)
	}
}

// GetAmountOut computes the constant-product output for amountIn net of the
// trading fee:
//
//	out = in*997*reserveOut / (reserveIn*1000 + in*997)
//
// All intermediate values are 256-bit.
func GetAmountOut(amountIn, reserveIn, reserveOut uint64) (uint64, error) {
	if amountIn == 0 {
		return 0, ErrInvalidAmount
	}
	if reserveIn == 0 || reserveOut == 0 {
		return 0, ErrEmptyPool
	}

	inWithFee, err := safemath.Mul(safemath.Widen(amountIn), feeMul)
	if err != nil {
		return 0, err
	}
	numerator, err := safemath.Mul(inWithFee, safemath.Widen(reserveOut))
	if err != nil {
		return 0, err
	}
	scaledIn, err := safemath.Mul(safemath.Widen(reserveIn), feeDen)
	if err != nil {
		return 0, err
	}
	denominator, err := safemath.Add(scaledIn, inWithFee)
	if err != nil {
		return 0, err
	}
	out, err := safemath.Div(numerator, denominator)
	if err != nil {
		return 0, err
	}
	return safemath.Narrow(out)
}

// Reserves returns the (in, out) reserves for a swap in direction d.
func (p Pool) Reserves(d Direction) (uint64, uint64) {
	if d == BToA {
		return p.ReserveB, p.ReserveA
	}
	return p.ReserveA, p.ReserveB
}

// Swap trades amountIn of the input asset for the output asset. The input
// reserve grows by amountIn, the output reserve shrinks by the returned amount,
// and the output reserve is never drained to zero.
func Swap(pool Pool, amountIn uint64, dir Direction) (Pool, uint64, error) {
	if dir != AToB && dir != BToA {
		return pool, 0, fmt.Errorf("%w: %s", ErrInvalidDirection, dir)
	}
	if amountIn == 0 {
		return pool, 0, ErrInvalidAmount
	}

	reserveIn, reserveOut := pool.Reserves(dir)
	if reserveIn == 0 || reserveOut == 0 {
		return pool, 0, ErrEmptyPool
	}
	if err := pool.Validate(); err != nil {
		return pool, 0, err
	}

	amountOut, err := GetAmountOut(amountIn, reserveIn, reserveOut)
	if err != nil {
		return pool, 0, err
	}
	if amountOut >= reserveOut {
		return pool, 0, fmt.Errorf("%w: output %d against reserve %d", ErrInsufficientLiquidity, amountOut, reserveOut)
	}

	nextIn, err := safemath.AddU64(reserveIn, amountIn)
	if err != nil {
		return pool, 0, err
	}
	nextOut, err := safemath.SubU64(reserveOut, amountOut)
	if err != nil {
		return pool, 0, err
	}

	next := pool
	if dir == AToB {
		next.ReserveA, next.ReserveB = nextIn, nextOut
	} else {
		next.ReserveB, next.ReserveA = nextIn, nextOut
	}
	return next, amountOut, nil
}
