// Package safemath provides checked integer arithmetic for reserve and share
// accounting. Products of two 64-bit quantities are evaluated in a 256-bit
// domain and only narrowed back to 64 bits after an explicit range check.
package safemath

import (
	"errors"

	gmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/holiman/uint256"
)

var (
	ErrOverflow       = errors.New("arithmetic overflow")
	ErrDivisionByZero = errors.New("division by zero")
)

// Widen lifts a 64-bit quantity into the 256-bit domain.
func Widen(x uint64) *uint256.Int {
	return uint256.NewInt(x)
}

// Mul returns a*b, failing if the product exceeds 256 bits.
func Mul(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// Add returns a+b, failing if the sum exceeds 256 bits.
func Add(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// Div returns floor(a/b). uint256 silently yields zero for a zero divisor, so
// the divisor is checked first.
func Div(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, ErrDivisionByZero
	}
	return new(uint256.Int).Div(a, b), nil
}

// MulDiv returns floor(a*b/c) narrowed to 64 bits.
func MulDiv(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, ErrDivisionByZero
	}
	num, err := Mul(Widen(a), Widen(b))
	if err != nil {
		return 0, err
	}
	q, err := Div(num, Widen(c))
	if err != nil {
		return 0, err
	}
	return Narrow(q)
}

// Narrow converts x back to 64 bits. It never truncates.
func Narrow(x *uint256.Int) (uint64, error) {
	if !x.IsUint64() {
		return 0, ErrOverflow
	}
	return x.Uint64(), nil
}

// Sqrt returns floor(sqrt(x)).
func Sqrt(x *uint256.Int) *uint256.Int {
	return new(uint256.Int).Sqrt(x)
}

// AddU64 returns a+b or ErrOverflow.
func AddU64(a, b uint64) (uint64, error) {
	sum, overflow := gmath.SafeAdd(a, b)
	if overflow {
		return 0, ErrOverflow
	}
	return sum, nil
}

// SubU64 returns a-b or ErrOverflow when b > a.
func SubU64(a, b uint64) (uint64, error) {
	diff, underflow := gmath.SafeSub(a, b)
	if underflow {
		return 0, ErrOverflow
	}
	return diff, nil
}
