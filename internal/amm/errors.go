package amm

import (
	"errors"
	"fmt"

	"ammcore/internal/safemath"
)

var (
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidDirection      = errors.New("invalid swap direction")
	ErrArithmeticOverflow    = safemath.ErrOverflow
	ErrDivisionByZero        = safemath.ErrDivisionByZero
	ErrEmptyPool             = fmt.Errorf("empty pool: %w", safemath.ErrDivisionByZero)
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrInternalInconsistency = errors.New("internal inconsistency")
)
