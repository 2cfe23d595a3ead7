package report

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"ammcore/internal/amm"
	"ammcore/internal/model"
	"ammcore/internal/safemath"
)

// Accumulator holds aggregate values for a pool window. Sums are kept in the
// 256-bit domain so a busy window cannot overflow them.
type Accumulator struct {
	PoolID       common.Hash
	WindowStart  uint64
	WindowEnd    uint64
	DepositCount uint64
	SwapCount    uint64
	VolumeInA    *uint256.Int
	VolumeInB    *uint256.Int
	VolumeOutA   *uint256.Int
	VolumeOutB   *uint256.Int
	FeeA         *uint256.Int
	FeeB         *uint256.Int
	LPMinted     *uint256.Int
	Close        amm.Pool
	LastTS       uint64
}

func NewAccumulator(event model.PoolEvent, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		PoolID:      event.PoolID,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		VolumeInA:   new(uint256.Int),
		VolumeInB:   new(uint256.Int),
		VolumeOutA:  new(uint256.Int),
		VolumeOutB:  new(uint256.Int),
		FeeA:        new(uint256.Int),
		FeeB:        new(uint256.Int),
		LPMinted:    new(uint256.Int),
		Close:       event.Pool,
		LastTS:      event.Timestamp,
	}
}

func (a *Accumulator) AddEvent(event model.PoolEvent) error {
	switch event.Kind {
	case model.EventDeposit:
		a.DepositCount++
		a.LPMinted.Add(a.LPMinted, uint256.NewInt(event.LPMinted))
	case model.EventSwap:
		if err := a.applySwap(event); err != nil {
			return err
		}
	case model.EventPoolCreated:
	default:
		return fmt.Errorf("unknown event kind %q", event.Kind)
	}

	if event.Timestamp >= a.LastTS {
		a.LastTS = event.Timestamp
		a.Close = event.Pool
	}
	return nil
}

func (a *Accumulator) applySwap(event model.PoolEvent) error {
	dir, err := amm.ParseDirection(event.Direction)
	if err != nil {
		return err
	}
	fee, err := FeeRetained(event.AmountIn)
	if err != nil {
		return err
	}

	amountIn := uint256.NewInt(event.AmountIn)
	amountOut := uint256.NewInt(event.AmountOut)
	if dir == amm.AToB {
		a.VolumeInA.Add(a.VolumeInA, amountIn)
		a.VolumeOutB.Add(a.VolumeOutB, amountOut)
		a.FeeA.Add(a.FeeA, uint256.NewInt(fee))
	} else {
		a.VolumeInB.Add(a.VolumeInB, amountIn)
		a.VolumeOutA.Add(a.VolumeOutA, amountOut)
		a.FeeB.Add(a.FeeB, uint256.NewInt(fee))
	}
	a.SwapCount++
	return nil
}

// Metrics renders the accumulator for output.
func (a *Accumulator) Metrics(windowSeconds uint64) model.PoolWindowMetrics {
	return model.PoolWindowMetrics{
		PoolID:         a.PoolID,
		WindowSizeSecs: windowSeconds,
		WindowStart:    a.WindowStart,
		WindowEnd:      a.WindowEnd,
		DepositCount:   a.DepositCount,
		SwapCount:      a.SwapCount,
		VolumeInA:      a.VolumeInA.ToBig().String(),
		VolumeInB:      a.VolumeInB.ToBig().String(),
		VolumeOutA:     a.VolumeOutA.ToBig().String(),
		VolumeOutB:     a.VolumeOutB.ToBig().String(),
		FeeA:           a.FeeA.ToBig().String(),
		FeeB:           a.FeeB.ToBig().String(),
		LPMinted:       a.LPMinted.ToBig().String(),
		Close:          a.Close,
	}
}

// FeeRetained is the part of amountIn that the swap formula keeps out of
// the effective input: amountIn - floor(amountIn*997/1000).
func FeeRetained(amountIn uint64) (uint64, error) {
	effective, err := safemath.MulDiv(amountIn, 997, 1000)
	if err != nil {
		return 0, err
	}
	return amountIn - effective, nil
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}
