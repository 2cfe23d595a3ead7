package model

import (
	"github.com/ethereum/go-ethereum/common"

	"ammcore/internal/amm"
)

// PoolWindowMetrics stores aggregated activity for a pool window.
type PoolWindowMetrics struct {
	PoolID         common.Hash `json:"pool_id"`
	WindowSizeSecs uint64      `json:"window_size_seconds"`
	WindowStart    uint64      `json:"window_start_ts"`
	WindowEnd      uint64      `json:"window_end_ts"`
	DepositCount   uint64      `json:"deposit_count"`
	SwapCount      uint64      `json:"swap_count"`
	VolumeInA      string      `json:"volume_in_a"`
	VolumeInB      string      `json:"volume_in_b"`
	VolumeOutA     string      `json:"volume_out_a"`
	VolumeOutB     string      `json:"volume_out_b"`
	FeeA           string      `json:"fee_a"`
	FeeB           string      `json:"fee_b"`
	LPMinted       string      `json:"lp_minted"`
	Close          amm.Pool    `json:"close"`
}
