package model

import (
	"github.com/ethereum/go-ethereum/common"

	"ammcore/internal/amm"
)

// EventKind names a committed pool operation.
type EventKind string

const (
	EventPoolCreated EventKind = "pool_created"
	EventDeposit     EventKind = "deposit"
	EventSwap        EventKind = "swap"
)

// PoolEvent records one committed operation and the pool state it produced.
// Amounts are encoded as decimal strings.
type PoolEvent struct {
	Kind      EventKind      `json:"kind"`
	PoolID    common.Hash    `json:"pool_id"`
	Account   common.Address `json:"account"`
	Direction string         `json:"direction,omitempty"`
	AmountA   uint64         `json:"amount_a,string,omitempty"`
	AmountB   uint64         `json:"amount_b,string,omitempty"`
	AmountIn  uint64         `json:"amount_in,string,omitempty"`
	AmountOut uint64         `json:"amount_out,string,omitempty"`
	LPMinted  uint64         `json:"lp_minted,string,omitempty"`
	Pool      amm.Pool       `json:"pool"`
	Timestamp uint64         `json:"timestamp"`
}
