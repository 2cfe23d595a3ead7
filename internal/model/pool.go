package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"ammcore/internal/amm"
)

// PoolRecord binds a pool's accounting state to its asset pair and custody
// account.
type PoolRecord struct {
	ID        common.Hash    `json:"id"`
	AssetA    common.Address `json:"asset_a"`
	AssetB    common.Address `json:"asset_b"`
	Custody   common.Address `json:"custody"`
	State     amm.Pool       `json:"state"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Assets returns the (in, out) assets for a swap in direction d.
func (p PoolRecord) Assets(d amm.Direction) (common.Address, common.Address) {
	if d == amm.BToA {
		return p.AssetB, p.AssetA
	}
	return p.AssetA, p.AssetB
}
