package exchange

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// PoolID identifies the pool for an ordered asset pair.
func PoolID(assetA, assetB common.Address) common.Hash {
	return crypto.Keccak256Hash(assetA.Bytes(), assetB.Bytes())
}

// Custody is the account that holds a pool's reserves.
func Custody(id common.Hash) common.Address {
	return common.BytesToAddress(id[common.HashLength-common.AddressLength:])
}

// ParseAddress converts a hex string into common.Address.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %q", input)
	}
	return common.HexToAddress(input), nil
}

// ParsePoolID converts a 0x-prefixed 32-byte hex string into a pool id.
func ParsePoolID(input string) (common.Hash, error) {
	input = strings.TrimSpace(input)
	data, err := hexutil.Decode(input)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid pool id: %q", input)
	}
	if len(data) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid pool id length: %q", input)
	}
	return common.BytesToHash(data), nil
}
