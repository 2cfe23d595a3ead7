package exchange

import "errors"

var (
	ErrSameAsset        = errors.New("pool assets must differ")
	ErrZeroAsset        = errors.New("zero asset address")
	ErrSlippageExceeded = errors.New("amount out below minimum")
	ErrCustodyAccount   = errors.New("custody account cannot trade with its own pool")
)
