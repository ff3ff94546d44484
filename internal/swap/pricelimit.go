package swap

import (
	"bytes"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// MinSqrtRatio is the lowest sqrt price a V3 pool can reach.
	MinSqrtRatio = big.NewInt(4295128739)
	// MaxSqrtRatio is the highest sqrt price a V3 pool can reach.
	MaxSqrtRatio, _ = new(big.Int).SetString("1461446703485210103287273052203988822375603979126", 10)
)

// ZeroForOne reports whether trading a for b moves token0 into the pool,
// i.e. a sorts before b.
func ZeroForOne(a, b common.Address) bool {
	return bytes.Compare(a.Bytes(), b.Bytes()) < 0
}

// SortTokens returns the pair in pool order (token0, token1).
func SortTokens(a, b common.Address) (common.Address, common.Address) {
	if ZeroForOne(a, b) {
		return a, b
	}
	return b, a
}

// PriceLimit is the loosest legal sqrtPriceLimitX96 for the direction,
// letting an exact-input swap fill at any reachable price.
func PriceLimit(zeroForOne bool) *big.Int {
	if zeroForOne {
		return new(big.Int).Add(MinSqrtRatio, big.NewInt(1))
	}
	return new(big.Int).Sub(MaxSqrtRatio, big.NewInt(1))
}
