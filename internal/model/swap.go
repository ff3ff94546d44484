package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// FeeTier is the only pool fee this client trades against (0.30%).
const FeeTier uint32 = 3000

// SwapIntent is the user's current request, rebuilt on every input change.
type SwapIntent struct {
	TokenIn     Token
	TokenOut    Token
	AmountInRaw *big.Int
	Fee         uint32
}

// Complete reports whether the intent can be quoted.
func (i SwapIntent) Complete() bool {
	return !i.TokenIn.Same(i.TokenOut) && i.AmountInRaw != nil && i.AmountInRaw.Sign() > 0
}

// PoolState is the resolved pool for a pair. The zero address means no pool.
type PoolState struct {
	Address      common.Address
	Liquidity    *big.Int
	SqrtPriceX96 *big.Int
	Tick         int32
}

// Exists reports whether a pool is deployed for the pair.
func (p PoolState) Exists() bool {
	return p.Address != (common.Address{})
}

// HasLiquidity reports whether the pool exists and holds in-range liquidity.
func (p PoolState) HasLiquidity() bool {
	return p.Exists() && p.Liquidity != nil && p.Liquidity.Sign() > 0
}

// SwapParams are the router arguments for swapExactInputSingle, plus the
// native value attached to the call.
type SwapParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               uint32
	Recipient         common.Address
	AmountIn          *big.Int
	SqrtPriceLimitX96 *big.Int
	Value             *big.Int
}

// Quote is the result of a swap simulation. A nil AmountOut means no quote.
type Quote struct {
	AmountOut *big.Int
	Failure   string
	Params    SwapParams
}

// Present reports whether the simulation produced an output amount.
func (q Quote) Present() bool {
	return q.AmountOut != nil && q.Failure == ""
}
