package swap

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"swapPilot/internal/dex"
	"swapPilot/internal/model"
)

const poolCacheSize = 256

type poolKey struct {
	token0 common.Address
	token1 common.Address
	fee    uint32
}

// PoolResolver finds the pool for a pair and reads its liquidity and price.
type PoolResolver struct {
	chain   dex.Caller
	factory common.Address
	cache   *lru.Cache[poolKey, common.Address]
	logger  *zap.Logger
}

// NewPoolResolver builds a PoolResolver against a V3 factory.
func NewPoolResolver(chain dex.Caller, factory common.Address, logger *zap.Logger) *PoolResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, _ := lru.New[poolKey, common.Address](poolCacheSize)
	return &PoolResolver{
		chain:   chain,
		factory: factory,
		cache:   cache,
		logger:  logger,
	}
}

// Resolve returns the pool state for the unordered pair (a, b). Every read
// failure reads as "no pool": a missing pool is routine input, not an error.
func (r *PoolResolver) Resolve(ctx context.Context, a, b common.Address, fee uint32) model.PoolState {
	if a == b {
		return model.PoolState{}
	}
	token0, token1 := SortTokens(a, b)
	key := poolKey{token0: token0, token1: token1, fee: fee}

	address, ok := r.cache.Get(key)
	if !ok {
		var err error
		address, err = dex.GetPool(ctx, r.chain, r.factory, token0, token1, fee)
		if err != nil {
			r.logger.Debug("getPool failed", zap.String("token0", token0.Hex()), zap.String("token1", token1.Hex()), zap.Error(err))
			return model.PoolState{}
		}
		if address == (common.Address{}) {
			return model.PoolState{}
		}
		r.cache.Add(key, address)
	}

	liquidity, err := dex.PoolLiquidity(ctx, r.chain, address)
	if err != nil {
		r.logger.Debug("liquidity call failed", zap.String("pool", address.Hex()), zap.Error(err))
		return model.PoolState{}
	}
	sqrtPrice, tick, err := dex.PoolSlot0(ctx, r.chain, address)
	if err != nil {
		r.logger.Debug("slot0 call failed", zap.String("pool", address.Hex()), zap.Error(err))
		return model.PoolState{}
	}

	return model.PoolState{
		Address:      address,
		Liquidity:    liquidity,
		SqrtPriceX96: sqrtPrice,
		Tick:         tick,
	}
}
