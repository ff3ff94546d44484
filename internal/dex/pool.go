package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// GetPool asks a V3 factory for the pool of (token0, token1, fee).
// The zero address means no pool is deployed.
func GetPool(ctx context.Context, caller Caller, factory, token0, token1 common.Address, fee uint32) (common.Address, error) {
	factoryABI, err := V3FactoryABI()
	if err != nil {
		return common.Address{}, fmt.Errorf("parse factory abi: %w", err)
	}

	values, err := callMethod(ctx, caller, factory, factoryABI, CallOpts{}, "getPool", token0, token1, new(big.Int).SetUint64(uint64(fee)))
	if err != nil {
		return common.Address{}, err
	}
	return asAddress(values[0])
}

// PoolLiquidity reads the in-range liquidity of a pool.
func PoolLiquidity(ctx context.Context, caller Caller, pool common.Address) (*big.Int, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}

	values, err := callMethod(ctx, caller, pool, poolABI, CallOpts{}, "liquidity")
	if err != nil {
		return nil, err
	}
	liq, err := asBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("liquidity: %w", err)
	}
	return liq, nil
}

// PoolSlot0 reads the current sqrt price and tick of a pool.
func PoolSlot0(ctx context.Context, caller Caller, pool common.Address) (*big.Int, int32, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, 0, fmt.Errorf("parse pool abi: %w", err)
	}

	values, err := callMethod(ctx, caller, pool, poolABI, CallOpts{}, "slot0")
	if err != nil {
		return nil, 0, err
	}
	if len(values) < 2 {
		return nil, 0, fmt.Errorf("slot0: expected 7 values, got %d", len(values))
	}
	sqrt, err := asBigInt(values[0])
	if err != nil {
		return nil, 0, fmt.Errorf("sqrt price: %w", err)
	}
	tickInt, err := asBigInt(values[1])
	if err != nil {
		return nil, 0, fmt.Errorf("tick: %w", err)
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return nil, 0, fmt.Errorf("tick: %w", err)
	}
	return sqrt, tick, nil
}
