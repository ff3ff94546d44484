package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ExactInputSingleParams mirrors the router's params tuple.
// Field names follow the ABI component names so abi.Pack can match them.
type ExactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	AmountIn          *big.Int
	SqrtPriceLimitX96 *big.Int
}

// PackExactInputSingle encodes swapExactInputSingle(params).
func PackExactInputSingle(params ExactInputSingleParams) ([]byte, error) {
	routerABI, err := SwapRouterABI()
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}
	data, err := routerABI.Pack("swapExactInputSingle", params)
	if err != nil {
		return nil, fmt.Errorf("pack swapExactInputSingle: %w", err)
	}
	return data, nil
}

// SimulateExactInputSingle runs swapExactInputSingle as an eth_call and
// returns the amount the router would send out. Nothing is committed.
func SimulateExactInputSingle(ctx context.Context, caller Caller, router common.Address, opts CallOpts, params ExactInputSingleParams) (*big.Int, error) {
	routerABI, err := SwapRouterABI()
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}

	values, err := callMethod(ctx, caller, router, routerABI, opts, "swapExactInputSingle", params)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}
