package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
)

// MaxApproval is the largest uint256, used for unlimited approvals.
var MaxApproval = new(big.Int).Set(math.MaxBig256)

// Allowance reads how much spender may move from owner's balance of token.
func Allowance(ctx context.Context, caller Caller, token, owner, spender common.Address) (*big.Int, error) {
	erc20ABI, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}

	values, err := callMethod(ctx, caller, token, erc20ABI, CallOpts{}, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// BalanceOf reads the token balance of account.
func BalanceOf(ctx context.Context, caller Caller, token, account common.Address) (*big.Int, error) {
	erc20ABI, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}

	values, err := callMethod(ctx, caller, token, erc20ABI, CallOpts{}, "balanceOf", account)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// PackApprove encodes approve(spender, amount).
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	erc20ABI, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	data, err := erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("pack approve: %w", err)
	}
	return data, nil
}
