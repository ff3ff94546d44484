package dex

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"swapPilot/internal/model"
)

// FetchTokenMeta loads token metadata via ERC20 calls. Tokens that return
// bytes32 symbol or name (MKR style) are handled by a second ABI.
func FetchTokenMeta(ctx context.Context, caller Caller, token common.Address, logger *zap.Logger) (model.Token, error) {
	meta := model.Token{Address: token}
	if caller == nil {
		return meta, fmt.Errorf("chain caller is nil")
	}

	stringABI, err := ERC20ABI()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	call := func(method string, parsed abi.ABI) ([]interface{}, error) {
		return callMethod(ctx, caller, token, parsed, CallOpts{}, method)
	}

	values, err := call("decimals", stringABI)
	if err != nil {
		return meta, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return meta, err
	}
	meta.Decimals = decimals

	if values, err := call("symbol", stringABI); err == nil {
		if symbol, ok := values[0].(string); ok {
			meta.Symbol = symbol
		}
	} else if values, err := call("symbol", bytes32ABI); err == nil {
		if symbol, ok := bytes32ToString(values[0]); ok {
			meta.Symbol = symbol
		}
	} else if logger != nil {
		logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	if values, err := call("name", stringABI); err == nil {
		if name, ok := values[0].(string); ok {
			meta.Name = name
		}
	} else if values, err := call("name", bytes32ABI); err == nil {
		if name, ok := bytes32ToString(values[0]); ok {
			meta.Name = name
		}
	} else if logger != nil {
		logger.Debug("name call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	return meta, nil
}

// FetchTokenMetas loads metadata for several tokens concurrently.
// Results keep the order of the input; the first failure aborts the batch.
func FetchTokenMetas(ctx context.Context, caller Caller, tokens []common.Address, logger *zap.Logger) ([]model.Token, error) {
	out := make([]model.Token, len(tokens))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for i, token := range tokens {
		i, token := i, token
		g.Go(func() error {
			meta, err := FetchTokenMeta(ctx, caller, token, logger)
			if err != nil {
				return fmt.Errorf("token %s: %w", token.Hex(), err)
			}
			out[i] = meta
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
