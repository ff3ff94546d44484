package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// Caller performs read-only contract calls. *chain.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// CallOpts carries the optional sender and value of a simulated call.
type CallOpts struct {
	From  common.Address
	Value *big.Int
}

func callMethod(ctx context.Context, caller Caller, to common.Address, parsed abi.ABI, opts CallOpts, method string, args ...interface{}) ([]interface{}, error) {
	if caller == nil {
		return nil, fmt.Errorf("chain caller is nil")
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{From: opts.From, To: &to, Value: opts.Value, Data: data}
	resp, err := caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return values, nil
}

// RevertReason extracts the Error(string) message from a failed call.
// It falls back to the node's message when the revert data carries no reason.
func RevertReason(err error) string {
	if err == nil {
		return ""
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if raw := revertData(dataErr.ErrorData()); len(raw) > 0 {
			if reason, unpackErr := abi.UnpackRevert(raw); unpackErr == nil && reason != "" {
				return reason
			}
		}
		return dataErr.Error()
	}
	return err.Error()
}

func revertData(data interface{}) []byte {
	switch v := data.(type) {
	case string:
		raw, err := hexutil.Decode(v)
		if err != nil {
			return nil
		}
		return raw
	case []byte:
		return v
	default:
		return nil
	}
}
