package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// SwapEvent is a decoded pool Swap log. Amounts are signed from the pool's
// point of view: positive flows into the pool, negative flows out.
type SwapEvent struct {
	Pool         common.Address
	Sender       common.Address
	Recipient    common.Address
	Amount0      *big.Int
	Amount1      *big.Int
	SqrtPriceX96 *big.Int
	Liquidity    *big.Int
	Tick         int32
}

// Paid is the amount that left the caller's side of the pool.
func (e SwapEvent) Paid() *big.Int {
	if e.Amount0.Sign() > 0 {
		return new(big.Int).Set(e.Amount0)
	}
	return new(big.Int).Set(e.Amount1)
}

// Received is the amount the pool sent out.
func (e SwapEvent) Received() *big.Int {
	if e.Amount0.Sign() < 0 {
		return new(big.Int).Neg(e.Amount0)
	}
	return new(big.Int).Neg(e.Amount1)
}

// DecodeSwapEvents picks the pool Swap logs out of a receipt. Logs with other
// topics are skipped; a Swap log that does not decode is an error.
func DecodeSwapEvents(logs []*types.Log) ([]SwapEvent, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, err
	}
	event := poolABI.Events["Swap"]

	var out []SwapEvent
	for _, log := range logs {
		if log == nil || len(log.Topics) == 0 || log.Topics[0] != event.ID {
			continue
		}
		decoded, err := decodeSwap(event, log)
		if err != nil {
			return nil, fmt.Errorf("decode swap log %d: %w", log.Index, err)
		}
		out = append(out, decoded)
	}
	return out, nil
}

func decodeSwap(event abi.Event, log *types.Log) (SwapEvent, error) {
	indexed := indexedArguments(event.Inputs)
	if len(log.Topics) != len(indexed)+1 {
		return SwapEvent{}, fmt.Errorf("expected %d topics, got %d", len(indexed)+1, len(log.Topics))
	}
	var parties struct {
		Sender    common.Address
		Recipient common.Address
	}
	if err := abi.ParseTopics(&parties, indexed, log.Topics[1:]); err != nil {
		return SwapEvent{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return SwapEvent{}, fmt.Errorf("unpack swap: %w", err)
	}
	if len(values) != 5 {
		return SwapEvent{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}

	ints := make([]*big.Int, len(values))
	for i, v := range values {
		if ints[i], err = asBigInt(v); err != nil {
			return SwapEvent{}, err
		}
	}
	tick, err := int24FromBig(ints[4])
	if err != nil {
		return SwapEvent{}, err
	}

	return SwapEvent{
		Pool:         log.Address,
		Sender:       parties.Sender,
		Recipient:    parties.Recipient,
		Amount0:      ints[0],
		Amount1:      ints[1],
		SqrtPriceX96: ints[2],
		Liquidity:    ints[3],
		Tick:         tick,
	}, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}
