// Package dextest provides an in-memory contract backend that speaks the
// same ABIs as package dex, for tests.
package dextest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"swapPilot/internal/dex"
)

// ErrNoContract is returned for calls nobody registered a handler for.
var ErrNoContract = errors.New("no contract code at address")

// Handler answers one contract method. Args are the unpacked call inputs.
type Handler func(msg ethereum.CallMsg, args []interface{}) ([]interface{}, error)

type key struct {
	to     common.Address
	method string
}

// Chain is a fake dex.Caller that dispatches on the 4-byte selector.
type Chain struct {
	mu       sync.Mutex
	abis     []abi.ABI
	handlers map[key]Handler
	calls    map[key]int
	balances map[common.Address]*big.Int
}

// New builds a Chain that understands the factory, pool, ERC-20 and router ABIs.
func New() *Chain {
	c := &Chain{
		handlers: make(map[key]Handler),
		calls:    make(map[key]int),
		balances: make(map[common.Address]*big.Int),
	}
	for _, load := range []func() (abi.ABI, error){dex.V3FactoryABI, dex.V3PoolABI, dex.ERC20ABI, dex.SwapRouterABI} {
		parsed, err := load()
		if err != nil {
			panic(fmt.Sprintf("dextest: parse abi: %v", err))
		}
		c.abis = append(c.abis, parsed)
	}
	return c
}

// Handle registers h for calls of method on to.
func (c *Chain) Handle(to common.Address, method string, h Handler) {
	c.mu.Lock()
	c.handlers[key{to, method}] = h
	c.mu.Unlock()
}

// Return makes method on to answer with fixed outputs.
func (c *Chain) Return(to common.Address, method string, outputs ...interface{}) {
	c.Handle(to, method, func(ethereum.CallMsg, []interface{}) ([]interface{}, error) {
		return outputs, nil
	})
}

// Fail makes method on to fail with err.
func (c *Chain) Fail(to common.Address, method string, err error) {
	c.Handle(to, method, func(ethereum.CallMsg, []interface{}) ([]interface{}, error) {
		return nil, err
	})
}

// Calls reports how many times method was called on to.
func (c *Chain) Calls(to common.Address, method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[key{to, method}]
}

// SetBalance sets the native balance of account.
func (c *Chain) SetBalance(account common.Address, amount *big.Int) {
	c.mu.Lock()
	c.balances[account] = new(big.Int).Set(amount)
	c.mu.Unlock()
}

// BalanceAt returns the native balance set with SetBalance, or zero.
func (c *Chain) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if bal, ok := c.balances[account]; ok {
		return new(big.Int).Set(bal), nil
	}
	return new(big.Int), nil
}

// CallContract decodes the call with the known ABIs, runs the handler and
// packs its outputs.
func (c *Chain) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, fmt.Errorf("dextest: malformed call")
	}

	method, err := c.method(msg.Data[:4])
	if err != nil {
		return nil, err
	}

	k := key{*msg.To, method.Name}
	c.mu.Lock()
	c.calls[k]++
	h, ok := c.handlers[k]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrNoContract, msg.To.Hex(), method.Name)
	}

	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, fmt.Errorf("dextest: unpack %s: %w", method.Name, err)
	}
	outputs, err := h(msg, args)
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(outputs...)
}

func (c *Chain) method(selector []byte) (*abi.Method, error) {
	for _, parsed := range c.abis {
		if m, err := parsed.MethodById(selector); err == nil {
			return m, nil
		}
	}
	return nil, fmt.Errorf("dextest: unknown selector %s", hexutil.Encode(selector))
}

// RevertError mimics the JSON-RPC error a node returns for a reverted eth_call.
type RevertError struct {
	Reason string
	data   string
}

// Revert builds a RevertError carrying an encoded Error(string) payload.
func Revert(reason string) *RevertError {
	stringType, _ := abi.NewType("string", "", nil)
	payload, _ := abi.Arguments{{Type: stringType}}.Pack(reason)
	selector := []byte{0x08, 0xc3, 0x79, 0xa0}
	return &RevertError{Reason: reason, data: hexutil.Encode(append(selector, payload...))}
}

func (e *RevertError) Error() string          { return "execution reverted" }
func (e *RevertError) ErrorCode() int         { return 3 }
func (e *RevertError) ErrorData() interface{} { return e.data }

// SwapParams converts the unpacked swapExactInputSingle arguments back into
// the dex struct.
func SwapParams(args []interface{}) dex.ExactInputSingleParams {
	if len(args) == 0 {
		return dex.ExactInputSingleParams{}
	}
	return *abi.ConvertType(args[0], new(dex.ExactInputSingleParams)).(*dex.ExactInputSingleParams)
}
