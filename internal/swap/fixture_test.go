package swap

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"swapPilot/internal/dex"
	"swapPilot/internal/dex/dextest"
	"swapPilot/internal/model"
)

var (
	factoryAddr = common.HexToAddress("0x0227628f3F023bb0B980b67D528571c95c6DaC1c")
	routerAddr  = common.HexToAddress("0xE6DC9225E4C76f9c0b002Ab2782F687e35cc7666")
	wethAddr    = common.HexToAddress("0xfFf9976782d46CC05630D1f6eBAb18b2324d6B14")
	poolAddr    = common.HexToAddress("0x5000000000000000000000000000000000000005")
	ownerAddr   = common.HexToAddress("0x9000000000000000000000000000000000000009")

	kaju = model.Token{Symbol: "KAJU", Name: "Kaju", Address: common.HexToAddress("0x1000000000000000000000000000000000000001"), Decimals: 18}
	brfi = model.Token{Symbol: "BRFI", Name: "Barfi", Address: common.HexToAddress("0x2000000000000000000000000000000000000002"), Decimals: 18}
	usdc = model.Token{Symbol: "USDC", Name: "USD Coin", Address: common.HexToAddress("0x3000000000000000000000000000000000000003"), Decimals: 6}
	eth  = model.Token{Symbol: "ETH", Name: "Ether", Address: model.NativeAddress, Decimals: 18}
	weth = model.Token{Symbol: "WETH", Name: "Wrapped Ether", Address: wethAddr, Decimals: 18}

	testContracts = Contracts{Factory: factoryAddr, Router: routerAddr, WrappedNative: wethAddr}
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

// fakeWallet hands out sequential hashes. Setting gate holds SignAndSend
// until the gate is closed.
type fakeWallet struct {
	addr common.Address

	mu     sync.Mutex
	sent   []model.TxRequest
	reject bool
	err    error
	gate   chan struct{}
	next   int64
}

func (w *fakeWallet) Address() common.Address { return w.addr }
func (w *fakeWallet) ChainID() *big.Int       { return big.NewInt(11155111) }

func (w *fakeWallet) SignAndSend(ctx context.Context, req model.TxRequest) (common.Hash, error) {
	w.mu.Lock()
	gate := w.gate
	w.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return common.Hash{}, ctx.Err()
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.reject {
		return common.Hash{}, fmt.Errorf("%w: user declined", ErrRejectedBySigner)
	}
	if w.err != nil {
		return common.Hash{}, w.err
	}
	w.sent = append(w.sent, req)
	w.next++
	return common.BigToHash(big.NewInt(w.next)), nil
}

func (w *fakeWallet) requests() []model.TxRequest {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]model.TxRequest(nil), w.sent...)
}

// fakeReceipts blocks every AwaitConfirmation until the test settles it.
type fakeReceipts struct {
	settle chan model.TxStatus
}

func newFakeReceipts() *fakeReceipts {
	return &fakeReceipts{settle: make(chan model.TxStatus)}
}

func (r *fakeReceipts) AwaitConfirmation(ctx context.Context, _ common.Hash) (model.TxStatus, error) {
	select {
	case status := <-r.settle:
		return status, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type fixture struct {
	t        *testing.T
	chain    *dextest.Chain
	wallet   *fakeWallet
	receipts *fakeReceipts
	orch     *Orchestrator

	mu        sync.Mutex
	allowance *big.Int
}

// newFixture wires a KAJU/BRFI pool with liquidity, a 99% quote, and an
// unlimited KAJU allowance.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:         t,
		chain:     dextest.New(),
		wallet:    &fakeWallet{addr: ownerAddr},
		receipts:  newFakeReceipts(),
		allowance: new(big.Int).Set(dex.MaxApproval),
	}

	f.chain.Return(factoryAddr, "getPool", poolAddr)
	f.chain.Return(poolAddr, "liquidity", big.NewInt(1_000_000))
	sqrt, _ := new(big.Int).SetString("79228162514264337593543950336", 10)
	f.chain.Return(poolAddr, "slot0", sqrt, big.NewInt(0), uint16(1), uint16(1), uint16(1), uint8(0), true)
	f.chain.Handle(routerAddr, "swapExactInputSingle", func(_ ethereum.CallMsg, args []interface{}) ([]interface{}, error) {
		params := dextest.SwapParams(args)
		out := new(big.Int).Mul(params.AmountIn, big.NewInt(99))
		return []interface{}{out.Div(out, big.NewInt(100))}, nil
	})
	for _, token := range []model.Token{kaju, brfi, usdc} {
		token := token
		f.chain.Handle(token.Address, "allowance", func(ethereum.CallMsg, []interface{}) ([]interface{}, error) {
			return []interface{}{f.currentAllowance()}, nil
		})
		f.chain.Return(token.Address, "balanceOf", ether(100))
	}
	f.chain.SetBalance(ownerAddr, ether(3))

	orch, err := New(Options{
		Engine:   NewEngine(f.chain, testContracts, nil),
		Receipts: f.receipts,
	})
	require.NoError(t, err)
	f.orch = orch

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = orch.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return f
}

func (f *fixture) setAllowance(v *big.Int) {
	f.mu.Lock()
	f.allowance = new(big.Int).Set(v)
	f.mu.Unlock()
}

func (f *fixture) currentAllowance() *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.allowance)
}

func (f *fixture) ctx() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	f.t.Cleanup(cancel)
	return ctx
}

// start connects and enters in -> out for amount.
func (f *fixture) start(in, out model.Token, amount string) {
	f.t.Helper()
	ctx := f.ctx()
	require.NoError(f.t, f.orch.Connect(ctx, f.wallet))
	require.NoError(f.t, f.orch.SelectTokenIn(ctx, in))
	require.NoError(f.t, f.orch.SelectTokenOut(ctx, out))
	require.NoError(f.t, f.orch.SetAmount(ctx, amount))
}

func (f *fixture) waitFor(pred func(View) bool) View {
	f.t.Helper()
	v, err := f.orch.Wait(f.ctx(), pred)
	require.NoError(f.t, err, "last view: step=%s err=%v", v.Step, v.Err)
	return v
}

func (f *fixture) waitStep(step Step) View {
	f.t.Helper()
	return f.waitFor(func(v View) bool { return v.Step == step })
}
