package swap

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"swapPilot/internal/dex"
	"swapPilot/internal/dex/dextest"
	"swapPilot/internal/model"
)

func TestDirectionIsAntisymmetric(t *testing.T) {
	addrs := []common.Address{kaju.Address, brfi.Address, usdc.Address, wethAddr, ownerAddr}
	lower := new(big.Int).Add(MinSqrtRatio, big.NewInt(1))
	upper := new(big.Int).Sub(MaxSqrtRatio, big.NewInt(1))

	for _, a := range addrs {
		for _, b := range addrs {
			if a == b {
				continue
			}
			if ZeroForOne(a, b) == ZeroForOne(b, a) {
				t.Fatalf("direction not antisymmetric for %s/%s", a.Hex(), b.Hex())
			}
			limit := PriceLimit(ZeroForOne(a, b))
			if limit.Cmp(lower) != 0 && limit.Cmp(upper) != 0 {
				t.Fatalf("unexpected price limit %s", limit)
			}
			t0, t1 := SortTokens(a, b)
			if !ZeroForOne(t0, t1) {
				t.Fatalf("SortTokens(%s, %s) not ordered", a.Hex(), b.Hex())
			}
		}
	}
}

func TestPriceLimitBounds(t *testing.T) {
	require.Equal(t, "4295128740", PriceLimit(true).String())
	require.Equal(t, "1461446703485210103287273052203988822375603979125", PriceLimit(false).String())
	// the returned value must not alias the package bounds
	PriceLimit(true).SetInt64(0)
	require.Equal(t, "4295128739", MinSqrtRatio.String())
}

func TestNeedsApproval(t *testing.T) {
	cases := []struct {
		allowance *big.Int
		amount    *big.Int
		want      bool
	}{
		{big.NewInt(0), big.NewInt(1), true},
		{big.NewInt(5), big.NewInt(5), false},
		{big.NewInt(4), big.NewInt(5), true},
		{big.NewInt(6), big.NewInt(5), false},
		{big.NewInt(0), big.NewInt(0), false},
		{nil, big.NewInt(1), true},
		{dex.MaxApproval, ether(1_000_000), false},
	}
	for _, tc := range cases {
		if got := NeedsApproval(tc.allowance, tc.amount); got != tc.want {
			t.Fatalf("NeedsApproval(%v, %v) = %v, want %v", tc.allowance, tc.amount, got, tc.want)
		}
	}
}

func poolChain() *dextest.Chain {
	chain := dextest.New()
	t0, t1 := SortTokens(kaju.Address, brfi.Address)
	chain.Handle(factoryAddr, "getPool", func(_ ethereum.CallMsg, args []interface{}) ([]interface{}, error) {
		if args[0] == t0 && args[1] == t1 && args[2].(*big.Int).Uint64() == uint64(model.FeeTier) {
			return []interface{}{poolAddr}, nil
		}
		return []interface{}{common.Address{}}, nil
	})
	chain.Return(poolAddr, "liquidity", big.NewInt(42))
	chain.Return(poolAddr, "slot0", big.NewInt(1<<48), big.NewInt(-200), uint16(0), uint16(1), uint16(1), uint8(0), true)
	return chain
}

func TestPoolResolverOrderIndependent(t *testing.T) {
	chain := poolChain()
	r := NewPoolResolver(chain, factoryAddr, nil)
	ctx := context.Background()

	ab := r.Resolve(ctx, kaju.Address, brfi.Address, model.FeeTier)
	ba := r.Resolve(ctx, brfi.Address, kaju.Address, model.FeeTier)
	require.Equal(t, poolAddr, ab.Address)
	require.Equal(t, ab, ba)
	require.Equal(t, int32(-200), ab.Tick)
	require.Equal(t, int64(42), ab.Liquidity.Int64())
	require.True(t, ab.HasLiquidity())

	require.Equal(t, 1, chain.Calls(factoryAddr, "getPool"), "pool address should be cached")
	require.Equal(t, 2, chain.Calls(poolAddr, "slot0"))
}

func TestPoolResolverMissingPool(t *testing.T) {
	chain := poolChain()
	r := NewPoolResolver(chain, factoryAddr, nil)
	ctx := context.Background()

	state := r.Resolve(ctx, kaju.Address, usdc.Address, model.FeeTier)
	require.False(t, state.Exists())
	r.Resolve(ctx, usdc.Address, kaju.Address, model.FeeTier)
	require.Equal(t, 2, chain.Calls(factoryAddr, "getPool"), "missing pools are not cached")
	require.Zero(t, chain.Calls(poolAddr, "liquidity"))

	require.False(t, r.Resolve(ctx, kaju.Address, kaju.Address, model.FeeTier).Exists())
}

func TestPoolResolverReadFailureIsMissing(t *testing.T) {
	chain := poolChain()
	chain.Fail(poolAddr, "slot0", errors.New("connection reset"))
	r := NewPoolResolver(chain, factoryAddr, nil)

	state := r.Resolve(context.Background(), kaju.Address, brfi.Address, model.FeeTier)
	require.False(t, state.Exists())

	chain.Fail(factoryAddr, "getPool", errors.New("timeout"))
	state = NewPoolResolver(chain, factoryAddr, nil).Resolve(context.Background(), kaju.Address, brfi.Address, model.FeeTier)
	require.False(t, state.Exists())
}

func TestAllowanceCurrent(t *testing.T) {
	chain := dextest.New()
	chain.Handle(kaju.Address, "allowance", func(_ ethereum.CallMsg, args []interface{}) ([]interface{}, error) {
		require.Equal(t, ownerAddr, args[0])
		require.Equal(t, routerAddr, args[1])
		return []interface{}{ether(7)}, nil
	})
	chain.Fail(brfi.Address, "allowance", errors.New("boom"))
	tracker := NewAllowanceTracker(chain, nil)
	ctx := context.Background()

	require.Equal(t, ether(7), tracker.Current(ctx, ownerAddr, routerAddr, kaju))
	require.Zero(t, tracker.Current(ctx, ownerAddr, routerAddr, brfi).Sign())
	require.Equal(t, dex.MaxApproval, tracker.Current(ctx, ownerAddr, routerAddr, eth))
	require.Zero(t, chain.Calls(model.NativeAddress, "allowance"))
}

func TestSubmitApprovalGuards(t *testing.T) {
	tracker := NewAllowanceTracker(dextest.New(), nil)
	w := &fakeWallet{addr: ownerAddr}
	ctx := context.Background()

	pt, err := tracker.SubmitApproval(ctx, w, routerAddr, kaju)
	require.NoError(t, err)
	require.Equal(t, model.TxSubmitted, pt.Status)
	require.True(t, pt.Signed())
	require.True(t, tracker.Pending(kaju.Address))

	_, err = tracker.SubmitApproval(ctx, w, routerAddr, kaju)
	require.ErrorIs(t, err, ErrApprovalAlreadyPending)

	_, err = tracker.SubmitApproval(ctx, w, routerAddr, brfi)
	require.NoError(t, err, "other tokens are independent")

	tracker.Release(kaju.Address)
	require.False(t, tracker.Pending(kaju.Address))

	_, err = tracker.SubmitApproval(ctx, w, routerAddr, eth)
	require.ErrorIs(t, err, ErrNotReady)
}

func TestSubmitApprovalRejectedReleasesSlot(t *testing.T) {
	tracker := NewAllowanceTracker(dextest.New(), nil)
	w := &fakeWallet{addr: ownerAddr, reject: true}

	_, err := tracker.SubmitApproval(context.Background(), w, routerAddr, kaju)
	require.ErrorIs(t, err, ErrRejectedBySigner)
	require.False(t, tracker.Pending(kaju.Address))

	w.reject = false
	w.err = errors.New("nonce too low")
	_, err = tracker.SubmitApproval(context.Background(), w, routerAddr, kaju)
	require.ErrorIs(t, err, ErrTransactionFailed)
	require.False(t, tracker.Pending(kaju.Address))
}

func TestQuoteDisabledMakesNoCall(t *testing.T) {
	chain := dextest.New()
	engine := NewQuoteEngine(chain, testContracts, nil)
	pool := model.PoolState{Address: poolAddr, Liquidity: big.NewInt(1)}
	ctx := context.Background()

	cases := []struct {
		name   string
		intent model.SwapIntent
		pool   model.PoolState
	}{
		{"zero amount", model.SwapIntent{TokenIn: kaju, TokenOut: brfi, AmountInRaw: big.NewInt(0)}, pool},
		{"same token", model.SwapIntent{TokenIn: kaju, TokenOut: kaju, AmountInRaw: big.NewInt(1)}, pool},
		{"native and wrapped", model.SwapIntent{TokenIn: eth, TokenOut: model.Token{Symbol: "WETH", Address: wethAddr}, AmountInRaw: big.NewInt(1)}, pool},
		{"no pool", model.SwapIntent{TokenIn: kaju, TokenOut: brfi, AmountInRaw: big.NewInt(1)}, model.PoolState{}},
		{"no liquidity", model.SwapIntent{TokenIn: kaju, TokenOut: brfi, AmountInRaw: big.NewInt(1)}, model.PoolState{Address: poolAddr, Liquidity: big.NewInt(0)}},
	}
	for _, tc := range cases {
		q := engine.Quote(ctx, tc.intent, tc.pool, ownerAddr)
		require.False(t, q.Present(), tc.name)
		require.Empty(t, q.Failure, tc.name)
	}
	require.Zero(t, chain.Calls(routerAddr, "swapExactInputSingle"))
}

func TestQuoteRevertReason(t *testing.T) {
	chain := dextest.New()
	chain.Fail(routerAddr, "swapExactInputSingle", dextest.Revert("Too little received"))
	engine := NewQuoteEngine(chain, testContracts, nil)

	intent := model.SwapIntent{TokenIn: kaju, TokenOut: brfi, AmountInRaw: ether(1), Fee: model.FeeTier}
	q := engine.Quote(context.Background(), intent, model.PoolState{Address: poolAddr, Liquidity: big.NewInt(1)}, ownerAddr)
	require.False(t, q.Present())
	require.Equal(t, "Too little received", q.Failure)
	require.Equal(t, ether(1), q.Params.AmountIn)

	chain.Fail(routerAddr, "swapExactInputSingle", errors.New("header not found"))
	q = engine.Quote(context.Background(), intent, model.PoolState{Address: poolAddr, Liquidity: big.NewInt(1)}, ownerAddr)
	require.Contains(t, q.Failure, "header not found")
}

func TestParamsForNativeOutput(t *testing.T) {
	engine := NewQuoteEngine(dextest.New(), testContracts, nil)
	params := engine.Params(model.SwapIntent{TokenIn: usdc, TokenOut: eth, AmountInRaw: big.NewInt(5_000_000)}, ownerAddr)

	require.Equal(t, usdc.Address, params.TokenIn)
	require.Equal(t, wethAddr, params.TokenOut)
	require.Equal(t, model.FeeTier, params.Fee)
	require.Zero(t, params.Value.Sign())

	req, err := engine.PackSwap(params)
	require.NoError(t, err)
	require.Equal(t, routerAddr, req.To)
	require.Equal(t, model.TxSwap, req.Kind)
}

func TestInspect(t *testing.T) {
	chain := poolChain()
	chain.Return(routerAddr, "swapExactInputSingle", ether(2))
	chain.Return(kaju.Address, "allowance", big.NewInt(0))
	chain.Return(kaju.Address, "balanceOf", ether(10))
	chain.Return(brfi.Address, "balanceOf", ether(1))
	engine := NewEngine(chain, testContracts, nil)

	intent := model.SwapIntent{TokenIn: kaju, TokenOut: brfi, AmountInRaw: ether(3), Fee: model.FeeTier}
	got, err := engine.Inspect(context.Background(), intent, ownerAddr)
	require.NoError(t, err)
	require.Equal(t, poolAddr, got.Pool.Address)
	require.True(t, got.NeedsApproval)
	require.Equal(t, ether(2), got.Quote.AmountOut)
	require.Equal(t, ether(10), got.BalanceIn)
	require.ErrorIs(t, got.Err(), ErrInsufficientAllowance)

	_, err = engine.Inspect(context.Background(), model.SwapIntent{TokenIn: kaju, TokenOut: brfi}, ownerAddr)
	require.ErrorIs(t, err, ErrNotReady)

	wrap := model.SwapIntent{TokenIn: eth, TokenOut: weth, AmountInRaw: ether(1), Fee: model.FeeTier}
	_, err = engine.Inspect(context.Background(), wrap, ownerAddr)
	require.ErrorIs(t, err, ErrWrapUnsupported)
}

func TestWrapsNative(t *testing.T) {
	require.True(t, testContracts.WrapsNative(eth, weth))
	require.True(t, testContracts.WrapsNative(weth, eth))
	require.False(t, testContracts.WrapsNative(eth, kaju))
	require.False(t, testContracts.WrapsNative(weth, weth))
}

func TestReduceIsPure(t *testing.T) {
	s := &session{
		wallet:     &fakeWallet{addr: ownerAddr},
		account:    ownerAddr,
		tokenIn:    &kaju,
		tokenOut:   &brfi,
		amountText: "10",
		amountRaw:  ether(10),
		generation: 3,
		dispatched: true,
		pool:       &model.PoolState{Address: poolAddr, Liquidity: big.NewInt(1)},
		allowance:  big.NewInt(0),
		quote:      &model.Quote{AmountOut: ether(9)},
	}
	first := reduce(s)
	second := reduce(s)
	require.Equal(t, first, second)
	require.Equal(t, StepNeedsApproval, first.Step)

	first.AmountInRaw.SetInt64(1)
	require.Equal(t, ether(10), s.amountRaw, "views must not share state with the session")

	s.approval = &model.PendingTransaction{Kind: model.TxApprove, Status: model.TxSubmitted}
	require.Equal(t, StepApproving, reduce(s).Step)
	s.approval.Hash = common.HexToHash("0x01")
	require.Equal(t, StepApprovalConfirming, reduce(s).Step)
	s.approval.Status = model.TxConfirmed
	s.allowance = nil
	require.Equal(t, StepApprovalConfirming, reduce(s).Step)
	s.allowance = dex.MaxApproval
	require.Equal(t, StepReadyToSwap, reduce(s).Step)

	s.pool = &model.PoolState{}
	require.Equal(t, StepPoolMissing, reduce(s).Step)
}

func TestStepNames(t *testing.T) {
	require.Equal(t, "ready_to_swap", StepReadyToSwap.String())
	require.Equal(t, "step(99)", Step(99).String())
	require.True(t, StepEnterAmount.Idle())
	require.True(t, StepFailed.Terminal())
	require.True(t, StepPoolEmpty.Blocked())
	require.True(t, StepWrapUnsupported.Blocked())
	require.Equal(t, "wrap_unsupported", StepWrapUnsupported.String())
}
