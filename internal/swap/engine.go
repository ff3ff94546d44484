package swap

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"swapPilot/internal/dex"
	"swapPilot/internal/model"
)

// Engine bundles the read-side components over one chain connection.
type Engine struct {
	Chain     ChainReader
	Contracts Contracts
	Pools     *PoolResolver
	Allowance *AllowanceTracker
	Quotes    *QuoteEngine

	logger *zap.Logger
}

// NewEngine wires the pool, allowance and quote components.
func NewEngine(chain ChainReader, contracts Contracts, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		Chain:     chain,
		Contracts: contracts,
		Pools:     NewPoolResolver(chain, contracts.Factory, logger.Named("pools")),
		Allowance: NewAllowanceTracker(chain, logger.Named("allowance")),
		Quotes:    NewQuoteEngine(chain, contracts, logger.Named("quotes")),
		logger:    logger,
	}
}

// ResolvePool resolves the pool an intent trades through.
func (e *Engine) ResolvePool(ctx context.Context, intent model.SwapIntent) model.PoolState {
	fee := intent.Fee
	if fee == 0 {
		fee = model.FeeTier
	}
	return e.Pools.Resolve(ctx, e.Contracts.TokenAddress(intent.TokenIn), e.Contracts.TokenAddress(intent.TokenOut), fee)
}

// Balance reads account's balance of token; the native coin reads the
// account balance. Failures are reported as nil.
func (e *Engine) Balance(ctx context.Context, token model.Token, account common.Address) *big.Int {
	var (
		balance *big.Int
		err     error
	)
	if token.IsNative() {
		balance, err = e.Chain.BalanceAt(ctx, account, nil)
	} else {
		balance, err = dex.BalanceOf(ctx, e.Chain, token.Address, account)
	}
	if err != nil {
		e.logger.Debug("balance read failed",
			zap.String("token", token.Symbol),
			zap.String("account", account.Hex()),
			zap.Error(err),
		)
		return nil
	}
	return balance
}

// Inspection is a one-shot read of everything a session would show.
type Inspection struct {
	Intent        model.SwapIntent
	Owner         common.Address
	Pool          model.PoolState
	Allowance     *big.Int
	NeedsApproval bool
	Quote         model.Quote
	BalanceIn     *big.Int
	BalanceOut    *big.Int
}

// Err reports the first condition that would block the swap.
func (i Inspection) Err() error {
	switch {
	case !i.Pool.Exists():
		return ErrPoolNotFound
	case !i.Pool.HasLiquidity():
		return ErrEmptyLiquidity
	case i.NeedsApproval:
		return ErrInsufficientAllowance
	case !i.Quote.Present():
		return quoteError(i.Quote)
	}
	return nil
}

// Inspect runs the pool, allowance and balance reads concurrently, then the
// quote against the resolved pool.
func (e *Engine) Inspect(ctx context.Context, intent model.SwapIntent, owner common.Address) (Inspection, error) {
	if !intent.Complete() {
		return Inspection{}, ErrNotReady
	}
	if e.Contracts.WrapsNative(intent.TokenIn, intent.TokenOut) {
		return Inspection{Intent: intent, Owner: owner}, ErrWrapUnsupported
	}
	out := Inspection{Intent: intent, Owner: owner}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out.Pool = e.ResolvePool(gctx, intent)
		if out.Pool.HasLiquidity() {
			out.Quote = e.Quotes.Quote(gctx, intent, out.Pool, owner)
		}
		return gctx.Err()
	})
	g.Go(func() error {
		out.Allowance = e.Allowance.Current(gctx, owner, e.Contracts.Router, intent.TokenIn)
		return gctx.Err()
	})
	g.Go(func() error {
		out.BalanceIn = e.Balance(gctx, intent.TokenIn, owner)
		return gctx.Err()
	})
	g.Go(func() error {
		out.BalanceOut = e.Balance(gctx, intent.TokenOut, owner)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return Inspection{}, err
	}

	out.NeedsApproval = NeedsApproval(out.Allowance, intent.AmountInRaw)
	return out, nil
}
