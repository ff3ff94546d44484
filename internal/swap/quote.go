package swap

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"swapPilot/internal/dex"
	"swapPilot/internal/model"
)

// QuoteEngine prices an intent by simulating the router call it would submit.
type QuoteEngine struct {
	chain     dex.Caller
	contracts Contracts
	logger    *zap.Logger
}

// NewQuoteEngine builds a QuoteEngine.
func NewQuoteEngine(chain dex.Caller, contracts Contracts, logger *zap.Logger) *QuoteEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuoteEngine{chain: chain, contracts: contracts, logger: logger}
}

// Params builds the router arguments for intent, paid out to recipient.
func (q *QuoteEngine) Params(intent model.SwapIntent, recipient common.Address) model.SwapParams {
	tokenIn := q.contracts.TokenAddress(intent.TokenIn)
	tokenOut := q.contracts.TokenAddress(intent.TokenOut)
	fee := intent.Fee
	if fee == 0 {
		fee = model.FeeTier
	}

	amountIn := new(big.Int)
	if intent.AmountInRaw != nil {
		amountIn.Set(intent.AmountInRaw)
	}
	value := new(big.Int)
	if intent.TokenIn.IsNative() {
		value.Set(amountIn)
	}

	return model.SwapParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		Fee:               fee,
		Recipient:         recipient,
		AmountIn:          amountIn,
		SqrtPriceLimitX96: PriceLimit(ZeroForOne(tokenIn, tokenOut)),
		Value:             value,
	}
}

// Enabled reports whether a quote may be requested at all.
func (q *QuoteEngine) Enabled(intent model.SwapIntent, pool model.PoolState) bool {
	if !intent.Complete() {
		return false
	}
	if q.contracts.TokenAddress(intent.TokenIn) == q.contracts.TokenAddress(intent.TokenOut) {
		return false
	}
	return pool.HasLiquidity()
}

// Quote simulates the swap from caller. A disabled quote is absent and
// touches no remote endpoint; a reverted simulation carries the reason.
func (q *QuoteEngine) Quote(ctx context.Context, intent model.SwapIntent, pool model.PoolState, caller common.Address) model.Quote {
	if !q.Enabled(intent, pool) {
		return model.Quote{}
	}

	params := q.Params(intent, caller)
	amountOut, err := dex.SimulateExactInputSingle(ctx, q.chain, q.contracts.Router,
		dex.CallOpts{From: caller, Value: params.Value},
		dex.ExactInputSingleParams{
			TokenIn:           params.TokenIn,
			TokenOut:          params.TokenOut,
			Fee:               new(big.Int).SetUint64(uint64(params.Fee)),
			Recipient:         params.Recipient,
			AmountIn:          params.AmountIn,
			SqrtPriceLimitX96: params.SqrtPriceLimitX96,
		},
	)
	if err != nil {
		reason := dex.RevertReason(err)
		q.logger.Debug("quote simulation reverted",
			zap.String("token_in", params.TokenIn.Hex()),
			zap.String("token_out", params.TokenOut.Hex()),
			zap.String("amount_in", params.AmountIn.String()),
			zap.String("reason", reason),
		)
		return model.Quote{Failure: reason, Params: params}
	}

	return model.Quote{AmountOut: amountOut, Params: params}
}

// PackSwap encodes params as a router transaction request.
func (q *QuoteEngine) PackSwap(params model.SwapParams) (model.TxRequest, error) {
	data, err := dex.PackExactInputSingle(dex.ExactInputSingleParams{
		TokenIn:           params.TokenIn,
		TokenOut:          params.TokenOut,
		Fee:               new(big.Int).SetUint64(uint64(params.Fee)),
		Recipient:         params.Recipient,
		AmountIn:          params.AmountIn,
		SqrtPriceLimitX96: params.SqrtPriceLimitX96,
	})
	if err != nil {
		return model.TxRequest{}, err
	}
	value := new(big.Int)
	if params.Value != nil {
		value.Set(params.Value)
	}
	return model.TxRequest{
		Kind:  model.TxSwap,
		To:    q.contracts.Router,
		Data:  data,
		Value: value,
	}, nil
}
