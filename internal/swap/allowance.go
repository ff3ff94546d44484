package swap

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"swapPilot/internal/dex"
	"swapPilot/internal/model"
)

// AllowanceTracker reads ERC-20 allowances and submits unlimited approvals,
// at most one in flight per token.
type AllowanceTracker struct {
	chain  dex.Caller
	logger *zap.Logger

	mu      sync.Mutex
	pending map[common.Address]struct{}
}

// NewAllowanceTracker builds an AllowanceTracker.
func NewAllowanceTracker(chain dex.Caller, logger *zap.Logger) *AllowanceTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AllowanceTracker{
		chain:   chain,
		logger:  logger,
		pending: make(map[common.Address]struct{}),
	}
}

// Current returns the allowance owner granted spender on token. Read
// failures count as zero. The native coin needs no approval.
func (t *AllowanceTracker) Current(ctx context.Context, owner, spender common.Address, token model.Token) *big.Int {
	if token.IsNative() {
		return new(big.Int).Set(dex.MaxApproval)
	}
	amount, err := dex.Allowance(ctx, t.chain, token.Address, owner, spender)
	if err != nil {
		t.logger.Debug("allowance call failed",
			zap.String("token", token.Address.Hex()),
			zap.String("owner", owner.Hex()),
			zap.String("spender", spender.Hex()),
			zap.Error(err),
		)
		return new(big.Int)
	}
	return amount
}

// NeedsApproval reports whether allowance falls short of a positive amount.
func NeedsApproval(allowance, amount *big.Int) bool {
	if amount == nil || amount.Sign() <= 0 {
		return false
	}
	if allowance == nil {
		return true
	}
	return allowance.Cmp(amount) < 0
}

// SubmitApproval asks the wallet to approve spender for the maximum amount so
// later swaps of the same token skip this step. The token stays reserved
// until Release.
func (t *AllowanceTracker) SubmitApproval(ctx context.Context, w Wallet, spender common.Address, token model.Token) (model.PendingTransaction, error) {
	pt := model.PendingTransaction{Kind: model.TxApprove, Token: token.Address}
	if w == nil {
		return pt, fmt.Errorf("%w: no wallet connected", ErrNotReady)
	}
	if token.IsNative() {
		return pt, fmt.Errorf("%w: native %s needs no approval", ErrNotReady, token.Symbol)
	}

	t.mu.Lock()
	if _, busy := t.pending[token.Address]; busy {
		t.mu.Unlock()
		return pt, ErrApprovalAlreadyPending
	}
	t.pending[token.Address] = struct{}{}
	t.mu.Unlock()

	data, err := dex.PackApprove(spender, dex.MaxApproval)
	if err != nil {
		t.Release(token.Address)
		return pt, err
	}

	hash, err := w.SignAndSend(ctx, model.TxRequest{
		Kind:  model.TxApprove,
		To:    token.Address,
		Data:  data,
		Value: new(big.Int),
	})
	if err != nil {
		t.Release(token.Address)
		return pt, classifySendError(err)
	}

	t.logger.Info("approval submitted",
		zap.String("token", token.Symbol),
		zap.String("spender", spender.Hex()),
		zap.String("tx_hash", hash.Hex()),
	)

	pt.Hash = hash
	pt.Status = model.TxSubmitted
	return pt, nil
}

// Pending reports whether an approval for token is in flight.
func (t *AllowanceTracker) Pending(token common.Address) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pending[token]
	return ok
}

// Release frees the token once its approval receipt has settled.
func (t *AllowanceTracker) Release(token common.Address) {
	t.mu.Lock()
	delete(t.pending, token)
	t.mu.Unlock()
}

func classifySendError(err error) error {
	if errors.Is(err, ErrRejectedBySigner) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
}
