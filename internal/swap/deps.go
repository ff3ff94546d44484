package swap

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"swapPilot/internal/dex"
	"swapPilot/internal/model"
)

// ChainReader is the read-only side of the RPC transport.
type ChainReader interface {
	dex.Caller
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Wallet is the connected account. SignAndSend returns ErrRejectedBySigner
// (wrapped) when the user declines.
type Wallet interface {
	Address() common.Address
	ChainID() *big.Int
	SignAndSend(ctx context.Context, req model.TxRequest) (common.Hash, error)
}

// ReceiptWatcher blocks until a transaction is mined and reports its outcome.
type ReceiptWatcher interface {
	AwaitConfirmation(ctx context.Context, hash common.Hash) (model.TxStatus, error)
}

// Contracts are the deployment addresses a session trades against.
type Contracts struct {
	Factory       common.Address
	Router        common.Address
	WrappedNative common.Address
}

// TokenAddress maps a catalog token to the ERC-20 the pool holds; the native
// coin trades as its wrapped token.
func (c Contracts) TokenAddress(t model.Token) common.Address {
	if t.IsNative() {
		return c.WrappedNative
	}
	return t.Address
}

// WrapsNative reports whether a and b are the native coin and its wrapped
// token, which map to the same pool token.
func (c Contracts) WrapsNative(a, b model.Token) bool {
	return !a.Same(b) && c.TokenAddress(a) == c.TokenAddress(b)
}
