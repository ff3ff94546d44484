package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TxKind distinguishes approval and swap transactions.
type TxKind string

const (
	TxApprove TxKind = "approve"
	TxSwap    TxKind = "swap"
)

// TxStatus is the lifecycle of a submitted transaction.
type TxStatus string

const (
	TxSubmitted TxStatus = "submitted"
	TxConfirmed TxStatus = "confirmed"
	TxFailed    TxStatus = "failed"
)

// PendingTransaction tracks one approval or swap from signing to receipt.
// Hash is empty while the signer has not returned yet.
type PendingTransaction struct {
	Kind   TxKind
	Token  common.Address
	Hash   common.Hash
	Status TxStatus
	Err    error
}

// InFlight reports whether the transaction is still awaiting a signer or a receipt.
func (p *PendingTransaction) InFlight() bool {
	return p != nil && p.Status == TxSubmitted
}

// Signed reports whether the signer has returned a hash.
func (p *PendingTransaction) Signed() bool {
	return p != nil && p.Hash != (common.Hash{})
}

// TxRequest is an unsigned call for the wallet to sign and broadcast.
type TxRequest struct {
	Kind  TxKind
	To    common.Address
	Data  []byte
	Value *big.Int
}
