package swap

import (
	"errors"

	"swapPilot/internal/units"
)

var (
	// ErrMalformedAmount rejects amount input before any remote call.
	ErrMalformedAmount = units.ErrMalformedAmount
	// ErrPoolNotFound means no pool is deployed for the pair and fee tier.
	ErrPoolNotFound = errors.New("pool not found")
	// ErrWrapUnsupported means the pair is the native coin and its own wrapped
	// token, which no pool trades.
	ErrWrapUnsupported = errors.New("wrapping or unwrapping the native coin is not supported")
	// ErrEmptyLiquidity means the pool exists but holds no in-range liquidity.
	ErrEmptyLiquidity = errors.New("pool has no liquidity")
	// ErrQuoteSimulationFailed wraps the revert message of a failed simulation.
	ErrQuoteSimulationFailed = errors.New("quote simulation failed")
	// ErrInsufficientAllowance routes the session to the approval step.
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	// ErrApprovalAlreadyPending rejects a second approval while one is in flight.
	ErrApprovalAlreadyPending = errors.New("approval already pending")
	// ErrSwapAlreadyPending rejects a second swap while one is in flight.
	ErrSwapAlreadyPending = errors.New("swap already pending")
	// ErrRejectedBySigner means the wallet declined to sign.
	ErrRejectedBySigner = errors.New("transaction rejected by signer")
	// ErrTransactionFailed covers broadcast errors, reverts and failed receipts.
	ErrTransactionFailed = errors.New("transaction failed")
	// ErrNotReady is returned for actions the current step does not offer.
	ErrNotReady = errors.New("action not available")
	// ErrStopped is returned once the session loop has exited.
	ErrStopped = errors.New("session stopped")
)
