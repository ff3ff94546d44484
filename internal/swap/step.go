package swap

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"swapPilot/internal/model"
	"swapPilot/internal/units"
)

// Step is the single state a session presents.
type Step int

const (
	StepConnect Step = iota
	StepSelectToken
	StepEnterAmount
	StepAmountEntered
	StepQuoting
	StepPoolMissing
	StepPoolEmpty
	StepQuoteFailed
	StepNeedsApproval
	StepApproving
	StepApprovalConfirming
	StepReadyToSwap
	StepSwapping
	StepSwapConfirming
	StepSuccess
	StepFailed
	StepWrapUnsupported
)

var stepNames = [...]string{
	StepConnect:            "connect",
	StepSelectToken:        "select_token",
	StepEnterAmount:        "enter_amount",
	StepAmountEntered:      "amount_entered",
	StepQuoting:            "quoting",
	StepPoolMissing:        "pool_missing",
	StepPoolEmpty:          "pool_empty",
	StepQuoteFailed:        "quote_failed",
	StepNeedsApproval:      "needs_approval",
	StepApproving:          "approving",
	StepApprovalConfirming: "approval_confirming",
	StepReadyToSwap:        "ready_to_swap",
	StepSwapping:           "swapping",
	StepSwapConfirming:     "swap_confirming",
	StepSuccess:            "success",
	StepFailed:             "failed",
	StepWrapUnsupported:    "wrap_unsupported",
}

func (s Step) String() string {
	if s < 0 || int(s) >= len(stepNames) {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

// Idle reports whether the step waits on user input rather than the chain.
func (s Step) Idle() bool {
	return s == StepConnect || s == StepSelectToken || s == StepEnterAmount
}

// Terminal reports whether the step ends a submission.
func (s Step) Terminal() bool {
	return s == StepSuccess || s == StepFailed
}

// Blocked reports whether the step is a dead end for the current intent.
func (s Step) Blocked() bool {
	return s == StepPoolMissing || s == StepPoolEmpty || s == StepQuoteFailed || s == StepWrapUnsupported
}

// View is an immutable snapshot of a session. Values must not be mutated.
type View struct {
	Step    Step
	Action  string
	Enabled bool
	// Err explains a blocked or failed step.
	Err error
	// Rejection is the last signer refusal, kept until the intent changes.
	Rejection error

	Generation uint64
	Account    common.Address
	TokenIn    *model.Token
	TokenOut   *model.Token

	AmountIn     string
	AmountInRaw  *big.Int
	AmountOut    string
	AmountOutRaw *big.Int
	BalanceIn    string
	BalanceOut   string

	Pool      *model.PoolState
	Allowance *big.Int
	Quote     *model.Quote
	Approval  *model.PendingTransaction
	Swap      *model.PendingTransaction
}

const balancePlaces = 4

// session is the loop-owned mutable state.
type session struct {
	wallet  Wallet
	account common.Address

	tokenIn    *model.Token
	tokenOut   *model.Token
	amountText string
	amountRaw  *big.Int
	fee        uint32

	wrap       bool
	generation uint64
	dispatched bool
	pool       *model.PoolState
	allowance  *big.Int
	quote      *model.Quote
	balanceIn  *big.Int
	balanceOut *big.Int

	approval  *model.PendingTransaction
	swap      *model.PendingTransaction
	failure   error
	rejection error
}

func (s *session) intent() model.SwapIntent {
	intent := model.SwapIntent{AmountInRaw: s.amountRaw, Fee: s.fee}
	if s.tokenIn != nil {
		intent.TokenIn = *s.tokenIn
	}
	if s.tokenOut != nil {
		intent.TokenOut = *s.tokenOut
	}
	return intent
}

func (s *session) ready() bool {
	return s.wallet != nil && s.tokenIn != nil && s.tokenOut != nil && s.intent().Complete()
}

// reduce derives the step and its presentation from session state. It has
// no side effects.
func reduce(s *session) View {
	v := View{
		Generation: s.generation,
		Account:    s.account,
		TokenIn:    copyToken(s.tokenIn),
		TokenOut:   copyToken(s.tokenOut),
		AmountIn:   s.amountText,
		Rejection:  s.rejection,
	}
	if s.amountRaw != nil {
		v.AmountInRaw = new(big.Int).Set(s.amountRaw)
	}
	if s.pool != nil {
		pool := *s.pool
		v.Pool = &pool
	}
	if s.allowance != nil {
		v.Allowance = new(big.Int).Set(s.allowance)
	}
	if s.quote != nil {
		quote := *s.quote
		v.Quote = &quote
		if quote.Present() && s.tokenOut != nil {
			v.AmountOutRaw = new(big.Int).Set(quote.AmountOut)
			v.AmountOut = units.ToDecimalString(quote.AmountOut, s.tokenOut.Decimals)
		}
	}
	if s.tokenIn != nil && s.balanceIn != nil {
		v.BalanceIn = units.FormatFixed(s.balanceIn, s.tokenIn.Decimals, balancePlaces)
	}
	if s.tokenOut != nil && s.balanceOut != nil {
		v.BalanceOut = units.FormatFixed(s.balanceOut, s.tokenOut.Decimals, balancePlaces)
	}
	v.Approval = copyTx(s.approval)
	v.Swap = copyTx(s.swap)

	v.Step, v.Err = step(s)
	v.Action, v.Enabled = action(v.Step, s.tokenIn)
	return v
}

func step(s *session) (Step, error) {
	if s.wallet == nil {
		return StepConnect, nil
	}

	switch {
	case s.swap.InFlight() && !s.swap.Signed():
		return StepSwapping, nil
	case s.swap.InFlight():
		return StepSwapConfirming, nil
	case s.approval.InFlight() && !s.approval.Signed():
		return StepApproving, nil
	case s.approval.InFlight():
		return StepApprovalConfirming, nil
	case s.approval != nil && s.approval.Status == model.TxConfirmed && s.allowance == nil:
		return StepApprovalConfirming, nil
	}

	if s.failure != nil {
		return StepFailed, s.failure
	}
	if s.swap != nil && s.swap.Status == model.TxConfirmed {
		return StepSuccess, nil
	}

	if s.tokenIn == nil || s.tokenOut == nil {
		return StepSelectToken, nil
	}
	if s.amountRaw == nil || s.amountRaw.Sign() <= 0 {
		return StepEnterAmount, nil
	}
	if s.wrap {
		return StepWrapUnsupported, ErrWrapUnsupported
	}
	if !s.dispatched {
		return StepAmountEntered, nil
	}

	if s.pool == nil {
		return StepQuoting, nil
	}
	if !s.pool.Exists() {
		return StepPoolMissing, ErrPoolNotFound
	}
	if !s.pool.HasLiquidity() {
		return StepPoolEmpty, ErrEmptyLiquidity
	}

	if s.allowance == nil {
		return StepQuoting, nil
	}
	if NeedsApproval(s.allowance, s.amountRaw) {
		return StepNeedsApproval, ErrInsufficientAllowance
	}

	if s.quote == nil {
		return StepQuoting, nil
	}
	if !s.quote.Present() {
		return StepQuoteFailed, quoteError(*s.quote)
	}
	return StepReadyToSwap, nil
}

func action(step Step, tokenIn *model.Token) (string, bool) {
	switch step {
	case StepConnect:
		return "Connect Wallet", true
	case StepSelectToken:
		return "Select Token", true
	case StepEnterAmount:
		return "Enter Amount", false
	case StepAmountEntered, StepQuoting:
		return "Fetching Quote...", false
	case StepPoolMissing:
		return "Pool Not Found", false
	case StepPoolEmpty:
		return "Insufficient Liquidity", false
	case StepWrapUnsupported:
		return "Wrap Not Supported", false
	case StepQuoteFailed:
		return "Quote Failed", false
	case StepNeedsApproval:
		return "Approve " + symbol(tokenIn), true
	case StepApproving:
		return "Approving " + symbol(tokenIn) + "...", false
	case StepApprovalConfirming:
		return "Confirming Approval...", false
	case StepReadyToSwap:
		return "Swap", true
	case StepSwapping:
		return "Swapping...", false
	case StepSwapConfirming:
		return "Confirming Swap...", false
	case StepSuccess:
		return "Swap Successful!", false
	case StepFailed:
		return "Swap Failed", false
	}
	return step.String(), false
}

func quoteError(q model.Quote) error {
	if q.Failure == "" {
		return ErrQuoteSimulationFailed
	}
	return fmt.Errorf("%w: %s", ErrQuoteSimulationFailed, q.Failure)
}

func symbol(t *model.Token) string {
	if t == nil {
		return ""
	}
	return t.Symbol
}

func copyToken(t *model.Token) *model.Token {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func copyTx(p *model.PendingTransaction) *model.PendingTransaction {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
