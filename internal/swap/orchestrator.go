package swap

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"swapPilot/internal/metrics"
	"swapPilot/internal/model"
	"swapPilot/internal/units"
)

const eventBuffer = 32

type event struct {
	apply func(s *session) error
	reply chan error
}

// Options configures an Orchestrator.
type Options struct {
	Engine   *Engine
	Receipts ReceiptWatcher
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	Fee      uint32
}

// Orchestrator runs one swap session. A single loop goroutine owns all
// session state; commands and read results reach it through one channel.
type Orchestrator struct {
	engine   *Engine
	receipts ReceiptWatcher
	metrics  *metrics.Metrics
	logger   *zap.Logger
	fee      uint32

	events  chan event
	done    chan struct{}
	running atomic.Bool
	ctx     context.Context
	tasks   sync.WaitGroup

	mu        sync.Mutex
	view      View
	changed   chan struct{}
	published bool

	allowanceSeq uint64
}

// New builds an Orchestrator. Call Run to start it.
func New(opts Options) (*Orchestrator, error) {
	if opts.Engine == nil {
		return nil, errors.New("swap engine is nil")
	}
	if opts.Receipts == nil {
		return nil, errors.New("receipt watcher is nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fee := opts.Fee
	if fee == 0 {
		fee = model.FeeTier
	}
	return &Orchestrator{
		engine:   opts.Engine,
		receipts: opts.Receipts,
		metrics:  opts.Metrics,
		logger:   logger,
		fee:      fee,
		events:   make(chan event, eventBuffer),
		done:     make(chan struct{}),
		view:     reduce(&session{fee: fee}),
		changed:  make(chan struct{}),
	}, nil
}

// Run processes commands until ctx is done, then waits for background reads
// and transactions to return.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return errors.New("orchestrator already running")
	}
	o.ctx = ctx
	s := &session{fee: o.fee}
	o.publish(s)

	defer func() {
		close(o.done)
		o.tasks.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-o.events:
			err := ev.apply(s)
			o.publish(s)
			if ev.reply != nil {
				ev.reply <- err
			}
		}
	}
}

// View returns the latest published snapshot.
func (o *Orchestrator) View() View {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.view
}

// Wait blocks until pred accepts a published view.
func (o *Orchestrator) Wait(ctx context.Context, pred func(View) bool) (View, error) {
	for {
		o.mu.Lock()
		v, changed := o.view, o.changed
		o.mu.Unlock()
		if pred(v) {
			return v, nil
		}
		select {
		case <-changed:
		case <-o.done:
			return o.View(), ErrStopped
		case <-ctx.Done():
			return v, ctx.Err()
		}
	}
}

// Connect attaches a wallet to the session.
func (o *Orchestrator) Connect(ctx context.Context, w Wallet) error {
	if w == nil {
		return errors.New("wallet is nil")
	}
	return o.do(ctx, func(s *session) error {
		s.wallet = w
		s.account = w.Address()
		o.logger.Info("wallet connected", zap.String("account", s.account.Hex()))
		o.intentChanged(s)
		return nil
	})
}

// Disconnect detaches the wallet. In-flight transactions keep running.
func (o *Orchestrator) Disconnect(ctx context.Context) error {
	return o.do(ctx, func(s *session) error {
		s.wallet = nil
		s.account = common.Address{}
		o.intentChanged(s)
		return nil
	})
}

// SelectTokenIn sets the input token. Picking the current output token
// swaps the sides.
func (o *Orchestrator) SelectTokenIn(ctx context.Context, t model.Token) error {
	return o.do(ctx, func(s *session) error {
		if s.tokenIn != nil && s.tokenIn.Same(t) {
			return nil
		}
		if s.tokenOut != nil && s.tokenOut.Same(t) {
			s.tokenOut = s.tokenIn
		}
		s.tokenIn = &t
		s.reparse()
		o.intentChanged(s)
		return nil
	})
}

// SelectTokenOut sets the output token. Picking the current input token
// swaps the sides.
func (o *Orchestrator) SelectTokenOut(ctx context.Context, t model.Token) error {
	return o.do(ctx, func(s *session) error {
		if s.tokenOut != nil && s.tokenOut.Same(t) {
			return nil
		}
		if s.tokenIn != nil && s.tokenIn.Same(t) {
			s.tokenIn = s.tokenOut
			s.reparse()
		}
		s.tokenOut = &t
		o.intentChanged(s)
		return nil
	})
}

// SetAmount parses text in the input token's decimals. Malformed input is
// rejected and leaves the session unchanged.
func (o *Orchestrator) SetAmount(ctx context.Context, text string) error {
	return o.do(ctx, func(s *session) error {
		raw, err := parseAmount(text, s.tokenIn)
		if err != nil {
			return err
		}
		s.amountText = text
		s.amountRaw = raw
		o.intentChanged(s)
		return nil
	})
}

// SwitchTokens exchanges input and output.
func (o *Orchestrator) SwitchTokens(ctx context.Context) error {
	return o.do(ctx, func(s *session) error {
		if s.tokenIn == nil || s.tokenOut == nil {
			return fmt.Errorf("%w: both tokens must be selected", ErrNotReady)
		}
		s.tokenIn, s.tokenOut = s.tokenOut, s.tokenIn
		s.reparse()
		o.intentChanged(s)
		return nil
	})
}

// Refresh clears a failure and re-reads everything for the current intent.
func (o *Orchestrator) Refresh(ctx context.Context) error {
	return o.do(ctx, func(s *session) error {
		o.intentChanged(s)
		return nil
	})
}

// Approve submits an unlimited approval of the input token to the router.
func (o *Orchestrator) Approve(ctx context.Context) error {
	return o.do(ctx, func(s *session) error {
		if s.approval.InFlight() || (s.tokenIn != nil && o.engine.Allowance.Pending(s.tokenIn.Address)) {
			return ErrApprovalAlreadyPending
		}
		st, reason := step(s)
		if st != StepNeedsApproval {
			return notReady(st, reason)
		}

		token := *s.tokenIn
		w := s.wallet
		s.approval = &model.PendingTransaction{Kind: model.TxApprove, Token: token.Address, Status: model.TxSubmitted}
		s.rejection = nil
		o.spawn(func(ctx context.Context) {
			o.runApproval(ctx, w, token)
		})
		return nil
	})
}

// Swap submits the swap with the parameters of the last successful quote.
func (o *Orchestrator) Swap(ctx context.Context) error {
	return o.do(ctx, func(s *session) error {
		if s.swap.InFlight() {
			return ErrSwapAlreadyPending
		}
		st, reason := step(s)
		if st != StepReadyToSwap {
			return notReady(st, reason)
		}

		req, err := o.engine.Quotes.PackSwap(s.quote.Params)
		if err != nil {
			return err
		}
		w := s.wallet
		s.swap = &model.PendingTransaction{Kind: model.TxSwap, Token: s.tokenIn.Address, Status: model.TxSubmitted}
		s.rejection = nil
		o.spawn(func(ctx context.Context) {
			o.runSwap(ctx, w, req)
		})
		return nil
	})
}

func (o *Orchestrator) runApproval(ctx context.Context, w Wallet, token model.Token) {
	pt, err := o.engine.Allowance.SubmitApproval(ctx, w, o.engine.Contracts.Router, token)
	if err != nil {
		o.metrics.ObserveTx(string(model.TxApprove), sendOutcome(err))
		o.post(func(s *session) {
			if s.approval == nil || s.approval.Signed() {
				return
			}
			if errors.Is(err, ErrRejectedBySigner) {
				s.approval = nil
				s.rejection = err
				return
			}
			s.approval.Status = model.TxFailed
			s.approval.Err = err
			s.failure = err
		})
		return
	}
	o.metrics.ObserveTx(string(model.TxApprove), string(model.TxSubmitted))
	o.post(func(s *session) {
		if s.approval.InFlight() && !s.approval.Signed() {
			s.approval.Hash = pt.Hash
		}
	})

	status, err := o.receipts.AwaitConfirmation(ctx, pt.Hash)
	o.engine.Allowance.Release(token.Address)
	if ctx.Err() != nil {
		return
	}
	o.metrics.ObserveTx(string(model.TxApprove), receiptOutcome(status, err))
	o.post(func(s *session) {
		if s.approval == nil || s.approval.Hash != pt.Hash {
			return
		}
		if err != nil || status != model.TxConfirmed {
			failure := txFailure(pt.Hash, err)
			s.approval.Status = model.TxFailed
			s.approval.Err = failure
			s.failure = failure
			o.logger.Warn("approval failed", zap.String("tx_hash", pt.Hash.Hex()), zap.Error(failure))
			return
		}
		o.logger.Info("approval confirmed", zap.String("token", token.Symbol), zap.String("tx_hash", pt.Hash.Hex()))
		s.approval.Status = model.TxConfirmed
		s.allowance = nil
		if !s.ready() {
			s.approval = nil
			return
		}
		o.fetchAllowance(s)
	})
}

func (o *Orchestrator) runSwap(ctx context.Context, w Wallet, req model.TxRequest) {
	hash, err := w.SignAndSend(ctx, req)
	if err != nil {
		err = classifySendError(err)
		o.metrics.ObserveTx(string(model.TxSwap), sendOutcome(err))
		o.post(func(s *session) {
			if s.swap == nil || s.swap.Signed() {
				return
			}
			if errors.Is(err, ErrRejectedBySigner) {
				s.swap = nil
				s.rejection = err
				return
			}
			s.swap.Status = model.TxFailed
			s.swap.Err = err
			s.failure = err
		})
		return
	}
	o.metrics.ObserveTx(string(model.TxSwap), string(model.TxSubmitted))
	o.logger.Info("swap submitted", zap.String("tx_hash", hash.Hex()), zap.String("value", req.Value.String()))
	o.post(func(s *session) {
		if s.swap.InFlight() && !s.swap.Signed() {
			s.swap.Hash = hash
		}
	})

	status, err := o.receipts.AwaitConfirmation(ctx, hash)
	if ctx.Err() != nil {
		return
	}
	o.metrics.ObserveTx(string(model.TxSwap), receiptOutcome(status, err))
	o.post(func(s *session) {
		if s.swap == nil || s.swap.Hash != hash {
			return
		}
		if err != nil || status != model.TxConfirmed {
			failure := txFailure(hash, err)
			s.swap.Status = model.TxFailed
			s.swap.Err = failure
			s.failure = failure
			o.logger.Warn("swap failed", zap.String("tx_hash", hash.Hex()), zap.Error(failure))
			return
		}
		o.logger.Info("swap confirmed", zap.String("tx_hash", hash.Hex()))
		s.swap.Status = model.TxConfirmed
		o.reload(s)
	})
}

// intentChanged starts a new generation after a user-driven change. Settled
// transactions and failures belong to the previous intent and are dropped.
func (o *Orchestrator) intentChanged(s *session) {
	s.failure = nil
	s.rejection = nil
	if s.swap != nil && !s.swap.InFlight() {
		s.swap = nil
	}
	if s.approval != nil && !s.approval.InFlight() {
		s.approval = nil
	}
	o.reload(s)
}

// reload bumps the generation and re-issues every read.
func (o *Orchestrator) reload(s *session) {
	s.generation++
	s.dispatched = false
	s.pool = nil
	s.allowance = nil
	s.quote = nil
	s.balanceIn = nil
	s.balanceOut = nil
	s.wrap = s.tokenIn != nil && s.tokenOut != nil && o.engine.Contracts.WrapsNative(*s.tokenIn, *s.tokenOut)

	if s.wallet == nil {
		return
	}
	o.fetchBalances(s)
	if !s.ready() || s.wrap {
		return
	}
	s.dispatched = true
	o.fetchPool(s)
	o.fetchAllowance(s)
}

func (o *Orchestrator) fetchPool(s *session) {
	gen := s.generation
	intent := s.intent()
	owner := s.account
	o.spawn(func(ctx context.Context) {
		pool := o.engine.ResolvePool(ctx, intent)
		o.metrics.ObserveRead("pool", poolOutcome(pool))
		o.post(func(s *session) {
			if o.stale(s, gen, "pool") {
				return
			}
			s.pool = &pool
			if !o.engine.Quotes.Enabled(intent, pool) {
				s.quote = &model.Quote{}
				return
			}
			o.fetchQuote(s, intent, pool, owner)
		})
	})
}

func (o *Orchestrator) fetchQuote(s *session, intent model.SwapIntent, pool model.PoolState, owner common.Address) {
	gen := s.generation
	o.spawn(func(ctx context.Context) {
		quote := o.engine.Quotes.Quote(ctx, intent, pool, owner)
		outcome := "ok"
		if !quote.Present() {
			outcome = "reverted"
		}
		o.metrics.ObserveRead("quote", outcome)
		o.post(func(s *session) {
			if o.stale(s, gen, "quote") {
				return
			}
			s.quote = &quote
		})
	})
}

func (o *Orchestrator) fetchAllowance(s *session) {
	o.allowanceSeq++
	seq := o.allowanceSeq
	gen := s.generation
	token := *s.tokenIn
	owner := s.account
	spender := o.engine.Contracts.Router
	o.spawn(func(ctx context.Context) {
		amount := o.engine.Allowance.Current(ctx, owner, spender, token)
		o.metrics.ObserveRead("allowance", "ok")
		o.post(func(s *session) {
			if seq != o.allowanceSeq || o.stale(s, gen, "allowance") {
				return
			}
			s.allowance = amount
			if s.approval != nil && s.approval.Status == model.TxConfirmed {
				s.approval = nil
			}
		})
	})
}

func (o *Orchestrator) fetchBalances(s *session) {
	gen := s.generation
	owner := s.account
	if s.tokenIn != nil {
		token := *s.tokenIn
		o.spawn(func(ctx context.Context) {
			balance := o.engine.Balance(ctx, token, owner)
			o.metrics.ObserveRead("balance", balanceOutcome(balance))
			o.post(func(s *session) {
				if !o.stale(s, gen, "balance") {
					s.balanceIn = balance
				}
			})
		})
	}
	if s.tokenOut != nil {
		token := *s.tokenOut
		o.spawn(func(ctx context.Context) {
			balance := o.engine.Balance(ctx, token, owner)
			o.metrics.ObserveRead("balance", balanceOutcome(balance))
			o.post(func(s *session) {
				if !o.stale(s, gen, "balance") {
					s.balanceOut = balance
				}
			})
		})
	}
}

func (o *Orchestrator) stale(s *session, gen uint64, kind string) bool {
	if s.generation == gen {
		return false
	}
	o.metrics.ObserveStale(kind)
	o.logger.Debug("stale read dropped",
		zap.String("kind", kind),
		zap.Uint64("generation", gen),
		zap.Uint64("current", s.generation),
	)
	return true
}

func (o *Orchestrator) publish(s *session) {
	v := reduce(s)

	o.mu.Lock()
	prev := o.view.Step
	first := !o.published
	o.published = true
	o.view = v
	close(o.changed)
	o.changed = make(chan struct{})
	o.mu.Unlock()

	if first || prev != v.Step {
		o.metrics.ObserveStep(v.Step.String())
		fields := []zap.Field{
			zap.String("step", v.Step.String()),
			zap.Uint64("generation", v.Generation),
		}
		if v.Err != nil {
			fields = append(fields, zap.Error(v.Err))
		}
		o.logger.Info("step changed", fields...)
	}
}

// do runs fn on the loop and waits for its result.
func (o *Orchestrator) do(ctx context.Context, fn func(s *session) error) error {
	reply := make(chan error, 1)
	select {
	case o.events <- event{apply: fn, reply: reply}:
	case <-o.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-o.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post queues a completion event from a background task.
func (o *Orchestrator) post(fn func(s *session)) {
	ev := event{apply: func(s *session) error {
		fn(s)
		return nil
	}}
	select {
	case o.events <- ev:
	case <-o.done:
	}
}

// spawn starts a background task bound to the session context. Only called
// from the loop.
func (o *Orchestrator) spawn(fn func(ctx context.Context)) {
	o.tasks.Add(1)
	go func() {
		defer o.tasks.Done()
		fn(o.ctx)
	}()
}

func (s *session) reparse() {
	if s.amountText == "" {
		s.amountRaw = nil
		return
	}
	raw, err := parseAmount(s.amountText, s.tokenIn)
	if err != nil {
		s.amountText = ""
		s.amountRaw = nil
		return
	}
	s.amountRaw = raw
}

func parseAmount(text string, token *model.Token) (*big.Int, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	decimals := uint8(18)
	if token != nil {
		decimals = token.Decimals
	}
	return units.ToBaseUnits(text, decimals)
}

func notReady(st Step, reason error) error {
	if reason != nil {
		return fmt.Errorf("%w in step %s: %w", ErrNotReady, st, reason)
	}
	return fmt.Errorf("%w in step %s", ErrNotReady, st)
}

func txFailure(hash common.Hash, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTransactionFailed, hash.Hex(), err)
	}
	return fmt.Errorf("%w: %s reverted", ErrTransactionFailed, hash.Hex())
}

func sendOutcome(err error) string {
	if errors.Is(err, ErrRejectedBySigner) {
		return "rejected"
	}
	return string(model.TxFailed)
}

func receiptOutcome(status model.TxStatus, err error) string {
	if err != nil {
		return string(model.TxFailed)
	}
	return string(status)
}

func poolOutcome(pool model.PoolState) string {
	switch {
	case !pool.Exists():
		return "missing"
	case !pool.HasLiquidity():
		return "empty"
	}
	return "found"
}

func balanceOutcome(balance *big.Int) string {
	if balance == nil {
		return "error"
	}
	return "ok"
}
