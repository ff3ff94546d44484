package main

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swapPilot/internal/dex"
	"swapPilot/internal/metrics"
	"swapPilot/internal/model"
	"swapPilot/internal/swap"
	"swapPilot/internal/units"
	"swapPilot/internal/wallet"
)

func runSwap(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()
	out := cmd.OutOrStdout()

	catalog, err := e.catalog()
	if err != nil {
		return err
	}
	intent, amountText, err := intentFromFlags(cmd, catalog)
	if err != nil {
		return err
	}

	client, err := e.dial()
	if err != nil {
		return err
	}
	defer client.Close()

	key, err := wallet.LoadPrivateKey(e.cfg.PrivateKey, e.cfg.PrivateKeyFile, wallet.PromptKey)
	if err != nil {
		return err
	}
	var confirm wallet.ConfirmFunc
	if !e.cfg.Yes {
		if !wallet.Interactive() {
			return fmt.Errorf("stdin is not a terminal; pass --yes to sign without confirmation")
		}
		confirm = wallet.TerminalConfirm(os.Stdin, os.Stderr, describeRequest(intent, amountText))
	}
	signer, err := wallet.NewKeyedWallet(client, key, big.NewInt(e.cfg.ChainID), confirm, e.logger.Named("wallet"))
	if err != nil {
		return err
	}

	m := metrics.New()
	if e.cfg.MetricsAddr != "" {
		go func() {
			if err := m.Serve(e.ctx, e.cfg.MetricsAddr, e.logger); err != nil {
				e.logger.Warn("metrics endpoint stopped", zap.Error(err))
			}
		}()
	}

	orch, err := swap.New(swap.Options{
		Engine:   swap.NewEngine(client, e.contracts(), e.logger),
		Receipts: wallet.NewReceiptPoller(client, e.cfg.ReceiptPoll, e.cfg.MaxRetries, e.cfg.RetryBackoff, e.logger.Named("receipts")),
		Metrics:  m,
		Logger:   e.logger.Named("session"),
	})
	if err != nil {
		return err
	}
	runErr := make(chan error, 1)
	go func() { runErr <- orch.Run(e.ctx) }()
	defer func() {
		e.stop()
		<-runErr
	}()

	e.logger.Info("swap start",
		zap.String("account", signer.Address().Hex()),
		zap.String("token_in", intent.TokenIn.Symbol),
		zap.String("token_out", intent.TokenOut.Symbol),
		zap.String("amount", amountText),
	)

	if err := orch.Connect(e.ctx, signer); err != nil {
		return err
	}
	if err := orch.SelectTokenIn(e.ctx, intent.TokenIn); err != nil {
		return err
	}
	if err := orch.SelectTokenOut(e.ctx, intent.TokenOut); err != nil {
		return err
	}
	if err := orch.SetAmount(e.ctx, amountText); err != nil {
		return err
	}

	return drive(e, orch, client, out)
}

// drive walks the session to Success, approving at most once.
func drive(e *env, orch *swap.Orchestrator, receipts wallet.ReceiptBackend, out io.Writer) error {
	approved := false
	for {
		v, err := orch.Wait(e.ctx, settled)
		if err != nil {
			return err
		}
		if v.Rejection != nil {
			return v.Rejection
		}

		switch v.Step {
		case swap.StepNeedsApproval:
			if approved {
				return fmt.Errorf("allowance still below amount after approval: %w", swap.ErrInsufficientAllowance)
			}
			fmt.Fprintf(out, "Balance: %s %s\n", v.BalanceIn, v.TokenIn.Symbol)
			fmt.Fprintf(out, "%s for the router...\n", v.Action)
			if err := orch.Approve(e.ctx); err != nil {
				return err
			}
			approved = true
			if err := waitSubmitted(e, orch, out, func(v swap.View) *model.PendingTransaction { return v.Approval }); err != nil {
				return err
			}

		case swap.StepReadyToSwap:
			fmt.Fprintf(out, "Swap %s %s for ~%s %s (pool %s)\n",
				v.AmountIn, v.TokenIn.Symbol, v.AmountOut, v.TokenOut.Symbol, v.Pool.Address.Hex())
			if err := orch.Swap(e.ctx); err != nil {
				return err
			}
			if err := waitSubmitted(e, orch, out, func(v swap.View) *model.PendingTransaction { return v.Swap }); err != nil {
				return err
			}

		case swap.StepSuccess:
			fmt.Fprintf(out, "Swap confirmed: %s\n", v.Swap.Hash.Hex())
			if ev, err := settlement(e.ctx, receipts, v.Swap.Hash, v.Account); err != nil {
				e.logger.Warn("read swap settlement", zap.Error(err))
			} else if ev != nil {
				fmt.Fprintf(out, "Paid %s %s, received %s %s\n",
					units.ToDecimalString(ev.Paid(), v.TokenIn.Decimals), v.TokenIn.Symbol,
					units.ToDecimalString(ev.Received(), v.TokenOut.Decimals), v.TokenOut.Symbol)
			}
			final, err := orch.Wait(e.ctx, func(v swap.View) bool { return v.BalanceIn != "" && v.BalanceOut != "" })
			if err == nil {
				fmt.Fprintf(out, "Balances: %s %s, %s %s\n", final.BalanceIn, final.TokenIn.Symbol, final.BalanceOut, final.TokenOut.Symbol)
			}
			return nil

		default:
			if v.Err != nil {
				return v.Err
			}
			return fmt.Errorf("swap stopped in step %s", v.Step)
		}
	}
}

// waitSubmitted prints the hash once the signer returns one.
func waitSubmitted(e *env, orch *swap.Orchestrator, out io.Writer, pick func(swap.View) *model.PendingTransaction) error {
	v, err := orch.Wait(e.ctx, func(v swap.View) bool {
		return pick(v).Signed() || settled(v)
	})
	if err != nil {
		return err
	}
	if tx := pick(v); tx.Signed() {
		fmt.Fprintf(out, "Submitted %s %s, waiting for confirmation...\n", tx.Kind, tx.Hash.Hex())
	}
	return nil
}

// settled reports whether the session waits on the user or has finished.
func settled(v swap.View) bool {
	if v.Rejection != nil {
		return true
	}
	if v.Step.Idle() || v.Step.Terminal() || v.Step.Blocked() {
		return true
	}
	return v.Step == swap.StepNeedsApproval || v.Step == swap.StepReadyToSwap
}

func describeRequest(intent model.SwapIntent, amount string) func(model.TxRequest) string {
	return func(req model.TxRequest) string {
		switch req.Kind {
		case model.TxApprove:
			return fmt.Sprintf("unlimited %s approval for %s", intent.TokenIn.Symbol, req.To.Hex())
		case model.TxSwap:
			s := fmt.Sprintf("swap of %s %s to %s", amount, intent.TokenIn.Symbol, intent.TokenOut.Symbol)
			if req.Value != nil && req.Value.Sign() > 0 {
				s += fmt.Sprintf(" (sending %s ETH)", units.ToDecimalString(req.Value, 18))
			}
			return s
		}
		return string(req.Kind)
	}
}

// settlement finds the pool Swap log that paid out to account in the swap
// transaction. It returns nil when the receipt carries no such log.
func settlement(ctx context.Context, receipts wallet.ReceiptBackend, hash common.Hash, account common.Address) (*dex.SwapEvent, error) {
	receipt, err := receipts.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, err
	}
	events, err := dex.DecodeSwapEvents(receipt.Logs)
	if err != nil {
		return nil, err
	}
	for i := range events {
		if events[i].Recipient == account {
			return &events[i], nil
		}
	}
	return nil, nil
}
