package main

import (
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"swapPilot/internal/dex"
	"swapPilot/internal/model"
	"swapPilot/internal/swap"
	"swapPilot/internal/units"
	"swapPilot/internal/wallet"
)

var errNoOwner = errors.New("--owner or a private key is required")

func runQuote(cmd *cobra.Command, _ []string) error {
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
	intent, _, err := intentFromFlags(cmd, catalog)
	if err != nil {
		return err
	}

	owner, ok, err := parseAddressFlag(cmd, "owner")
	if err != nil {
		return err
	}
	if !ok {
		if e.cfg.PrivateKey == "" && e.cfg.PrivateKeyFile == "" {
			return errNoOwner
		}
		key, err := wallet.LoadPrivateKey(e.cfg.PrivateKey, e.cfg.PrivateKeyFile, nil)
		if err != nil {
			return err
		}
		owner = crypto.PubkeyToAddress(key.PublicKey)
	}

	client, err := e.dial()
	if err != nil {
		return err
	}
	defer client.Close()

	engine := swap.NewEngine(client, e.contracts(), e.logger)
	got, err := engine.Inspect(e.ctx, intent, owner)
	if err != nil {
		return err
	}

	in, outTok := intent.TokenIn, intent.TokenOut
	fmt.Fprintf(out, "owner:      %s\n", owner.Hex())
	fmt.Fprintf(out, "amount in:  %s %s\n", units.ToDecimalString(intent.AmountInRaw, in.Decimals), in.Symbol)
	printPool(out, got.Pool)
	fmt.Fprintf(out, "balance:    %s %s, %s %s\n",
		formatBalance(got.BalanceIn, in), in.Symbol, formatBalance(got.BalanceOut, outTok), outTok.Symbol)
	if !in.IsNative() {
		fmt.Fprintf(out, "allowance:  %s (approval needed: %t)\n", formatAllowance(got.Allowance, in), got.NeedsApproval)
	}
	if got.Quote.Present() {
		fmt.Fprintf(out, "quote:      %s %s\n", units.ToDecimalString(got.Quote.AmountOut, outTok.Decimals), outTok.Symbol)
	} else if got.Quote.Failure != "" {
		fmt.Fprintf(out, "quote:      failed: %s\n", got.Quote.Failure)
	}

	if err := got.Err(); err != nil && !errors.Is(err, swap.ErrInsufficientAllowance) {
		return err
	}
	return nil
}

func runPool(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	catalog, err := e.catalog()
	if err != nil {
		return err
	}
	aRef, _ := cmd.Flags().GetString("a")
	bRef, _ := cmd.Flags().GetString("b")
	fee, _ := cmd.Flags().GetUint32("fee")
	a, err := catalog.Lookup(aRef)
	if err != nil {
		return err
	}
	b, err := catalog.Lookup(bRef)
	if err != nil {
		return err
	}

	client, err := e.dial()
	if err != nil {
		return err
	}
	defer client.Close()

	contracts := e.contracts()
	if contracts.WrapsNative(a, b) {
		return swap.ErrWrapUnsupported
	}
	resolver := swap.NewPoolResolver(client, contracts.Factory, e.logger)
	state := resolver.Resolve(e.ctx, contracts.TokenAddress(a), contracts.TokenAddress(b), fee)

	out := cmd.OutOrStdout()
	token0, token1 := swap.SortTokens(contracts.TokenAddress(a), contracts.TokenAddress(b))
	fmt.Fprintf(out, "pair:       %s/%s fee %d\n", a.Symbol, b.Symbol, fee)
	fmt.Fprintf(out, "token0:     %s\n", token0.Hex())
	fmt.Fprintf(out, "token1:     %s\n", token1.Hex())
	printPool(out, state)
	if !state.Exists() {
		return swap.ErrPoolNotFound
	}
	return nil
}

func printPool(out io.Writer, pool model.PoolState) {
	if !pool.Exists() {
		fmt.Fprintln(out, "pool:       none")
		return
	}
	fmt.Fprintf(out, "pool:       %s\n", pool.Address.Hex())
	fmt.Fprintf(out, "liquidity:  %s\n", pool.Liquidity)
	fmt.Fprintf(out, "sqrtPrice:  %s\n", pool.SqrtPriceX96)
	fmt.Fprintf(out, "tick:       %d\n", pool.Tick)
}

func formatBalance(amount *big.Int, token model.Token) string {
	if amount == nil {
		return "?"
	}
	return units.FormatFixed(amount, token.Decimals, 4)
}

func formatAllowance(amount *big.Int, token model.Token) string {
	if amount == nil {
		return "?"
	}
	if amount.Cmp(dex.MaxApproval) == 0 {
		return "unlimited"
	}
	return units.ToDecimalString(amount, token.Decimals)
}
