package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swapPilot/internal/dex"
	"swapPilot/internal/model"
	"swapPilot/internal/storage"
	"swapPilot/internal/storage/postgres"
	"swapPilot/internal/tokens"
)

func runTokensList(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	catalog, err := e.catalog()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tNAME\tDECIMALS\tADDRESS")
	for _, t := range catalog.Sorted() {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", t.Symbol, t.Name, t.Decimals, t.Address.Hex())
	}
	return w.Flush()
}

func runTokensSync(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	catalog, err := e.catalog()
	if err != nil {
		return err
	}
	extra, _ := cmd.Flags().GetStringSlice("address")
	outPath, _ := cmd.Flags().GetString("out")

	var addresses []common.Address
	known := make(map[common.Address]model.Token)
	for _, t := range catalog.List() {
		if t.IsNative() {
			continue
		}
		known[t.Address] = t
		addresses = append(addresses, t.Address)
	}
	for _, raw := range extra {
		if !common.IsHexAddress(raw) {
			return fmt.Errorf("--address: invalid address %q", raw)
		}
		addr := common.HexToAddress(raw)
		if _, ok := known[addr]; !ok {
			addresses = append(addresses, addr)
		}
	}

	client, err := e.dial()
	if err != nil {
		return err
	}
	defer client.Close()

	fetched, err := dex.FetchTokenMetas(e.ctx, client, addresses, e.logger)
	if err != nil {
		return fmt.Errorf("fetch token metadata: %w", err)
	}
	synced := make([]model.Token, 0, len(fetched))
	for _, t := range fetched {
		synced = append(synced, mergeToken(known[t.Address], t))
	}

	var stores []storage.TokenStore
	if e.cfg.PGDSN != "" {
		store, err := postgres.NewStore(e.ctx, e.cfg.PGDSN, e.cfg.ChainID)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		stores = append(stores, store)
	}
	if outPath != "" {
		stores = append(stores, storage.NewJsonlStorage(outPath))
	}

	for _, store := range stores {
		if err := store.PutTokens(e.ctx, synced); err != nil {
			return fmt.Errorf("store tokens: %w", err)
		}
	}

	e.logger.Info("tokens synced",
		zap.Int("tokens", len(synced)),
		zap.Int("stores", len(stores)),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "synced %d tokens\n", len(synced))
	return nil
}

// mergeToken prefers on-chain decimals and names, keeping catalog fields the
// chain does not provide.
func mergeToken(known, fetched model.Token) model.Token {
	merged := fetched
	if merged.Symbol == "" {
		merged.Symbol = known.Symbol
	}
	if merged.Name == "" {
		merged.Name = known.Name
	}
	merged.LogoURI = known.LogoURI
	if err := tokens.Validate(merged); err != nil {
		merged.Symbol = merged.Address.Hex()[:10]
	}
	return merged
}
