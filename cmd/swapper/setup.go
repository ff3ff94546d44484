package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swapPilot/internal/chain"
	"swapPilot/internal/config"
	"swapPilot/internal/model"
	"swapPilot/internal/storage"
	"swapPilot/internal/storage/postgres"
	"swapPilot/internal/swap"
	"swapPilot/internal/tokens"
	"swapPilot/internal/units"
)

// env is what every subcommand starts from.
type env struct {
	cfg    config.Config
	logger *zap.Logger
	ctx    context.Context
	stop   context.CancelFunc
}

func setup(cmd *cobra.Command) (*env, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return &env{cfg: cfg, logger: logger, ctx: ctx, stop: stop}, nil
}

func (e *env) close() {
	e.stop()
	_ = e.logger.Sync()
}

func (e *env) contracts() swap.Contracts {
	return swap.Contracts{
		Factory:       e.cfg.Factory,
		Router:        e.cfg.Router,
		WrappedNative: e.cfg.WETH,
	}
}

// dial connects and checks the node serves the configured chain.
func (e *env) dial() (*chain.Client, error) {
	if err := e.cfg.RequireRPC(); err != nil {
		return nil, err
	}
	client, err := chain.NewClient(e.ctx, e.cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	id, err := client.ChainID(e.ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("chain id: %w", err)
	}
	if e.cfg.ChainID != 0 && id.Int64() != e.cfg.ChainID {
		client.Close()
		return nil, fmt.Errorf("rpc serves chain %s, expected %d", id, e.cfg.ChainID)
	}
	return client, nil
}

// catalog merges the built-in list, token files and the Postgres table.
func (e *env) catalog() (*tokens.Catalog, error) {
	sources := []tokens.Source{tokens.Builtin{}}
	for _, path := range e.cfg.TokensFiles {
		sources = append(sources, storage.Source{Store: storage.NewJsonlStorage(path)})
	}

	if e.cfg.PGDSN != "" {
		store, err := postgres.NewStore(e.ctx, e.cfg.PGDSN, e.cfg.ChainID)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		sources = append(sources, storage.Source{Store: store})
	}

	catalog, err := tokens.Load(e.ctx, sources...)
	if err != nil {
		return nil, fmt.Errorf("load token catalog: %w", err)
	}
	e.logger.Debug("token catalog loaded", zap.Int("tokens", catalog.Len()))
	return catalog, nil
}

// intent resolves the in/out/amount flags against the catalog.
func intentFromFlags(cmd *cobra.Command, catalog *tokens.Catalog) (model.SwapIntent, string, error) {
	inRef, _ := cmd.Flags().GetString("in")
	outRef, _ := cmd.Flags().GetString("out")
	amount, _ := cmd.Flags().GetString("amount")
	if inRef == "" || outRef == "" || amount == "" {
		return model.SwapIntent{}, "", fmt.Errorf("--in, --out and --amount are required")
	}

	in, err := catalog.Lookup(inRef)
	if err != nil {
		return model.SwapIntent{}, "", err
	}
	out, err := catalog.Lookup(outRef)
	if err != nil {
		return model.SwapIntent{}, "", err
	}
	if in.Same(out) {
		return model.SwapIntent{}, "", fmt.Errorf("input and output are both %s", in.Symbol)
	}

	raw, err := units.ToBaseUnits(amount, in.Decimals)
	if err != nil {
		return model.SwapIntent{}, "", err
	}
	return model.SwapIntent{TokenIn: in, TokenOut: out, AmountInRaw: raw, Fee: model.FeeTier}, amount, nil
}

func parseAddressFlag(cmd *cobra.Command, name string) (common.Address, bool, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return common.Address{}, false, nil
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, false, fmt.Errorf("--%s: invalid address %q", name, raw)
	}
	return common.HexToAddress(raw), true, nil
}
