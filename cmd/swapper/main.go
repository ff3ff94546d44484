package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "swapper",
		Short:        "Approve and swap against a Uniswap V3 router",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path")
	flags.String("rpc", "", "JSON-RPC URL")
	flags.Int64("chain-id", 11155111, "expected chain id")
	flags.String("factory", "", "V3 factory address (default Sepolia)")
	flags.String("router", "", "swap router address (default Sepolia)")
	flags.String("weth", "", "wrapped native token address (default Sepolia)")
	flags.StringSlice("tokens-file", nil, "extra token list JSONL files (comma-separated)")
	flags.String("pg-dsn", "", "Postgres DSN for the token catalog")
	flags.Int("max-retries", 5, "maximum retry attempts for receipt lookups")
	flags.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	swapCmd := &cobra.Command{
		Use:   "swap",
		Short: "Approve if needed, then swap",
		RunE:  runSwap,
	}
	swapCmd.Flags().String("in", "", "input token symbol or address")
	swapCmd.Flags().String("out", "", "output token symbol or address")
	swapCmd.Flags().String("amount", "", "input amount in token units, e.g. 1.5")
	swapCmd.Flags().String("private-key", "", "hex private key (prefer SWAPPER_PRIVATE_KEY)")
	swapCmd.Flags().String("private-key-file", "", "file holding the hex private key")
	swapCmd.Flags().Duration("receipt-poll", 2*time.Second, "receipt polling interval")
	swapCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
	swapCmd.Flags().Bool("yes", false, "sign without asking")
	root.AddCommand(swapCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Read pool, allowance, balances and a simulated quote",
		RunE:  runQuote,
	}
	quoteCmd.Flags().String("in", "", "input token symbol or address")
	quoteCmd.Flags().String("out", "", "output token symbol or address")
	quoteCmd.Flags().String("amount", "", "input amount in token units")
	quoteCmd.Flags().String("owner", "", "account to quote for (default: configured key)")
	quoteCmd.Flags().String("private-key", "", "hex private key used to derive the owner")
	quoteCmd.Flags().String("private-key-file", "", "file holding the hex private key")
	root.AddCommand(quoteCmd)

	poolCmd := &cobra.Command{
		Use:   "pool",
		Short: "Resolve the pool for a token pair",
		RunE:  runPool,
	}
	poolCmd.Flags().String("a", "", "first token symbol or address")
	poolCmd.Flags().String("b", "", "second token symbol or address")
	poolCmd.Flags().Uint32("fee", 3000, "fee tier in hundredths of a bip")
	root.AddCommand(poolCmd)

	tokensCmd := &cobra.Command{
		Use:   "tokens",
		Short: "Inspect and maintain the token catalog",
	}
	tokensCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List catalog tokens",
		RunE:  runTokensList,
	})
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Read ERC-20 metadata from chain and store it",
		RunE:  runTokensSync,
	}
	syncCmd.Flags().StringSlice("address", nil, "extra token addresses to add (comma-separated)")
	syncCmd.Flags().String("out", "", "write the catalog to this JSONL file")
	tokensCmd.AddCommand(syncCmd)
	root.AddCommand(tokensCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
