package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"swapPilot/internal/tokens"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load("", nil)
	require.NoError(t, err)
	require.Equal(t, tokens.SepoliaChainID, cfg.ChainID)
	require.Equal(t, tokens.SepoliaRouter, cfg.Router)
	require.Equal(t, tokens.SepoliaWETH, cfg.WETH)
	require.Equal(t, 2*time.Second, cfg.ReceiptPoll)
	require.Equal(t, "info", cfg.LogLevel)
	require.Error(t, cfg.RequireRPC())
}

func TestLoadFlagsEnvAndFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "swapper.yaml")
	content := `
rpc: https://rpc.example.org
tokens-file:
  - a.jsonl
  - b.jsonl
receipt-poll: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("SWAPPER_PG_DSN", "postgres://localhost/swapper")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	flags.Bool("yes", false, "")
	require.NoError(t, flags.Parse([]string{"--log-level=debug", "--yes"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	require.Equal(t, "https://rpc.example.org", cfg.RPCURL)
	require.Equal(t, []string{"a.jsonl", "b.jsonl"}, cfg.TokensFiles)
	require.Equal(t, 5*time.Second, cfg.ReceiptPoll)
	require.Equal(t, "postgres://localhost/swapper", cfg.PGDSN)
	require.Equal(t, "debug", cfg.LogLevel)
	require.True(t, cfg.Yes)
	require.NoError(t, cfg.RequireRPC())
}

func TestLoadRejectsBadAddress(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SWAPPER_ROUTER", "0x1234")
	_, err := Load("", nil)
	require.ErrorContains(t, err, "router")
}

func TestSplitAndClean(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, splitAndClean(" a, ,b "))
	require.Nil(t, splitAndClean(""))
}
