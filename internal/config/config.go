package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"swapPilot/internal/tokens"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL         string
	ChainID        int64
	Factory        common.Address
	Router         common.Address
	WETH           common.Address
	PrivateKey     string
	PrivateKeyFile string
	TokensFiles    []string
	PGDSN          string
	ReceiptPoll    time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	MetricsAddr    string
	LogLevel       string
	Yes            bool
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SWAPPER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("chain-id", tokens.SepoliaChainID)
	v.SetDefault("factory", tokens.SepoliaFactory.Hex())
	v.SetDefault("router", tokens.SepoliaRouter.Hex())
	v.SetDefault("weth", tokens.SepoliaWETH.Hex())
	v.SetDefault("receipt-poll", 2*time.Second)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")
	v.SetDefault("yes", false)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:         v.GetString("rpc"),
		ChainID:        v.GetInt64("chain-id"),
		PrivateKey:     v.GetString("private-key"),
		PrivateKeyFile: v.GetString("private-key-file"),
		TokensFiles:    getStringSlice(v, "tokens-file"),
		PGDSN:          v.GetString("pg-dsn"),
		ReceiptPoll:    v.GetDuration("receipt-poll"),
		MaxRetries:     v.GetInt("max-retries"),
		RetryBackoff:   v.GetDuration("retry-backoff"),
		MetricsAddr:    v.GetString("metrics-addr"),
		LogLevel:       v.GetString("log-level"),
		Yes:            v.GetBool("yes"),
	}

	var err error
	if cfg.Factory, err = getAddress(v, "factory"); err != nil {
		return Config{}, err
	}
	if cfg.Router, err = getAddress(v, "router"); err != nil {
		return Config{}, err
	}
	if cfg.WETH, err = getAddress(v, "weth"); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// RequireRPC reports a missing endpoint for commands that talk to a node.
func (c Config) RequireRPC() error {
	if strings.TrimSpace(c.RPCURL) == "" {
		return fmt.Errorf("rpc is required (flag --rpc or SWAPPER_RPC)")
	}
	return nil
}

func getAddress(v *viper.Viper, key string) (common.Address, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", key, raw)
	}
	return common.HexToAddress(raw), nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
