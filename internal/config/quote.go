package config

import (
	"time"

	"github.com/spf13/pflag"
)

// QuoteConfig holds configuration for the quote command.
type QuoteConfig struct {
	RPCURL     string
	Pool       string
	Owner      string
	Lower      int32
	Upper      int32
	Amount0    string
	Amount1    string
	Block      uint64
	MaxRetries int
	RetryDelay time.Duration
	LogLevel   string
}

// LoadQuote merges config file, environment variables, and flags into QuoteConfig.
func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"max-retries": 3,
		"retry-delay": 500 * time.Millisecond,
		"log-level":   "info",
	})
	if err != nil {
		return QuoteConfig{}, err
	}

	return QuoteConfig{
		RPCURL:     v.GetString("rpc"),
		Pool:       v.GetString("pool"),
		Owner:      v.GetString("owner"),
		Lower:      v.GetInt32("lower"),
		Upper:      v.GetInt32("upper"),
		Amount0:    v.GetString("amount0"),
		Amount1:    v.GetString("amount1"),
		Block:      v.GetUint64("block"),
		MaxRetries: v.GetInt("max-retries"),
		RetryDelay: v.GetDuration("retry-delay"),
		LogLevel:   v.GetString("log-level"),
	}, nil
}
