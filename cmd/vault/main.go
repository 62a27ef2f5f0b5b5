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
		Use:          "vault",
		Short:        "Concentrated liquidity vault engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Value a position and size a deposit on a live V3 pool",
		RunE:  runQuote,
	}

	quoteCmd.Flags().String("rpc", "", "RPC URL")
	quoteCmd.Flags().String("pool", "", "V3 pool address")
	quoteCmd.Flags().String("owner", "", "position owner (vault address)")
	quoteCmd.Flags().Int32("lower", 0, "lower tick")
	quoteCmd.Flags().Int32("upper", 0, "upper tick")
	quoteCmd.Flags().String("amount0", "", "token0 deposit in token units (e.g. 1.5)")
	quoteCmd.Flags().String("amount1", "", "token1 deposit in token units")
	quoteCmd.Flags().Uint64("block", 0, "block to read at, 0 means latest")
	quoteCmd.Flags().Int("max-retries", 3, "maximum eth_call retry attempts")
	quoteCmd.Flags().Duration("retry-delay", 500*time.Millisecond, "initial retry backoff")
	quoteCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(quoteCmd)

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a scenario against simulated pools and a vault registry",
		RunE:  runSimulate,
	}

	simulateCmd.Flags().String("scenario", "", "scenario file (yaml, json or toml)")
	simulateCmd.Flags().String("out", "./data/events.jsonl", "output event journal JSONL")
	simulateCmd.Flags().String("errors", "./data/step_failures.jsonl", "rejected steps JSONL")
	simulateCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for final snapshots")
	simulateCmd.Flags().String("state-db", "", "optional bbolt file for final snapshots and registry entries")
	simulateCmd.Flags().Int("batch-size", 50, "steps per event flush")
	simulateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(simulateCmd)

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Aggregate an event journal into window metrics",
		RunE:  runReport,
	}

	reportCmd.Flags().String("in", "", "input event journal JSONL")
	reportCmd.Flags().String("window", "1h", "aggregation window (e.g. 5m, 1h, 24h)")
	reportCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	reportCmd.Flags().Int("batch-size", 1000, "batch size for DB writes")
	reportCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	reportCmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	reportCmd.Flags().Bool("archive-events", true, "also store raw events in Postgres")
	reportCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(reportCmd)

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

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
