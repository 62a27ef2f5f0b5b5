package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityVault/internal/config"
	"liquidityVault/internal/report"
	"liquidityVault/internal/storage/postgres"
)

func runReport(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReport(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Input == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}

	windowDuration, err := time.ParseDuration(cfg.Window)
	if err != nil {
		return fmt.Errorf("invalid window: %w", err)
	}
	windowSeconds := int64(windowDuration / time.Second)
	if windowSeconds <= 0 {
		return fmt.Errorf("window must be at least 1s")
	}

	recomputeFrom, err := config.ParseTimestamp(cfg.RecomputeFrom)
	if err != nil {
		return fmt.Errorf("parse recompute-from: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	var stateStore report.StateStore
	if cfg.StateFile != "" {
		stateStore = &report.FileStateStore{Path: cfg.StateFile}
	} else {
		stateStore = &report.DBStateStore{Store: store, Name: fmt.Sprintf("report:%d", windowSeconds)}
	}

	var archive report.EventArchive
	if cfg.ArchiveEvents {
		archive = store
	}

	r := report.NewReporter(report.Config{
		WindowSeconds: windowSeconds,
		BatchSize:     cfg.BatchSize,
		RecomputeFrom: recomputeFrom,
		StateStore:    stateStore,
	}, store, archive, logger)

	logger.Info("report start",
		zap.String("input", cfg.Input),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Int64("window_seconds", windowSeconds),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Int64("recompute_from", recomputeFrom),
		zap.Bool("archive_events", cfg.ArchiveEvents),
	)

	return r.Run(ctx, cfg.Input)
}
