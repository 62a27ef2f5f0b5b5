package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityVault/internal/config"
	"liquidityVault/internal/simulate"
	"liquidityVault/internal/storage"
	"liquidityVault/internal/storage/bolt"
	"liquidityVault/internal/storage/postgres"
)

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}
	scenario, err := config.LoadScenario(cfg.Scenario)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := storage.NewJsonlStorage(cfg.Out)
	if err := events.Reset(); err != nil {
		return err
	}
	var failures storage.FailureWriter
	if cfg.Errors != "" {
		sink := storage.NewJsonlStorage(cfg.Errors)
		if err := sink.Reset(); err != nil {
			return err
		}
		failures = sink
	}

	var snapshotWriters []storage.SnapshotWriter
	var stateDB *bolt.Store
	if cfg.StateDB != "" {
		stateDB, err = bolt.Open(cfg.StateDB)
		if err != nil {
			return err
		}
		defer stateDB.Close()
		snapshotWriters = append(snapshotWriters, stateDB)
	}
	if cfg.PGDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		snapshotWriters = append(snapshotWriters, pg)
	}

	runner, err := simulate.NewRunner(simulate.RunConfig{BatchSize: cfg.BatchSize}, scenario, events, failures, logger)
	if err != nil {
		return err
	}

	logger.Info("simulate start",
		zap.String("scenario", cfg.Scenario),
		zap.Int("steps", len(scenario.Steps)),
		zap.String("out", cfg.Out),
		zap.String("state_db", cfg.StateDB),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
	)

	res, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	for _, w := range snapshotWriters {
		if err := w.PutSnapshots(ctx, res.Snapshots); err != nil {
			return fmt.Errorf("store snapshots: %w", err)
		}
	}
	if stateDB != nil {
		if err := stateDB.PutRegistryEntries(res.Registry); err != nil {
			return fmt.Errorf("store registry: %w", err)
		}
	}

	logger.Info("simulate complete",
		zap.Int("steps", res.Steps),
		zap.Int("failed", len(res.Failures)),
		zap.Int("instances", len(res.Registry)),
		zap.Int("snapshots", len(res.Snapshots)),
	)
	return nil
}
