// Package simulate runs scripted scenarios against simulated pools and a
// registry of vault instances, streaming the committed events to storage.
package simulate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"liquidityVault/internal/config"
	"liquidityVault/internal/model"
	"liquidityVault/internal/storage"
)

// RunConfig holds runtime settings for a scenario run.
type RunConfig struct {
	BatchSize int
}

// Result summarizes a finished run.
type Result struct {
	Steps     int
	Failures  []model.StepFailure
	Snapshots []model.VaultSnapshot
	Registry  []model.RegistryEntry
}

// Runner executes scenario steps and writes their events.
type Runner struct {
	cfg      RunConfig
	scenario config.Scenario
	events   storage.EventWriter
	failures storage.FailureWriter
	logger   *zap.Logger
	world    *world
}

// NewRunner builds the scenario's tokens, pools and registry. failures may
// be nil.
func NewRunner(cfg RunConfig, sc config.Scenario, events storage.EventWriter, failures storage.FailureWriter, logger *zap.Logger) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		return nil, fmt.Errorf("event writer is nil")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	w, err := buildWorld(sc, logger)
	if err != nil {
		return nil, fmt.Errorf("build scenario: %w", err)
	}
	return &Runner{
		cfg:      cfg,
		scenario: sc,
		events:   events,
		failures: failures,
		logger:   logger,
		world:    w,
	}, nil
}

// Run executes every step in order. A rejected step is recorded and the run
// continues; only storage errors and cancellation stop it.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	var res Result
	ranges, err := SplitSteps(len(r.scenario.Steps), r.cfg.BatchSize)
	if err != nil {
		return res, err
	}

	for _, batch := range ranges {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}

		var failed []model.StepFailure
		for i := batch.From; i <= batch.To; i++ {
			step := r.scenario.Steps[i]
			res.Steps++
			if err := r.apply(ctx, step); err != nil {
				f := model.StepFailure{Step: i, Action: step.Action, Vault: step.Vault, Error: err.Error()}
				failed = append(failed, f)
				r.logger.Warn("step rejected",
					zap.Int("step", i),
					zap.String("action", step.Action),
					zap.String("vault", step.Vault),
					zap.Error(err),
				)
			}
		}

		events := r.world.drainEvents()
		if err := r.events.PutEventBatch(events); err != nil {
			return res, fmt.Errorf("write events: %w", err)
		}
		if r.failures != nil {
			if err := r.failures.PutFailures(failed); err != nil {
				return res, fmt.Errorf("write failures: %w", err)
			}
		}
		res.Failures = append(res.Failures, failed...)

		r.logger.Info("steps applied",
			zap.Int("from", batch.From),
			zap.Int("to", batch.To),
			zap.Int("events", len(events)),
			zap.Int("failed", len(failed)),
		)
	}

	snaps, entries, err := r.collect(ctx)
	if err != nil {
		return res, err
	}
	res.Snapshots = snaps
	res.Registry = entries
	return res, nil
}

// collect snapshots every instance that can still be read. Instances with
// no implementation cannot, and are only listed in the registry entries.
func (r *Runner) collect(ctx context.Context) ([]model.VaultSnapshot, []model.RegistryEntry, error) {
	reg := r.world.registry
	var snaps []model.VaultSnapshot
	var entries []model.RegistryEntry
	for _, addr := range reg.Instances() {
		if entry, ok := reg.Entry(addr); ok {
			entries = append(entries, entry)
		}
		v, ok := reg.Instance(addr)
		if !ok {
			continue
		}
		snap, err := v.Snapshot(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			r.logger.Warn("snapshot skipped", zap.String("vault", addr.Hex()), zap.Error(err))
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps, entries, nil
}
