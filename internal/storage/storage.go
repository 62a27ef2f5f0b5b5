// Package storage persists the event journal and instance snapshots.
package storage

import (
	"context"

	"liquidityVault/internal/model"
)

// EventWriter is a sink for committed events.
type EventWriter interface {
	PutEventBatch(events []model.VaultEvent) error
}

// FailureWriter records scenario steps that were rejected.
type FailureWriter interface {
	PutFailures(failures []model.StepFailure) error
}

// SnapshotWriter stores instance snapshots.
type SnapshotWriter interface {
	PutSnapshots(ctx context.Context, snaps []model.VaultSnapshot) error
}
