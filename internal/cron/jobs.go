package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// SelectionSweepJob drops the checkout selections of idle shoppers.
type SelectionSweepJob struct {
	registry *cart.SelectionRegistry
	logg     *logger.Logger
}

func NewSelectionSweepJob(registry *cart.SelectionRegistry, logg *logger.Logger) (*SelectionSweepJob, error) {
	if registry == nil {
		return nil, fmt.Errorf("selection registry required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &SelectionSweepJob{registry: registry, logg: logg}, nil
}

func (j *SelectionSweepJob) Name() string { return "selection-sweep" }

func (j *SelectionSweepJob) Run(ctx context.Context) error {
	swept := j.registry.Sweep()
	if swept > 0 {
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{
			"swept":     swept,
			"remaining": j.registry.Len(),
		}), "idle selections dropped")
	}
	return nil
}

type entryPurger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// StorageRetentionJob deletes shopper state not written for longer than the
// retention window.
type StorageRetentionJob struct {
	store     entryPurger
	retention time.Duration
	logg      *logger.Logger
	now       func() time.Time
}

func NewStorageRetentionJob(store entryPurger, retention time.Duration, logg *logger.Logger) (*StorageRetentionJob, error) {
	if store == nil {
		return nil, fmt.Errorf("storage required")
	}
	if retention <= 0 {
		return nil, fmt.Errorf("retention must be positive")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &StorageRetentionJob{store: store, retention: retention, logg: logg, now: time.Now}, nil
}

func (j *StorageRetentionJob) Name() string { return "storage-retention" }

func (j *StorageRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.store.PurgeBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("storage retention: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "storage retention cleanup complete")
	return nil
}
