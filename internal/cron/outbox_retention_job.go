package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/lootmarket-backend/pkg/logger"
)

const (
	defaultOutboxRetention     = 14 * 24 * time.Hour
	defaultOutboxParkedAttempt = 10
	defaultOutboxPruneBatch    = 500
	// maxPruneBatchesPerRun leaves the rest of a large backlog for the next cycle.
	maxPruneBatchesPerRun = 50
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPruner interface {
	PruneBatch(ctx context.Context, tx *gorm.DB, cutoff time.Time, parkedAttempts, limit int) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxPruner
	// Retention is how long published and parked rows are kept.
	Retention time.Duration
	// ParkedAttempts matches the publisher's attempt budget; rows at or above it are parked.
	ParkedAttempts int
	// BatchSize caps the rows deleted per transaction.
	BatchSize int
}

// NewOutboxRetentionJob builds the job that prunes delivered and parked
// outbox rows in short transactions so the publisher's row locks are never
// held up by one large delete.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository required")
	}
	return &outboxRetentionJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		retention: positiveOr(params.Retention, defaultOutboxRetention),
		parked:    positiveOr(params.ParkedAttempts, defaultOutboxParkedAttempt),
		batch:     positiveOr(params.BatchSize, defaultOutboxPruneBatch),
		now:       time.Now,
	}, nil
}

// positiveOr returns v when positive, else fallback.
func positiveOr[T int | time.Duration](v, fallback T) T {
	if v > 0 {
		return v
	}
	return fallback
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      outboxPruner
	retention time.Duration
	parked    int
	batch     int
	now       func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)

	var total int64
	batches := 0
	for batches < maxPruneBatchesPerRun {
		if err := ctx.Err(); err != nil {
			return err
		}
		var deleted int64
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			deleted, err = j.repo.PruneBatch(ctx, tx, cutoff, j.parked, j.batch)
			return err
		})
		if err != nil {
			return fmt.Errorf("outbox retention after %d rows: %w", total, err)
		}
		batches++
		total += deleted
		if deleted < int64(j.batch) {
			break
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":          cutoff,
		"retention_hours": int(j.retention.Hours()),
		"parked_attempts": j.parked,
		"batches":         batches,
		"rows_deleted":    total,
	}), "outbox retention cleanup complete")
	return nil
}
