package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultDLQRetention    = 90 * 24 * time.Hour
	defaultPruneBatch      = 500
)

type OutboxRetentionJobParams struct {
	Logger       *logger.Logger
	DB           txRunner
	Events       publishedPruner
	DeadLetters  deadLetterPruner
	Retention    time.Duration
	DLQRetention time.Duration
	BatchSize    int
}

type publishedPruner interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time, limit int) (int64, error)
}

type deadLetterPruner interface {
	DeleteFailedBefore(tx *gorm.DB, cutoff time.Time, limit int) (int64, error)
}

type pruneFunc func(tx *gorm.DB, cutoff time.Time, limit int) (int64, error)

// NewOutboxRetentionJob prunes published outbox rows and, when a dead letter
// repository is supplied, dead letters past their own retention.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Events == nil:
		return nil, errors.New("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:    params.Logger,
		db:      params.DB,
		batch:   params.BatchSize,
		now:     time.Now,
		targets: []pruneTarget{{name: "outbox_events", retention: orDefault(params.Retention, defaultOutboxRetention), prune: params.Events.DeletePublishedBefore}},
	}
	if params.DeadLetters != nil {
		job.targets = append(job.targets, pruneTarget{
			name:      "outbox_dlq",
			retention: orDefault(params.DLQRetention, defaultDLQRetention),
			prune:     params.DeadLetters.DeleteFailedBefore,
		})
	}
	if job.batch <= 0 {
		job.batch = defaultPruneBatch
	}
	return job, nil
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

type pruneTarget struct {
	name      string
	retention time.Duration
	prune     pruneFunc
}

type outboxRetentionJob struct {
	logg    *logger.Logger
	db      txRunner
	targets []pruneTarget
	batch   int
	now     func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) (int64, error) {
	now := j.now().UTC()
	var total int64
	for _, target := range j.targets {
		cutoff := now.Add(-target.retention)
		deleted, err := j.sweep(ctx, target.prune, cutoff)
		total += deleted
		if err != nil {
			return total, fmt.Errorf("prune %s: %w", target.name, err)
		}
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{
			"table":        target.name,
			"cutoff":       cutoff,
			"rows_deleted": deleted,
		}), "cron.outbox_retention.pruned")
	}
	return total, nil
}

// sweep deletes in batches, one transaction per batch, until a short batch
// shows nothing older than cutoff remains.
func (j *outboxRetentionJob) sweep(ctx context.Context, prune pruneFunc, cutoff time.Time) (int64, error) {
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		var rows int64
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			rows, err = prune(tx, cutoff, j.batch)
			return err
		})
		if err != nil {
			return total, err
		}
		total += rows
		if rows < int64(j.batch) {
			return total, nil
		}
	}
}
