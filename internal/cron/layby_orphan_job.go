package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const defaultLaybyOrphanTTL = 24 * time.Hour

type LaybyOrphanJobParams struct {
	Logger *logger.Logger
	Plans  orphanPlanDeleter
	TTL    time.Duration
}

type orphanPlanDeleter interface {
	DeleteOrphansBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewLaybyOrphanJob builds the job that removes layby plans never attached to an order.
func NewLaybyOrphanJob(params LaybyOrphanJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Plans == nil {
		return nil, fmt.Errorf("layby service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultLaybyOrphanTTL
	}
	return &laybyOrphanJob{
		logg:  params.Logger,
		plans: params.Plans,
		ttl:   ttl,
		now:   time.Now,
	}, nil
}

type laybyOrphanJob struct {
	logg  *logger.Logger
	plans orphanPlanDeleter
	ttl   time.Duration
	now   func() time.Time
}

func (j *laybyOrphanJob) Name() string { return "layby-orphans" }

func (j *laybyOrphanJob) Run(ctx context.Context) (int64, error) {
	cutoff := j.now().UTC().Add(-j.ttl)
	deleted, err := j.plans.DeleteOrphansBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete orphaned plans: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	})
	j.logg.Info(logCtx, "layby orphan cleanup complete")
	return deleted, nil
}
