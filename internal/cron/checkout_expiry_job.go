package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	defaultPendingOrderTTL = 48 * time.Hour
	defaultExpiryBatchSize = 200
)

// CheckoutExpiryJobParams configure the stale checkout sweep.
type CheckoutExpiryJobParams struct {
	Logger    *logger.Logger
	Orders    staleOrderExpirer
	TTL       time.Duration
	BatchSize int
}

type staleOrderExpirer interface {
	ListStaleUnpaid(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
	Expire(ctx context.Context, orderID uuid.UUID) (bool, error)
}

// NewCheckoutExpiryJob builds the job that cancels orders whose payment never arrived.
// Cancelling releases the reserved stock and the discount redemption.
func NewCheckoutExpiryJob(params CheckoutExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPendingOrderTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatchSize
	}
	return &checkoutExpiryJob{
		logg:      params.Logger,
		orders:    params.Orders,
		ttl:       ttl,
		batchSize: batch,
		now:       time.Now,
	}, nil
}

type checkoutExpiryJob struct {
	logg      *logger.Logger
	orders    staleOrderExpirer
	ttl       time.Duration
	batchSize int
	now       func() time.Time
}

func (j *checkoutExpiryJob) Name() string { return "checkout-expiry" }

func (j *checkoutExpiryJob) Run(ctx context.Context) (int64, error) {
	cutoff := j.now().UTC().Add(-j.ttl)
	ids, err := j.orders.ListStaleUnpaid(ctx, cutoff, j.batchSize)
	if err != nil {
		return 0, fmt.Errorf("query stale orders: %w", err)
	}

	var errs error
	var expired int64
	for _, id := range ids {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		changed, err := j.orders.Expire(ctx, id)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", id, err))
			continue
		}
		if changed {
			expired++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":     cutoff,
		"candidates": len(ids),
		"expired":    expired,
	})
	j.logg.Info(logCtx, "checkout expiry sweep complete")
	return expired, errs
}
