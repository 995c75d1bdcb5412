package main

import (
	"context"
	"errors"
	"os"

	"github.com/angelmondragon/storefront-backend/internal/bootstrap"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/cron"
	"github.com/angelmondragon/storefront-backend/internal/discounts"
	"github.com/angelmondragon/storefront-backend/internal/layby"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

const serviceKind = "cron-worker"

func main() {
	proc, err := bootstrap.Start(serviceKind)
	if err != nil {
		os.Exit(1)
	}
	cfg := proc.Config
	boot := context.Background()

	dbClient, err := proc.Database(boot)
	proc.Exit(boot, "cron.database", err)
	redisClient, err := proc.Redis(boot)
	proc.Exit(boot, "cron.redis", err)

	jobs, err := buildJobs(cfg, proc.Logger, dbClient)
	proc.Exit(boot, "cron.build_jobs", err)

	lock, err := cron.NewRedisLock(redisClient, lockKey(redisClient, cfg.App.Env), cfg.Cron.LockTTL)
	proc.Exit(boot, "cron.lock", err)

	registry, err := cron.NewRegistry(jobs...)
	proc.Exit(boot, "cron.registry", err)

	promRegistry := metrics.NewRegistry()
	service, err := cron.NewService(cron.ServiceParams{
		Logger:     proc.Logger,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(promRegistry),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	proc.Exit(boot, "cron.service", err)

	ctx, stop := proc.SignalContext(map[string]any{"interval": cfg.Cron.Interval.String()})
	defer stop()

	metrics.Serve(ctx, cfg.Service.MetricsPort, promRegistry, proc.Logger)
	proc.Logger.Info(ctx, "cron.starting")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		proc.Exit(ctx, "cron.stopped", err)
	}
	proc.Logger.Info(ctx, "cron.shutdown")
	_ = proc.Shutdown(ctx)
}

// buildJobs wires the order services the jobs act through, so expiry follows the same
// release path as a buyer cancellation.
func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) ([]cron.Job, error) {
	conn := dbClient.DB()
	productRepo := product.NewRepository(conn)

	discountService, err := discounts.NewService(discounts.NewRepository(conn))
	if err != nil {
		return nil, err
	}
	cartService, err := cart.NewService(cart.NewRepository(conn), dbClient, productRepo, cfg.Checkout.Currency)
	if err != nil {
		return nil, err
	}
	laybyService, err := layby.NewService(layby.NewRepository(conn), dbClient, cfg.Checkout.Currency, logg)
	if err != nil {
		return nil, err
	}
	outboxRepo := outbox.NewRepository(conn)
	ordersService, err := orders.NewService(orders.Deps{
		Repo:      orders.NewRepository(conn),
		Tx:        dbClient,
		Outbox:    outbox.NewService(outboxRepo, logg),
		Stock:     orders.NewStockReleaser(productRepo),
		Discounts: discountService,
		Carts:     cartService,
		Layby:     laybyService,
		Logger:    logg,
	})
	if err != nil {
		return nil, err
	}

	expiry, err := cron.NewCheckoutExpiryJob(cron.CheckoutExpiryJobParams{
		Logger:    logg,
		Orders:    ordersService,
		TTL:       cfg.Checkout.PendingOrderTTL,
		BatchSize: cfg.Cron.BatchSize,
	})
	if err != nil {
		return nil, err
	}
	orphans, err := cron.NewLaybyOrphanJob(cron.LaybyOrphanJobParams{
		Logger: logg,
		Plans:  laybyService,
		TTL:    cfg.Checkout.LaybyOrphanTTL,
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:       logg,
		DB:           dbClient,
		Events:       outboxRepo,
		DeadLetters:  outbox.NewDLQRepository(conn),
		Retention:    cfg.Cron.OutboxRetention,
		DLQRetention: cfg.Cron.DLQRetention,
		BatchSize:    cfg.Cron.BatchSize,
	})
	if err != nil {
		return nil, err
	}
	return []cron.Job{expiry, orphans, retention}, nil
}

func lockKey(client *redis.Client, env string) string {
	if env == "" {
		env = "local"
	}
	return client.LockKey(serviceKind + ":" + env)
}
