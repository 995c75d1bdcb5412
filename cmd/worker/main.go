package main

import (
	"context"
	"errors"
	"os"

	"github.com/angelmondragon/storefront-backend/internal/analytics/router"
	analyticsworker "github.com/angelmondragon/storefront-backend/internal/analytics/worker"
	"github.com/angelmondragon/storefront-backend/internal/analytics/writer"
	"github.com/angelmondragon/storefront-backend/internal/bootstrap"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/pkg/bigquery"
	"github.com/angelmondragon/storefront-backend/pkg/mailer"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/idempotency"
)

const serviceKind = "worker"

func main() {
	proc, err := bootstrap.Start(serviceKind)
	if err != nil {
		os.Exit(1)
	}
	cfg := proc.Config
	ctx := context.Background()

	redisClient, err := proc.Redis(ctx)
	proc.Exit(ctx, "worker.redis", err)
	pubsubClient, err := proc.PubSub(ctx)
	proc.Exit(ctx, "worker.pubsub", err)

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, proc.Logger)
	proc.Exit(ctx, "worker.bigquery", err)
	proc.Defer("bigquery", bqClient.Close)

	claims, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL, cfg.Eventing.OutboxClaimLease)
	proc.Exit(ctx, "worker.idempotency", err)

	sender, err := mailer.New(cfg.Sendgrid, proc.Logger)
	proc.Exit(ctx, "worker.mailer", err)

	emails, err := notifications.NewConsumer(pubsubClient.NotificationSubscription(), sender, claims, proc.Logger)
	proc.Exit(ctx, "worker.notifications", err)

	schema, err := writer.Schema()
	proc.Exit(ctx, "worker.analytics_schema", err)
	proc.Exit(ctx, "worker.analytics_table", bqClient.EnsureTable(ctx, schema, writer.PartitionField))

	analyticsWriter, err := writer.New(bqClient, writer.Config{
		OrderEventsTable: bqClient.OrderEventsTable(),
		BatchSize:        cfg.BigQuery.BatchSize,
	})
	proc.Exit(ctx, "worker.analytics_writer", err)

	rows, err := router.NewRouter(analyticsWriter, proc.Logger, nil)
	proc.Exit(ctx, "worker.analytics_router", err)

	analytics, err := analyticsworker.NewService(pubsubClient.AnalyticsSubscription(), rows, claims, proc.Logger)
	proc.Exit(ctx, "worker.analytics_consumer", err)

	service, err := NewService(ServiceParams{
		Logger: proc.Logger,
		Consumers: map[string]runner{
			"order-emails":    emails,
			"order-analytics": analytics,
		},
		Dependencies: map[string]pinger{
			"redis":    redisClient.Ping,
			"pubsub":   pubsubClient.Ping,
			"bigquery": bqClient.Ping,
		},
		Analytics: analyticsWriter,
	})
	proc.Exit(ctx, "worker.service", err)

	runCtx, stop := proc.SignalContext(nil)
	defer stop()
	proc.Logger.Info(runCtx, "worker.starting")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		proc.Exit(runCtx, "worker.stopped", err)
	}
	proc.Logger.Info(runCtx, "worker.shutdown")
	_ = proc.Shutdown(runCtx)
}
