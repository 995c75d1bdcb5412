package main

import (
	"context"
	"errors"
	"os"

	"github.com/angelmondragon/storefront-backend/internal/bootstrap"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

const serviceKind = "outbox-publisher"

func main() {
	proc, err := bootstrap.Start(serviceKind)
	if err != nil {
		os.Exit(1)
	}
	boot := context.Background()

	dbClient, err := proc.Database(boot)
	proc.Exit(boot, "outbox_publisher.database", err)
	pubsubClient, err := proc.PubSub(boot)
	proc.Exit(boot, "outbox_publisher.pubsub", err)

	events, err := registry.NewEventRegistry(proc.Config.PubSub)
	proc.Exit(boot, "outbox_publisher.registry", err)

	promRegistry := metrics.NewRegistry()
	conn := dbClient.DB()
	service, err := NewService(ServiceParams{
		Config:        proc.Config,
		Logger:        proc.Logger,
		DB:            dbClient,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(conn),
		DLQRepository: outbox.NewDLQRepository(conn),
		Registry:      events,
		Metrics:       metrics.NewOutboxMetrics(promRegistry),
	})
	proc.Exit(boot, "outbox_publisher.service", err)

	ctx, stop := proc.SignalContext(map[string]any{"topics": events.Topics()})
	defer stop()

	metrics.Serve(ctx, proc.Config.Service.MetricsPort, promRegistry, proc.Logger)
	proc.Logger.Info(ctx, "outbox_publisher.starting")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		proc.Exit(ctx, "outbox_publisher.stopped", err)
	}
	proc.Logger.Info(ctx, "outbox_publisher.shutdown")
	_ = proc.Shutdown(ctx)
}
