package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/angelmondragon/storefront-backend/api"
	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/bootstrap"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/discounts"
	"github.com/angelmondragon/storefront-backend/internal/layby"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/shipping"
	"github.com/angelmondragon/storefront-backend/internal/users"
	payfastwebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/payfast"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/payfast"
)

const shutdownTimeout = 15 * time.Second

func main() {
	proc, err := bootstrap.Start("api")
	if err != nil {
		os.Exit(1)
	}
	cfg, logg := proc.Config, proc.Logger
	boot := context.Background()

	dbClient, err := proc.Database(boot)
	proc.Exit(boot, "api.database", err)
	redisClient, err := proc.Redis(boot)
	proc.Exit(boot, "api.redis", err)

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	proc.Exit(boot, "api.session_manager", err)

	payfastClient, err := payfast.NewClient(cfg.PayFast)
	proc.Exit(boot, "api.payfast_client", err)

	registry := metrics.NewRegistry()
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	conn := dbClient.DB()
	outboxRepo := outbox.NewRepository(conn)
	outboxService := outbox.NewService(outboxRepo, logg)
	deadLetters, err := outbox.NewDeadLetters(dbClient, outboxRepo, outbox.NewDLQRepository(conn), logg)
	proc.Exit(boot, "api.dead_letter_service", err)
	productRepo := product.NewRepository(conn)
	shippingRepo := shipping.NewRepository(conn)
	cartRepo := cart.NewRepository(conn)
	ordersRepo := orders.NewRepository(conn)

	productService, err := product.NewService(productRepo)
	proc.Exit(boot, "api.product_service", err)

	shippingService, err := shipping.NewService(shippingRepo)
	proc.Exit(boot, "api.shipping_service", err)

	discountService, err := discounts.NewService(discounts.NewRepository(conn))
	proc.Exit(boot, "api.discount_service", err)

	cartService, err := cart.NewService(cartRepo, dbClient, productRepo, cfg.Checkout.Currency)
	proc.Exit(boot, "api.cart_service", err)

	laybyService, err := layby.NewService(layby.NewRepository(conn), dbClient, cfg.Checkout.Currency, logg)
	proc.Exit(boot, "api.layby_service", err)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(conn),
		CartMerger:     cartService,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	proc.Exit(boot, "api.auth_service", err)

	ordersService, err := orders.NewService(orders.Deps{
		Repo:      ordersRepo,
		Tx:        dbClient,
		Outbox:    outboxService,
		Stock:     orders.NewStockReleaser(productRepo),
		Discounts: discountService,
		Carts:     cartService,
		Layby:     laybyService,
		Logger:    logg,
	})
	proc.Exit(boot, "api.orders_service", err)

	checkoutService, err := checkout.NewService(checkout.Deps{
		Tx:        dbClient,
		Limiter:   redisClient,
		Buyers:    users.NewRepository(conn),
		Carts:     cartRepo,
		Shipping:  shippingService,
		Discounts: discountService,
		Layby:     laybyService,
		Orders:    ordersRepo,
		Gateway:   payfastClient,
		Outbox:    outboxService,
		Metrics:   paymentMetrics,
		Logger:    logg,
		RateLimit: cfg.PaymentRateLimit,
		Checkout:  cfg.Checkout,
	})
	proc.Exit(boot, "api.checkout_service", err)

	notificationGuard, err := payfastwebhook.NewIdempotencyGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL, "payfast")
	proc.Exit(boot, "api.payfast_idempotency_guard", err)

	payfastService, err := payfastwebhook.NewService(payfastwebhook.ServiceParams{
		Gateway:           payfastClient,
		Orders:            ordersRepo,
		Transitions:       ordersService,
		Layby:             laybyService,
		Guard:             notificationGuard,
		TransactionRunner: dbClient,
		Metrics:           paymentMetrics,
		Logger:            logg,
	})
	proc.Exit(boot, "api.payfast_webhook_service", err)

	readiness := map[string]controllers.Pinger{
		"postgres": dbClient,
		"redis":    redisClient,
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.App.Port = port
	}

	handler := routes.NewRouter(
		cfg,
		logg,
		readiness,
		redisClient,
		metrics.Handler(registry),
		sessionManager,
		authService,
		productService,
		shippingService,
		cartService,
		checkoutService,
		laybyService,
		ordersService,
		payfastService,
		deadLetters,
	)

	ctx, stop := proc.SignalContext(map[string]any{"addr": ":" + cfg.App.Port})
	defer stop()
	if err := serve(ctx, api.NewServer(cfg, handler), logg); err != nil {
		proc.Exit(ctx, "api.server_stopped", err)
	}
	_ = proc.Shutdown(ctx)
}

// serve blocks until the server fails or ctx is cancelled, then drains
// in-flight requests for up to shutdownTimeout.
func serve(ctx context.Context, server *http.Server, logg *logger.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "api.listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(ctx, "api.draining")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "api.drain_failed", err)
	}
	return nil
}
