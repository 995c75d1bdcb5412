package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/cart"
	ordercontrollers "github.com/angelmondragon/storefront-backend/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/webhooks"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/layby"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	products "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/shipping"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(ctx context.Context, oldAccessID, provided string) (session.Rotation, error)
	Revoke(ctx context.Context, accessID string) error
}

// redisStore is the slice of the redis client the HTTP layer relies on.
type redisStore interface {
	redis.IdempotencyStore
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	WindowRemaining(ctx context.Context, scope string) (time.Duration, error)
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	readiness map[string]controllers.Pinger,
	redisClient redisStore,
	metricsHandler http.Handler,
	sessionManager sessionManager,
	authService auth.Service,
	productService products.Service,
	shippingService shipping.Service,
	cartService cart.Service,
	checkoutService checkoutsvc.Service,
	laybyService layby.Service,
	ordersService orders.Service,
	payfastService webhookcontrollers.PayFastWebhookService,
	deadLetters controllers.DeadLetterService,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	loginLimit := middleware.RateLimit(middleware.RateLimitPolicy{
		Name:       "login",
		Window:     cfg.AuthRateLimit.LoginWindow,
		IPLimit:    cfg.AuthRateLimit.LoginIPLimit,
		EmailLimit: cfg.AuthRateLimit.LoginEmailLimit,
	}, redisClient, logg)
	registerLimit := middleware.RateLimit(middleware.RateLimitPolicy{
		Name:       "register",
		Window:     cfg.AuthRateLimit.RegisterWindow,
		IPLimit:    cfg.AuthRateLimit.RegisterIPLimit,
		EmailLimit: cfg.AuthRateLimit.RegisterEmailLimit,
	}, redisClient, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/webhooks/payfast", webhookcontrollers.PayFastWebhook(payfastService, logg))

		r.Route("/auth", func(r chi.Router) {
			r.With(loginLimit).Post("/login", controllers.AuthLogin(authService, logg))
			r.With(registerLimit).Post("/register", controllers.AuthRegister(authService, logg))
			r.Post("/logout", controllers.AuthLogout(sessionManager, cfg.JWT, logg))
			r.Post("/refresh", controllers.AuthRefresh(sessionManager, cfg.JWT, logg))
		})

		r.Get("/products", controllers.ProductList(productService, logg))
		r.Get("/products/{productId}", controllers.ProductDetail(productService, logg))
		r.Get("/shipping-methods", controllers.ShippingMethods(shippingService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, sessionManager, logg))
			r.Use(middleware.Idempotency(redisClient, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartcontrollers.CartFetch(cartService, logg))
				r.Post("/items", cartcontrollers.CartAddItem(cartService, logg))
				r.Patch("/items/{lineId}", cartcontrollers.CartUpdateQuantity(cartService, logg))
				r.Delete("/items/{lineId}", cartcontrollers.CartRemoveItem(cartService, logg))
				r.Post("/items/{lineId}/save-for-later", cartcontrollers.CartSaveForLater(cartService, logg))
				r.Post("/items/{lineId}/move-to-cart", cartcontrollers.CartMoveToCart(cartService, logg))
				r.Post("/merge", cartcontrollers.CartMerge(cartService, logg))
			})

			r.Post("/discounts/apply", controllers.DiscountApply(checkoutService, logg))
			r.Post("/layby/plans", controllers.LaybyCreatePlan(checkoutService, laybyService, logg))
			r.Post("/checkout", controllers.Checkout(checkoutService, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", ordercontrollers.List(ordersService, logg))
				r.Get("/{orderId}", ordercontrollers.Detail(ordersService, logg))
				r.Get("/{orderId}/tracking", ordercontrollers.Tracking(ordersService, logg))
				r.Post("/{orderId}/cancel", ordercontrollers.Cancel(ordersService, logg))
				r.Post("/{orderId}/recover-cart", ordercontrollers.RecoverCart(ordersService, logg))
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionManager, logg))
		r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))

		r.Post("/orders/{orderId}/fulfillment", ordercontrollers.AdminFulfillment(ordersService, logg))
		r.Get("/outbox/dead-letters", controllers.AdminDeadLetters(deadLetters, logg))
		r.Post("/outbox/dead-letters/{eventId}/replay", controllers.AdminReplayDeadLetter(deadLetters, logg))
	})

	return r
}
