package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout/reservation"
	"github.com/angelmondragon/storefront-backend/internal/discounts"
	"github.com/angelmondragon/storefront-backend/internal/layby"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/payfast"
	"github.com/angelmondragon/storefront-backend/pkg/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type rateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	WindowRemaining(ctx context.Context, scope string) (time.Duration, error)
}

type buyerLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type shippingResolver interface {
	Resolve(ctx context.Context, id uuid.UUID) (*models.ShippingMethod, error)
}

type discountRedeemer interface {
	Quote(ctx context.Context, code string, subtotalCents, shippingCents int) (discounts.Result, error)
	Redeem(ctx context.Context, tx *gorm.DB, code string, subtotalCents, shippingCents int) (discounts.Result, error)
}

type laybyLinker interface {
	LinkOrder(ctx context.Context, tx *gorm.DB, planID, userID, orderID uuid.UUID, totalCents int) (*layby.PlanDTO, error)
}

type stockReserver interface {
	Reserve(ctx context.Context, tx *gorm.DB, requests []reservation.StockRequest) ([]reservation.StockResult, error)
}

type paymentGateway interface {
	Checkout(req payfast.HandoffRequest) (payfast.Handoff, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type reservationEngine struct{}

func (reservationEngine) Reserve(ctx context.Context, tx *gorm.DB, requests []reservation.StockRequest) ([]reservation.StockResult, error) {
	return reservation.ReserveStock(ctx, tx, requests)
}

// Service executes checkout orchestration.
type Service interface {
	Quote(ctx context.Context, userID uuid.UUID, input QuoteInput) (*Quote, error)
	Execute(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*Result, error)
}

// QuoteInput previews totals for the current cart without writing anything.
type QuoteInput struct {
	ShippingMethodID *uuid.UUID
	DiscountCode     string
}

// Quote is a priced preview of the cart.
type Quote struct {
	Totals   pricing.Totals    `json:"totals"`
	Discount *discounts.Result `json:"discount,omitempty"`
}

// CheckoutInput is the buyer supplied part of an order.
type CheckoutInput struct {
	ShippingMethodID uuid.UUID      `json:"shipping_method_id" validate:"required"`
	ShippingAddress  types.Address  `json:"shipping_address" validate:"required"`
	BillingAddress   *types.Address `json:"billing_address,omitempty"`
	DiscountCode     string         `json:"discount_code,omitempty" validate:"omitempty,max=64"`
	LaybyPlanID      *uuid.UUID     `json:"layby_plan_id,omitempty"`
}

// Result is the created order plus the form the client posts to the payment page.
type Result struct {
	Order   orders.OrderDTO `json:"order"`
	Payment payfast.Handoff `json:"payment"`
}

// Deps groups the checkout collaborators.
type Deps struct {
	Tx        txRunner
	Limiter   rateLimiter
	Buyers    buyerLoader
	Carts     cart.CartRepository
	Shipping  shippingResolver
	Discounts discountRedeemer
	Layby     laybyLinker
	Orders    orders.Repository
	Stock     stockReserver
	Gateway   paymentGateway
	Outbox    outboxPublisher
	Metrics   *metrics.PaymentMetrics
	Logger    *logger.Logger
	RateLimit config.PaymentRateLimitConfig
	Checkout  config.CheckoutConfig
}

type service struct {
	tx        txRunner
	limiter   rateLimiter
	buyers    buyerLoader
	carts     cart.CartRepository
	shipping  shippingResolver
	discounts discountRedeemer
	layby     laybyLinker
	orders    orders.Repository
	stock     stockReserver
	gateway   paymentGateway
	outbox    outboxPublisher
	metrics   *metrics.PaymentMetrics
	logg      *logger.Logger
	rateLimit config.PaymentRateLimitConfig
	cfg       config.CheckoutConfig
	now       func() time.Time
}

// NewService builds the checkout service.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case deps.Limiter == nil:
		return nil, fmt.Errorf("rate limiter required")
	case deps.Buyers == nil:
		return nil, fmt.Errorf("buyer loader required")
	case deps.Carts == nil:
		return nil, fmt.Errorf("cart repository required")
	case deps.Shipping == nil:
		return nil, fmt.Errorf("shipping resolver required")
	case deps.Discounts == nil:
		return nil, fmt.Errorf("discount service required")
	case deps.Layby == nil:
		return nil, fmt.Errorf("layby service required")
	case deps.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case deps.Gateway == nil:
		return nil, fmt.Errorf("payment gateway required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	if deps.Stock == nil {
		deps.Stock = reservationEngine{}
	}
	if deps.RateLimit.Limit <= 0 {
		deps.RateLimit.Limit = 5
	}
	if deps.RateLimit.Window <= 0 {
		deps.RateLimit.Window = time.Minute
	}
	if deps.Checkout.Currency == "" {
		deps.Checkout.Currency = "ZAR"
	}
	if deps.Checkout.ItemName == "" {
		deps.Checkout.ItemName = "Storefront order"
	}
	return &service{
		tx:        deps.Tx,
		limiter:   deps.Limiter,
		buyers:    deps.Buyers,
		carts:     deps.Carts,
		shipping:  deps.Shipping,
		discounts: deps.Discounts,
		layby:     deps.Layby,
		orders:    deps.Orders,
		stock:     deps.Stock,
		gateway:   deps.Gateway,
		outbox:    deps.Outbox,
		metrics:   deps.Metrics,
		logg:      deps.Logger,
		rateLimit: deps.RateLimit,
		cfg:       deps.Checkout,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Quote(ctx context.Context, userID uuid.UUID, input QuoteInput) (*Quote, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	lines, err := s.cartLines(ctx, s.carts, userID)
	if err != nil {
		return nil, err
	}
	subtotal := subtotalOf(lines)

	shippingCents := 0
	if input.ShippingMethodID != nil {
		method, err := s.shipping.Resolve(ctx, *input.ShippingMethodID)
		if err != nil {
			return nil, err
		}
		shippingCents = method.PriceCents
	}

	quote := &Quote{}
	discountCents := 0
	if code := strings.TrimSpace(input.DiscountCode); code != "" {
		result, err := s.discounts.Quote(ctx, code, subtotal, shippingCents)
		if err != nil {
			return nil, err
		}
		quote.Discount = &result
		discountCents = result.AmountCents
	}
	quote.Totals = pricing.NewTotals(subtotal, shippingCents, discountCents, s.cfg.Currency)
	return quote, nil
}

// Execute turns the user's cart into a pending order and returns the signed payment handoff.
func (s *service) Execute(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*Result, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if err := s.allow(ctx, userID); err != nil {
		return nil, err
	}

	shippingAddress, billingAddress, err := normalizeAddresses(input)
	if err != nil {
		s.metrics.IncCheckout("rejected")
		return nil, err
	}
	buyer, err := s.buyers.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load buyer")
	}
	method, err := s.shipping.Resolve(ctx, input.ShippingMethodID)
	if err != nil {
		s.metrics.IncCheckout("rejected")
		return nil, err
	}

	var (
		order   *models.Order
		handoff payfast.Handoff
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.carts.WithTx(tx)
		ordersRepo := s.orders.WithTx(tx)

		lines, err := s.cartLines(ctx, cartRepo, userID)
		if err != nil {
			return err
		}
		if err := s.reserve(ctx, tx, lines); err != nil {
			return err
		}

		subtotal := subtotalOf(lines)
		var discount *discounts.Result
		if code := strings.TrimSpace(input.DiscountCode); code != "" {
			result, err := s.discounts.Redeem(ctx, tx, code, subtotal, method.PriceCents)
			if err != nil {
				return err
			}
			discount = &result
		}
		discountCents := 0
		if discount != nil {
			discountCents = discount.AmountCents
		}
		totals := pricing.NewTotals(subtotal, method.PriceCents, discountCents, s.cfg.Currency)

		order = s.buildOrder(buyer, method, lines, totals, discount, shippingAddress, billingAddress)
		order.IsLayby = input.LaybyPlanID != nil
		if err := ordersRepo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		if input.LaybyPlanID != nil {
			plan, err := s.layby.LinkOrder(ctx, tx, *input.LaybyPlanID, userID, order.ID, totals.TotalCents)
			if err != nil {
				return err
			}
			order.PaymentAmountCents = plan.Plan.DepositCents
			if err := ordersRepo.UpdatePaymentAmount(ctx, order.ID, order.PaymentAmountCents); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set layby payment amount")
			}
		}

		if order.PaymentAmountCents <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "order total must be greater than zero").WithDetails(map[string]any{
				"total_cents": order.TotalCents,
			})
		}
		handoff, err = s.gateway.Checkout(payfast.HandoffRequest{
			OrderID:         order.ID,
			AmountCents:     order.PaymentAmountCents,
			ItemName:        fmt.Sprintf("%s %s", s.cfg.ItemName, order.OrderNumber),
			ItemDescription: itemDescription(order),
			FirstName:       buyer.FirstName,
			LastName:        buyer.LastName,
			Email:           buyer.Email,
		})
		if err != nil {
			s.metrics.IncCheckout("handoff_failed")
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build payment handoff")
		}

		if err := ordersRepo.AppendTracking(ctx, &models.OrderTrackingEvent{
			ID:      uuid.New(),
			OrderID: order.ID,
			Status:  enums.TrackingOrderPlaced,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append tracking event")
		}

		if err := s.outbox.Emit(ctx, tx, s.orderCreatedEvent(order)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order created event")
		}

		if err := cartRepo.ClearCartList(ctx, userID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		return nil
	})
	if err != nil {
		s.metrics.IncCheckout("failed")
		return nil, err
	}

	s.metrics.IncCheckout("created")
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(s.logg.WithUserID(ctx, userID.String()), order.ID.String())
		s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
			"order_number":   order.OrderNumber,
			"total_cents":    order.TotalCents,
			"payment_amount": order.PaymentAmountCents,
			"is_layby":       order.IsLayby,
		}), "order created")
	}

	return &Result{Order: orders.NewOrderDTO(order), Payment: handoff}, nil
}

// allow enforces the per-user payment creation window before any read or write.
func (s *service) allow(ctx context.Context, userID uuid.UUID) error {
	scope := "payment:" + userID.String()
	allowed, count, err := s.limiter.FixedWindowAllow(ctx, scope, int64(s.rateLimit.Limit), s.rateLimit.Window)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check payment rate limit")
	}
	if !allowed {
		s.metrics.IncRateLimited()
		s.metrics.IncCheckout("rate_limited")
		return pkgerrors.New(pkgerrors.CodeRateLimit, "too many payment attempts, try again later").WithDetails(map[string]any{
			"limit":          s.rateLimit.Limit,
			"window_seconds": int(s.rateLimit.Window.Seconds()),
			"attempts":       count,
		}).WithRetryAfter(s.retryAfter(ctx, scope))
	}
	return nil
}

func (s *service) retryAfter(ctx context.Context, scope string) time.Duration {
	wait, err := s.limiter.WindowRemaining(ctx, scope)
	if err != nil || wait <= 0 {
		return s.rateLimit.Window
	}
	return wait
}

func (s *service) cartLines(ctx context.Context, repo cart.CartRepository, userID uuid.UUID) ([]cart.Line, error) {
	rows, err := repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	lines := make([]cart.Line, 0, len(rows))
	for _, row := range rows {
		if row.List != enums.CartListCart {
			continue
		}
		lines = append(lines, cart.LineFromModel(row))
	}
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	return lines, nil
}

func (s *service) reserve(ctx context.Context, tx *gorm.DB, lines []cart.Line) error {
	requests := make([]reservation.StockRequest, 0, len(lines))
	for _, line := range lines {
		requests = append(requests, reservation.StockRequest{
			LineID:    line.ID,
			ProductID: line.ProductID,
			Name:      line.Name,
			Size:      line.Size,
			Qty:       line.Quantity,
		})
	}
	results, err := s.stock.Reserve(ctx, tx, requests)
	if err != nil {
		return err
	}
	var shortages []pricing.StockShortage
	for i, result := range results {
		if result.Reserved {
			continue
		}
		shortages = append(shortages, pricing.StockShortage{
			ProductID:    result.ProductID,
			ProductName:  requests[i].Name,
			Size:         requests[i].Size,
			RequestedQty: result.Qty,
		})
	}
	return pricing.ShortageError(shortages)
}

func (s *service) buildOrder(buyer *models.User, method *models.ShippingMethod, lines []cart.Line, totals pricing.Totals, discount *discounts.Result, shipping, billing types.Address) *models.Order {
	now := s.now()
	orderID := uuid.New()
	order := &models.Order{
		ID:                 orderID,
		OrderNumber:        orderNumber(now, orderID),
		UserID:             buyer.ID,
		Status:             enums.OrderStatusPending,
		SubtotalCents:      totals.SubtotalCents,
		ShippingCents:      totals.ShippingCents,
		DiscountCents:      totals.DiscountCents,
		TotalCents:         totals.TotalCents,
		PaymentAmountCents: totals.TotalCents,
		Currency:           totals.Currency,
		ShippingMethodID:   method.ID,
		ShippingAddress:    shipping,
		BillingAddress:     billing,
		BuyerEmail:         buyer.Email,
		BuyerName:          strings.TrimSpace(buyer.FirstName + " " + buyer.LastName),
		CreatedAt:          now,
		UpdatedAt:          now,
		Items:              make([]models.OrderItem, 0, len(lines)),
	}
	if discount != nil {
		id := discount.DiscountID
		code := discount.Code
		order.DiscountCodeID = &id
		order.DiscountCode = &code
	}
	for _, line := range lines {
		order.Items = append(order.Items, models.OrderItem{
			ID:               uuid.New(),
			ProductID:        line.ProductID,
			Name:             line.Name,
			Size:             line.Size,
			ImageRef:         line.ImageRef,
			Quantity:         line.Quantity,
			PriceAtTimeCents: line.UnitPriceCents,
			LineTotalCents:   line.LineTotalCents(),
			CreatedAt:        now,
		})
	}
	return order
}

func (s *service) orderCreatedEvent(order *models.Order) outbox.DomainEvent {
	items := make([]payloads.OrderItemSummary, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, payloads.OrderItemSummary{
			ProductID:        item.ProductID,
			Name:             item.Name,
			Size:             item.Size,
			Quantity:         item.Quantity,
			PriceAtTimeCents: item.PriceAtTimeCents,
			LineTotalCents:   item.LineTotalCents,
		})
	}
	return outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         &outbox.ActorRef{UserID: order.UserID, Role: enums.UserRoleCustomer},
		OccurredAt:    order.CreatedAt,
		Data: payloads.OrderCreatedEvent{
			OrderID:            order.ID,
			OrderNumber:        order.OrderNumber,
			UserID:             order.UserID,
			BuyerEmail:         order.BuyerEmail,
			BuyerName:          order.BuyerName,
			Status:             order.Status,
			SubtotalCents:      order.SubtotalCents,
			ShippingCents:      order.ShippingCents,
			DiscountCents:      order.DiscountCents,
			TotalCents:         order.TotalCents,
			PaymentAmountCents: order.PaymentAmountCents,
			Currency:           order.Currency,
			DiscountCode:       order.DiscountCode,
			IsLayby:            order.IsLayby,
			Items:              items,
			CreatedAt:          order.CreatedAt,
		},
	}
}

func normalizeAddresses(input CheckoutInput) (types.Address, types.Address, error) {
	shipping := input.ShippingAddress.Normalize()
	if err := shipping.Validate(); err != nil {
		return types.Address{}, types.Address{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping address")
	}
	billing := shipping
	if input.BillingAddress != nil {
		billing = input.BillingAddress.Normalize()
		if err := billing.Validate(); err != nil {
			return types.Address{}, types.Address{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid billing address")
		}
	}
	return shipping, billing, nil
}

func subtotalOf(lines []cart.Line) int {
	total := 0
	for _, line := range lines {
		total += line.LineTotalCents()
	}
	return total
}

func orderNumber(now time.Time, id uuid.UUID) string {
	return fmt.Sprintf("SF-%s-%s", now.Format("20060102"), strings.ToUpper(id.String()[:8]))
}

func itemDescription(order *models.Order) string {
	names := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		names = append(names, fmt.Sprintf("%dx %s", item.Quantity, item.Name))
	}
	return strings.Join(names, ", ")
}
