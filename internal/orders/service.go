package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Service defines customer and admin order operations.
type Service interface {
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
	Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	Tracking(ctx context.Context, userID, orderID uuid.UUID) (*TrackingDTO, error)
	Cancel(ctx context.Context, userID, orderID uuid.UUID, reason string) (*OrderDTO, error)
	Expire(ctx context.Context, orderID uuid.UUID) (bool, error)
	RecoverCart(ctx context.Context, userID, orderID uuid.UUID) (*cart.View, error)
	AdvanceFulfillment(ctx context.Context, input FulfillmentInput) (*OrderDTO, error)
	TransitionTx(ctx context.Context, tx *gorm.DB, in TransitionInput) (*TransitionResult, error)
	ListStaleUnpaid(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}

// FulfillmentInput moves a paid order along the shipping chain.
type FulfillmentInput struct {
	OrderID  uuid.UUID
	Status   enums.OrderStatus
	Actor    *outbox.ActorRef
	Tracking TrackingDetails
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	stock     StockReleaser
	discounts discountReleaser
	carts     cartRestorer
	layby     laybyReader
	logg      *logger.Logger
	now       func() time.Time
}

// Deps groups the collaborators the order service needs.
type Deps struct {
	Repo      Repository
	Tx        txRunner
	Outbox    outboxPublisher
	Stock     StockReleaser
	Discounts discountReleaser
	Carts     cartRestorer
	Layby     laybyReader
	Logger    *logger.Logger
}

// NewService builds the order service with the required dependencies.
func NewService(deps Deps) (Service, error) {
	if deps.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if deps.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if deps.Stock == nil {
		return nil, fmt.Errorf("stock releaser required")
	}
	if deps.Discounts == nil {
		return nil, fmt.Errorf("discount releaser required")
	}
	if deps.Carts == nil {
		return nil, fmt.Errorf("cart restorer required")
	}
	return &service{
		repo:      deps.Repo,
		tx:        deps.Tx,
		outbox:    deps.Outbox,
		stock:     deps.Stock,
		discounts: deps.Discounts,
		carts:     deps.Carts,
		layby:     deps.Layby,
		logg:      deps.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	cursor, err := pagination.ParseCursor(strings.TrimSpace(params.Cursor))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, hasMore, err := s.repo.ListByUser(ctx, userID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	out := &OrderList{Orders: make([]OrderDTO, 0, len(rows))}
	for i := range rows {
		out.Orders = append(out.Orders, NewOrderDTO(&rows[i]))
	}
	if hasMore && len(rows) > 0 {
		last := rows[len(rows)-1]
		out.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.loadForUser(ctx, s.repo, userID, orderID)
	if err != nil {
		return nil, err
	}
	dto := NewOrderDTO(order)
	if order.IsLayby && s.layby != nil {
		plan, err := s.layby.PlanForOrder(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		dto.Layby = plan
	}
	return &dto, nil
}

func (s *service) Tracking(ctx context.Context, userID, orderID uuid.UUID) (*TrackingDTO, error) {
	order, err := s.loadForUser(ctx, s.repo, userID, orderID)
	if err != nil {
		return nil, err
	}
	events, err := s.repo.ListTracking(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tracking events")
	}
	out := &TrackingDTO{
		OrderID:     order.ID,
		OrderStatus: order.Status,
		Events:      make([]TrackingEventDTO, 0, len(events)),
	}
	for _, event := range events {
		out.Events = append(out.Events, newTrackingEventDTO(event))
	}
	if len(events) > 0 {
		out.CurrentStatus = events[len(events)-1].Status
	}
	return out, nil
}

// Cancel cancels an unpaid order. Cancelling an already cancelled order returns it unchanged.
func (s *service) Cancel(ctx context.Context, userID, orderID uuid.UUID, reason string) (*OrderDTO, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "cancelled by customer"
	}
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.loadForUser(ctx, s.repo.WithTx(tx), userID, orderID)
		if err != nil {
			return err
		}
		if order.Status == enums.OrderStatusCancelled {
			result = order
			return nil
		}
		if !order.Status.IsCancellable() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled").
				WithDetails(map[string]any{"status": order.Status})
		}
		res, err := s.transition(ctx, tx, order, TransitionInput{
			OrderID: order.ID,
			To:      enums.OrderStatusCancelled,
			Reason:  reason,
			Actor:   &outbox.ActorRef{UserID: userID, Role: enums.UserRoleCustomer},
		})
		if err != nil {
			return err
		}
		if !res.Changed && res.Order.Status != enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled").
				WithDetails(map[string]any{"status": res.Order.Status})
		}
		result = res.Order
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(s.logg.WithUserID(ctx, userID.String()), orderID.String())
		s.logg.Info(logCtx, "order cancelled")
	}
	dto := NewOrderDTO(result)
	return &dto, nil
}

// Expire cancels an order that never completed payment. It reports whether the order changed.
func (s *service) Expire(ctx context.Context, orderID uuid.UUID) (bool, error) {
	changed := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.repo.WithTx(tx).FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status != enums.OrderStatusPending && order.Status != enums.OrderStatusPaymentPending {
			return nil
		}
		res, err := s.transition(ctx, tx, order, TransitionInput{
			OrderID:  order.ID,
			To:       enums.OrderStatusCancelled,
			Reason:   "checkout expired",
			Tracking: TrackingDetails{Status: enums.TrackingCheckoutExpired},
		})
		if err != nil {
			return err
		}
		changed = res.Changed
		return nil
	})
	return changed, err
}

func (s *service) ListStaleUnpaid(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := s.repo.ListStaleUnpaid(ctx, cutoff, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale orders")
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

// RecoverCart puts a cancelled order's items back into the user's cart.
func (s *service) RecoverCart(ctx context.Context, userID, orderID uuid.UUID) (*cart.View, error) {
	order, err := s.loadForUser(ctx, s.repo, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only cancelled orders can be recovered")
	}
	lines := make([]cart.IncomingLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, cart.IncomingLine{
			ProductID: item.ProductID,
			Size:      item.Size,
			Quantity:  item.Quantity,
		})
	}
	return s.carts.Restore(ctx, userID, order.ID, lines)
}

func (s *service) AdvanceFulfillment(ctx context.Context, input FulfillmentInput) (*OrderDTO, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Status.IsFulfillment() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be processing, shipped, delivered or completed")
	}
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.repo.WithTx(tx).FindByID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status == input.Status {
			result = order
			return nil
		}
		if !order.Status.CanTransitionTo(input.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "fulfillment transition not allowed").
				WithDetails(map[string]any{"from": order.Status, "to": input.Status})
		}
		res, err := s.transition(ctx, tx, order, TransitionInput{
			OrderID:  order.ID,
			To:       input.Status,
			Actor:    input.Actor,
			Tracking: input.Tracking,
		})
		if err != nil {
			return err
		}
		if !res.Changed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
		}
		result = res.Order
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := NewOrderDTO(result)
	return &dto, nil
}

func (s *service) loadForUser(ctx context.Context, repo Repository, userID, orderID uuid.UUID) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	order, err := repo.FindForUser(ctx, userID, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

type productStock struct {
	repo *product.Repository
}

// NewStockReleaser returns stock to the catalog through the product repository.
func NewStockReleaser(repo *product.Repository) StockReleaser {
	return productStock{repo: repo}
}

func (p productStock) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock release")
	}
	return p.repo.WithTx(tx).ReleaseStock(ctx, productID, qty)
}
