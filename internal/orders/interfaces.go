package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/layby"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their tracking log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	UpdatePaymentAmount(ctx context.Context, orderID uuid.UUID, amountCents int) error
	RecordPaymentIntent(ctx context.Context, orderID uuid.UUID, intentID string) error
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindForUser(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Order, bool, error)
	TransitionStatus(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus, from []enums.OrderStatus, updates map[string]any) (bool, error)
	AppendTracking(ctx context.Context, event *models.OrderTrackingEvent) error
	ListTracking(ctx context.Context, orderID uuid.UUID) ([]models.OrderTrackingEvent, error)
	ListStaleUnpaid(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// StockReleaser returns reserved stock when an order is cancelled.
type StockReleaser interface {
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

type discountReleaser interface {
	Release(ctx context.Context, tx *gorm.DB, discountID uuid.UUID) error
}

type cartRestorer interface {
	Restore(ctx context.Context, userID, orderID uuid.UUID, lines []cart.IncomingLine) (*cart.View, error)
}

type laybyReader interface {
	PlanForOrder(ctx context.Context, orderID uuid.UUID) (*layby.PlanDTO, error)
}
