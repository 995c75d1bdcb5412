package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// TrackingDetails carries the optional fields recorded with a tracking entry.
// Status overrides the entry derived from the target order status.
type TrackingDetails struct {
	Status            enums.TrackingStatus
	Description       *string
	Location          *string
	Carrier           *string
	TrackingNumber    *string
	EstimatedDelivery *time.Time
	Latitude          *float64
	Longitude         *float64
}

// TransitionInput describes a guarded status change.
type TransitionInput struct {
	OrderID         uuid.UUID
	To              enums.OrderStatus
	PaymentIntentID *string
	Reason          string
	Actor           *outbox.ActorRef
	Tracking        TrackingDetails
}

// TransitionResult reports whether the row moved. Changed=false means a duplicate or a disallowed source state.
// Stranded is set when a payment arrived for an order that can no longer become paid.
type TransitionResult struct {
	Order    *models.Order
	From     enums.OrderStatus
	Changed  bool
	Stranded bool
}

// TransitionTx applies in inside tx. Side effects only run when the conditional update changed the row.
func (s *service) TransitionTx(ctx context.Context, tx *gorm.DB, in TransitionInput) (*TransitionResult, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	order, err := s.repo.WithTx(tx).FindByID(ctx, in.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return s.transition(ctx, tx, order, in)
}

func (s *service) transition(ctx context.Context, tx *gorm.DB, order *models.Order, in TransitionInput) (*TransitionResult, error) {
	repo := s.repo.WithTx(tx)
	now := s.now()
	from := order.Status

	updates := map[string]any{}
	if in.PaymentIntentID != nil {
		updates["payment_intent_id"] = *in.PaymentIntentID
	}
	switch in.To {
	case enums.OrderStatusPaid:
		updates["paid_at"] = now
	case enums.OrderStatusCancelled:
		updates["cancelled_at"] = now
	}

	changed, err := repo.TransitionStatus(ctx, order.ID, in.To, enums.SourcesFor(in.To), updates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !changed {
		current, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		result := &TransitionResult{Order: current, From: current.Status}
		if in.To == enums.OrderStatusPaid && current.Status != enums.OrderStatusPaid && !current.Status.IsFulfillment() {
			result.Stranded = true
			if in.PaymentIntentID != nil {
				if err := repo.RecordPaymentIntent(ctx, current.ID, *in.PaymentIntentID); err != nil {
					return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment intent")
				}
				current.PaymentIntentID = in.PaymentIntentID
			}
		}
		return result, nil
	}

	order.Status = in.To
	order.UpdatedAt = now
	if in.PaymentIntentID != nil {
		order.PaymentIntentID = in.PaymentIntentID
	}
	switch in.To {
	case enums.OrderStatusPaid:
		order.PaidAt = &now
	case enums.OrderStatusCancelled:
		order.CancelledAt = &now
		if err := s.releaseReservations(ctx, tx, order); err != nil {
			return nil, err
		}
	}

	trackingStatus := in.Tracking.Status
	if trackingStatus == "" {
		trackingStatus = enums.TrackingStatusFor(in.To)
	}
	description := in.Tracking.Description
	if description == nil && in.Reason != "" {
		reason := in.Reason
		description = &reason
	}
	event := &models.OrderTrackingEvent{
		ID:                uuid.New(),
		OrderID:           order.ID,
		Status:            trackingStatus,
		Description:       description,
		Location:          in.Tracking.Location,
		Carrier:           in.Tracking.Carrier,
		TrackingNumber:    in.Tracking.TrackingNumber,
		EstimatedDelivery: in.Tracking.EstimatedDelivery,
		Latitude:          in.Tracking.Latitude,
		Longitude:         in.Tracking.Longitude,
	}
	if err := repo.AppendTracking(ctx, event); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "payment already confirmed for order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append tracking event")
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         in.Actor,
		OccurredAt:    now,
		Data: payloads.OrderStatusChangedEvent{
			OrderID:        order.ID,
			OrderNumber:    order.OrderNumber,
			UserID:         order.UserID,
			BuyerEmail:     order.BuyerEmail,
			BuyerName:      order.BuyerName,
			From:           from,
			To:             in.To,
			Reason:         in.Reason,
			TotalCents:     order.TotalCents,
			Currency:       order.Currency,
			Carrier:        in.Tracking.Carrier,
			TrackingNumber: in.Tracking.TrackingNumber,
			ChangedAt:      now,
		},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order status event")
	}

	return &TransitionResult{Order: order, From: from, Changed: true}, nil
}

func (s *service) releaseReservations(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	for _, item := range order.Items {
		if item.Quantity <= 0 {
			continue
		}
		if err := s.stock.Release(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release stock")
		}
	}
	if order.DiscountCodeID != nil {
		if err := s.discounts.Release(ctx, tx, *order.DiscountCodeID); err != nil {
			return err
		}
	}
	return nil
}
