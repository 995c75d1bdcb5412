// Package payfastwebhook reconciles PayFast ITN callbacks into order state.
package payfastwebhook

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/angelmondragon/storefront-backend/pkg/payfast"
)

// amountTolerance is the largest accepted difference between amount_gross and the charged amount.
const amountTolerance = 1

type verifier interface {
	VerifyMerchant(params url.Values) bool
	VerifySignature(params url.Values) bool
}

type orderLoader interface {
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type orderTransitioner interface {
	TransitionTx(ctx context.Context, tx *gorm.DB, in orders.TransitionInput) (*orders.TransitionResult, error)
}

type depositMarker interface {
	MarkDepositPaid(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

type notificationGuard interface {
	CheckAndMark(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Gateway           verifier
	Orders            orderLoader
	Transitions       orderTransitioner
	Layby             depositMarker
	Guard             notificationGuard
	TransactionRunner txRunner
	Metrics           *metrics.PaymentMetrics
	Logger            *logger.Logger
}

type Service struct {
	gateway     verifier
	orders      orderLoader
	transitions orderTransitioner
	layby       depositMarker
	guard       notificationGuard
	txRunner    txRunner
	metrics     *metrics.PaymentMetrics
	logg        *logger.Logger
}

// Outcome describes what a notification did.
type Outcome struct {
	OrderID   uuid.UUID
	Status    enums.OrderStatus
	Changed   bool
	Duplicate bool
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payfast client required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.Transitions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders service required")
	}
	if params.Layby == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "layby service required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		gateway:     params.Gateway,
		orders:      params.Orders,
		transitions: params.Transitions,
		layby:       params.Layby,
		guard:       params.Guard,
		txRunner:    params.TransactionRunner,
		metrics:     params.Metrics,
		logg:        params.Logger,
	}, nil
}

// Reconcile verifies a notification and applies the payment status it reports.
// Verification happens before any write, including the idempotency marker.
func (s *Service) Reconcile(ctx context.Context, params url.Values) (*Outcome, error) {
	if !s.gateway.VerifyMerchant(params) {
		s.metrics.IncNotification("rejected")
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "merchant mismatch")
	}
	if !s.gateway.VerifySignature(params) {
		s.metrics.IncNotification("rejected")
		return nil, pkgerrors.New(pkgerrors.CodeSignature, "invalid signature")
	}

	orderID, err := uuid.Parse(strings.TrimSpace(params.Get(payfast.ParamPaymentID)))
	if err != nil {
		s.metrics.IncNotification("rejected")
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid m_payment_id")
	}
	rawStatus := strings.ToUpper(strings.TrimSpace(params.Get(payfast.ParamPaymentStatus)))
	target := payfast.MapPaymentStatus(rawStatus)
	outcome := &Outcome{OrderID: orderID, Status: target}
	if target == enums.OrderStatusPending {
		s.metrics.IncNotification("ignored")
		return outcome, nil
	}

	gatewayID := strings.TrimSpace(params.Get(payfast.ParamGatewayID))
	key := NotificationKey(gatewayID, rawStatus)
	if key != "" {
		seen, err := s.guard.CheckAndMark(ctx, key)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check notification idempotency")
		}
		if seen {
			s.metrics.IncNotification("duplicate")
			outcome.Duplicate = true
			return outcome, nil
		}
	}

	changed, err := s.apply(ctx, orderID, target, gatewayID, params)
	if err != nil {
		if key != "" {
			if delErr := s.guard.Delete(ctx, key); delErr != nil && s.logg != nil {
				s.logg.Error(ctx, "release notification idempotency key", delErr)
			}
		}
		s.metrics.IncNotification("failed")
		s.logFailure(ctx, orderID, params, err)
		return nil, err
	}

	outcome.Changed = changed
	if changed {
		s.metrics.IncNotification("applied")
	} else {
		s.metrics.IncNotification("noop")
	}
	return outcome, nil
}

func (s *Service) apply(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus, gatewayID string, params url.Values) (bool, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if err := checkAmount(order, params.Get(payfast.ParamAmountGross)); err != nil {
		return false, err
	}

	var paymentIntentID *string
	if gatewayID != "" {
		paymentIntentID = &gatewayID
	}

	changed := false
	var stranded *models.Order
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		result, err := s.transitions.TransitionTx(ctx, tx, orders.TransitionInput{
			OrderID:         order.ID,
			To:              target,
			PaymentIntentID: paymentIntentID,
			Reason:          "payment " + strings.ToLower(params.Get(payfast.ParamPaymentStatus)),
		})
		if err != nil {
			return err
		}
		changed = result.Changed
		if result.Stranded {
			stranded = result.Order
		}
		if changed && target == enums.OrderStatusPaid && result.Order.IsLayby {
			return s.layby.MarkDepositPaid(ctx, tx, order.ID)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if stranded != nil {
		s.metrics.IncNotification("paid_after_cancel")
		return false, pkgerrors.New(pkgerrors.CodeStateConflict, "payment received for order that cannot be paid").WithDetails(map[string]any{
			"order_status":      stranded.Status,
			"payment_intent_id": gatewayID,
		})
	}
	return changed, nil
}

// checkAmount rejects notifications whose gross amount does not match what was charged.
// A missing amount is accepted since the signature already covers the payload.
func checkAmount(order *models.Order, gross string) error {
	gross = strings.TrimSpace(gross)
	if gross == "" {
		return nil
	}
	cents, err := money.ParseAmount(gross)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount_gross")
	}
	diff := cents - order.PaymentAmountCents
	if diff < 0 {
		diff = -diff
	}
	if diff > amountTolerance {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount mismatch").WithDetails(map[string]any{
			"expected_cents": order.PaymentAmountCents,
			"received_cents": cents,
		})
	}
	return nil
}

func (s *Service) logFailure(ctx context.Context, orderID uuid.UUID, params url.Values, err error) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithOrderID(ctx, orderID.String())
	logCtx = s.logg.WithPaymentID(logCtx, params.Get(payfast.ParamGatewayID))
	logCtx = s.logg.WithField(logCtx, "payload", redact(params).Encode())
	s.logg.Error(logCtx, "payfast notification failed", err)
}

func redact(params url.Values) url.Values {
	out := url.Values{}
	for key, values := range params {
		if key == payfast.ParamSignature {
			continue
		}
		out[key] = values
	}
	return out
}
