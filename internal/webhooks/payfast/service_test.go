package payfastwebhook

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/discounts"
	"github.com/angelmondragon/storefront-backend/internal/layby"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/payfast"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

const (
	testMerchantID = "10000100"
	testPassphrase = "jt7NOE43FZPn"
)

type inMemoryStore struct {
	mu   sync.Mutex
	keys map[string]string
	err  error
}

func (s *inMemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[key], nil
}

func (s *inMemoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if s.keys == nil {
		s.keys = map[string]string{}
	}
	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	s.keys[key] = "1"
	return true, nil
}

func (s *inMemoryStore) IdempotencyKey(scope, id string) string {
	return "idempotency:" + scope + ":" + id
}

func (s *inMemoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.keys, key)
	}
	return nil
}

type noopCarts struct{}

func (noopCarts) Restore(context.Context, uuid.UUID, uuid.UUID, []cart.IncomingLine) (*cart.View, error) {
	return &cart.View{}, nil
}

type fixture struct {
	svc    *Service
	conn   *gorm.DB
	client *db.Client
	store  *inMemoryStore
	orders orders.Repository
	layby  layby.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	client := db.NewFromGorm(conn)

	discountSvc, err := discounts.NewService(discounts.NewRepository(conn))
	if err != nil {
		t.Fatalf("discounts service: %v", err)
	}
	laybySvc, err := layby.NewService(layby.NewRepository(conn), client, "ZAR", nil)
	if err != nil {
		t.Fatalf("layby service: %v", err)
	}
	orderRepo := orders.NewRepository(conn)
	orderSvc, err := orders.NewService(orders.Deps{
		Repo:      orderRepo,
		Tx:        client,
		Outbox:    outbox.NewService(outbox.NewRepository(conn), nil),
		Stock:     orders.NewStockReleaser(product.NewRepository(conn)),
		Discounts: discountSvc,
		Carts:     noopCarts{},
		Layby:     laybySvc,
	})
	if err != nil {
		t.Fatalf("orders service: %v", err)
	}
	gateway, err := payfast.NewClient(config.PayFastConfig{
		MerchantID:  testMerchantID,
		MerchantKey: "46f0cd694581a",
		Passphrase:  testPassphrase,
		Sandbox:     true,
		ReturnURL:   "https://shop.example/return",
		CancelURL:   "https://shop.example/cancel",
		NotifyURL:   "https://api.shop.example/api/v1/webhooks/payfast",
	})
	if err != nil {
		t.Fatalf("payfast client: %v", err)
	}
	store := &inMemoryStore{}
	guard, err := NewIdempotencyGuard(store, time.Hour, "payfast")
	if err != nil {
		t.Fatalf("guard: %v", err)
	}

	svc, err := NewService(ServiceParams{
		Gateway:           gateway,
		Orders:            orderRepo,
		Transitions:       orderSvc,
		Layby:             laybySvc,
		Guard:             guard,
		TransactionRunner: client,
	})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return &fixture{svc: svc, conn: conn, client: client, store: store, orders: orderRepo, layby: laybySvc}
}

func (f *fixture) seedOrder(t *testing.T, amountCents int, isLayby bool) *models.Order {
	t.Helper()
	address := types.Address{
		FirstName:  "Thandi",
		LastName:   "Nkosi",
		Line1:      "12 Long Street",
		City:       "Cape Town",
		Province:   "Western Cape",
		PostalCode: "8001",
	}
	order := &models.Order{
		ID:                 uuid.New(),
		OrderNumber:        "SF-" + uuid.NewString()[:8],
		UserID:             uuid.New(),
		Status:             enums.OrderStatusPending,
		SubtotalCents:      amountCents,
		TotalCents:         amountCents,
		PaymentAmountCents: amountCents,
		Currency:           "ZAR",
		ShippingMethodID:   uuid.New(),
		ShippingAddress:    address,
		BillingAddress:     address,
		IsLayby:            isLayby,
		BuyerEmail:         "thandi@example.com",
		BuyerName:          "Thandi Nkosi",
	}
	if err := f.orders.CreateOrder(context.Background(), order); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func signedParams(orderID uuid.UUID, status, amount string) url.Values {
	params := url.Values{}
	params.Set(payfast.ParamMerchantID, testMerchantID)
	params.Set(payfast.ParamPaymentID, orderID.String())
	params.Set(payfast.ParamGatewayID, "1089250")
	params.Set(payfast.ParamPaymentStatus, status)
	params.Set(payfast.ParamAmountGross, amount)
	params.Set("item_name", "Storefront order")
	params.Set(payfast.ParamSignature, payfast.SignParams(params, testPassphrase))
	return params
}

func (f *fixture) count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	if err := f.conn.Model(model).Where(query, args...).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestReconcileCompleteIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, 91000, false)
	params := signedParams(order.ID, payfast.StatusComplete, "910.00")

	first, err := f.svc.Reconcile(ctx, params)
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if !first.Changed || first.Status != enums.OrderStatusPaid {
		t.Fatalf("expected paid transition, got %+v", first)
	}

	second, err := f.svc.Reconcile(ctx, params)
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if !second.Duplicate {
		t.Fatalf("expected duplicate short-circuit")
	}

	// without the redis marker the conditional update still keeps it single
	f.store.keys = nil
	third, err := f.svc.Reconcile(ctx, params)
	if err != nil {
		t.Fatalf("third delivery: %v", err)
	}
	if third.Changed {
		t.Fatalf("expected no-op on replay")
	}

	stored, err := f.orders.FindByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if stored.Status != enums.OrderStatusPaid || stored.PaidAt == nil {
		t.Fatalf("expected paid order, got %s", stored.Status)
	}
	if stored.PaymentIntentID == nil || *stored.PaymentIntentID != "1089250" {
		t.Fatalf("expected payment intent id recorded")
	}
	if n := f.count(t, &models.OrderTrackingEvent{}, "order_id = ? AND status = ?", order.ID, enums.TrackingPaymentConfirmed); n != 1 {
		t.Fatalf("expected one payment_confirmed event, got %d", n)
	}
	if n := f.count(t, &models.OutboxEvent{}, "aggregate_id = ? AND event_type = ?", order.ID, enums.EventOrderStatusChanged); n != 1 {
		t.Fatalf("expected one status event, got %d", n)
	}
}

func TestReconcileRejectsBadSignatureBeforeWrites(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, 5000, false)
	params := signedParams(order.ID, payfast.StatusComplete, "50.00")
	params.Set(payfast.ParamAmountGross, "0.01")

	_, err := f.svc.Reconcile(context.Background(), params)
	if !pkgerrors.IsCode(err, pkgerrors.CodeSignature) {
		t.Fatalf("expected signature error, got %v", err)
	}
	if len(f.store.keys) != 0 {
		t.Fatalf("expected no idempotency marker")
	}
	stored, _ := f.orders.FindByID(context.Background(), order.ID)
	if stored.Status != enums.OrderStatusPending {
		t.Fatalf("expected pending order, got %s", stored.Status)
	}
}

func TestReconcileRejectsForeignMerchant(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, 5000, false)
	params := signedParams(order.ID, payfast.StatusComplete, "50.00")
	params.Set(payfast.ParamMerchantID, "99999")
	params.Set(payfast.ParamSignature, payfast.SignParams(params, testPassphrase))

	_, err := f.svc.Reconcile(context.Background(), params)
	if !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestReconcileAmountMismatchReleasesMarker(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, 5000, false)

	_, err := f.svc.Reconcile(context.Background(), signedParams(order.ID, payfast.StatusComplete, "49.50"))
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(f.store.keys) != 0 {
		t.Fatalf("expected marker released after failure")
	}

	outcome, err := f.svc.Reconcile(context.Background(), signedParams(order.ID, payfast.StatusComplete, "50.01"))
	if err != nil {
		t.Fatalf("within tolerance: %v", err)
	}
	if !outcome.Changed {
		t.Fatalf("expected transition within one cent")
	}
}

func TestReconcileUnknownStatusIsNoop(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, 5000, false)

	outcome, err := f.svc.Reconcile(context.Background(), signedParams(order.ID, "REFUNDED", "50.00"))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if outcome.Changed || outcome.Status != enums.OrderStatusPending {
		t.Fatalf("expected no-op, got %+v", outcome)
	}
	if n := f.count(t, &models.OrderTrackingEvent{}, "order_id = ?", order.ID); n != 0 {
		t.Fatalf("expected no tracking, got %d", n)
	}
}

func TestReconcileFailedThenComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, 5000, false)

	if _, err := f.svc.Reconcile(ctx, signedParams(order.ID, payfast.StatusFailed, "50.00")); err != nil {
		t.Fatalf("failed delivery: %v", err)
	}
	outcome, err := f.svc.Reconcile(ctx, signedParams(order.ID, payfast.StatusComplete, "50.00"))
	if err != nil {
		t.Fatalf("complete delivery: %v", err)
	}
	if !outcome.Changed {
		t.Fatalf("expected payment_failed to paid transition")
	}
}

func TestReconcileCancelledAfterPaidIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, 5000, false)

	if _, err := f.svc.Reconcile(ctx, signedParams(order.ID, payfast.StatusComplete, "50.00")); err != nil {
		t.Fatalf("complete delivery: %v", err)
	}
	outcome, err := f.svc.Reconcile(ctx, signedParams(order.ID, payfast.StatusCancelled, "50.00"))
	if err != nil {
		t.Fatalf("cancel delivery: %v", err)
	}
	if outcome.Changed {
		t.Fatalf("paid order must not be cancelled by a late notification")
	}
}

func TestReconcileMarksLaybyDeposit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, 100000, true)

	plan, err := f.layby.CreatePlan(ctx, order.UserID, 100000, enums.LaybyFrequencyMonthly, 0)
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	err = f.client.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := f.layby.LinkOrder(ctx, tx, plan.ID, order.UserID, order.ID, 100000); err != nil {
			return err
		}
		return f.orders.WithTx(tx).UpdatePaymentAmount(ctx, order.ID, plan.Plan.DepositCents)
	})
	if err != nil {
		t.Fatalf("link plan: %v", err)
	}

	if _, err := f.svc.Reconcile(ctx, signedParams(order.ID, payfast.StatusComplete, "200.00")); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if n := f.count(t, &models.LaybyPayment{}, "plan_id = ? AND sequence = 0 AND status = ?", plan.ID, enums.LaybyPaymentPaid.String()); n != 1 {
		t.Fatalf("expected deposit marked paid")
	}
}

func TestReconcileGuardOutage(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, 5000, false)
	f.store.err = errors.New("redis down")

	_, err := f.svc.Reconcile(context.Background(), signedParams(order.ID, payfast.StatusComplete, "50.00"))
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestReconcileCompleteForCancelledOrderSurfaces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, 5000, false)
	if err := f.conn.Model(&models.Order{}).Where("id = ?", order.ID).Update("status", enums.OrderStatusCancelled).Error; err != nil {
		t.Fatalf("cancel order: %v", err)
	}
	params := signedParams(order.ID, payfast.StatusComplete, "50.00")

	_, err := f.svc.Reconcile(ctx, params)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}

	stored, err := f.orders.FindByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if stored.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected order to stay cancelled, got %s", stored.Status)
	}
	if stored.PaymentIntentID == nil || *stored.PaymentIntentID != "1089250" {
		t.Fatalf("expected gateway payment id recorded on the cancelled order")
	}
	if len(f.store.keys) != 0 {
		t.Fatalf("expected marker released so the notice is not treated as handled")
	}

	// a redelivery reports the same conflict instead of a duplicate
	_, err = f.svc.Reconcile(ctx, params)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected conflict on redelivery, got %v", err)
	}
}
