package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	internalorders "github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type stubOrdersService struct {
	internalorders.Service
	list        *internalorders.OrderList
	order       *internalorders.OrderDTO
	tracking    *internalorders.TrackingDTO
	view        *cart.View
	err         error
	lastUser    uuid.UUID
	lastOrder   uuid.UUID
	lastParams  pagination.Params
	lastReason  string
	fulfillment internalorders.FulfillmentInput
}

func (s *stubOrdersService) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*internalorders.OrderList, error) {
	s.lastUser = userID
	s.lastParams = params
	return s.list, s.err
}

func (s *stubOrdersService) Get(ctx context.Context, userID, orderID uuid.UUID) (*internalorders.OrderDTO, error) {
	s.lastUser, s.lastOrder = userID, orderID
	return s.order, s.err
}

func (s *stubOrdersService) Tracking(ctx context.Context, userID, orderID uuid.UUID) (*internalorders.TrackingDTO, error) {
	s.lastUser, s.lastOrder = userID, orderID
	return s.tracking, s.err
}

func (s *stubOrdersService) Cancel(ctx context.Context, userID, orderID uuid.UUID, reason string) (*internalorders.OrderDTO, error) {
	s.lastUser, s.lastOrder, s.lastReason = userID, orderID, reason
	return s.order, s.err
}

func (s *stubOrdersService) RecoverCart(ctx context.Context, userID, orderID uuid.UUID) (*cart.View, error) {
	s.lastUser, s.lastOrder = userID, orderID
	return s.view, s.err
}

func (s *stubOrdersService) AdvanceFulfillment(ctx context.Context, input internalorders.FulfillmentInput) (*internalorders.OrderDTO, error) {
	s.fulfillment = input
	return s.order, s.err
}

func orderRequest(method, target, body string, userID, orderID uuid.UUID) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	ctx := middleware.WithUserID(req.Context(), userID.String())
	routeCtx := chi.NewRouteContext()
	if orderID != uuid.Nil {
		routeCtx.URLParams.Add("orderId", orderID.String())
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
	return req.WithContext(ctx)
}

func TestListPassesPagination(t *testing.T) {
	userID := uuid.New()
	svc := &stubOrdersService{list: &internalorders.OrderList{Orders: []internalorders.OrderDTO{{ID: uuid.New()}}, NextCursor: "next"}}
	rec := httptest.NewRecorder()
	List(svc, nil).ServeHTTP(rec, orderRequest(http.MethodGet, "/api/v1/orders?limit=10&cursor=abc", "", userID, uuid.Nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.lastUser != userID || svc.lastParams.Limit != 10 || svc.lastParams.Cursor != "abc" {
		t.Fatalf("unexpected args user=%s params=%+v", svc.lastUser, svc.lastParams)
	}
	var envelope struct {
		Data internalorders.OrderList `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Orders) != 1 || envelope.Data.NextCursor != "next" {
		t.Fatalf("unexpected list %+v", envelope.Data)
	}
}

func TestListDefaultsLimit(t *testing.T) {
	svc := &stubOrdersService{list: &internalorders.OrderList{}}
	rec := httptest.NewRecorder()
	List(svc, nil).ServeHTTP(rec, orderRequest(http.MethodGet, "/api/v1/orders", "", uuid.New(), uuid.Nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.lastParams.Limit != pagination.DefaultLimit {
		t.Fatalf("expected default limit got %d", svc.lastParams.Limit)
	}
}

func TestDetailNotOwned(t *testing.T) {
	svc := &stubOrdersService{err: pkgerrors.New(pkgerrors.CodeNotFound, "order not found")}
	orderID := uuid.New()
	rec := httptest.NewRecorder()
	Detail(svc, nil).ServeHTTP(rec, orderRequest(http.MethodGet, "/api/v1/orders/"+orderID.String(), "", uuid.New(), orderID))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
	if svc.lastOrder != orderID {
		t.Fatalf("expected order %s got %s", orderID, svc.lastOrder)
	}
}

func TestDetailMissingOrderID(t *testing.T) {
	svc := &stubOrdersService{}
	rec := httptest.NewRecorder()
	Detail(svc, nil).ServeHTTP(rec, orderRequest(http.MethodGet, "/api/v1/orders/", "", uuid.New(), uuid.Nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestTracking(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrdersService{tracking: &internalorders.TrackingDTO{
		OrderID:       orderID,
		OrderStatus:   enums.OrderStatusShipped,
		CurrentStatus: enums.TrackingShipped,
		Events:        []internalorders.TrackingEventDTO{{Status: enums.TrackingOrderPlaced}, {Status: enums.TrackingShipped}},
	}}
	rec := httptest.NewRecorder()
	Tracking(svc, nil).ServeHTTP(rec, orderRequest(http.MethodGet, "/api/v1/orders/"+orderID.String()+"/tracking", "", uuid.New(), orderID))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var envelope struct {
		Data internalorders.TrackingDTO `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.CurrentStatus != enums.TrackingShipped || len(envelope.Data.Events) != 2 {
		t.Fatalf("unexpected tracking %+v", envelope.Data)
	}
}

func TestCancel(t *testing.T) {
	orderID := uuid.New()

	t.Run("with reason", func(t *testing.T) {
		svc := &stubOrdersService{order: &internalorders.OrderDTO{ID: orderID, Status: enums.OrderStatusCancelled}}
		rec := httptest.NewRecorder()
		Cancel(svc, nil).ServeHTTP(rec, orderRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", `{"reason":"  changed my mind "}`, uuid.New(), orderID))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d", rec.Code)
		}
		if svc.lastReason != "changed my mind" {
			t.Fatalf("expected trimmed reason got %q", svc.lastReason)
		}
	})

	t.Run("without body", func(t *testing.T) {
		svc := &stubOrdersService{order: &internalorders.OrderDTO{ID: orderID, Status: enums.OrderStatusCancelled}}
		rec := httptest.NewRecorder()
		Cancel(svc, nil).ServeHTTP(rec, orderRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", "", uuid.New(), orderID))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d", rec.Code)
		}
		if svc.lastOrder != orderID || svc.lastReason != "" {
			t.Fatalf("unexpected cancel args %s %q", svc.lastOrder, svc.lastReason)
		}
	})

	t.Run("already paid", func(t *testing.T) {
		svc := &stubOrdersService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled")}
		rec := httptest.NewRecorder()
		Cancel(svc, nil).ServeHTTP(rec, orderRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", "", uuid.New(), orderID))
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422 got %d", rec.Code)
		}
	})
}

func TestRecoverCart(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrdersService{view: &cart.View{ItemCount: 2}}
	rec := httptest.NewRecorder()
	RecoverCart(svc, nil).ServeHTTP(rec, orderRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/recover-cart", "", uuid.New(), orderID))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.lastOrder != orderID {
		t.Fatalf("expected order %s got %s", orderID, svc.lastOrder)
	}
}

func TestAdminFulfillment(t *testing.T) {
	orderID := uuid.New()
	adminID := uuid.New()
	svc := &stubOrdersService{order: &internalorders.OrderDTO{ID: orderID, Status: enums.OrderStatusShipped}}
	body := `{"status":"shipped","carrier":"The Courier Guy","tracking_number":"TCG123","latitude":-33.92,"longitude":18.42}`
	rec := httptest.NewRecorder()
	AdminFulfillment(svc, nil).ServeHTTP(rec, orderRequest(http.MethodPost, "/api/admin/v1/orders/"+orderID.String()+"/fulfillment", body, adminID, orderID))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	in := svc.fulfillment
	if in.OrderID != orderID || in.Status != enums.OrderStatusShipped {
		t.Fatalf("unexpected fulfillment input %+v", in)
	}
	if in.Actor == nil || in.Actor.UserID != adminID || in.Actor.Role != enums.UserRoleAdmin {
		t.Fatalf("unexpected actor %+v", in.Actor)
	}
	if in.Tracking.Status != enums.TrackingShipped || in.Tracking.TrackingNumber == nil || *in.Tracking.TrackingNumber != "TCG123" {
		t.Fatalf("unexpected tracking %+v", in.Tracking)
	}
}

func TestAdminFulfillmentRejectsUnknownStatus(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrdersService{}
	rec := httptest.NewRecorder()
	AdminFulfillment(svc, nil).ServeHTTP(rec, orderRequest(http.MethodPost, "/api/admin/v1/orders/"+orderID.String()+"/fulfillment", `{"status":"lost"}`, uuid.New(), orderID))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if svc.fulfillment.OrderID != uuid.Nil {
		t.Fatalf("service should not be called")
	}
}
