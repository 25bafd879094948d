package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	domain "github.com/urbanwoods/api/internal/domain"
	"github.com/urbanwoods/api/internal/services"
)

type fakeOrderService struct {
	placeFn  func(ctx context.Context, cmd services.PlaceOrderCommand) (domain.Order, error)
	manualFn func(ctx context.Context, cmd services.ManualOrderCommand) (domain.Order, error)
	listFn   func(ctx context.Context) ([]domain.Order, error)
	getFn    func(ctx context.Context, orderID string) (domain.Order, error)
	deleteFn func(ctx context.Context, orderID string) error
}

func (f *fakeOrderService) PlaceOrder(ctx context.Context, cmd services.PlaceOrderCommand) (domain.Order, error) {
	return f.placeFn(ctx, cmd)
}

func (f *fakeOrderService) PlaceManualOrder(ctx context.Context, cmd services.ManualOrderCommand) (domain.Order, error) {
	return f.manualFn(ctx, cmd)
}

func (f *fakeOrderService) ListAllOrders(ctx context.Context) ([]domain.Order, error) {
	return f.listFn(ctx)
}

func (f *fakeOrderService) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	return f.getFn(ctx, orderID)
}

func (f *fakeOrderService) DeleteOrder(ctx context.Context, orderID string) error {
	return f.deleteFn(ctx, orderID)
}

type fakePaymentService struct {
	intentFn func(ctx context.Context, cmd services.CreatePaymentIntentCommand) (services.PaymentIntent, error)
	verifyFn func(ctx context.Context, cmd services.VerifyPaymentCommand) (domain.Order, error)
}

func (f *fakePaymentService) CreatePaymentIntent(ctx context.Context, cmd services.CreatePaymentIntentCommand) (services.PaymentIntent, error) {
	return f.intentFn(ctx, cmd)
}

func (f *fakePaymentService) VerifyAndPlaceOrder(ctx context.Context, cmd services.VerifyPaymentCommand) (domain.Order, error) {
	return f.verifyFn(ctx, cmd)
}

type fakeTrackingService struct {
	statusFn   func(ctx context.Context, orderID, status string) (domain.Order, error)
	trackingFn func(ctx context.Context, cmd services.UpdateTrackingCommand) (domain.Order, error)
}

func (f *fakeTrackingService) UpdateStatus(ctx context.Context, orderID, status string) (domain.Order, error) {
	return f.statusFn(ctx, orderID, status)
}

func (f *fakeTrackingService) UpdateTracking(ctx context.Context, cmd services.UpdateTrackingCommand) (domain.Order, error) {
	return f.trackingFn(ctx, cmd)
}

type fakeSalesService struct {
	topFn func(ctx context.Context, query services.TopSellingQuery) ([]domain.ProductSales, error)
}

func (f *fakeSalesService) TopSelling(ctx context.Context, query services.TopSellingQuery) ([]domain.ProductSales, error) {
	return f.topFn(ctx, query)
}

type fakeNotificationLister struct {
	listFn func(ctx context.Context, limit int) ([]domain.Notification, error)
}

func (f *fakeNotificationLister) ListRecent(ctx context.Context, limit int) ([]domain.Notification, error) {
	if f.listFn == nil {
		return nil, nil
	}
	return f.listFn(ctx, limit)
}

func sampleOrder() domain.Order {
	placed := time.Date(2026, time.March, 14, 10, 30, 0, 0, time.UTC)
	ref := "prd_chair"
	return domain.Order{
		ID: "ord_1",
		Customer: domain.Customer{
			UserID: "usr_1",
			Name:   "Asha Rao",
			Email:  "asha@example.com",
		},
		Items: []domain.PurchasedItem{
			{ProductRef: &ref, Name: "Teak Armchair", Quantity: 2, UnitPrice: 9000, Total: 18000, Category: "Chair"},
		},
		TotalAmount:    18000,
		DeliveryStatus: domain.OrderStatusPending,
		Payment:        domain.Payment{Method: "cod", Status: domain.PaymentStatusPending, Signature: "secret-sig"},
		PlacedAt:       placed,
		UpdatedAt:      placed,
		Source:         domain.OrderSourceLegacy,
	}
}

func newTestRouter(orders *fakeOrderService, paymentsSvc *fakePaymentService, tracking *fakeTrackingService, sales *fakeSalesService) http.Handler {
	return NewRouter(RouterDeps{
		Orders:      NewOrdersHandler(orders, paymentsSvc),
		AdminOrders: NewAdminOrdersHandler(orders, tracking, sales, &fakeNotificationLister{}),
		Health:      NewHealthHandler(nil),
	})
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestPlaceOrderEndpoint(t *testing.T) {
	orders := &fakeOrderService{
		placeFn: func(_ context.Context, cmd services.PlaceOrderCommand) (domain.Order, error) {
			if cmd.UserEmail != "asha@example.com" {
				t.Errorf("email = %q", cmd.UserEmail)
			}
			return sampleOrder(), nil
		},
	}
	router := newTestRouter(orders, &fakePaymentService{}, &fakeTrackingService{}, &fakeSalesService{})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/orders/placeOrders", `{
		"userEmail": "asha@example.com",
		"items": [{"productId": "prd_chair", "quantity": 2}]
	}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", rec.Code, rec.Body)
	}

	var view map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if view["id"] != "ord_1" {
		t.Errorf("id = %v", view["id"])
	}
	// Neither the storage shape nor the raw signature leak into responses.
	if _, ok := view["source"]; ok {
		t.Error("response exposes storage source")
	}
	payment := view["payment"].(map[string]any)
	if _, ok := payment["signature"]; ok {
		t.Error("response exposes gateway signature")
	}
}

func TestPlaceOrderEndpointRejectsBadJSON(t *testing.T) {
	router := newTestRouter(&fakeOrderService{}, &fakePaymentService{}, &fakeTrackingService{}, &fakeSalesService{})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/orders/placeOrders", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPlaceOrderEndpointMapsInsufficientStock(t *testing.T) {
	orders := &fakeOrderService{
		placeFn: func(context.Context, services.PlaceOrderCommand) (domain.Order, error) {
			return domain.Order{}, fmt.Errorf("%w: Teak Armchair has 1 left", services.ErrInsufficientStock)
		},
	}
	router := newTestRouter(orders, &fakePaymentService{}, &fakeTrackingService{}, &fakeSalesService{})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/orders/placeOrders", `{"userEmail":"a@b.c","items":[{"productId":"p","quantity":9}]}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409; body %s", rec.Code, rec.Body)
	}
	var envelope map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	if envelope["error"] != "insufficient_stock" {
		t.Errorf("error code = %v", envelope["error"])
	}
}

func TestVerifyPaymentEndpointStaysGenericOnBadSignature(t *testing.T) {
	paymentsSvc := &fakePaymentService{
		verifyFn: func(context.Context, services.VerifyPaymentCommand) (domain.Order, error) {
			return domain.Order{}, services.ErrSignatureInvalid
		},
	}
	router := newTestRouter(&fakeOrderService{}, paymentsSvc, &fakeTrackingService{}, &fakeSalesService{})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/orders/verify-payment", `{"gatewayOrderId":"o","gatewayPaymentId":"p","gatewaySignature":"s"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var envelope map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	if envelope["message"] != "payment verification failed" {
		t.Errorf("message = %v, want the generic one", envelope["message"])
	}
}

func TestGetOrderEndpointNotFound(t *testing.T) {
	orders := &fakeOrderService{
		getFn: func(_ context.Context, orderID string) (domain.Order, error) {
			return domain.Order{}, fmt.Errorf("%w: %s", services.ErrOrderNotFound, orderID)
		},
	}
	router := newTestRouter(orders, &fakePaymentService{}, &fakeTrackingService{}, &fakeSalesService{})

	rec := doRequest(t, router, http.MethodGet, "/api/v1/orders/admin/order/ord_missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestListAllEndpoint(t *testing.T) {
	orders := &fakeOrderService{
		listFn: func(context.Context) ([]domain.Order, error) {
			return []domain.Order{sampleOrder()}, nil
		},
	}
	router := newTestRouter(orders, &fakePaymentService{}, &fakeTrackingService{}, &fakeSalesService{})

	rec := doRequest(t, router, http.MethodGet, "/api/v1/orders/all", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var payload struct {
		Count  int              `json:"count"`
		Orders []map[string]any `json:"orders"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Count != 1 || len(payload.Orders) != 1 {
		t.Errorf("payload = %+v", payload)
	}
}

func TestUpdateStatusEndpointPassesRawValue(t *testing.T) {
	var gotStatus string
	tracking := &fakeTrackingService{
		statusFn: func(_ context.Context, orderID, status string) (domain.Order, error) {
			gotStatus = status
			order := sampleOrder()
			order.DeliveryStatus = domain.OrderStatusProcessed
			return order, nil
		},
	}
	router := newTestRouter(&fakeOrderService{}, &fakePaymentService{}, tracking, &fakeSalesService{})

	rec := doRequest(t, router, http.MethodPut, "/api/v1/orders/updateStatus/ord_1", `{"status":"Processing"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body)
	}
	if gotStatus != "Processing" {
		t.Errorf("service received %q; normalization belongs to the service", gotStatus)
	}
}

func TestUpdateTrackingEndpointInjectsOrderID(t *testing.T) {
	tracking := &fakeTrackingService{
		trackingFn: func(_ context.Context, cmd services.UpdateTrackingCommand) (domain.Order, error) {
			if cmd.OrderID != "ord_1" {
				t.Errorf("order id = %q", cmd.OrderID)
			}
			if cmd.Carrier != "DELHIVERY" {
				t.Errorf("carrier = %q", cmd.Carrier)
			}
			return sampleOrder(), nil
		},
	}
	router := newTestRouter(&fakeOrderService{}, &fakePaymentService{}, tracking, &fakeSalesService{})

	rec := doRequest(t, router, http.MethodPut, "/api/v1/orders/updateTracking/ord_1", `{"carrier":"DELHIVERY","trackingId":"DLV1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body)
	}
}

func TestTopSellingEndpointParsesWindow(t *testing.T) {
	var gotQuery services.TopSellingQuery
	sales := &fakeSalesService{
		topFn: func(_ context.Context, query services.TopSellingQuery) ([]domain.ProductSales, error) {
			gotQuery = query
			return []domain.ProductSales{{ProductID: "prd_chair", Name: "Teak Armchair", UnitsSold: 5, Revenue: 45000}}, nil
		},
	}
	router := newTestRouter(&fakeOrderService{}, &fakePaymentService{}, &fakeTrackingService{}, sales)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/orders/dashboard/top-selling?from=2026-03-01T00:00:00Z&limit=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body)
	}
	if gotQuery.From == nil || gotQuery.From.Day() != 1 || gotQuery.Limit != 5 {
		t.Errorf("query = %+v", gotQuery)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/v1/orders/dashboard/top-selling?from=yesterday", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for bad window", rec.Code)
	}
}

func TestPaymentEndpointsUnavailableWithoutGateway(t *testing.T) {
	// COD-only deployments run with no payment service wired at all.
	router := NewRouter(RouterDeps{
		Orders:      NewOrdersHandler(&fakeOrderService{}, nil),
		AdminOrders: NewAdminOrdersHandler(&fakeOrderService{}, &fakeTrackingService{}, &fakeSalesService{}, &fakeNotificationLister{}),
	})

	for _, path := range []string{
		"/api/v1/orders/create-razorpay-order",
		"/api/v1/orders/verify-payment",
	} {
		rec := doRequest(t, router, http.MethodPost, path, `{"gatewayOrderId":"o","gatewayPaymentId":"p","gatewaySignature":"s"}`)
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s status = %d, want 503; body %s", path, rec.Code, rec.Body)
		}
		var envelope map[string]any
		_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
		if envelope["error"] != "payment_unavailable" {
			t.Errorf("%s error code = %v, want payment_unavailable", path, envelope["error"])
		}
	}
}

func TestAdminNotificationsEndpoint(t *testing.T) {
	var gotLimit int
	lister := &fakeNotificationLister{
		listFn: func(_ context.Context, limit int) ([]domain.Notification, error) {
			gotLimit = limit
			return []domain.Notification{
				{ID: "ntf_1", Title: "Low stock", Message: "Teak Armchair is down to 4 units", Type: "stock", ProductRef: "prd_chair"},
				{ID: "ntf_2", Title: "New order placed", Message: "Order ord_1 from Asha Rao", Type: "order"},
			}, nil
		},
	}
	router := NewRouter(RouterDeps{
		Orders:      NewOrdersHandler(&fakeOrderService{}, &fakePaymentService{}),
		AdminOrders: NewAdminOrdersHandler(&fakeOrderService{}, &fakeTrackingService{}, &fakeSalesService{}, lister),
	})

	rec := doRequest(t, router, http.MethodGet, "/api/v1/orders/admin/notifications?limit=20", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body)
	}
	if gotLimit != 20 {
		t.Errorf("limit = %d, want 20", gotLimit)
	}
	var payload struct {
		Count         int              `json:"count"`
		Notifications []map[string]any `json:"notifications"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Count != 2 || len(payload.Notifications) != 2 {
		t.Fatalf("payload = %+v", payload)
	}
	if payload.Notifications[0]["productId"] != "prd_chair" {
		t.Errorf("notifications[0] = %+v", payload.Notifications[0])
	}

	rec = doRequest(t, router, http.MethodGet, "/api/v1/orders/admin/notifications?limit=-1", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for negative limit", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(&fakeOrderService{}, &fakePaymentService{}, &fakeTrackingService{}, &fakeSalesService{})

	if rec := doRequest(t, router, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz = %d, want 200", rec.Code)
	}
	if rec := doRequest(t, router, http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK {
		t.Errorf("readyz = %d, want 200", rec.Code)
	}
}
