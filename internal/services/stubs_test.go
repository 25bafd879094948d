package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	domain "github.com/urbanwoods/api/internal/domain"
	"github.com/urbanwoods/api/internal/payments"
	"github.com/urbanwoods/api/internal/repositories"
)

var fixedNow = time.Date(2026, time.March, 14, 10, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// passthroughUoW runs the function without a real transaction; rollback
// behaviour is asserted through the stubs' recorded writes instead.
type passthroughUoW struct{}

func (passthroughUoW) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type stubProducts struct {
	mu       sync.Mutex
	products map[string]domain.Product
	reserves [][]repositories.StockLine
}

func newStubProducts(products ...domain.Product) *stubProducts {
	s := &stubProducts{products: make(map[string]domain.Product)}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *stubProducts) ReserveStock(_ context.Context, lines []repositories.StockLine) ([]repositories.ReservedProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reserves = append(s.reserves, lines)

	merged := make(map[string]int)
	var order []string
	for _, line := range lines {
		if _, seen := merged[line.ProductID]; !seen {
			order = append(order, line.ProductID)
		}
		merged[line.ProductID] += line.Quantity
	}

	for _, id := range order {
		product, ok := s.products[id]
		if !ok {
			return nil, &repositories.OrderError{
				Code:      repositories.OrderErrorProductNotFound,
				Message:   fmt.Sprintf("product %s not found", id),
				ProductID: id,
			}
		}
		if product.Stock < merged[id] {
			return nil, &repositories.OrderError{
				Code:         repositories.OrderErrorInsufficientStock,
				Message:      fmt.Sprintf("insufficient stock for %s: requested %d, available %d", product.Title, merged[id], product.Stock),
				ProductID:    id,
				ProductTitle: product.Title,
			}
		}
	}

	reserved := make([]repositories.ReservedProduct, 0, len(order))
	for _, id := range order {
		product := s.products[id]
		product.Stock -= merged[id]
		s.products[id] = product
		reserved = append(reserved, repositories.ReservedProduct{
			Product:        product,
			Reserved:       merged[id],
			RemainingStock: product.Stock,
		})
	}
	return reserved, nil
}

func (s *stubProducts) FindByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]domain.Product)
	for _, id := range ids {
		product, ok := s.products[id]
		if !ok {
			return nil, &repositories.OrderError{
				Code:      repositories.OrderErrorProductNotFound,
				Message:   fmt.Sprintf("product %s not found", id),
				ProductID: id,
			}
		}
		out[id] = product
	}
	return out, nil
}

func (s *stubProducts) stock(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock
}

type stubOrders struct {
	mu       sync.Mutex
	orders   map[string]domain.Order
	inserted []domain.Order
}

func newStubOrders(orders ...domain.Order) *stubOrders {
	s := &stubOrders{orders: make(map[string]domain.Order)}
	for _, o := range orders {
		o.Source = domain.OrderSourceCollection
		s.orders[o.ID] = o
	}
	return s
}

func (s *stubOrders) Insert(_ context.Context, order domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = order
	s.inserted = append(s.inserted, order)
	return nil
}

func (s *stubOrders) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, notFoundStub(orderID)
	}
	return order, nil
}

func (s *stubOrders) List(_ context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Order
	for _, order := range s.orders {
		if filter.From != nil && order.PlacedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !order.PlacedAt.Before(*filter.To) {
			continue
		}
		out = append(out, order)
	}
	return out, nil
}

func (s *stubOrders) UpdateStatus(_ context.Context, orderID string, status domain.OrderStatus, payment *domain.PaymentStatus, now time.Time) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, notFoundStub(orderID)
	}
	order.DeliveryStatus = status
	if payment != nil {
		order.Payment.Status = *payment
	}
	order.UpdatedAt = now
	s.orders[orderID] = order
	return order, nil
}

func (s *stubOrders) UpdateTracking(_ context.Context, orderID string, tracking domain.Tracking, now time.Time) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, notFoundStub(orderID)
	}
	if order.Tracking.ShippedAt != nil {
		tracking.ShippedAt = order.Tracking.ShippedAt
	} else if tracking.ShippedAt == nil {
		shipped := now
		tracking.ShippedAt = &shipped
	}
	order.Tracking = tracking
	order.DeliveryStatus = domain.OrderStatusShipped
	order.UpdatedAt = now
	s.orders[orderID] = order
	return order, nil
}

func (s *stubOrders) Delete(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[orderID]; !ok {
		return notFoundStub(orderID)
	}
	delete(s.orders, orderID)
	return nil
}

type stubLegacyOrders struct {
	stubOrders
}

func newStubLegacyOrders(orders ...domain.Order) *stubLegacyOrders {
	s := &stubLegacyOrders{stubOrders: stubOrders{orders: make(map[string]domain.Order)}}
	for _, o := range orders {
		o.Source = domain.OrderSourceLegacy
		s.orders[o.ID] = o
	}
	return s
}

func (s *stubLegacyOrders) ListAll(ctx context.Context) ([]domain.Order, error) {
	return s.List(ctx, repositories.OrderListFilter{})
}

type stubUsers struct {
	mu        sync.Mutex
	byEmail   map[string]domain.User
	byPhone   map[string]domain.User
	inserted  []domain.User
	addresses map[string][]domain.Address
}

func newStubUsers(users ...domain.User) *stubUsers {
	s := &stubUsers{
		byEmail:   make(map[string]domain.User),
		byPhone:   make(map[string]domain.User),
		addresses: make(map[string][]domain.Address),
	}
	for _, u := range users {
		s.byEmail[u.Email] = u
		if u.Phone != "" {
			s.byPhone[u.Phone] = u
		}
	}
	return s
}

func (s *stubUsers) FindByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byEmail[email]
	if !ok {
		return domain.User{}, &repositories.OrderError{
			Code:    repositories.OrderErrorUserNotFound,
			Message: fmt.Sprintf("no user with email %s", email),
		}
	}
	return user, nil
}

func (s *stubUsers) FindByPhoneOrEmail(ctx context.Context, phone, email string) (domain.User, error) {
	s.mu.Lock()
	if user, ok := s.byPhone[phone]; ok {
		s.mu.Unlock()
		return user, nil
	}
	s.mu.Unlock()
	return s.FindByEmail(ctx, email)
}

func (s *stubUsers) Insert(_ context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byEmail[user.Email] = user
	if user.Phone != "" {
		s.byPhone[user.Phone] = user
	}
	s.inserted = append(s.inserted, user)
	return nil
}

func (s *stubUsers) SaveAddresses(_ context.Context, userID string, addresses []domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addresses[userID] = addresses
	for email, user := range s.byEmail {
		if user.ID == userID {
			user.SavedAddresses = addresses
			s.byEmail[email] = user
		}
	}
	return nil
}

type stubEvents struct {
	mu     sync.Mutex
	events []OrderEvent
}

func (s *stubEvents) PublishOrderEvent(_ context.Context, event OrderEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *stubEvents) ofType(eventType string) []OrderEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []OrderEvent
	for _, e := range s.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type stubSink struct {
	mu            sync.Mutex
	notifications []domain.Notification
}

func (s *stubSink) CreateNotification(_ context.Context, n domain.Notification) (domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = fmt.Sprintf("ntf_%d", len(s.notifications)+1)
	s.notifications = append(s.notifications, n)
	return n, nil
}

type stubSMS struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (s *stubSMS) Send(_ context.Context, phone, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, phone+": "+message)
	return nil
}

type stubEmail struct {
	mu    sync.Mutex
	sent  []string
	fails bool
}

func (s *stubEmail) record(kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails {
		return fmt.Errorf("smtp down")
	}
	s.sent = append(s.sent, kind)
	return nil
}

func (s *stubEmail) OrderConfirmation(context.Context, domain.Order) error {
	return s.record("order_confirmation")
}

func (s *stubEmail) AdminNewOrderAlert(context.Context, domain.Order) error {
	return s.record("admin_new_order")
}

func (s *stubEmail) PaymentSuccess(context.Context, domain.Order) error {
	return s.record("payment_success")
}

func (s *stubEmail) AdminPaymentAlert(context.Context, domain.Order) error {
	return s.record("admin_payment_alert")
}

func (s *stubEmail) StatusUpdate(_ context.Context, _ domain.Order, _ domain.OrderStatus) error {
	return s.record("status_update")
}

type stubGateway struct {
	mu        sync.Mutex
	orders    []payments.GatewayOrder
	valid     bool
	createErr error
}

func (s *stubGateway) CreateOrder(_ context.Context, amountRupees int64, currency, receipt string) (payments.GatewayOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return payments.GatewayOrder{}, s.createErr
	}
	order := payments.GatewayOrder{
		ID:       fmt.Sprintf("order_gw_%d", len(s.orders)+1),
		Amount:   amountRupees * 100,
		Currency: currency,
		Receipt:  receipt,
	}
	s.orders = append(s.orders, order)
	return order, nil
}

func (s *stubGateway) VerifySignature(_, _, _ string) bool {
	return s.valid
}

func notFoundStub(orderID string) *repositories.OrderError {
	return &repositories.OrderError{
		Code:    repositories.OrderErrorNotFound,
		Message: fmt.Sprintf("order %s not found", orderID),
	}
}
