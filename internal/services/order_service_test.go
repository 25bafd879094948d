package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	domain "github.com/urbanwoods/api/internal/domain"
)

func testTeakChair() domain.Product {
	return domain.Product{
		ID:           "prd_chair",
		Title:        "Teak Armchair",
		Price:        7500,
		Stock:        10,
		ImageURL:     "https://img.example/chair.jpg",
		FeatureTags:  []string{"chair"},
		WoodVariants: []domain.WoodVariant{{Type: "Teak", Price: 9000}},
	}
}

func testCustomer() domain.User {
	return domain.User{
		ID:    "usr_1",
		Name:  "Asha Rao",
		Email: "asha@example.com",
		Phone: "9876543210",
	}
}

func newTestOrderService(t *testing.T, deps OrderServiceDeps) OrderService {
	t.Helper()
	if deps.UnitOfWork == nil {
		deps.UnitOfWork = passthroughUoW{}
	}
	if deps.Clock == nil {
		deps.Clock = fixedClock
	}
	if deps.NewOrderID == nil {
		counter := 0
		deps.NewOrderID = func() string {
			counter++
			return fmt.Sprintf("ord_test_%d", counter)
		}
	}
	svc, err := NewOrderService(deps)
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}
	return svc
}

func TestPlaceOrderFreezesSnapshotAndDecrementsStock(t *testing.T) {
	products := newStubProducts(testTeakChair())
	orders := newStubOrders()
	users := newStubUsers(testCustomer())
	events := &stubEvents{}
	svc := newTestOrderService(t, OrderServiceDeps{
		Products:     products,
		Orders:       orders,
		LegacyOrders: newStubLegacyOrders(),
		Users:        users,
		Events:       events,
	})

	order, err := svc.PlaceOrder(context.Background(), PlaceOrderCommand{
		UserEmail: "asha@example.com",
		Items: []OrderLineInput{
			{ProductID: "prd_chair", Quantity: 2, WoodType: "Teak"},
		},
		Shipping: ShippingInput{
			Address: domain.Address{Line1: "4 MG Road", City: "Bengaluru", PostalCode: "560001"},
		},
		PaymentMethod: "cod",
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	if len(order.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(order.Items))
	}
	item := order.Items[0]
	if item.UnitPrice != 9000 {
		t.Errorf("unit price = %d, want wood variant price 9000", item.UnitPrice)
	}
	if item.Total != 18000 || order.TotalAmount != 18000 {
		t.Errorf("total = %d / %d, want 18000", item.Total, order.TotalAmount)
	}
	if item.Category != "Chair" {
		t.Errorf("category = %q, want Chair", item.Category)
	}
	if item.Wood == nil || item.Wood.Type != "Teak" {
		t.Errorf("wood selection = %+v", item.Wood)
	}
	if order.Customer.UserID != "usr_1" || order.Customer.Phone != "9876543210" {
		t.Errorf("customer = %+v", order.Customer)
	}
	if order.DeliveryStatus != domain.OrderStatusPending {
		t.Errorf("status = %s, want pending", order.DeliveryStatus)
	}
	if !order.PlacedAt.Equal(fixedNow) {
		t.Errorf("placedAt = %s, want %s", order.PlacedAt, fixedNow)
	}

	if got := products.stock("prd_chair"); got != 8 {
		t.Errorf("remaining stock = %d, want 8", got)
	}
	if len(orders.inserted) != 1 {
		t.Fatalf("inserted orders = %d, want 1", len(orders.inserted))
	}
	if placed := events.ofType(EventOrderPlaced); len(placed) != 1 {
		t.Errorf("order.placed events = %d, want 1", len(placed))
	}
}

func TestPlaceOrderInsufficientStockLeavesNothingBehind(t *testing.T) {
	chair := testTeakChair()
	chair.Stock = 1
	products := newStubProducts(chair)
	orders := newStubOrders()
	svc := newTestOrderService(t, OrderServiceDeps{
		Products:     products,
		Orders:       orders,
		LegacyOrders: newStubLegacyOrders(),
		Users:        newStubUsers(testCustomer()),
	})

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderCommand{
		UserEmail: "asha@example.com",
		Items:     []OrderLineInput{{ProductID: "prd_chair", Quantity: 3}},
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}
	if len(orders.inserted) != 0 {
		t.Errorf("inserted orders = %d, want 0", len(orders.inserted))
	}
	if got := products.stock("prd_chair"); got != 1 {
		t.Errorf("stock = %d, want untouched 1", got)
	}
}

func TestPlaceOrderUnknownUser(t *testing.T) {
	svc := newTestOrderService(t, OrderServiceDeps{
		Products:     newStubProducts(testTeakChair()),
		Orders:       newStubOrders(),
		LegacyOrders: newStubLegacyOrders(),
		Users:        newStubUsers(),
	})

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderCommand{
		UserEmail: "nobody@example.com",
		Items:     []OrderLineInput{{ProductID: "prd_chair", Quantity: 1}},
	})
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestPlaceOrderValidatesInput(t *testing.T) {
	svc := newTestOrderService(t, OrderServiceDeps{
		Products:     newStubProducts(),
		Orders:       newStubOrders(),
		LegacyOrders: newStubLegacyOrders(),
		Users:        newStubUsers(),
	})

	cases := []struct {
		name string
		cmd  PlaceOrderCommand
	}{
		{"missing email", PlaceOrderCommand{Items: []OrderLineInput{{ProductID: "p", Quantity: 1}}}},
		{"no items", PlaceOrderCommand{UserEmail: "a@b.c"}},
		{"zero quantity", PlaceOrderCommand{UserEmail: "a@b.c", Items: []OrderLineInput{{ProductID: "p", Quantity: 0}}}},
		{"missing product id", PlaceOrderCommand{UserEmail: "a@b.c", Items: []OrderLineInput{{Quantity: 1}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.PlaceOrder(context.Background(), tc.cmd); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestPlaceOrderSavesShippingAddress(t *testing.T) {
	users := newStubUsers(testCustomer())
	svc := newTestOrderService(t, OrderServiceDeps{
		Products:     newStubProducts(testTeakChair()),
		Orders:       newStubOrders(),
		LegacyOrders: newStubLegacyOrders(),
		Users:        users,
	})

	addr := domain.Address{Line1: "4 MG Road", City: "Bengaluru", PostalCode: "560001"}
	_, err := svc.PlaceOrder(context.Background(), PlaceOrderCommand{
		UserEmail: "asha@example.com",
		Items:     []OrderLineInput{{ProductID: "prd_chair", Quantity: 1}},
		Shipping:  ShippingInput{Address: addr, SaveAddress: true},
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	saved := users.addresses["usr_1"]
	if len(saved) != 1 || saved[0].Line1 != "4 MG Road" {
		t.Fatalf("saved addresses = %+v", saved)
	}
	if !saved[0].IsDefault {
		t.Error("first saved address should become the default")
	}

	// Same street line and postal code, different casing: no duplicate entry.
	dup := domain.Address{Line1: "4 mg road", City: "Bengaluru", PostalCode: "560001"}
	_, err = svc.PlaceOrder(context.Background(), PlaceOrderCommand{
		UserEmail: "asha@example.com",
		Items:     []OrderLineInput{{ProductID: "prd_chair", Quantity: 1}},
		Shipping:  ShippingInput{Address: dup, SaveAddress: true},
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if saved = users.addresses["usr_1"]; len(saved) != 1 {
		t.Errorf("saved addresses = %+v, want dedup on line1+postal code", saved)
	}
}

func TestPlaceOrderEmitsLowStockEvents(t *testing.T) {
	chair := testTeakChair()
	chair.Stock = 6
	events := &stubEvents{}
	sink := &stubSink{}
	svc := newTestOrderService(t, OrderServiceDeps{
		Products:      newStubProducts(chair),
		Orders:        newStubOrders(),
		LegacyOrders:  newStubLegacyOrders(),
		Users:         newStubUsers(testCustomer()),
		Events:        events,
		Notifications: sink,
	})

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderCommand{
		UserEmail: "asha@example.com",
		Items:     []OrderLineInput{{ProductID: "prd_chair", Quantity: 6}},
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	depleted := events.ofType(EventStockDepleted)
	if len(depleted) != 1 || depleted[0].ProductRef != "prd_chair" {
		t.Errorf("stock.depleted events = %+v", depleted)
	}
	var stockNotes int
	for _, n := range sink.notifications {
		if n.Type == "stock" {
			stockNotes++
		}
	}
	if stockNotes != 1 {
		t.Errorf("stock notifications = %d, want 1", stockNotes)
	}
}

func TestPlaceManualOrderCreatesAccount(t *testing.T) {
	users := newStubUsers()
	products := newStubProducts(testTeakChair())
	orders := newStubOrders()
	svc := newTestOrderService(t, OrderServiceDeps{
		Products:     products,
		Orders:       orders,
		LegacyOrders: newStubLegacyOrders(),
		Users:        users,
	})

	order, err := svc.PlaceManualOrder(context.Background(), ManualOrderCommand{
		Customer: ManualCustomerInput{
			Name:    "Vikram Shetty",
			Phone:   "9000000001",
			Address: domain.Address{Line1: "12 Beach Road", City: "Mangaluru"},
		},
		Items: []ManualOrderLineInput{
			{ProductID: "prd_chair", Quantity: 1},
			{Name: "Custom bench", UnitPrice: 12000, Quantity: 1, Custom: true},
		},
		DeliveryStatus: "Processing",
	})
	if err != nil {
		t.Fatalf("PlaceManualOrder: %v", err)
	}

	if len(users.inserted) != 1 || users.inserted[0].Phone != "9000000001" {
		t.Fatalf("inserted users = %+v", users.inserted)
	}
	if order.DeliveryStatus != domain.OrderStatusProcessed {
		t.Errorf("status = %s, want processed (alias folded)", order.DeliveryStatus)
	}
	if order.TotalAmount != 7500+12000 {
		t.Errorf("total = %d, want 19500", order.TotalAmount)
	}
	if !order.Items[1].Custom || order.Items[1].ProductRef != nil {
		t.Errorf("custom item = %+v", order.Items[1])
	}
	if got := products.stock("prd_chair"); got != 9 {
		t.Errorf("stock = %d, want 9 (custom line reserves nothing)", got)
	}
}

func TestPlaceManualOrderReusesExistingAccount(t *testing.T) {
	users := newStubUsers(testCustomer())
	svc := newTestOrderService(t, OrderServiceDeps{
		Products:     newStubProducts(testTeakChair()),
		Orders:       newStubOrders(),
		LegacyOrders: newStubLegacyOrders(),
		Users:        users,
	})

	order, err := svc.PlaceManualOrder(context.Background(), ManualOrderCommand{
		Customer: ManualCustomerInput{Name: "Asha Rao", Phone: "9876543210"},
		Items:    []ManualOrderLineInput{{ProductID: "prd_chair", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("PlaceManualOrder: %v", err)
	}
	if len(users.inserted) != 0 {
		t.Errorf("inserted users = %d, want 0", len(users.inserted))
	}
	if order.Customer.UserID != "usr_1" {
		t.Errorf("customer = %+v", order.Customer)
	}
}

func TestListAllOrdersMergesBothShapesNewestFirst(t *testing.T) {
	older := domain.Order{ID: "ord_old", PlacedAt: fixedNow.Add(-48 * time.Hour)}
	newer := domain.Order{ID: "ord_new", PlacedAt: fixedNow.Add(-1 * time.Hour)}
	legacy := domain.Order{ID: "leg_mid", PlacedAt: fixedNow.Add(-24 * time.Hour)}

	svc := newTestOrderService(t, OrderServiceDeps{
		Products:     newStubProducts(),
		Orders:       newStubOrders(older, newer),
		LegacyOrders: newStubLegacyOrders(legacy),
		Users:        newStubUsers(),
	})

	orders, err := svc.ListAllOrders(context.Background())
	if err != nil {
		t.Fatalf("ListAllOrders: %v", err)
	}
	if len(orders) != 3 {
		t.Fatalf("orders = %d, want 3", len(orders))
	}
	wantIDs := []string{"ord_new", "leg_mid", "ord_old"}
	for i, want := range wantIDs {
		if orders[i].ID != want {
			t.Errorf("orders[%d] = %s, want %s", i, orders[i].ID, want)
		}
	}
	if orders[1].Source != domain.OrderSourceLegacy {
		t.Errorf("legacy order source = %s", orders[1].Source)
	}
}

func TestGetOrderFallsBackToLegacy(t *testing.T) {
	legacy := domain.Order{ID: "leg_1", PlacedAt: fixedNow}
	svc := newTestOrderService(t, OrderServiceDeps{
		Products:     newStubProducts(),
		Orders:       newStubOrders(),
		LegacyOrders: newStubLegacyOrders(legacy),
		Users:        newStubUsers(),
	})

	order, err := svc.GetOrder(context.Background(), "leg_1")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if order.Source != domain.OrderSourceLegacy {
		t.Errorf("source = %s, want legacy", order.Source)
	}

	if _, err := svc.GetOrder(context.Background(), "missing"); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestDeleteOrderTriesBothShapes(t *testing.T) {
	legacyOrders := newStubLegacyOrders(domain.Order{ID: "leg_1"})
	svc := newTestOrderService(t, OrderServiceDeps{
		Products:     newStubProducts(),
		Orders:       newStubOrders(domain.Order{ID: "ord_1"}),
		LegacyOrders: legacyOrders,
		Users:        newStubUsers(),
	})

	if err := svc.DeleteOrder(context.Background(), "ord_1"); err != nil {
		t.Fatalf("DeleteOrder collection: %v", err)
	}
	if err := svc.DeleteOrder(context.Background(), "leg_1"); err != nil {
		t.Fatalf("DeleteOrder legacy: %v", err)
	}
	if err := svc.DeleteOrder(context.Background(), "missing"); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("err = %v, want ErrOrderNotFound", err)
	}
}
