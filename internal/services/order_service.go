package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	domain "github.com/urbanwoods/api/internal/domain"
	"github.com/urbanwoods/api/internal/platform/observability"
	"github.com/urbanwoods/api/internal/repositories"
)

// lowStockThreshold triggers a restock notification once remaining stock
// falls below it.
const lowStockThreshold = 10

// OrderServiceDeps wires the order service collaborators. Events,
// Notifications, SMS and Email are optional; placement succeeds without them.
type OrderServiceDeps struct {
	UnitOfWork    repositories.UnitOfWork
	Products      repositories.ProductRepository
	Orders        repositories.OrderRepository
	LegacyOrders  repositories.LegacyOrderRepository
	Users         repositories.UserRepository
	Events        OrderEventPublisher
	Notifications NotificationSink
	SMS           SMSSender
	Email         EmailSender
	Logger        *zap.Logger
	Clock         func() time.Time
	NewOrderID    func() string
	NewUserID     func() string
}

type orderService struct {
	uow           repositories.UnitOfWork
	products      repositories.ProductRepository
	orders        repositories.OrderRepository
	legacyOrders  repositories.LegacyOrderRepository
	users         repositories.UserRepository
	events        OrderEventPublisher
	notifications NotificationSink
	sms           SMSSender
	email         EmailSender
	logger        *zap.Logger
	clock         func() time.Time
	newOrderID    func() string
	newUserID     func() string
}

// NewOrderService validates dependencies and constructs the order service.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.UnitOfWork == nil {
		return nil, errors.New("order service: unit of work is required")
	}
	if deps.Products == nil {
		return nil, errors.New("order service: product repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.LegacyOrders == nil {
		return nil, errors.New("order service: legacy order repository is required")
	}
	if deps.Users == nil {
		return nil, errors.New("order service: user repository is required")
	}
	svc := &orderService{
		uow:           deps.UnitOfWork,
		products:      deps.Products,
		orders:        deps.Orders,
		legacyOrders:  deps.LegacyOrders,
		users:         deps.Users,
		events:        deps.Events,
		notifications: deps.Notifications,
		sms:           deps.SMS,
		email:         deps.Email,
		logger:        deps.Logger,
		clock:         deps.Clock,
		newOrderID:    deps.NewOrderID,
		newUserID:     deps.NewUserID,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.clock == nil {
		svc.clock = time.Now
	}
	if svc.newOrderID == nil {
		svc.newOrderID = func() string { return "ord_" + strings.ToLower(ulid.Make().String()) }
	}
	if svc.newUserID == nil {
		svc.newUserID = func() string { return "usr_" + strings.ToLower(ulid.Make().String()) }
	}
	return svc, nil
}

// PlaceOrder reserves stock, freezes item snapshots and writes the order in
// one transaction. Either everything commits or nothing does: a failed line
// never leaves partial stock decrements behind.
func (s *orderService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (domain.Order, error) {
	if err := validatePlaceOrder(cmd); err != nil {
		return domain.Order{}, err
	}

	payStatus, ok := domain.NormalizePaymentStatus(cmd.PaymentStatus)
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: unknown payment status %q", ErrInvalidInput, cmd.PaymentStatus)
	}

	now := s.clock().UTC()
	order := domain.Order{
		ID:              s.newOrderID(),
		ShippingAddress: cmd.Shipping.Address,
		DeliveryStatus:  domain.OrderStatusPending,
		Payment: domain.Payment{
			Method:           firstNonEmpty(cmd.PaymentMethod, "cod"),
			Status:           payStatus,
			GatewayOrderID:   strings.TrimSpace(cmd.GatewayOrderID),
			GatewayPaymentID: strings.TrimSpace(cmd.GatewayPaymentID),
			Signature:        strings.TrimSpace(cmd.GatewaySignature),
		},
		PlacedAt:  now,
		UpdatedAt: now,
		Source:    domain.OrderSourceCollection,
	}

	var reserved []repositories.ReservedProduct
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		user, err := s.users.FindByEmail(ctx, cmd.UserEmail)
		if err != nil {
			return mapOrderRepositoryError(err)
		}
		order.Customer = domain.Customer{
			UserID: user.ID,
			Name:   user.Name,
			Email:  user.Email,
			Phone:  user.Phone,
		}

		lines := make([]repositories.StockLine, 0, len(cmd.Items))
		for _, item := range cmd.Items {
			lines = append(lines, repositories.StockLine{ProductID: item.ProductID, Quantity: item.Quantity})
		}
		reserved, err = s.products.ReserveStock(ctx, lines)
		if err != nil {
			return mapOrderRepositoryError(err)
		}

		byID := make(map[string]domain.Product, len(reserved))
		for _, r := range reserved {
			byID[r.Product.ID] = r.Product
		}

		order.Items = order.Items[:0]
		order.TotalAmount = 0
		for _, line := range cmd.Items {
			product, ok := byID[strings.TrimSpace(line.ProductID)]
			if !ok {
				return fmt.Errorf("%w: %s", ErrProductNotFound, line.ProductID)
			}
			item := BuildPurchasedItem(product, line)
			order.Items = append(order.Items, item)
			order.TotalAmount += item.Total
		}

		if err := s.orders.Insert(ctx, order); err != nil {
			return mapOrderRepositoryError(err)
		}

		if cmd.Shipping.SaveAddress {
			book := mergeAddressBook(user.SavedAddresses, cmd.Shipping.Address)
			if err := s.users.SaveAddresses(ctx, user.ID, book); err != nil {
				return mapOrderRepositoryError(err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.afterPlacement(ctx, order, reserved)
	return order, nil
}

// PlaceManualOrder records an order taken over the phone or in the showroom.
// The customer account is found by phone/email or created on the fly, and
// catalog-backed lines still go through stock reservation.
func (s *orderService) PlaceManualOrder(ctx context.Context, cmd ManualOrderCommand) (domain.Order, error) {
	if err := validateManualOrder(cmd); err != nil {
		return domain.Order{}, err
	}

	status := domain.OrderStatusPending
	if raw := strings.TrimSpace(cmd.DeliveryStatus); raw != "" {
		normalized, ok := domain.NormalizeOrderStatus(raw)
		if !ok {
			return domain.Order{}, fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
		}
		status = normalized
	}
	payStatus, ok := domain.NormalizePaymentStatus(cmd.PaymentStatus)
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: unknown payment status %q", ErrInvalidInput, cmd.PaymentStatus)
	}

	now := s.clock().UTC()
	order := domain.Order{
		ID:              s.newOrderID(),
		ShippingAddress: cmd.Customer.Address,
		DeliveryStatus:  status,
		Payment: domain.Payment{
			Method: firstNonEmpty(cmd.PaymentMethod, "offline"),
			Status: payStatus,
		},
		PlacedAt:  now,
		UpdatedAt: now,
		Source:    domain.OrderSourceCollection,
	}

	var reserved []repositories.ReservedProduct
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		user, err := s.users.FindByPhoneOrEmail(ctx, cmd.Customer.Phone, cmd.Customer.Email)
		created := false
		if err != nil {
			if !repositories.OrderErrorHasCode(err, repositories.OrderErrorUserNotFound) {
				return mapOrderRepositoryError(err)
			}
			user = domain.User{
				ID:             s.newUserID(),
				Name:           strings.TrimSpace(cmd.Customer.Name),
				Email:          strings.TrimSpace(cmd.Customer.Email),
				Phone:          strings.TrimSpace(cmd.Customer.Phone),
				SavedAddresses: []domain.Address{cmd.Customer.Address},
				CreatedAt:      now,
			}
			created = true
		}
		order.Customer = domain.Customer{
			UserID: user.ID,
			Name:   firstNonEmpty(user.Name, cmd.Customer.Name),
			Email:  firstNonEmpty(user.Email, cmd.Customer.Email),
			Phone:  firstNonEmpty(user.Phone, cmd.Customer.Phone),
		}

		var lines []repositories.StockLine
		for _, item := range cmd.Items {
			if !item.Custom && strings.TrimSpace(item.ProductID) != "" {
				lines = append(lines, repositories.StockLine{ProductID: item.ProductID, Quantity: item.Quantity})
			}
		}

		byID := make(map[string]domain.Product)
		if len(lines) > 0 {
			reserved, err = s.products.ReserveStock(ctx, lines)
			if err != nil {
				return mapOrderRepositoryError(err)
			}
			for _, r := range reserved {
				byID[r.Product.ID] = r.Product
			}
		}

		order.Items = order.Items[:0]
		order.TotalAmount = 0
		for _, line := range cmd.Items {
			var product *domain.Product
			if !line.Custom {
				if p, ok := byID[strings.TrimSpace(line.ProductID)]; ok {
					product = &p
				}
			}
			item := BuildManualItem(product, line)
			order.Items = append(order.Items, item)
			order.TotalAmount += item.Total
		}

		if err := s.orders.Insert(ctx, order); err != nil {
			return mapOrderRepositoryError(err)
		}
		if created {
			if err := s.users.Insert(ctx, user); err != nil {
				return mapOrderRepositoryError(err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          EventOrderPlaced,
		OrderID:       order.ID,
		CurrentStatus: string(order.DeliveryStatus),
		OccurredAt:    s.clock().UTC(),
		Metadata:      map[string]string{"channel": "manual"},
	})
	s.recordNotification(ctx, domain.Notification{
		Title:   "Manual order recorded",
		Message: fmt.Sprintf("Order %s for %s (Rs. %d)", order.ID, order.Customer.Name, order.TotalAmount),
		Type:    "order",
	})
	s.notifyLowStock(ctx, reserved)
	return order, nil
}

// ListAllOrders merges the standalone collection with legacy embedded orders,
// newest first.
func (s *orderService) ListAllOrders(ctx context.Context) ([]domain.Order, error) {
	collection, err := s.orders.List(ctx, repositories.OrderListFilter{})
	if err != nil {
		return nil, err
	}
	legacy, err := s.legacyOrders.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	merged := append(collection, legacy...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].PlacedAt.After(merged[j].PlacedAt)
	})
	return merged, nil
}

// GetOrder resolves an order from the standalone collection first, falling
// back to the legacy embedded shape.
func (s *orderService) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err == nil {
		return order, nil
	}
	if !repositories.OrderErrorHasCode(err, repositories.OrderErrorNotFound) {
		return domain.Order{}, err
	}

	order, err = s.legacyOrders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, mapOrderRepositoryError(err)
	}
	return order, nil
}

// DeleteOrder removes an order from whichever store holds it.
func (s *orderService) DeleteOrder(ctx context.Context, orderID string) error {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}

	err := s.orders.Delete(ctx, orderID)
	if err != nil {
		if !repositories.OrderErrorHasCode(err, repositories.OrderErrorNotFound) {
			return err
		}
		if err = s.legacyOrders.Delete(ctx, orderID); err != nil {
			return mapOrderRepositoryError(err)
		}
	}

	s.publishEvent(ctx, OrderEvent{
		Type:       EventOrderDeleted,
		OrderID:    orderID,
		OccurredAt: s.clock().UTC(),
	})
	return nil
}

// afterPlacement runs the best-effort fan-out once placement has committed.
// Failures here are logged and never surfaced: the order already exists.
func (s *orderService) afterPlacement(ctx context.Context, order domain.Order, reserved []repositories.ReservedProduct) {
	logger := observability.FromContextOr(ctx, s.logger)

	s.publishEvent(ctx, OrderEvent{
		Type:          EventOrderPlaced,
		OrderID:       order.ID,
		CurrentStatus: string(order.DeliveryStatus),
		OccurredAt:    s.clock().UTC(),
	})
	s.recordNotification(ctx, domain.Notification{
		Title:   "New order placed",
		Message: fmt.Sprintf("Order %s from %s (Rs. %d)", order.ID, order.Customer.Name, order.TotalAmount),
		Type:    "order",
	})
	s.notifyLowStock(ctx, reserved)

	if s.sms != nil && order.Customer.Phone != "" {
		msg := fmt.Sprintf("Your urbanwoods order %s for Rs. %d has been placed.", order.ID, order.TotalAmount)
		if err := s.sms.Send(ctx, order.Customer.Phone, msg); err != nil {
			logger.Warn("order confirmation sms failed", zap.String("order_id", order.ID), zap.Error(err))
		}
	}
	if s.email != nil {
		if err := s.email.OrderConfirmation(ctx, order); err != nil {
			logger.Warn("order confirmation email failed", zap.String("order_id", order.ID), zap.Error(err))
		}
		if err := s.email.AdminNewOrderAlert(ctx, order); err != nil {
			logger.Warn("admin order alert email failed", zap.String("order_id", order.ID), zap.Error(err))
		}
	}
}

// notifyLowStock records restock notifications and stock events for products
// whose reservation dropped them to or below the threshold.
func (s *orderService) notifyLowStock(ctx context.Context, reserved []repositories.ReservedProduct) {
	now := s.clock().UTC()
	for _, r := range reserved {
		if r.RemainingStock >= lowStockThreshold {
			continue
		}
		eventType := EventStockLow
		title := "Low stock"
		if r.RemainingStock == 0 {
			eventType = EventStockDepleted
			title = "Out of stock"
		}
		s.publishEvent(ctx, OrderEvent{
			Type:       eventType,
			ProductRef: r.Product.ID,
			OccurredAt: now,
			Metadata:   map[string]string{"remaining": fmt.Sprintf("%d", r.RemainingStock)},
		})
		s.recordNotification(ctx, domain.Notification{
			Title:      title,
			Message:    fmt.Sprintf("%s has %d left in stock", r.Product.Title, r.RemainingStock),
			Type:       "stock",
			ProductRef: r.Product.ID,
		})
	}
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		observability.FromContextOr(ctx, s.logger).Warn("order event publish failed",
			zap.String("event_type", event.Type),
			zap.String("order_id", event.OrderID),
			zap.Error(err))
	}
}

func (s *orderService) recordNotification(ctx context.Context, notification domain.Notification) {
	if s.notifications == nil {
		return
	}
	if _, err := s.notifications.CreateNotification(ctx, notification); err != nil {
		observability.FromContextOr(ctx, s.logger).Warn("notification record failed",
			zap.String("title", notification.Title),
			zap.Error(err))
	}
}

func validatePlaceOrder(cmd PlaceOrderCommand) error {
	if strings.TrimSpace(cmd.UserEmail) == "" {
		return fmt.Errorf("%w: user email is required", ErrInvalidInput)
	}
	if len(cmd.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrInvalidInput)
	}
	for i, item := range cmd.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return fmt.Errorf("%w: item %d is missing a product id", ErrInvalidInput, i)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %d has non-positive quantity", ErrInvalidInput, i)
		}
	}
	return nil
}

func validateManualOrder(cmd ManualOrderCommand) error {
	if strings.TrimSpace(cmd.Customer.Name) == "" {
		return fmt.Errorf("%w: customer name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(cmd.Customer.Phone) == "" && strings.TrimSpace(cmd.Customer.Email) == "" {
		return fmt.Errorf("%w: customer phone or email is required", ErrInvalidInput)
	}
	if len(cmd.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrInvalidInput)
	}
	for i, item := range cmd.Items {
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %d has non-positive quantity", ErrInvalidInput, i)
		}
		if item.Custom {
			if strings.TrimSpace(item.Name) == "" || item.UnitPrice <= 0 {
				return fmt.Errorf("%w: custom item %d needs a name and price", ErrInvalidInput, i)
			}
			continue
		}
		if strings.TrimSpace(item.ProductID) == "" {
			return fmt.Errorf("%w: item %d is missing a product id", ErrInvalidInput, i)
		}
	}
	return nil
}

// mergeAddressBook appends the address unless an entry with the same street
// line and postal code already exists. Only the user's first saved address
// becomes the default.
func mergeAddressBook(book []domain.Address, addr domain.Address) []domain.Address {
	merged := append([]domain.Address(nil), book...)
	for _, existing := range merged {
		if sameAddress(existing, addr) {
			return merged
		}
	}
	addr.IsDefault = len(merged) == 0
	return append(merged, addr)
}

func sameAddress(a, b domain.Address) bool {
	fold := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	return fold(a.Line1) == fold(b.Line1) && fold(a.PostalCode) == fold(b.PostalCode)
}

// mapOrderRepositoryError folds typed repository errors into service sentinels.
func mapOrderRepositoryError(err error) error {
	orderErr, ok := repositories.AsOrderError(err)
	if !ok {
		return err
	}
	switch orderErr.Code {
	case repositories.OrderErrorInsufficientStock:
		return fmt.Errorf("%w: %s", ErrInsufficientStock, orderErr.Message)
	case repositories.OrderErrorProductNotFound:
		return fmt.Errorf("%w: %s", ErrProductNotFound, orderErr.Message)
	case repositories.OrderErrorUserNotFound:
		return fmt.Errorf("%w: %s", ErrUserNotFound, orderErr.Message)
	case repositories.OrderErrorNotFound:
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderErr.Message)
	}
	return err
}
