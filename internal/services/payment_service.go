package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	domain "github.com/urbanwoods/api/internal/domain"
	"github.com/urbanwoods/api/internal/platform/observability"
	"github.com/urbanwoods/api/internal/repositories"
)

// PaymentServiceDeps wires the payment service collaborators.
type PaymentServiceDeps struct {
	Gateway       PaymentGateway
	GatewayKeyID  string
	Products      repositories.ProductRepository
	Orders        OrderService
	Email         EmailSender
	Notifications NotificationSink
	Logger        *zap.Logger
	Clock         func() time.Time
	NewReceiptID  func() string
}

type paymentService struct {
	gateway       PaymentGateway
	gatewayKeyID  string
	products      repositories.ProductRepository
	orders        OrderService
	email         EmailSender
	notifications NotificationSink
	logger        *zap.Logger
	clock         func() time.Time
	newReceiptID  func() string
}

// NewPaymentService validates dependencies and constructs the payment service.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Gateway == nil {
		return nil, errors.New("payment service: gateway is required")
	}
	if deps.Products == nil {
		return nil, errors.New("payment service: product repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("payment service: order service is required")
	}
	svc := &paymentService{
		gateway:       deps.Gateway,
		gatewayKeyID:  strings.TrimSpace(deps.GatewayKeyID),
		products:      deps.Products,
		orders:        deps.Orders,
		email:         deps.Email,
		notifications: deps.Notifications,
		logger:        deps.Logger,
		clock:         deps.Clock,
		newReceiptID:  deps.NewReceiptID,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.clock == nil {
		svc.clock = time.Now
	}
	if svc.newReceiptID == nil {
		svc.newReceiptID = func() string { return "rcpt_" + strings.ToLower(ulid.Make().String()) }
	}
	return svc, nil
}

// CreatePaymentIntent opens a gateway order for the cart. The amount charged
// is computed server-side from the catalog; stock is checked advisorily so
// checkout fails fast, but the binding reservation happens only on
// verification.
func (s *paymentService) CreatePaymentIntent(ctx context.Context, cmd CreatePaymentIntentCommand) (PaymentIntent, error) {
	if len(cmd.Items) == 0 {
		return PaymentIntent{}, fmt.Errorf("%w: at least one item is required", ErrInvalidInput)
	}
	for i, item := range cmd.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return PaymentIntent{}, fmt.Errorf("%w: item %d is missing a product id", ErrInvalidInput, i)
		}
		if item.Quantity <= 0 {
			return PaymentIntent{}, fmt.Errorf("%w: item %d has non-positive quantity", ErrInvalidInput, i)
		}
	}

	ids := make([]string, 0, len(cmd.Items))
	for _, item := range cmd.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return PaymentIntent{}, mapOrderRepositoryError(err)
	}

	requested := make(map[string]int, len(cmd.Items))
	var total int64
	for _, line := range cmd.Items {
		product := products[strings.TrimSpace(line.ProductID)]
		requested[product.ID] += line.Quantity
		if requested[product.ID] > product.Stock {
			return PaymentIntent{}, fmt.Errorf("%w: %s has %d left", ErrInsufficientStock, product.Title, product.Stock)
		}
		total += BuildPurchasedItem(product, line).Total
	}

	if cmd.Amount > 0 && cmd.Amount != total {
		return PaymentIntent{}, fmt.Errorf("%w: amount %d does not match cart total %d", ErrInvalidInput, cmd.Amount, total)
	}

	currency := firstNonEmpty(cmd.Currency, "INR")
	gatewayOrder, err := s.gateway.CreateOrder(ctx, total, currency, s.newReceiptID())
	if err != nil {
		return PaymentIntent{}, fmt.Errorf("create gateway order: %w", err)
	}

	return PaymentIntent{
		GatewayOrderID: gatewayOrder.ID,
		Amount:         total,
		Currency:       currency,
		KeyID:          s.gatewayKeyID,
	}, nil
}

// VerifyAndPlaceOrder checks the checkout callback signature and, only on
// success, places the order with payment marked paid. A bad signature places
// nothing and reserves nothing.
func (s *paymentService) VerifyAndPlaceOrder(ctx context.Context, cmd VerifyPaymentCommand) (domain.Order, error) {
	if strings.TrimSpace(cmd.GatewayOrderID) == "" ||
		strings.TrimSpace(cmd.GatewayPaymentID) == "" ||
		strings.TrimSpace(cmd.GatewaySignature) == "" {
		return domain.Order{}, fmt.Errorf("%w: gateway order, payment and signature are required", ErrInvalidInput)
	}

	if !s.gateway.VerifySignature(cmd.GatewayOrderID, cmd.GatewayPaymentID, cmd.GatewaySignature) {
		return domain.Order{}, ErrSignatureInvalid
	}

	placeCmd := cmd.Order
	placeCmd.PaymentMethod = "razorpay"
	placeCmd.PaymentStatus = string(domain.PaymentStatusPaid)
	placeCmd.GatewayOrderID = cmd.GatewayOrderID
	placeCmd.GatewayPaymentID = cmd.GatewayPaymentID
	placeCmd.GatewaySignature = cmd.GatewaySignature

	order, err := s.orders.PlaceOrder(ctx, placeCmd)
	if err != nil {
		return domain.Order{}, err
	}

	s.afterPayment(ctx, order)
	return order, nil
}

func (s *paymentService) afterPayment(ctx context.Context, order domain.Order) {
	logger := observability.FromContextOr(ctx, s.logger)

	if s.email != nil {
		if err := s.email.PaymentSuccess(ctx, order); err != nil {
			logger.Warn("payment success email failed", zap.String("order_id", order.ID), zap.Error(err))
		}
		if err := s.email.AdminPaymentAlert(ctx, order); err != nil {
			logger.Warn("admin payment alert email failed", zap.String("order_id", order.ID), zap.Error(err))
		}
	}
	if s.notifications != nil {
		if _, err := s.notifications.CreateNotification(ctx, domain.Notification{
			Title:   "Payment verified",
			Message: fmt.Sprintf("Order %s paid Rs. %d online", order.ID, order.TotalAmount),
			Type:    "payment",
		}); err != nil {
			logger.Warn("payment notification record failed", zap.String("order_id", order.ID), zap.Error(err))
		}
	}
}
