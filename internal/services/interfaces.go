package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/urbanwoods/api/internal/domain"
	"github.com/urbanwoods/api/internal/payments"
)

// Sentinel errors mapped to HTTP status codes at the handler edge.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUserNotFound      = errors.New("user not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrOrderNotFound     = errors.New("order not found")
	ErrSignatureInvalid  = errors.New("payment verification failed")
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrInvalidCarrier    = errors.New("unknown carrier")
)

// Order event types published on the domain event stream.
const (
	EventOrderPlaced   = "order.placed"
	EventOrderStatus   = "order.status_changed"
	EventOrderShipped  = "order.shipped"
	EventOrderDeleted  = "order.deleted"
	EventStockLow      = "stock.low"
	EventStockDepleted = "stock.depleted"
)

// OrderEvent is the message fanned out after order state changes commit.
type OrderEvent struct {
	Type           string            `json:"type"`
	OrderID        string            `json:"orderId,omitempty"`
	ProductRef     string            `json:"productRef,omitempty"`
	PreviousStatus string            `json:"previousStatus,omitempty"`
	CurrentStatus  string            `json:"currentStatus,omitempty"`
	OccurredAt     time.Time         `json:"occurredAt"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// OrderEventPublisher fans order events out to interested consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// NotificationSink persists admin-facing notifications.
type NotificationSink interface {
	CreateNotification(ctx context.Context, notification domain.Notification) (domain.Notification, error)
}

// SMSSender delivers one transactional SMS.
type SMSSender interface {
	Send(ctx context.Context, phone, message string) error
}

// EmailSender delivers the transactional mails the order lifecycle produces.
type EmailSender interface {
	OrderConfirmation(ctx context.Context, order domain.Order) error
	AdminNewOrderAlert(ctx context.Context, order domain.Order) error
	PaymentSuccess(ctx context.Context, order domain.Order) error
	AdminPaymentAlert(ctx context.Context, order domain.Order) error
	StatusUpdate(ctx context.Context, order domain.Order, previous domain.OrderStatus) error
}

// PaymentGateway abstracts the online payment provider.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amountRupees int64, currency, receipt string) (payments.GatewayOrder, error)
	VerifySignature(gatewayOrderID, paymentID, signature string) bool
}

// WoodSelectionInput is the structured wood customization variant.
type WoodSelectionInput struct {
	Type  string `json:"type"`
	Price int64  `json:"price"`
}

// OrderLineInput is one requested cart line. Customization fields accept both
// the current structured shape and the flat legacy client shape; normalization
// happens during snapshot construction.
type OrderLineInput struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`

	Wood      *WoodSelectionInput `json:"wood,omitempty"`
	WoodType  string              `json:"woodType,omitempty"`
	WoodPrice int64               `json:"woodPrice,omitempty"`

	ColorName          string `json:"colorName,omitempty"`
	ColorHex           string `json:"colorHex,omitempty"`
	SelectedColorName  string `json:"selectedColorName,omitempty"`
	SelectedColorHex   string `json:"selectedColorHex,omitempty"`
	SecondaryColorName string `json:"secondaryColorName,omitempty"`
	SecondaryColorHex  string `json:"secondaryColorHex,omitempty"`
	ColorImageURL      string `json:"colorImageUrl,omitempty"`
}

// ShippingInput carries the shipping address and whether to add it to the
// user's saved-address book.
type ShippingInput struct {
	Address     domain.Address `json:"address"`
	SaveAddress bool           `json:"saveAddress"`
}

// PlaceOrderCommand places an order for an existing account.
type PlaceOrderCommand struct {
	UserEmail        string           `json:"userEmail"`
	Items            []OrderLineInput `json:"items"`
	Shipping         ShippingInput    `json:"shipping"`
	PaymentMethod    string           `json:"paymentMethod"`
	PaymentStatus    string           `json:"paymentStatus"`
	GatewayOrderID   string           `json:"gatewayOrderId,omitempty"`
	GatewayPaymentID string           `json:"gatewayPaymentId,omitempty"`
	GatewaySignature string           `json:"gatewaySignature,omitempty"`
}

// ManualOrderLineInput is one line of an admin-entered order. Lines may
// reference a catalog product or describe a fully custom piece.
type ManualOrderLineInput struct {
	ProductID string `json:"productId,omitempty"`
	Name      string `json:"name,omitempty"`
	UnitPrice int64  `json:"unitPrice,omitempty"`
	Quantity  int    `json:"quantity"`
	Custom    bool   `json:"custom,omitempty"`
}

// ManualCustomerInput identifies the customer of an admin-entered order.
type ManualCustomerInput struct {
	Name    string         `json:"name"`
	Phone   string         `json:"phone"`
	Email   string         `json:"email,omitempty"`
	Address domain.Address `json:"address"`
}

// ManualOrderCommand records an order taken outside the storefront (phone,
// showroom walk-in). Catalog-backed lines still reserve stock.
type ManualOrderCommand struct {
	Customer       ManualCustomerInput    `json:"customer"`
	Items          []ManualOrderLineInput `json:"items"`
	DeliveryStatus string                 `json:"deliveryStatus,omitempty"`
	PaymentStatus  string                 `json:"paymentStatus,omitempty"`
	PaymentMethod  string                 `json:"paymentMethod,omitempty"`
}

// CreatePaymentIntentCommand opens a gateway order for online checkout after
// an advisory stock check.
type CreatePaymentIntentCommand struct {
	UserEmail string           `json:"userEmail"`
	Items     []OrderLineInput `json:"items"`
	Amount    int64            `json:"amount"`
	Currency  string           `json:"currency,omitempty"`
}

// PaymentIntent is the gateway order handed back to the client for checkout.
type PaymentIntent struct {
	GatewayOrderID string `json:"gatewayOrderId"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	KeyID          string `json:"keyId"`
}

// VerifyPaymentCommand confirms an online payment and places the order.
type VerifyPaymentCommand struct {
	GatewayOrderID   string            `json:"gatewayOrderId"`
	GatewayPaymentID string            `json:"gatewayPaymentId"`
	GatewaySignature string            `json:"gatewaySignature"`
	Order            PlaceOrderCommand `json:"order"`
}

// UpdateTrackingCommand attaches carrier tracking to an order.
type UpdateTrackingCommand struct {
	OrderID         string     `json:"-"`
	Carrier         string     `json:"carrier"`
	TrackingID      string     `json:"trackingId"`
	LiveLocationURL string     `json:"liveLocationUrl,omitempty"`
	ETA             *time.Time `json:"eta,omitempty"`
}

// TopSellingQuery bounds the sales aggregation window. Callers supply either
// an explicit From/To pair, a named Range (daily/weekly/monthly/yearly)
// anchored to the current period, or a Year with optional Month.
type TopSellingQuery struct {
	Range string
	Year  int
	Month int
	From  *time.Time
	To    *time.Time
	Limit int
}

// OrderService owns order placement, reads and deletion across both storage shapes.
type OrderService interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (domain.Order, error)
	PlaceManualOrder(ctx context.Context, cmd ManualOrderCommand) (domain.Order, error)
	ListAllOrders(ctx context.Context) ([]domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	DeleteOrder(ctx context.Context, orderID string) error
}

// PaymentService owns the online checkout flow.
type PaymentService interface {
	CreatePaymentIntent(ctx context.Context, cmd CreatePaymentIntentCommand) (PaymentIntent, error)
	VerifyAndPlaceOrder(ctx context.Context, cmd VerifyPaymentCommand) (domain.Order, error)
}

// TrackingService owns delivery status transitions and carrier tracking.
type TrackingService interface {
	UpdateStatus(ctx context.Context, orderID, status string) (domain.Order, error)
	UpdateTracking(ctx context.Context, cmd UpdateTrackingCommand) (domain.Order, error)
}

// SalesService aggregates sales across both order storage shapes.
type SalesService interface {
	TopSelling(ctx context.Context, query TopSellingQuery) ([]domain.ProductSales, error)
}
