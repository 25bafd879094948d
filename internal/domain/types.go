package domain

import (
	"strings"
	"time"
)

// OrderStatus enumerates the canonical delivery lifecycle states.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusProcessed OrderStatus = "processed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// statusAliases maps the casing and spelling variants found in stored data to
// the canonical state set. Unrecognised values are rejected at the API edge.
var statusAliases = map[string]OrderStatus{
	"pending":    OrderStatusPending,
	"processed":  OrderStatusProcessed,
	"processing": OrderStatusProcessed,
	"shipped":    OrderStatusShipped,
	"delivered":  OrderStatusDelivered,
	"cancelled":  OrderStatusCancelled,
	"canceled":   OrderStatusCancelled,
}

// NormalizeOrderStatus folds legacy casing/spelling variants into the
// canonical status set. The boolean reports whether the input was recognised.
func NormalizeOrderStatus(raw string) (OrderStatus, bool) {
	status, ok := statusAliases[strings.ToLower(strings.TrimSpace(raw))]
	return status, ok
}

// IsTerminal reports whether no further transition is allowed from the status.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// PaymentStatus enumerates payment states carried on an order.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// NormalizePaymentStatus folds casing variants into the canonical payment states.
func NormalizePaymentStatus(raw string) (PaymentStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "pending":
		return PaymentStatusPending, true
	case "paid":
		return PaymentStatusPaid, true
	case "failed":
		return PaymentStatusFailed, true
	}
	return "", false
}

// OrderSource identifies which physical store holds an order. It is attached
// at read time so mutations can target the right store; response formatting
// never exposes it.
type OrderSource string

const (
	// OrderSourceCollection marks orders persisted in the standalone collection.
	OrderSourceCollection OrderSource = "collection"
	// OrderSourceLegacy marks orders embedded in the owning user document.
	OrderSourceLegacy OrderSource = "legacy"
)

// WoodVariant is a catalog-side wood option with its price delta applied as
// the unit price when selected.
type WoodVariant struct {
	Type  string
	Price int64
}

// ColorVariant is a catalog-side color option. Image, when present, replaces
// the product image on purchased snapshots.
type ColorVariant struct {
	Name          string
	Hex           string
	SecondaryName string
	SecondaryHex  string
	ImageURL      string
}

// Product is the catalog record. Only Stock is writable from this core; the
// invariant stock >= 0 is enforced by the conditional reservation.
type Product struct {
	ID            string
	Title         string
	Price         int64
	Stock         int
	ImageURL      string
	LocationTags  []string
	FeatureTags   []string
	WoodVariants  []WoodVariant
	ColorVariants []ColorVariant
	UpdatedAt     time.Time
}

// WoodSelection is the frozen wood customization on a purchased item.
type WoodSelection struct {
	Type  string
	Price int64
}

// ColorCustomization is the frozen color customization on a purchased item.
type ColorCustomization struct {
	Enabled        bool
	PrimaryColor   string
	SecondaryColor string
	PrimaryHex     string
	SecondaryHex   string
	ImageURL       string
}

// PurchasedItem is an immutable snapshot of one ordered line: once written,
// price/name/category never change even if the source product does.
type PurchasedItem struct {
	ProductRef    *string
	Name          string
	ImageURL      string
	Category      string
	Quantity      int
	UnitPrice     int64
	Total         int64
	Wood          *WoodSelection
	Customization ColorCustomization
	Custom        bool
}

// Address is a shipping address, either denormalized onto an order or kept in
// the user's saved-address book. At most one saved address is the default.
type Address struct {
	Name       string
	Phone      string
	Email      string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
	IsDefault  bool
}

// Payment is the payment sub-record on an order.
type Payment struct {
	Method           string
	Status           PaymentStatus
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

// Tracking is the carrier-tracking sub-record on an order.
type Tracking struct {
	Carrier         string
	TrackingID      string
	TrackingURL     string
	LiveLocationURL string
	ETA             *time.Time
	ShippedAt       *time.Time
}

// Customer denormalizes the purchasing user's identity onto the order so both
// storage shapes present identically to admin views.
type Customer struct {
	UserID string
	Name   string
	Email  string
	Phone  string
}

// Order is the aggregate persisted per checkout. Immutable after creation
// except for DeliveryStatus, Payment.Status and Tracking.
type Order struct {
	ID              string
	Customer        Customer
	Items           []PurchasedItem
	ShippingAddress Address
	TotalAmount     int64
	DeliveryStatus  OrderStatus
	Payment         Payment
	Tracking        Tracking
	PlacedAt        time.Time
	UpdatedAt       time.Time
	Source          OrderSource
}

// User holds account identity, the saved-address book, and (for accounts
// predating the standalone order collection) embedded legacy orders.
type User struct {
	ID             string
	Name           string
	Email          string
	Phone          string
	Admin          bool
	SavedAddresses []Address
	CreatedAt      time.Time
}

// Notification is a persisted admin-facing notification record.
type Notification struct {
	ID         string
	Title      string
	Message    string
	Type       string
	ProductRef string
	CreatedAt  time.Time
}

// ProductSales is one row of the top-selling report, merged across both
// order storage shapes.
type ProductSales struct {
	ProductID string
	Name      string
	UnitsSold int
	Revenue   int64
}
