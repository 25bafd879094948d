package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/urbanwoods/api/internal/domain"
	fs "github.com/urbanwoods/api/internal/platform/firestore"
	"github.com/urbanwoods/api/internal/repositories"
)

const ordersCollection = "orders"

type customerDocument struct {
	UserID string `firestore:"userId,omitempty"`
	Name   string `firestore:"name,omitempty"`
	Email  string `firestore:"email,omitempty"`
	Phone  string `firestore:"phone,omitempty"`
}

type woodSelectionDocument struct {
	Type  string `firestore:"type"`
	Price int64  `firestore:"price"`
}

type colorCustomizationDocument struct {
	Enabled        bool   `firestore:"enabled"`
	PrimaryColor   string `firestore:"primaryColor,omitempty"`
	SecondaryColor string `firestore:"secondaryColor,omitempty"`
	PrimaryHex     string `firestore:"primaryHex,omitempty"`
	SecondaryHex   string `firestore:"secondaryHex,omitempty"`
	ImageURL       string `firestore:"imageUrl,omitempty"`
}

type purchasedItemDocument struct {
	ProductRef    *string                    `firestore:"productRef"`
	Name          string                     `firestore:"name"`
	ImageURL      string                     `firestore:"imageUrl,omitempty"`
	Category      string                     `firestore:"category,omitempty"`
	Quantity      int                        `firestore:"quantity"`
	UnitPrice     int64                      `firestore:"unitPrice"`
	Total         int64                      `firestore:"total"`
	Wood          *woodSelectionDocument     `firestore:"wood,omitempty"`
	Customization colorCustomizationDocument `firestore:"customization"`
	Custom        bool                       `firestore:"custom"`
}

type addressDocument struct {
	Name       string `firestore:"name,omitempty"`
	Phone      string `firestore:"phone,omitempty"`
	Email      string `firestore:"email,omitempty"`
	Line1      string `firestore:"line1,omitempty"`
	Line2      string `firestore:"line2,omitempty"`
	City       string `firestore:"city,omitempty"`
	State      string `firestore:"state,omitempty"`
	PostalCode string `firestore:"postalCode,omitempty"`
	Country    string `firestore:"country,omitempty"`
	IsDefault  bool   `firestore:"isDefault"`
}

type paymentDocument struct {
	Method           string `firestore:"method,omitempty"`
	Status           string `firestore:"status,omitempty"`
	GatewayOrderID   string `firestore:"gatewayOrderId,omitempty"`
	GatewayPaymentID string `firestore:"gatewayPaymentId,omitempty"`
	Signature        string `firestore:"signature,omitempty"`
}

type trackingDocument struct {
	Carrier         string     `firestore:"carrier,omitempty"`
	TrackingID      string     `firestore:"trackingId,omitempty"`
	TrackingURL     string     `firestore:"trackingUrl,omitempty"`
	LiveLocationURL string     `firestore:"liveLocationUrl,omitempty"`
	ETA             *time.Time `firestore:"eta,omitempty"`
	ShippedAt       *time.Time `firestore:"shippedAt,omitempty"`
}

type orderDocument struct {
	Customer        customerDocument        `firestore:"customer"`
	Items           []purchasedItemDocument `firestore:"items"`
	ShippingAddress addressDocument         `firestore:"shippingAddress"`
	TotalAmount     int64                   `firestore:"totalAmount"`
	DeliveryStatus  string                  `firestore:"deliveryStatus"`
	Payment         paymentDocument         `firestore:"payment"`
	Tracking        trackingDocument        `firestore:"tracking"`
	PlacedAt        time.Time               `firestore:"placedAt"`
	UpdatedAt       time.Time               `firestore:"updatedAt"`
}

// OrderRepository implements repositories.OrderRepository on the standalone
// orders collection.
type OrderRepository struct {
	provider *fs.Provider
	base     *fs.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *fs.Provider) *OrderRepository {
	return &OrderRepository{
		provider: provider,
		base:     fs.NewBaseRepository[orderDocument](provider, ordersCollection, nil),
	}
}

// Insert persists a new order, failing when the ID is already taken. Joins an
// enclosing transaction so placement writes commit with the stock decrement.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	return r.base.Create(ctx, order.ID, toOrderDocument(order))
}

// FindByID fetches an order from the standalone collection.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		if fs.IsNotFound(err) {
			return domain.Order{}, notFoundOrderError(orderID, err)
		}
		return domain.Order{}, err
	}
	return toDomainOrder(doc.ID, doc.Data), nil
}

// List returns collection orders, newest first, optionally bounded by
// placement date.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		if filter.From != nil {
			query = query.Where("placedAt", ">=", filter.From.UTC())
		}
		if filter.To != nil {
			query = query.Where("placedAt", "<", filter.To.UTC())
		}
		return query.OrderBy("placedAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, toDomainOrder(doc.ID, doc.Data))
	}
	return orders, nil
}

// UpdateStatus transitions the delivery status, optionally moving the payment
// status with it, and returns the updated order.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, payment *domain.PaymentStatus, now time.Time) (domain.Order, error) {
	var updated domain.Order
	err := r.provider.RunInTx(ctx, func(ctx context.Context) error {
		doc, err := r.base.Get(ctx, orderID)
		if err != nil {
			if fs.IsNotFound(err) {
				return notFoundOrderError(orderID, err)
			}
			return err
		}

		tx, _ := fs.TransactionFrom(ctx)
		ref, err := r.base.DocumentRef(ctx, orderID)
		if err != nil {
			return err
		}

		updates := []firestore.Update{
			{Path: "deliveryStatus", Value: string(status)},
			{Path: "updatedAt", Value: now.UTC()},
		}
		if payment != nil {
			updates = append(updates, firestore.Update{Path: "payment.status", Value: string(*payment)})
		}
		if err := tx.Update(ref, updates); err != nil {
			return fs.WrapError("orders.update_status", err)
		}

		updated = toDomainOrder(orderID, doc.Data)
		updated.DeliveryStatus = status
		if payment != nil {
			updated.Payment.Status = *payment
		}
		updated.UpdatedAt = now.UTC()
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return updated, nil
}

// UpdateTracking replaces the tracking sub-record and forces the delivery
// status to shipped. The first shipment timestamp is preserved on repeat
// calls so retries stay idempotent.
func (r *OrderRepository) UpdateTracking(ctx context.Context, orderID string, tracking domain.Tracking, now time.Time) (domain.Order, error) {
	var updated domain.Order
	err := r.provider.RunInTx(ctx, func(ctx context.Context) error {
		doc, err := r.base.Get(ctx, orderID)
		if err != nil {
			if fs.IsNotFound(err) {
				return notFoundOrderError(orderID, err)
			}
			return err
		}

		if doc.Data.Tracking.ShippedAt != nil {
			tracking.ShippedAt = doc.Data.Tracking.ShippedAt
		} else if tracking.ShippedAt == nil {
			shipped := now.UTC()
			tracking.ShippedAt = &shipped
		}

		tx, _ := fs.TransactionFrom(ctx)
		ref, err := r.base.DocumentRef(ctx, orderID)
		if err != nil {
			return err
		}
		if err := tx.Update(ref, []firestore.Update{
			{Path: "tracking", Value: toTrackingDocument(tracking)},
			{Path: "deliveryStatus", Value: string(domain.OrderStatusShipped)},
			{Path: "updatedAt", Value: now.UTC()},
		}); err != nil {
			return fs.WrapError("orders.update_tracking", err)
		}

		updated = toDomainOrder(orderID, doc.Data)
		updated.Tracking = tracking
		updated.DeliveryStatus = domain.OrderStatusShipped
		updated.UpdatedAt = now.UTC()
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return updated, nil
}

// Delete removes the order document.
func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	if err := r.base.Delete(ctx, orderID); err != nil {
		if fs.IsNotFound(err) || fs.IsConflict(err) {
			return notFoundOrderError(orderID, err)
		}
		return err
	}
	return nil
}

func notFoundOrderError(orderID string, err error) *repositories.OrderError {
	return &repositories.OrderError{
		Op:      "orders.find",
		Code:    repositories.OrderErrorNotFound,
		Message: fmt.Sprintf("order %s not found", orderID),
		Err:     err,
	}
}

func toOrderDocument(order domain.Order) orderDocument {
	doc := orderDocument{
		Customer: customerDocument{
			UserID: order.Customer.UserID,
			Name:   order.Customer.Name,
			Email:  order.Customer.Email,
			Phone:  order.Customer.Phone,
		},
		ShippingAddress: toAddressDocument(order.ShippingAddress),
		TotalAmount:     order.TotalAmount,
		DeliveryStatus:  string(order.DeliveryStatus),
		Payment: paymentDocument{
			Method:           order.Payment.Method,
			Status:           string(order.Payment.Status),
			GatewayOrderID:   order.Payment.GatewayOrderID,
			GatewayPaymentID: order.Payment.GatewayPaymentID,
			Signature:        order.Payment.Signature,
		},
		Tracking:  toTrackingDocument(order.Tracking),
		PlacedAt:  order.PlacedAt.UTC(),
		UpdatedAt: order.UpdatedAt.UTC(),
	}
	for _, item := range order.Items {
		doc.Items = append(doc.Items, toPurchasedItemDocument(item))
	}
	return doc
}

func toPurchasedItemDocument(item domain.PurchasedItem) purchasedItemDocument {
	doc := purchasedItemDocument{
		ProductRef: item.ProductRef,
		Name:       item.Name,
		ImageURL:   item.ImageURL,
		Category:   item.Category,
		Quantity:   item.Quantity,
		UnitPrice:  item.UnitPrice,
		Total:      item.Total,
		Customization: colorCustomizationDocument{
			Enabled:        item.Customization.Enabled,
			PrimaryColor:   item.Customization.PrimaryColor,
			SecondaryColor: item.Customization.SecondaryColor,
			PrimaryHex:     item.Customization.PrimaryHex,
			SecondaryHex:   item.Customization.SecondaryHex,
			ImageURL:       item.Customization.ImageURL,
		},
		Custom: item.Custom,
	}
	if item.Wood != nil {
		doc.Wood = &woodSelectionDocument{Type: item.Wood.Type, Price: item.Wood.Price}
	}
	return doc
}

func toAddressDocument(addr domain.Address) addressDocument {
	return addressDocument{
		Name:       addr.Name,
		Phone:      addr.Phone,
		Email:      addr.Email,
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		City:       addr.City,
		State:      addr.State,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
		IsDefault:  addr.IsDefault,
	}
}

func toTrackingDocument(tracking domain.Tracking) trackingDocument {
	return trackingDocument{
		Carrier:         tracking.Carrier,
		TrackingID:      tracking.TrackingID,
		TrackingURL:     tracking.TrackingURL,
		LiveLocationURL: tracking.LiveLocationURL,
		ETA:             tracking.ETA,
		ShippedAt:       tracking.ShippedAt,
	}
}

func toDomainOrder(id string, doc orderDocument) domain.Order {
	status, ok := domain.NormalizeOrderStatus(doc.DeliveryStatus)
	if !ok {
		status = domain.OrderStatusPending
	}
	payStatus, ok := domain.NormalizePaymentStatus(doc.Payment.Status)
	if !ok {
		payStatus = domain.PaymentStatusPending
	}

	order := domain.Order{
		ID: id,
		Customer: domain.Customer{
			UserID: doc.Customer.UserID,
			Name:   doc.Customer.Name,
			Email:  doc.Customer.Email,
			Phone:  doc.Customer.Phone,
		},
		ShippingAddress: toDomainAddress(doc.ShippingAddress),
		TotalAmount:     doc.TotalAmount,
		DeliveryStatus:  status,
		Payment: domain.Payment{
			Method:           doc.Payment.Method,
			Status:           payStatus,
			GatewayOrderID:   doc.Payment.GatewayOrderID,
			GatewayPaymentID: doc.Payment.GatewayPaymentID,
			Signature:        doc.Payment.Signature,
		},
		Tracking: domain.Tracking{
			Carrier:         doc.Tracking.Carrier,
			TrackingID:      doc.Tracking.TrackingID,
			TrackingURL:     doc.Tracking.TrackingURL,
			LiveLocationURL: doc.Tracking.LiveLocationURL,
			ETA:             doc.Tracking.ETA,
			ShippedAt:       doc.Tracking.ShippedAt,
		},
		PlacedAt:  doc.PlacedAt,
		UpdatedAt: doc.UpdatedAt,
		Source:    domain.OrderSourceCollection,
	}
	for _, item := range doc.Items {
		order.Items = append(order.Items, toDomainPurchasedItem(item))
	}
	return order
}

func toDomainPurchasedItem(doc purchasedItemDocument) domain.PurchasedItem {
	item := domain.PurchasedItem{
		ProductRef: doc.ProductRef,
		Name:       doc.Name,
		ImageURL:   doc.ImageURL,
		Category:   doc.Category,
		Quantity:   doc.Quantity,
		UnitPrice:  doc.UnitPrice,
		Total:      doc.Total,
		Customization: domain.ColorCustomization{
			Enabled:        doc.Customization.Enabled,
			PrimaryColor:   doc.Customization.PrimaryColor,
			SecondaryColor: doc.Customization.SecondaryColor,
			PrimaryHex:     doc.Customization.PrimaryHex,
			SecondaryHex:   doc.Customization.SecondaryHex,
			ImageURL:       doc.Customization.ImageURL,
		},
		Custom: doc.Custom,
	}
	if doc.Wood != nil {
		item.Wood = &domain.WoodSelection{Type: doc.Wood.Type, Price: doc.Wood.Price}
	}
	return item
}

func toDomainAddress(doc addressDocument) domain.Address {
	return domain.Address{
		Name:       doc.Name,
		Phone:      doc.Phone,
		Email:      doc.Email,
		Line1:      doc.Line1,
		Line2:      doc.Line2,
		City:       doc.City,
		State:      doc.State,
		PostalCode: doc.PostalCode,
		Country:    doc.Country,
		IsDefault:  doc.IsDefault,
	}
}
