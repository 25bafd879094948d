package handlers

import (
	"time"

	domain "github.com/urbanwoods/api/internal/domain"
)

// Response shapes are the API contract; the storage shape an order came from
// is never exposed, so both stores render identically.

type customerView struct {
	UserID string `json:"userId,omitempty"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
}

type woodView struct {
	Type  string `json:"type"`
	Price int64  `json:"price"`
}

type customizationView struct {
	Enabled        bool   `json:"enabled"`
	PrimaryColor   string `json:"primaryColor,omitempty"`
	SecondaryColor string `json:"secondaryColor,omitempty"`
	PrimaryHex     string `json:"primaryHex,omitempty"`
	SecondaryHex   string `json:"secondaryHex,omitempty"`
	ImageURL       string `json:"imageUrl,omitempty"`
}

type itemView struct {
	ProductID     string            `json:"productId,omitempty"`
	Name          string            `json:"name"`
	ImageURL      string            `json:"imageUrl,omitempty"`
	Category      string            `json:"category,omitempty"`
	Quantity      int               `json:"quantity"`
	UnitPrice     int64             `json:"unitPrice"`
	Total         int64             `json:"total"`
	Wood          *woodView         `json:"wood,omitempty"`
	Customization customizationView `json:"customization"`
	Custom        bool              `json:"custom"`
}

type addressView struct {
	Name       string `json:"name,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
	IsDefault  bool   `json:"isDefault,omitempty"`
}

type paymentView struct {
	Method           string `json:"method,omitempty"`
	Status           string `json:"status"`
	GatewayOrderID   string `json:"gatewayOrderId,omitempty"`
	GatewayPaymentID string `json:"gatewayPaymentId,omitempty"`
}

type trackingView struct {
	Carrier         string     `json:"carrier,omitempty"`
	TrackingID      string     `json:"trackingId,omitempty"`
	TrackingURL     string     `json:"trackingUrl,omitempty"`
	LiveLocationURL string     `json:"liveLocationUrl,omitempty"`
	ETA             *time.Time `json:"eta,omitempty"`
	ShippedAt       *time.Time `json:"shippedAt,omitempty"`
}

type orderView struct {
	ID              string       `json:"id"`
	Customer        customerView `json:"customer"`
	Items           []itemView   `json:"items"`
	ShippingAddress addressView  `json:"shippingAddress"`
	TotalAmount     int64        `json:"totalAmount"`
	DeliveryStatus  string       `json:"deliveryStatus"`
	Payment         paymentView  `json:"payment"`
	Tracking        trackingView `json:"tracking"`
	PlacedAt        time.Time    `json:"placedAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

type salesRowView struct {
	ProductID string `json:"productId,omitempty"`
	Name      string `json:"name"`
	UnitsSold int    `json:"unitsSold"`
	Revenue   int64  `json:"revenue"`
}

func toOrderView(order domain.Order) orderView {
	view := orderView{
		ID: order.ID,
		Customer: customerView{
			UserID: order.Customer.UserID,
			Name:   order.Customer.Name,
			Email:  order.Customer.Email,
			Phone:  order.Customer.Phone,
		},
		Items:           make([]itemView, 0, len(order.Items)),
		ShippingAddress: toAddressView(order.ShippingAddress),
		TotalAmount:     order.TotalAmount,
		DeliveryStatus:  string(order.DeliveryStatus),
		Payment: paymentView{
			Method:           order.Payment.Method,
			Status:           string(order.Payment.Status),
			GatewayOrderID:   order.Payment.GatewayOrderID,
			GatewayPaymentID: order.Payment.GatewayPaymentID,
		},
		Tracking: trackingView{
			Carrier:         order.Tracking.Carrier,
			TrackingID:      order.Tracking.TrackingID,
			TrackingURL:     order.Tracking.TrackingURL,
			LiveLocationURL: order.Tracking.LiveLocationURL,
			ETA:             order.Tracking.ETA,
			ShippedAt:       order.Tracking.ShippedAt,
		},
		PlacedAt:  order.PlacedAt,
		UpdatedAt: order.UpdatedAt,
	}
	for _, item := range order.Items {
		view.Items = append(view.Items, toItemView(item))
	}
	return view
}

func toItemView(item domain.PurchasedItem) itemView {
	view := itemView{
		Name:      item.Name,
		ImageURL:  item.ImageURL,
		Category:  item.Category,
		Quantity:  item.Quantity,
		UnitPrice: item.UnitPrice,
		Total:     item.Total,
		Customization: customizationView{
			Enabled:        item.Customization.Enabled,
			PrimaryColor:   item.Customization.PrimaryColor,
			SecondaryColor: item.Customization.SecondaryColor,
			PrimaryHex:     item.Customization.PrimaryHex,
			SecondaryHex:   item.Customization.SecondaryHex,
			ImageURL:       item.Customization.ImageURL,
		},
		Custom: item.Custom,
	}
	if item.ProductRef != nil {
		view.ProductID = *item.ProductRef
	}
	if item.Wood != nil {
		view.Wood = &woodView{Type: item.Wood.Type, Price: item.Wood.Price}
	}
	return view
}

func toAddressView(addr domain.Address) addressView {
	return addressView{
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

func toOrderViews(orders []domain.Order) []orderView {
	views := make([]orderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, toOrderView(order))
	}
	return views
}

func toSalesRowViews(rows []domain.ProductSales) []salesRowView {
	views := make([]salesRowView, 0, len(rows))
	for _, row := range rows {
		views = append(views, salesRowView{
			ProductID: row.ProductID,
			Name:      row.Name,
			UnitsSold: row.UnitsSold,
			Revenue:   row.Revenue,
		})
	}
	return views
}

type notificationView struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type,omitempty"`
	ProductID string    `json:"productId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func toNotificationViews(notifications []domain.Notification) []notificationView {
	views := make([]notificationView, 0, len(notifications))
	for _, n := range notifications {
		views = append(views, notificationView{
			ID:        n.ID,
			Title:     n.Title,
			Message:   n.Message,
			Type:      n.Type,
			ProductID: n.ProductRef,
			CreatedAt: n.CreatedAt,
		})
	}
	return views
}
