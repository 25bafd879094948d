package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/urbanwoods/api/internal/domain"
	fs "github.com/urbanwoods/api/internal/platform/firestore"
	"github.com/urbanwoods/api/internal/repositories"
)

const usersCollection = "users"

// legacyItemDocument is the item shape written by earlier storefront versions.
// Wood and color customization live as flat fields rather than sub-records.
type legacyItemDocument struct {
	ProductID          string `firestore:"productId,omitempty"`
	Name               string `firestore:"name"`
	Image              string `firestore:"image,omitempty"`
	Price              int64  `firestore:"price"`
	Quantity           int    `firestore:"qty"`
	Category           string `firestore:"category,omitempty"`
	WoodType           string `firestore:"woodType,omitempty"`
	WoodPrice          int64  `firestore:"woodPrice,omitempty"`
	ColorName          string `firestore:"colorName,omitempty"`
	ColorHex           string `firestore:"colorHex,omitempty"`
	SecondaryColorName string `firestore:"secondaryColorName,omitempty"`
	SecondaryColorHex  string `firestore:"secondaryColorHex,omitempty"`
	CustomImage        string `firestore:"customImage,omitempty"`
	Custom             bool   `firestore:"custom,omitempty"`
}

// legacyOrderDocument is an order embedded in a user document. DeliveryStatus
// may carry historical casing/spelling variants; normalization happens on read.
type legacyOrderDocument struct {
	ID              string               `firestore:"orderId"`
	Items           []legacyItemDocument `firestore:"items"`
	TotalAmount     int64                `firestore:"totalAmount"`
	DeliveryStatus  string               `firestore:"deliveryStatus"`
	PaymentStatus   string               `firestore:"paymentStatus,omitempty"`
	PaymentMethod   string               `firestore:"paymentMethod,omitempty"`
	ShippingAddress addressDocument      `firestore:"shippingAddress"`
	Tracking        trackingDocument     `firestore:"tracking,omitempty"`
	OrderDate       time.Time            `firestore:"orderDate"`
	UpdatedAt       time.Time            `firestore:"updatedAt,omitempty"`
}

type userDocument struct {
	Name           string                `firestore:"name,omitempty"`
	Email          string                `firestore:"email,omitempty"`
	Phone          string                `firestore:"phone,omitempty"`
	Admin          bool                  `firestore:"admin,omitempty"`
	SavedAddresses []addressDocument     `firestore:"savedAddresses,omitempty"`
	Orders         []legacyOrderDocument `firestore:"orders,omitempty"`
	CreatedAt      time.Time             `firestore:"createdAt,omitempty"`
}

// UserRepository implements repositories.UserRepository and, because legacy
// orders live inside user documents, repositories.LegacyOrderRepository.
type UserRepository struct {
	provider *fs.Provider
	base     *fs.BaseRepository[userDocument]
}

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *fs.Provider) *UserRepository {
	return &UserRepository{
		provider: provider,
		base:     fs.NewBaseRepository[userDocument](provider, usersCollection, nil),
	}
}

// FindByEmail resolves a user by exact email match.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.User{}, errors.New("users: email is required")
	}
	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("email", "==", email).Limit(1)
	})
	if err != nil {
		return domain.User{}, err
	}
	if len(docs) == 0 {
		return domain.User{}, &repositories.OrderError{
			Op:      "users.find",
			Code:    repositories.OrderErrorUserNotFound,
			Message: fmt.Sprintf("no user with email %s", email),
		}
	}
	return toDomainUser(docs[0].ID, docs[0].Data), nil
}

// FindByPhoneOrEmail resolves an existing account by phone first, then email.
// Used by manual order entry to reuse accounts instead of duplicating them.
func (r *UserRepository) FindByPhoneOrEmail(ctx context.Context, phone, email string) (domain.User, error) {
	phone = strings.TrimSpace(phone)
	if phone != "" {
		docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
			return query.Where("phone", "==", phone).Limit(1)
		})
		if err != nil {
			return domain.User{}, err
		}
		if len(docs) > 0 {
			return toDomainUser(docs[0].ID, docs[0].Data), nil
		}
	}
	if strings.TrimSpace(email) != "" {
		return r.FindByEmail(ctx, email)
	}
	return domain.User{}, &repositories.OrderError{
		Op:      "users.find",
		Code:    repositories.OrderErrorUserNotFound,
		Message: "no user matching phone or email",
	}
}

// Insert creates a new user document.
func (r *UserRepository) Insert(ctx context.Context, user domain.User) error {
	doc := userDocument{
		Name:      user.Name,
		Email:     user.Email,
		Phone:     user.Phone,
		Admin:     user.Admin,
		CreatedAt: user.CreatedAt.UTC(),
	}
	for _, addr := range user.SavedAddresses {
		doc.SavedAddresses = append(doc.SavedAddresses, toAddressDocument(addr))
	}
	return r.base.Create(ctx, user.ID, doc)
}

// SaveAddresses replaces the address book. The update touches only the
// savedAddresses field so it is safe in the write phase of a transaction.
func (r *UserRepository) SaveAddresses(ctx context.Context, userID string, addresses []domain.Address) error {
	ref, err := r.base.DocumentRef(ctx, userID)
	if err != nil {
		return err
	}
	docs := make([]addressDocument, 0, len(addresses))
	for _, addr := range addresses {
		docs = append(docs, toAddressDocument(addr))
	}
	updates := []firestore.Update{{Path: "savedAddresses", Value: docs}}
	if tx, ok := fs.TransactionFrom(ctx); ok {
		return fs.WrapError("users.save_addresses", tx.Update(ref, updates))
	}
	_, err = ref.Update(ctx, updates)
	return fs.WrapError("users.save_addresses", err)
}

// IsAdminEmail reports whether the user document behind the email carries the
// admin flag. Backs the auth middleware's fallback admin check.
func (r *UserRepository) IsAdminEmail(ctx context.Context, email string) (bool, error) {
	user, err := r.FindByEmail(ctx, email)
	if err != nil {
		if repositories.OrderErrorHasCode(err, repositories.OrderErrorUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.Admin, nil
}

// ListAll returns every legacy order across all user documents, normalized to
// the canonical shape with the owning user's identity attached.
func (r *UserRepository) ListAll(ctx context.Context) ([]domain.Order, error) {
	docs, err := r.base.Query(ctx, nil)
	if err != nil {
		return nil, err
	}
	var orders []domain.Order
	for _, doc := range docs {
		for _, legacy := range doc.Data.Orders {
			orders = append(orders, toDomainLegacyOrder(doc.ID, doc.Data, legacy))
		}
	}
	return orders, nil
}

// FindByID scans user documents for the embedded order with the given ID.
func (r *UserRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	userID, _, legacy, err := r.locateLegacyOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		return domain.Order{}, err
	}
	return toDomainLegacyOrder(userID, doc.Data, legacy), nil
}

// UpdateStatus transitions an embedded order's delivery status. The owning
// user is located outside the transaction; the transaction re-reads the
// document so concurrent mutations of the array are not lost.
func (r *UserRepository) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, payment *domain.PaymentStatus, now time.Time) (domain.Order, error) {
	return r.mutateLegacyOrder(ctx, orderID, func(legacy *legacyOrderDocument) {
		legacy.DeliveryStatus = string(status)
		if payment != nil {
			legacy.PaymentStatus = string(*payment)
		}
		legacy.UpdatedAt = now.UTC()
	})
}

// UpdateTracking replaces tracking on an embedded order and forces shipped,
// preserving the first shipment timestamp across retries.
func (r *UserRepository) UpdateTracking(ctx context.Context, orderID string, tracking domain.Tracking, now time.Time) (domain.Order, error) {
	return r.mutateLegacyOrder(ctx, orderID, func(legacy *legacyOrderDocument) {
		if legacy.Tracking.ShippedAt != nil {
			tracking.ShippedAt = legacy.Tracking.ShippedAt
		} else if tracking.ShippedAt == nil {
			shipped := now.UTC()
			tracking.ShippedAt = &shipped
		}
		legacy.Tracking = toTrackingDocument(tracking)
		legacy.DeliveryStatus = string(domain.OrderStatusShipped)
		legacy.UpdatedAt = now.UTC()
	})
}

// Delete removes an embedded order from its owning user document.
func (r *UserRepository) Delete(ctx context.Context, orderID string) error {
	userID, _, _, err := r.locateLegacyOrder(ctx, orderID)
	if err != nil {
		return err
	}
	return r.provider.RunInTx(ctx, func(ctx context.Context) error {
		doc, err := r.base.Get(ctx, userID)
		if err != nil {
			return err
		}
		idx := indexOfLegacyOrder(doc.Data.Orders, orderID)
		if idx < 0 {
			return notFoundOrderError(orderID, nil)
		}
		remaining := append(append([]legacyOrderDocument(nil), doc.Data.Orders[:idx]...), doc.Data.Orders[idx+1:]...)

		tx, _ := fs.TransactionFrom(ctx)
		ref, err := r.base.DocumentRef(ctx, userID)
		if err != nil {
			return err
		}
		return fs.WrapError("users.delete_order", tx.Update(ref, []firestore.Update{
			{Path: "orders", Value: remaining},
		}))
	})
}

func (r *UserRepository) mutateLegacyOrder(ctx context.Context, orderID string, mutate func(*legacyOrderDocument)) (domain.Order, error) {
	userID, _, _, err := r.locateLegacyOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	var updated domain.Order
	err = r.provider.RunInTx(ctx, func(ctx context.Context) error {
		doc, err := r.base.Get(ctx, userID)
		if err != nil {
			return err
		}
		idx := indexOfLegacyOrder(doc.Data.Orders, orderID)
		if idx < 0 {
			return notFoundOrderError(orderID, nil)
		}

		orders := append([]legacyOrderDocument(nil), doc.Data.Orders...)
		mutate(&orders[idx])

		tx, _ := fs.TransactionFrom(ctx)
		ref, err := r.base.DocumentRef(ctx, userID)
		if err != nil {
			return err
		}
		if err := tx.Update(ref, []firestore.Update{
			{Path: "orders", Value: orders},
		}); err != nil {
			return fs.WrapError("users.update_order", err)
		}

		updated = toDomainLegacyOrder(userID, doc.Data, orders[idx])
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return updated, nil
}

// locateLegacyOrder scans the users collection for the document embedding the
// order. Runs outside any transaction; callers re-read the winning document
// transactionally before mutating it.
func (r *UserRepository) locateLegacyOrder(ctx context.Context, orderID string) (string, int, legacyOrderDocument, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return "", -1, legacyOrderDocument{}, errors.New("users: order id is required")
	}
	docs, err := r.base.Query(ctx, nil)
	if err != nil {
		return "", -1, legacyOrderDocument{}, err
	}
	for _, doc := range docs {
		if idx := indexOfLegacyOrder(doc.Data.Orders, orderID); idx >= 0 {
			return doc.ID, idx, doc.Data.Orders[idx], nil
		}
	}
	return "", -1, legacyOrderDocument{}, notFoundOrderError(orderID, nil)
}

func indexOfLegacyOrder(orders []legacyOrderDocument, orderID string) int {
	for i, order := range orders {
		if order.ID == orderID {
			return i
		}
	}
	return -1
}

func toDomainUser(id string, doc userDocument) domain.User {
	user := domain.User{
		ID:        id,
		Name:      doc.Name,
		Email:     doc.Email,
		Phone:     doc.Phone,
		Admin:     doc.Admin,
		CreatedAt: doc.CreatedAt,
	}
	for _, addr := range doc.SavedAddresses {
		user.SavedAddresses = append(user.SavedAddresses, toDomainAddress(addr))
	}
	return user
}

// toDomainLegacyOrder lifts an embedded order into the canonical shape. Flat
// wood/color fields become the structured sub-records new orders carry, and
// status variants fold into the canonical enum.
func toDomainLegacyOrder(userID string, user userDocument, legacy legacyOrderDocument) domain.Order {
	status, ok := domain.NormalizeOrderStatus(legacy.DeliveryStatus)
	if !ok {
		status = domain.OrderStatusPending
	}
	payStatus, ok := domain.NormalizePaymentStatus(legacy.PaymentStatus)
	if !ok {
		payStatus = domain.PaymentStatusPending
	}

	updatedAt := legacy.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = legacy.OrderDate
	}

	order := domain.Order{
		ID: legacy.ID,
		Customer: domain.Customer{
			UserID: userID,
			Name:   user.Name,
			Email:  user.Email,
			Phone:  user.Phone,
		},
		ShippingAddress: toDomainAddress(legacy.ShippingAddress),
		TotalAmount:     legacy.TotalAmount,
		DeliveryStatus:  status,
		Payment: domain.Payment{
			Method: legacy.PaymentMethod,
			Status: payStatus,
		},
		Tracking: domain.Tracking{
			Carrier:         legacy.Tracking.Carrier,
			TrackingID:      legacy.Tracking.TrackingID,
			TrackingURL:     legacy.Tracking.TrackingURL,
			LiveLocationURL: legacy.Tracking.LiveLocationURL,
			ETA:             legacy.Tracking.ETA,
			ShippedAt:       legacy.Tracking.ShippedAt,
		},
		PlacedAt:  legacy.OrderDate,
		UpdatedAt: updatedAt,
		Source:    domain.OrderSourceLegacy,
	}
	for _, item := range legacy.Items {
		order.Items = append(order.Items, toDomainLegacyItem(item))
	}
	return order
}

func toDomainLegacyItem(doc legacyItemDocument) domain.PurchasedItem {
	item := domain.PurchasedItem{
		Name:      doc.Name,
		ImageURL:  doc.Image,
		Category:  doc.Category,
		Quantity:  doc.Quantity,
		UnitPrice: doc.Price,
		Total:     doc.Price * int64(doc.Quantity),
		Custom:    doc.Custom,
	}
	if ref := strings.TrimSpace(doc.ProductID); ref != "" {
		item.ProductRef = &ref
	}
	if wood := strings.TrimSpace(doc.WoodType); wood != "" {
		item.Wood = &domain.WoodSelection{Type: wood, Price: doc.WoodPrice}
	}
	if doc.ColorName != "" || doc.ColorHex != "" {
		item.Customization = domain.ColorCustomization{
			Enabled:        true,
			PrimaryColor:   doc.ColorName,
			SecondaryColor: doc.SecondaryColorName,
			PrimaryHex:     doc.ColorHex,
			SecondaryHex:   doc.SecondaryColorHex,
			ImageURL:       doc.CustomImage,
		}
		if item.Customization.ImageURL != "" {
			item.ImageURL = item.Customization.ImageURL
		}
	}
	return item
}
