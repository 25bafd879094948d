package repositories

import (
	"context"
	"time"

	domain "github.com/urbanwoods/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork groups repository operations in one transactional boundary when
// the storage engine supports it. Implementations lacking transactions run the
// function directly, degrading to best-effort sequential writes.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// StockLine requests a quantity of one product.
type StockLine struct {
	ProductID string
	Quantity  int
}

// ReservedProduct pairs the catalog record (for snapshotting) with its
// post-decrement stock level (for low-stock events).
type ReservedProduct struct {
	Product        domain.Product
	Reserved       int
	RemainingStock int
}

// ProductRepository owns catalog reads and the atomic conditional stock
// decrement every order path depends on.
type ProductRepository interface {
	// ReserveStock decrements stock for every line, in order, only when each
	// product's current stock covers the requested quantity. Any failure
	// (missing product, insufficient stock) leaves every stock level
	// untouched. Joins an enclosing transaction when one is active.
	ReserveStock(ctx context.Context, lines []StockLine) ([]ReservedProduct, error)
	// FindByIDs loads catalog records without reserving anything. Used by the
	// advisory pre-payment stock check.
	FindByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error)
}

// OrderListFilter narrows order collection reads by placement date.
type OrderListFilter struct {
	From *time.Time
	To   *time.Time
}

// OrderRepository persists orders in the standalone collection (the new shape).
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, payment *domain.PaymentStatus, now time.Time) (domain.Order, error)
	UpdateTracking(ctx context.Context, orderID string, tracking domain.Tracking, now time.Time) (domain.Order, error)
	Delete(ctx context.Context, orderID string) error
}

// LegacyOrderRepository reads and mutates orders embedded in user documents.
// Orders surface normalized to the canonical shape with the owning user's
// identity attached; no new orders are ever written through this interface.
type LegacyOrderRepository interface {
	ListAll(ctx context.Context) ([]domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, payment *domain.PaymentStatus, now time.Time) (domain.Order, error)
	UpdateTracking(ctx context.Context, orderID string, tracking domain.Tracking, now time.Time) (domain.Order, error)
	Delete(ctx context.Context, orderID string) error
}

// UserRepository resolves purchasing users and maintains the saved-address book.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	FindByPhoneOrEmail(ctx context.Context, phone, email string) (domain.User, error)
	Insert(ctx context.Context, user domain.User) error
	// SaveAddresses replaces the user's address book. Write-only so it can run
	// in the write phase of an enclosing transaction.
	SaveAddresses(ctx context.Context, userID string, addresses []domain.Address) error
}
