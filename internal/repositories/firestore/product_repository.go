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

const productsCollection = "products"

type woodVariantDocument struct {
	Type  string `firestore:"type"`
	Price int64  `firestore:"price"`
}

type colorVariantDocument struct {
	Name          string `firestore:"name"`
	Hex           string `firestore:"hex"`
	SecondaryName string `firestore:"secondaryName,omitempty"`
	SecondaryHex  string `firestore:"secondaryHex,omitempty"`
	ImageURL      string `firestore:"imageUrl,omitempty"`
}

type productDocument struct {
	Title         string                 `firestore:"title"`
	Price         int64                  `firestore:"price"`
	Stock         int                    `firestore:"stock"`
	ImageURL      string                 `firestore:"imageUrl,omitempty"`
	LocationTags  []string               `firestore:"locationTags,omitempty"`
	FeatureTags   []string               `firestore:"featureTags,omitempty"`
	WoodVariants  []woodVariantDocument  `firestore:"woodVariants,omitempty"`
	ColorVariants []colorVariantDocument `firestore:"colorVariants,omitempty"`
	UpdatedAt     time.Time              `firestore:"updatedAt,omitempty"`
}

// ProductRepository implements repositories.ProductRepository on Firestore.
type ProductRepository struct {
	provider *fs.Provider
	base     *fs.BaseRepository[productDocument]
	clock    func() time.Time
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *fs.Provider) *ProductRepository {
	return &ProductRepository{
		provider: provider,
		base:     fs.NewBaseRepository[productDocument](provider, productsCollection, nil),
		clock:    time.Now,
	}
}

// ReserveStock performs the conditional decrement inside one transaction.
// Firestore requires every read to precede the first write, so the method
// loads all requested products first, validates each line in request order,
// and only then buffers the stock updates. Any validation failure aborts the
// transaction and no stock level changes.
func (r *ProductRepository) ReserveStock(ctx context.Context, lines []repositories.StockLine) ([]repositories.ReservedProduct, error) {
	if len(lines) == 0 {
		return nil, repositories.NewOrderError(repositories.OrderErrorUnknown, "no stock lines requested", nil)
	}

	if _, ok := fs.TransactionFrom(ctx); !ok {
		var reserved []repositories.ReservedProduct
		err := r.provider.RunInTx(ctx, func(ctx context.Context) error {
			var txErr error
			reserved, txErr = r.ReserveStock(ctx, lines)
			return txErr
		})
		if err != nil {
			return nil, err
		}
		return reserved, nil
	}

	merged, order := mergeStockLines(lines)

	// Read phase: fetch every product before any write is buffered.
	docs := make(map[string]fs.Document[productDocument], len(order))
	for _, productID := range order {
		doc, err := r.base.Get(ctx, productID)
		if err != nil {
			if fs.IsNotFound(err) {
				return nil, &repositories.OrderError{
					Op:        "products.reserve",
					Code:      repositories.OrderErrorProductNotFound,
					Message:   fmt.Sprintf("product %s not found", productID),
					ProductID: productID,
					Err:       err,
				}
			}
			return nil, err
		}
		docs[productID] = doc
	}

	// Validation in request order so the first offending line is reported.
	for _, productID := range order {
		doc := docs[productID]
		requested := merged[productID]
		if requested <= 0 {
			return nil, &repositories.OrderError{
				Op:        "products.reserve",
				Code:      repositories.OrderErrorUnknown,
				Message:   fmt.Sprintf("invalid quantity %d for product %s", requested, productID),
				ProductID: productID,
			}
		}
		if doc.Data.Stock < requested {
			return nil, &repositories.OrderError{
				Op:           "products.reserve",
				Code:         repositories.OrderErrorInsufficientStock,
				Message:      fmt.Sprintf("insufficient stock for %s: requested %d, available %d", doc.Data.Title, requested, doc.Data.Stock),
				ProductID:    productID,
				ProductTitle: doc.Data.Title,
			}
		}
	}

	// Write phase.
	tx, _ := fs.TransactionFrom(ctx)
	now := r.clock().UTC()
	reserved := make([]repositories.ReservedProduct, 0, len(order))
	for _, productID := range order {
		doc := docs[productID]
		requested := merged[productID]
		remaining := doc.Data.Stock - requested

		ref, err := r.base.DocumentRef(ctx, productID)
		if err != nil {
			return nil, err
		}
		if err := tx.Update(ref, []firestore.Update{
			{Path: "stock", Value: remaining},
			{Path: "updatedAt", Value: now},
		}); err != nil {
			return nil, fs.WrapError("products.reserve", err)
		}

		product := toDomainProduct(productID, doc.Data)
		product.Stock = remaining
		product.UpdatedAt = now
		reserved = append(reserved, repositories.ReservedProduct{
			Product:        product,
			Reserved:       requested,
			RemainingStock: remaining,
		})
	}
	return reserved, nil
}

// FindByIDs loads catalog records outside any reservation. Missing products
// surface as typed not-found errors so the advisory check can name them.
func (r *ProductRepository) FindByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	products := make(map[string]domain.Product, len(productIDs))
	for _, productID := range productIDs {
		productID = strings.TrimSpace(productID)
		if productID == "" {
			return nil, errors.New("products: product id is required")
		}
		if _, ok := products[productID]; ok {
			continue
		}
		doc, err := r.base.Get(ctx, productID)
		if err != nil {
			if fs.IsNotFound(err) {
				return nil, &repositories.OrderError{
					Op:        "products.find",
					Code:      repositories.OrderErrorProductNotFound,
					Message:   fmt.Sprintf("product %s not found", productID),
					ProductID: productID,
					Err:       err,
				}
			}
			return nil, err
		}
		products[productID] = toDomainProduct(productID, doc.Data)
	}
	return products, nil
}

// mergeStockLines folds duplicate product lines into one quantity while
// preserving first-seen request order.
func mergeStockLines(lines []repositories.StockLine) (map[string]int, []string) {
	merged := make(map[string]int, len(lines))
	order := make([]string, 0, len(lines))
	for _, line := range lines {
		id := strings.TrimSpace(line.ProductID)
		if id == "" {
			continue
		}
		if _, seen := merged[id]; !seen {
			order = append(order, id)
		}
		merged[id] += line.Quantity
	}
	return merged, order
}

func toDomainProduct(id string, doc productDocument) domain.Product {
	product := domain.Product{
		ID:           id,
		Title:        doc.Title,
		Price:        doc.Price,
		Stock:        doc.Stock,
		ImageURL:     doc.ImageURL,
		LocationTags: append([]string(nil), doc.LocationTags...),
		FeatureTags:  append([]string(nil), doc.FeatureTags...),
		UpdatedAt:    doc.UpdatedAt,
	}
	for _, wood := range doc.WoodVariants {
		product.WoodVariants = append(product.WoodVariants, domain.WoodVariant{
			Type:  wood.Type,
			Price: wood.Price,
		})
	}
	for _, color := range doc.ColorVariants {
		product.ColorVariants = append(product.ColorVariants, domain.ColorVariant{
			Name:          color.Name,
			Hex:           color.Hex,
			SecondaryName: color.SecondaryName,
			SecondaryHex:  color.SecondaryHex,
			ImageURL:      color.ImageURL,
		})
	}
	return product
}
