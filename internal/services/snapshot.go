package services

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	domain "github.com/urbanwoods/api/internal/domain"
)

var titleCaser = cases.Title(language.English)

// categoryKeywords are matched in priority order: a product tagged both
// "sofa" and "table" files under Sofa.
var categoryKeywords = []string{
	"chair", "sofa", "swing", "diwan", "cot",
	"table", "cupboard", "lighting", "stool",
}

// titleFallbackKeywords are the only substrings matched against the product
// title, and only after the tag-based rules found nothing.
var titleFallbackKeywords = []string{"stool", "chair", "sofa"}

// InferCategory derives the frozen report category for a purchased item.
// Balcony placement wins outright; otherwise the keyword list is matched
// against feature tags, then the first feature tag is used as-is, then a
// narrow title substring match, and finally the catch-all bucket.
func InferCategory(product domain.Product) string {
	for _, tag := range product.LocationTags {
		if strings.EqualFold(strings.TrimSpace(tag), "balcony") {
			return "Balcony"
		}
	}
	for _, keyword := range categoryKeywords {
		for _, tag := range product.FeatureTags {
			if strings.Contains(strings.ToLower(tag), keyword) {
				return titleCaser.String(keyword)
			}
		}
	}
	for _, tag := range product.FeatureTags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			return titleCaser.String(trimmed)
		}
	}
	lowerTitle := strings.ToLower(product.Title)
	for _, keyword := range titleFallbackKeywords {
		if strings.Contains(lowerTitle, keyword) {
			return titleCaser.String(keyword)
		}
	}
	return "Others"
}

// normalizeWoodSelection folds the structured and flat legacy wood inputs
// into one selection. Returns nil when no wood was chosen.
func normalizeWoodSelection(line OrderLineInput) *domain.WoodSelection {
	if line.Wood != nil && strings.TrimSpace(line.Wood.Type) != "" {
		return &domain.WoodSelection{
			Type:  strings.TrimSpace(line.Wood.Type),
			Price: line.Wood.Price,
		}
	}
	if woodType := strings.TrimSpace(line.WoodType); woodType != "" {
		return &domain.WoodSelection{Type: woodType, Price: line.WoodPrice}
	}
	return nil
}

// normalizeColorCustomization folds the two client field-name generations
// into one customization record.
func normalizeColorCustomization(line OrderLineInput) domain.ColorCustomization {
	custom := domain.ColorCustomization{
		PrimaryColor:   firstNonEmpty(line.ColorName, line.SelectedColorName),
		PrimaryHex:     firstNonEmpty(line.ColorHex, line.SelectedColorHex),
		SecondaryColor: strings.TrimSpace(line.SecondaryColorName),
		SecondaryHex:   strings.TrimSpace(line.SecondaryColorHex),
		ImageURL:       strings.TrimSpace(line.ColorImageURL),
	}
	custom.Enabled = custom.PrimaryColor != "" || custom.PrimaryHex != "" ||
		custom.SecondaryColor != "" || custom.SecondaryHex != ""
	return custom
}

// BuildPurchasedItem freezes one cart line against the catalog record it was
// reserved from. Wood selection overrides the unit price; when the catalog
// carries a matching wood variant, its price replaces the client-sent one.
// A matching catalog color variant's image overrides the snapshot image.
func BuildPurchasedItem(product domain.Product, line OrderLineInput) domain.PurchasedItem {
	wood := normalizeWoodSelection(line)
	custom := normalizeColorCustomization(line)

	unitPrice := product.Price
	if wood != nil {
		// Client-sent wood prices are only trusted for variants the
		// catalog no longer lists.
		if variant, ok := findWoodVariant(product, wood.Type); ok {
			wood.Price = variant.Price
		}
		if wood.Price > 0 {
			unitPrice = wood.Price
		}
	}

	imageURL := product.ImageURL
	if custom.Enabled {
		if variant, ok := findColorVariant(product, custom.PrimaryColor, custom.PrimaryHex); ok && variant.ImageURL != "" {
			custom.ImageURL = variant.ImageURL
		}
		if custom.ImageURL != "" {
			imageURL = custom.ImageURL
		}
	}

	productRef := product.ID
	return domain.PurchasedItem{
		ProductRef:    &productRef,
		Name:          product.Title,
		ImageURL:      imageURL,
		Category:      InferCategory(product),
		Quantity:      line.Quantity,
		UnitPrice:     unitPrice,
		Total:         unitPrice * int64(line.Quantity),
		Wood:          wood,
		Customization: custom,
	}
}

// BuildManualItem freezes one admin-entered line. Catalog-backed lines
// snapshot like storefront lines but keep an admin price override; custom
// lines carry only what the admin typed.
func BuildManualItem(product *domain.Product, line ManualOrderLineInput) domain.PurchasedItem {
	if product != nil {
		item := BuildPurchasedItem(*product, OrderLineInput{
			ProductID: product.ID,
			Quantity:  line.Quantity,
		})
		if line.UnitPrice > 0 {
			item.UnitPrice = line.UnitPrice
			item.Total = line.UnitPrice * int64(line.Quantity)
		}
		return item
	}
	return domain.PurchasedItem{
		Name:      strings.TrimSpace(line.Name),
		Quantity:  line.Quantity,
		UnitPrice: line.UnitPrice,
		Total:     line.UnitPrice * int64(line.Quantity),
		Category:  "Others",
		Custom:    true,
	}
}

func findWoodVariant(product domain.Product, woodType string) (domain.WoodVariant, bool) {
	for _, variant := range product.WoodVariants {
		if strings.EqualFold(strings.TrimSpace(variant.Type), woodType) {
			return variant, true
		}
	}
	return domain.WoodVariant{}, false
}

func findColorVariant(product domain.Product, name, hex string) (domain.ColorVariant, bool) {
	for _, variant := range product.ColorVariants {
		if name != "" && strings.EqualFold(strings.TrimSpace(variant.Name), name) {
			return variant, true
		}
		if hex != "" && strings.EqualFold(strings.TrimSpace(variant.Hex), hex) {
			return variant, true
		}
	}
	return domain.ColorVariant{}, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
