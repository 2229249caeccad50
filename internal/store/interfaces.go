package store

import (
	"context"
	"errors"

	"lyvo-backend/internal/domain"
)

// Predefined errors for store operations
var (
	// ErrStorageUnavailable marks transient backend failures (connection
	// refused/reset, pool exhaustion). Read paths retry once before
	// surfacing it; the boundary maps it to 503.
	ErrStorageUnavailable = errors.New("store: storage unavailable")

	// ErrDataLoad is returned when the in-memory store's backing snapshot
	// cannot be read or parsed at startup.
	ErrDataLoad = errors.New("store: failed to load catalog snapshot")
)

// ProductFilter holds the normalized, AND-combined constraints of one catalog
// query. Pointer fields distinguish "absent" from zero values.
type ProductFilter struct {
	Query    *string  // case-insensitive substring over title/description (+brand in-memory)
	Category *string  // exact, case-sensitive
	Merchant *string  // exact match against merchant_id
	MinPrice *float64 // price_min >= MinPrice
	MaxPrice *float64 // price_min <= MaxPrice
}

// Ordering selects a deterministic result order. Every ordering carries a
// secondary id ASC key so identical queries over unchanged data return
// identical sequences.
type Ordering string

const (
	OrderPriceAsc  Ordering = "price_asc"  // price_min ASC, unpriced last
	OrderPriceDesc Ordering = "price_desc" // price_min DESC, unpriced last
	OrderPopular   Ordering = "popular"    // no popularity signal yet: title ASC
	OrderNewest    Ordering = "newest"     // created_at DESC (default)
)

// ParseOrdering maps a sort key to an Ordering. Unrecognized or empty keys
// fall through to OrderNewest.
func ParseOrdering(key string) Ordering {
	switch Ordering(key) {
	case OrderPriceAsc, OrderPriceDesc, OrderPopular:
		return Ordering(key)
	default:
		return OrderNewest
	}
}

// ProductStore defines the catalog operations the service composes.
// Query paths are read-only; UpsertProduct is used only by the import batch.
type ProductStore interface {
	CountProducts(ctx context.Context, filter ProductFilter) (int, error)
	ListProducts(ctx context.Context, filter ProductFilter, order Ordering, limit, offset int) ([]domain.Product, error)
	DistinctCategories(ctx context.Context) ([]string, error)
	UpsertProduct(ctx context.Context, product *domain.Product) error
}
