package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"lyvo-backend/internal/domain"
)

// MemoryStore implements ProductStore over an in-process snapshot.
// The snapshot is populated once at startup (or by the importer) and treated
// as immutable while serving traffic, so concurrent readers need no locking.
// Read operations never fail; an empty snapshot just yields empty results.
type MemoryStore struct {
	products []domain.Product
	log      *logrus.Logger
}

// NewMemoryStore creates a MemoryStore serving the given snapshot.
func NewMemoryStore(products []domain.Product, log *logrus.Logger) *MemoryStore {
	return &MemoryStore{products: products, log: log}
}

// LoadSnapshot reads a JSON array of products from path. Failures wrap
// ErrDataLoad; the caller decides whether to start with an empty catalog.
func LoadSnapshot(path string) ([]domain.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataLoad, err)
	}
	var products []domain.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataLoad, err)
	}
	return products, nil
}

func (s *MemoryStore) matches(p *domain.Product, filter ProductFilter) bool {
	if filter.Query != nil {
		q := strings.ToLower(*filter.Query)
		if !strings.Contains(strings.ToLower(p.Title), q) &&
			!strings.Contains(strings.ToLower(p.Description), q) &&
			!(p.Brand != nil && strings.Contains(strings.ToLower(*p.Brand), q)) {
			return false
		}
	}
	if filter.Category != nil {
		if p.Category == nil || *p.Category != *filter.Category {
			return false
		}
	}
	if filter.Merchant != nil && p.MerchantID != *filter.Merchant {
		return false
	}
	if filter.MinPrice != nil {
		if p.PriceMin == nil || *p.PriceMin < *filter.MinPrice {
			return false
		}
	}
	if filter.MaxPrice != nil {
		if p.PriceMin == nil || *p.PriceMin > *filter.MaxPrice {
			return false
		}
	}
	return true
}

func (s *MemoryStore) filtered(filter ProductFilter) []domain.Product {
	out := make([]domain.Product, 0, len(s.products))
	for i := range s.products {
		if s.matches(&s.products[i], filter) {
			out = append(out, s.products[i])
		}
	}
	return out
}

// lessPrice orders by price with unpriced items last and id ASC ties.
func lessPrice(a, b *domain.Product, desc bool) bool {
	switch {
	case a.PriceMin == nil && b.PriceMin == nil:
		return a.ID < b.ID
	case a.PriceMin == nil:
		return false
	case b.PriceMin == nil:
		return true
	case *a.PriceMin != *b.PriceMin:
		if desc {
			return *a.PriceMin > *b.PriceMin
		}
		return *a.PriceMin < *b.PriceMin
	default:
		return a.ID < b.ID
	}
}

func sortProducts(products []domain.Product, order Ordering) {
	switch order {
	case OrderPriceAsc:
		sort.SliceStable(products, func(i, j int) bool {
			return lessPrice(&products[i], &products[j], false)
		})
	case OrderPriceDesc:
		sort.SliceStable(products, func(i, j int) bool {
			return lessPrice(&products[i], &products[j], true)
		})
	case OrderPopular:
		sort.SliceStable(products, func(i, j int) bool {
			if products[i].Title != products[j].Title {
				return products[i].Title < products[j].Title
			}
			return products[i].ID < products[j].ID
		})
	default:
		// newest: snapshots without timestamps keep their original order,
		// which a stable sort preserves.
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].CreatedAt.After(products[j].CreatedAt)
		})
	}
}

func (s *MemoryStore) CountProducts(_ context.Context, filter ProductFilter) (int, error) {
	return len(s.filtered(filter)), nil
}

func (s *MemoryStore) ListProducts(_ context.Context, filter ProductFilter, order Ordering, limit, offset int) ([]domain.Product, error) {
	products := s.filtered(filter)
	sortProducts(products, order)

	if offset >= len(products) || limit <= 0 {
		return []domain.Product{}, nil
	}
	end := offset + limit
	if end > len(products) {
		end = len(products)
	}
	return products[offset:end], nil
}

func (s *MemoryStore) DistinctCategories(_ context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for i := range s.products {
		if c := s.products[i].Category; c != nil && *c != "" {
			seen[*c] = struct{}{}
		}
	}
	categories := make([]string, 0, len(seen))
	for c := range seen {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	return categories, nil
}

// UpsertProduct replaces or appends a product keyed by id. It exists for
// snapshot assembly (importer, tests) and must not be called once the store
// is serving traffic; request-path readers expect an immutable snapshot.
func (s *MemoryStore) UpsertProduct(_ context.Context, product *domain.Product) error {
	for i := range s.products {
		if s.products[i].ID == product.ID {
			created := s.products[i].CreatedAt // immutable after insertion
			s.products[i] = *product
			s.products[i].CreatedAt = created
			return nil
		}
	}
	p := *product
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.products = append(s.products, p)
	return nil
}
