// Package catalog turns untyped query parameters into deterministic,
// paginated, sorted result sets over the product store.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"lyvo-backend/internal/domain"
	"lyvo-backend/internal/store"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 12
	MaxPageSize     = 60
)

// QuerySpec is the normalized parameter set of one catalog query.
// All fields are optional except Page and PageSize, which the boundary
// defaults before validation.
type QuerySpec struct {
	Query    string
	Category string
	Merchant string
	MinPrice *float64 `validate:"omitempty,gte=0"`
	MaxPrice *float64 `validate:"omitempty,gte=0"`
	Sort     string   // unrecognized keys fall back to newest
	Page     int      `validate:"gte=1"`
	PageSize int      `validate:"gte=1,lte=60"`
}

// ProductPage is the result envelope of QueryProducts. Total counts every
// item matching the filter, independent of paging.
type ProductPage struct {
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Total    int              `json:"total"`
	Items    []domain.Product `json:"items"`
}

// ValidationError reports a rejected query parameter with field-level detail.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Service composes filtering, ordering and pagination over a ProductStore.
type Service struct {
	store    store.ProductStore
	validate *validator.Validate
}

func NewService(st store.ProductStore) *Service {
	return &Service{store: st, validate: validator.New()}
}

// buildFilter normalizes a QuerySpec into the store's constraint set.
// Whitespace-only text queries and empty exact-match values are absent.
func buildFilter(spec QuerySpec) store.ProductFilter {
	var filter store.ProductFilter
	if q := strings.TrimSpace(spec.Query); q != "" {
		filter.Query = &q
	}
	if spec.Category != "" {
		category := spec.Category
		filter.Category = &category
	}
	if spec.Merchant != "" {
		merchant := spec.Merchant
		filter.Merchant = &merchant
	}
	filter.MinPrice = spec.MinPrice
	filter.MaxPrice = spec.MaxPrice
	return filter
}

func (s *Service) validateSpec(spec QuerySpec) error {
	err := s.validate.Struct(spec)
	if err == nil {
		return nil
	}
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		fe := errs[0]
		field := map[string]string{
			"Page":     "page",
			"PageSize": "page_size",
			"MinPrice": "min_price",
			"MaxPrice": "max_price",
		}[fe.Field()]
		msg := "must be >= " + fe.Param()
		if fe.Tag() == "lte" {
			msg = "must be <= " + fe.Param()
		}
		return &ValidationError{Field: field, Message: msg}
	}
	return err
}

// QueryProducts validates the spec and returns the requested page.
// An out-of-range page yields an empty item list with the true total.
func (s *Service) QueryProducts(ctx context.Context, spec QuerySpec) (*ProductPage, error) {
	if err := s.validateSpec(spec); err != nil {
		return nil, err
	}

	filter := buildFilter(spec)
	order := store.ParseOrdering(spec.Sort)

	total, err := s.store.CountProducts(ctx, filter)
	if err != nil {
		return nil, err
	}

	offset := (spec.Page - 1) * spec.PageSize
	items := []domain.Product{}
	if offset < total {
		items, err = s.store.ListProducts(ctx, filter, order, spec.PageSize, offset)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []domain.Product{}
		}
	}

	return &ProductPage{
		Page:     spec.Page,
		PageSize: spec.PageSize,
		Total:    total,
		Items:    items,
	}, nil
}

// ListCategories returns the distinct non-empty category values, sorted
// ascending.
func (s *Service) ListCategories(ctx context.Context) ([]string, error) {
	categories, err := s.store.DistinctCategories(ctx)
	if err != nil {
		return nil, err
	}
	if categories == nil {
		categories = []string{}
	}
	return categories, nil
}
