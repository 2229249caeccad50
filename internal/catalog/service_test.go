package catalog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"lyvo-backend/internal/domain"
	"lyvo-backend/internal/store"
)

func ptr[T any](v T) *T {
	return &v
}

func fixtureCatalog() []domain.Product {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	products := make([]domain.Product, 0, 30)
	for i := 1; i <= 30; i++ {
		category := "kitchen"
		merchant := "lyvo"
		if i%3 == 0 {
			category = "office"
		}
		if i%2 == 0 {
			merchant = "acme"
		}
		products = append(products, domain.Product{
			ID:          fmt.Sprintf("p%02d", i),
			Title:       fmt.Sprintf("Product %02d", i),
			Description: "catalog fixture",
			MerchantID:  merchant,
			Category:    ptr(category),
			PriceMin:    ptr(float64(i)),
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
		})
	}
	return products
}

func newFixtureService() *Service {
	return NewService(store.NewMemoryStore(fixtureCatalog(), logrus.New()))
}

func defaultSpec() QuerySpec {
	return QuerySpec{Page: DefaultPage, PageSize: DefaultPageSize}
}

func TestQueryProducts_NoFiltersTotalEqualsCatalogSize(t *testing.T) {
	svc := newFixtureService()

	page, err := svc.QueryProducts(context.Background(), defaultSpec())
	require.NoError(t, err)
	assert.Equal(t, 30, page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, DefaultPageSize, page.PageSize)
	assert.Len(t, page.Items, DefaultPageSize)
}

func TestQueryProducts_PageWalkReconstructsFilteredSet(t *testing.T) {
	svc := newFixtureService()
	ctx := context.Background()

	seen := make(map[string]int)
	var count int
	for pageNum := 1; ; pageNum++ {
		spec := defaultSpec()
		spec.Page = pageNum
		spec.PageSize = 7
		spec.Sort = "price_asc"
		page, err := svc.QueryProducts(ctx, spec)
		require.NoError(t, err)
		if len(page.Items) == 0 {
			break
		}
		for _, item := range page.Items {
			seen[item.ID]++
			count++
		}
	}

	assert.Equal(t, 30, count, "no omissions")
	assert.Len(t, seen, 30, "no duplicates")
	for id, n := range seen {
		assert.Equal(t, 1, n, "item %s seen more than once", id)
	}
}

func TestQueryProducts_FiltersAreConjunctive(t *testing.T) {
	svc := newFixtureService()
	ctx := context.Background()

	query := func(spec QuerySpec) map[string]bool {
		spec.PageSize = MaxPageSize
		page, err := svc.QueryProducts(ctx, spec)
		require.NoError(t, err)
		ids := make(map[string]bool, len(page.Items))
		for _, item := range page.Items {
			ids[item.ID] = true
		}
		require.Equal(t, page.Total, len(ids))
		return ids
	}

	officeOnly := query(QuerySpec{Category: "office", Page: 1})
	acmeOnly := query(QuerySpec{Merchant: "acme", Page: 1})
	both := query(QuerySpec{Category: "office", Merchant: "acme", Page: 1})

	for id := range both {
		assert.True(t, officeOnly[id] && acmeOnly[id], "item %s missing from a single-filter set", id)
	}
	intersection := 0
	for id := range officeOnly {
		if acmeOnly[id] {
			intersection++
		}
	}
	assert.Equal(t, intersection, len(both))
}

func TestQueryProducts_PriceAscReversedEqualsPriceDesc(t *testing.T) {
	svc := newFixtureService()
	ctx := context.Background()

	fetch := func(sort string) []string {
		page, err := svc.QueryProducts(ctx, QuerySpec{Sort: sort, Page: 1, PageSize: MaxPageSize})
		require.NoError(t, err)
		ids := make([]string, len(page.Items))
		for i, item := range page.Items {
			ids[i] = item.ID
		}
		return ids
	}

	asc := fetch("price_asc")
	desc := fetch("price_desc")
	require.Equal(t, len(asc), len(desc))
	for i := range asc {
		assert.Equal(t, asc[i], desc[len(desc)-1-i])
	}
}

func TestQueryProducts_RepeatedQueryIsIdentical(t *testing.T) {
	svc := newFixtureService()
	ctx := context.Background()

	spec := QuerySpec{Sort: "popular", Page: 2, PageSize: 5}
	first, err := svc.QueryProducts(ctx, spec)
	require.NoError(t, err)
	second, err := svc.QueryProducts(ctx, spec)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestQueryProducts_OutOfRangePageReturnsEmptyWithTrueTotal(t *testing.T) {
	svc := newFixtureService()

	spec := QuerySpec{Page: 1000, PageSize: 12}
	page, err := svc.QueryProducts(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, 30, page.Total)
	assert.Empty(t, page.Items)
	assert.Equal(t, 1000, page.Page)
}

func TestQueryProducts_NonexistentCategoryIsEmptyForAnyPage(t *testing.T) {
	svc := newFixtureService()

	for _, pageNum := range []int{1, 2, 50} {
		page, err := svc.QueryProducts(context.Background(), QuerySpec{Category: "nonexistent", Page: pageNum, PageSize: 12})
		require.NoError(t, err)
		assert.Equal(t, 0, page.Total)
		assert.Empty(t, page.Items)
	}
}

func TestQueryProducts_WorkedExample(t *testing.T) {
	products := []domain.Product{
		{ID: "a", Title: "A", PriceMin: ptr(10.0)},
		{ID: "b", Title: "B", PriceMin: ptr(5.0)},
	}
	svc := NewService(store.NewMemoryStore(products, logrus.New()))

	page, err := svc.QueryProducts(context.Background(), QuerySpec{Sort: "price_asc", Page: 1, PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "b", page.Items[0].ID)
}

func TestQueryProducts_WhitespaceQueryIsAbsent(t *testing.T) {
	svc := newFixtureService()

	page, err := svc.QueryProducts(context.Background(), QuerySpec{Query: "   ", Page: 1, PageSize: 12})
	require.NoError(t, err)
	assert.Equal(t, 30, page.Total)
}

func TestQueryProducts_ValidationErrors(t *testing.T) {
	svc := newFixtureService()
	ctx := context.Background()

	cases := []struct {
		name  string
		spec  QuerySpec
		field string
	}{
		{"page below one", QuerySpec{Page: 0, PageSize: 12}, "page"},
		{"page size zero", QuerySpec{Page: 1, PageSize: 0}, "page_size"},
		{"page size above max", QuerySpec{Page: 1, PageSize: 61}, "page_size"},
		{"negative min price", QuerySpec{Page: 1, PageSize: 12, MinPrice: ptr(-1.0)}, "min_price"},
		{"negative max price", QuerySpec{Page: 1, PageSize: 12, MaxPrice: ptr(-0.5)}, "max_price"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.QueryProducts(ctx, tc.spec)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tc.field, vErr.Field)
		})
	}
}

func TestQueryProducts_InvertedPriceRangeIsEmptyNotError(t *testing.T) {
	svc := newFixtureService()

	page, err := svc.QueryProducts(context.Background(), QuerySpec{MinPrice: ptr(20.0), MaxPrice: ptr(10.0), Page: 1, PageSize: 12})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	assert.Empty(t, page.Items)
}

func TestListCategories_SortedDistinct(t *testing.T) {
	svc := newFixtureService()

	categories, err := svc.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"kitchen", "office"}, categories)
}

// MockProductStore is a testify mock of store.ProductStore for error paths.
type MockProductStore struct {
	mock.Mock
}

func (m *MockProductStore) CountProducts(ctx context.Context, filter store.ProductFilter) (int, error) {
	args := m.Called(ctx, filter)
	return args.Int(0), args.Error(1)
}

func (m *MockProductStore) ListProducts(ctx context.Context, filter store.ProductFilter, order store.Ordering, limit, offset int) ([]domain.Product, error) {
	args := m.Called(ctx, filter, order, limit, offset)
	var products []domain.Product
	if arg0 := args.Get(0); arg0 != nil {
		products = arg0.([]domain.Product)
	}
	return products, args.Error(1)
}

func (m *MockProductStore) DistinctCategories(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	var categories []string
	if arg0 := args.Get(0); arg0 != nil {
		categories = arg0.([]string)
	}
	return categories, args.Error(1)
}

func (m *MockProductStore) UpsertProduct(ctx context.Context, product *domain.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func TestQueryProducts_StoreErrorsPropagate(t *testing.T) {
	mockStore := new(MockProductStore)
	mockStore.On("CountProducts", mock.Anything, mock.Anything).
		Return(0, store.ErrStorageUnavailable).Once()
	svc := NewService(mockStore)

	_, err := svc.QueryProducts(context.Background(), defaultSpec())
	assert.ErrorIs(t, err, store.ErrStorageUnavailable)
	mockStore.AssertExpectations(t)
}

func TestQueryProducts_SkipsListWhenPageBeyondTotal(t *testing.T) {
	mockStore := new(MockProductStore)
	mockStore.On("CountProducts", mock.Anything, mock.Anything).Return(5, nil).Once()
	// No ListProducts expectation: an out-of-range page must not hit the store.
	svc := NewService(mockStore)

	page, err := svc.QueryProducts(context.Background(), QuerySpec{Page: 1000, PageSize: 12})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Empty(t, page.Items)
	mockStore.AssertExpectations(t)
}
