package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"lyvo-backend/internal/domain"
)

const productColumns = `id, title, description, url, image_url, price_min, price_max, currency, merchant_id, category, lang, created_at`

// PostgresStore implements ProductStore on top of a *sql.DB pool.
type PostgresStore struct {
	db  *sql.DB
	log *logrus.Logger
}

// NewPostgresStore creates a new PostgresStore instance.
func NewPostgresStore(db *sql.DB, log *logrus.Logger) *PostgresStore {
	return &PostgresStore{db: db, log: log}
}

// buildWhere translates a ProductFilter into a parametrized WHERE clause.
// All constraints are AND-combined; arguments use $n placeholders so no user
// input is ever concatenated into SQL.
func buildWhere(filter ProductFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}
	argID := 1

	if filter.Query != nil {
		clauses = append(clauses, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", argID, argID+1))
		like := "%" + *filter.Query + "%"
		args = append(args, like, like)
		argID += 2
	}
	if filter.Category != nil {
		clauses = append(clauses, fmt.Sprintf("category = $%d", argID))
		args = append(args, *filter.Category)
		argID++
	}
	if filter.Merchant != nil {
		clauses = append(clauses, fmt.Sprintf("merchant_id = $%d", argID))
		args = append(args, *filter.Merchant)
		argID++
	}
	if filter.MinPrice != nil {
		clauses = append(clauses, fmt.Sprintf("price_min >= $%d", argID))
		args = append(args, *filter.MinPrice)
		argID++
	}
	if filter.MaxPrice != nil {
		clauses = append(clauses, fmt.Sprintf("price_min <= $%d", argID))
		args = append(args, *filter.MaxPrice)
		argID++
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// orderClause maps an Ordering to SQL. Every ordering ends with id ASC so
// ties are broken deterministically.
func orderClause(order Ordering) string {
	switch order {
	case OrderPriceAsc:
		return " ORDER BY price_min ASC NULLS LAST, id ASC"
	case OrderPriceDesc:
		return " ORDER BY price_min DESC NULLS LAST, id ASC"
	case OrderPopular:
		// No popularity signal in the schema yet; title is the documented stand-in.
		return " ORDER BY title ASC, id ASC"
	default:
		return " ORDER BY created_at DESC, id ASC"
	}
}

// isTransient reports whether err looks like a lost or unavailable connection
// rather than a query problem.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// Class 08 = connection exception, 57P01 = admin shutdown.
		return strings.HasPrefix(string(pqErr.Code), "08") || pqErr.Code == "57P01"
	}
	return false
}

// withRetry runs op and, on a transient failure, re-pings the pool (forcing it
// to re-establish connectivity) and retries exactly once. A second failure
// surfaces as ErrStorageUnavailable so the process keeps running.
func (s *PostgresStore) withRetry(ctx context.Context, op func() error) error {
	err := op()
	if err == nil || !isTransient(err) {
		return err
	}
	s.log.WithError(err).Warn("transient database failure, re-establishing connection")
	if pingErr := s.db.PingContext(ctx); pingErr != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, pingErr)
	}
	if err = op(); err != nil {
		if isTransient(err) {
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		return err
	}
	return nil
}

func (s *PostgresStore) CountProducts(ctx context.Context, filter ProductFilter) (int, error) {
	where, args := buildWhere(filter)
	query := "SELECT COUNT(*) FROM products" + where

	var total int
	err := s.withRetry(ctx, func() error {
		return s.db.QueryRowContext(ctx, query, args...).Scan(&total)
	})
	if err != nil {
		if errors.Is(err, ErrStorageUnavailable) {
			return 0, err
		}
		return 0, fmt.Errorf("store: CountProducts failed: %w", err)
	}
	return total, nil
}

func (s *PostgresStore) ListProducts(ctx context.Context, filter ProductFilter, order Ordering, limit, offset int) ([]domain.Product, error) {
	where, args := buildWhere(filter)
	query := fmt.Sprintf("SELECT %s FROM products%s%s LIMIT $%d OFFSET $%d",
		productColumns, where, orderClause(order), len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	var products []domain.Product
	err := s.withRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		products = make([]domain.Product, 0, limit)
		for rows.Next() {
			var p domain.Product
			if err := rows.Scan(
				&p.ID, &p.Title, &p.Description, &p.URL, &p.ImageURL,
				&p.PriceMin, &p.PriceMax, &p.Currency, &p.MerchantID,
				&p.Category, &p.Lang, &p.CreatedAt,
			); err != nil {
				return err
			}
			products = append(products, p)
		}
		return rows.Err()
	})
	if err != nil {
		if errors.Is(err, ErrStorageUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("store: ListProducts failed: %w", err)
	}
	return products, nil
}

func (s *PostgresStore) DistinctCategories(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT category
		FROM products
		WHERE category IS NOT NULL AND category <> ''
		ORDER BY 1;
	`
	var categories []string
	err := s.withRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		categories = []string{}
		for rows.Next() {
			var c string
			if err := rows.Scan(&c); err != nil {
				return err
			}
			categories = append(categories, c)
		}
		return rows.Err()
	})
	if err != nil {
		if errors.Is(err, ErrStorageUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("store: DistinctCategories failed: %w", err)
	}
	return categories, nil
}

// UpsertProduct inserts or overwrites a product keyed by id. created_at is
// set by the database on first insertion and never touched afterwards.
func (s *PostgresStore) UpsertProduct(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products
			(id, title, description, url, image_url, price_min, price_max, currency, merchant_id, category, lang)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			url = EXCLUDED.url,
			image_url = EXCLUDED.image_url,
			price_min = EXCLUDED.price_min,
			price_max = EXCLUDED.price_max,
			currency = EXCLUDED.currency,
			merchant_id = EXCLUDED.merchant_id,
			category = EXCLUDED.category,
			lang = EXCLUDED.lang;
	`
	err := s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query,
			product.ID, product.Title, product.Description, product.URL, product.ImageURL,
			product.PriceMin, product.PriceMax, product.Currency, product.MerchantID,
			product.Category, product.Lang,
		)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrStorageUnavailable) {
			return err
		}
		return fmt.Errorf("store: UpsertProduct failed for id %s: %w", product.ID, err)
	}
	return nil
}

// Ping checks connectivity, used by the health endpoint.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		s.log.WithError(err).Error("failed to close database connection pool")
		return err
	}
	s.log.Info("database connection pool closed")
	return nil
}
