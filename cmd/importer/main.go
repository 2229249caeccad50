// Command importer is a one-shot batch that fetches the DummyJSON catalog
// and upserts it into the products table. It is invoked manually; it is the
// only writer the catalog has.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"lyvo-backend/internal/domain"
	"lyvo-backend/internal/store"
)

const (
	sourceURL  = "https://dummyjson.com/products?limit=100"
	merchantID = "lyvo"
)

type importerConfig struct {
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
}

// dummyProduct mirrors the upstream DummyJSON record shape.
type dummyProduct struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Thumbnail   string   `json:"thumbnail"`
	Images      []string `json:"images"`
	Category    string   `json:"category"`
	Brand       string   `json:"brand"`
}

func fetchProducts(ctx context.Context) ([]dummyProduct, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: 30 * time.Second}
	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", sourceURL, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %d", sourceURL, res.StatusCode)
	}

	var payload struct {
		Products []dummyProduct `json:"products"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding catalog response: %w", err)
	}
	return payload.Products, nil
}

func normalize(p dummyProduct) *domain.Product {
	product := &domain.Product{
		ID:          "dummy-" + strconv.Itoa(p.ID),
		Title:       p.Title,
		Description: p.Description,
		URL:         "https://dummyjson.com/products/" + strconv.Itoa(p.ID),
		Currency:    "EUR",
		MerchantID:  merchantID,
		Lang:        "en",
	}
	price := p.Price
	product.PriceMin = &price
	if p.Thumbnail != "" {
		image := p.Thumbnail
		product.ImageURL = &image
	} else if len(p.Images) > 0 {
		image := p.Images[0]
		product.ImageURL = &image
	}
	if p.Category != "" {
		category := p.Category
		product.Category = &category
	}
	if p.Brand != "" {
		brand := p.Brand
		product.Brand = &brand
	}
	return product
}

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("no .env file found, relying on system environment")
	}

	var cfg importerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logrus.WithError(err).Fatal("error loading configuration")
	}

	logger := logrus.New()
	ctx := context.Background()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize database connection")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		logger.WithError(err).Fatal("failed to ping database")
	}

	productStore := store.NewPostgresStore(db, logger)

	before, err := productStore.CountProducts(ctx, store.ProductFilter{})
	if err != nil {
		logger.WithError(err).Fatal("failed to count products before import")
	}
	logger.WithField("count", before).Info("products before import")

	records, err := fetchProducts(ctx)
	if err != nil {
		logger.WithError(err).Fatal("failed to fetch source catalog")
	}

	for _, record := range records {
		if err := productStore.UpsertProduct(ctx, normalize(record)); err != nil {
			logger.WithError(err).WithField("id", record.ID).Fatal("upsert failed")
		}
	}

	after, err := productStore.CountProducts(ctx, store.ProductFilter{})
	if err != nil {
		logger.WithError(err).Fatal("failed to count products after import")
	}
	logger.WithFields(logrus.Fields{
		"imported": len(records),
		"total":    after,
	}).Info("import complete")
}
