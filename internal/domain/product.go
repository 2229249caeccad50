package domain

import "time"

// Product represents one catalog item.
// The json tags correspond to the fields expected in API responses and in the
// catalog snapshot file consumed by the in-memory store.
type Product struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	ImageURL    *string  `json:"image_url,omitempty"` // Pointer for nullable fields
	PriceMin    *float64 `json:"price_min"`           // Nullable: unpriced items sort last
	PriceMax    *float64 `json:"price_max,omitempty"`
	Currency    string   `json:"currency"`
	MerchantID  string   `json:"merchant_id"`
	Category    *string  `json:"category,omitempty"` // nil/empty means uncategorized
	Lang        string   `json:"lang"`
	// Brand is carried by some upstream feeds. It participates in in-memory
	// text search only; there is no brand column in the products table.
	Brand     *string   `json:"brand,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
