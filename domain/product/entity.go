package product

import (
	"time"

	"github.com/example/product-catalog/domain/money"
	"gorm.io/gorm"
)

// Product represents a catalog product.
// IDs are UUIDv7 strings, so ordering by ID follows creation order.
type Product struct {
	ID        string      `gorm:"primarykey;size:36" json:"id"`
	Name      string      `gorm:"size:255;not null" json:"name"`
	Price     money.Money `gorm:"not null" json:"-"`
	Photo     *string     `gorm:"size:255" json:"photo,omitempty"`
	PublishAt *time.Time  `gorm:"index" json:"publish_at,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// TableName returns the table name for Product model.
func (Product) TableName() string {
	return "products"
}

// IsPublished reports whether the product is visible at the given instant.
func (p *Product) IsPublished(now time.Time) bool {
	return p.PublishAt != nil && !p.PublishAt.After(now)
}

// Published is a GORM scope restricting a query to products visible at now.
func Published(now time.Time) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("publish_at IS NOT NULL AND publish_at <= ?", now)
	}
}

// Page is one page of a paginated listing.
type Page[T any] struct {
	Items    []T   `json:"items"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
}

// LastPage returns the number of the last non-empty page (at least 1).
func (p Page[T]) LastPage() int {
	if p.PageSize <= 0 || p.Total == 0 {
		return 1
	}
	return int((p.Total + int64(p.PageSize) - 1) / int64(p.PageSize))
}
