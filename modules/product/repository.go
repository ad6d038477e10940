// Package product implements catalog storage, validation and the product mono module.
package product

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/product-catalog/domain/product"
	"gorm.io/gorm"
)

// Repository provides access to product storage.
// It returns fresh copies; callers never share state with the database layer.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new product repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create saves a new product.
func (r *Repository) Create(ctx context.Context, p *product.Product) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// GetByID retrieves a product by its ID.
func (r *Repository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	var p product.Product
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	return &p, nil
}

// Update writes every mutable column of p, including cleared optional ones.
func (r *Repository) Update(ctx context.Context, p *product.Product) error {
	result := r.db.WithContext(ctx).
		Model(&product.Product{}).
		Where("id = ?", p.ID).
		Select("name", "price", "photo", "publish_at", "updated_at").
		Updates(p)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if result.RowsAffected == 0 {
		return product.ErrNotFound
	}
	return nil
}

// Delete permanently removes a product.
func (r *Repository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Unscoped().Delete(&product.Product{}, "id = ?", id)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if result.RowsAffected == 0 {
		return product.ErrNotFound
	}
	return nil
}

// ListPublished returns one page of products visible at now, oldest first.
func (r *Repository) ListPublished(ctx context.Context, page, pageSize int, now time.Time) (*product.Page[*product.Product], error) {
	now = now.UTC()
	query := r.db.WithContext(ctx).Model(&product.Product{}).Scopes(product.Published(now))

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	items := make([]*product.Product, 0, pageSize)
	err := r.db.WithContext(ctx).
		Scopes(product.Published(now)).
		Order("created_at ASC").
		Order("id ASC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	return &product.Page[*product.Product]{
		Items:    items,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	}, nil
}

// MarkPublished sets publish_at to now unless the product is already visible.
// The conditional update makes the read-modify-write a single statement.
// The returned bool reports whether the row changed.
func (r *Repository) MarkPublished(ctx context.Context, id string, now time.Time) (*product.Product, bool, error) {
	now = now.UTC()
	result := r.db.WithContext(ctx).
		Model(&product.Product{}).
		Where("id = ? AND (publish_at IS NULL OR publish_at > ?)", id, now).
		Updates(map[string]any{"publish_at": now, "updated_at": now})
	if err := result.Error; err != nil {
		return nil, false, fmt.Errorf("failed to publish product: %w", err)
	}

	p, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return p, result.RowsAffected > 0, nil
}
