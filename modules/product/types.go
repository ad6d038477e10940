package product

import (
	"time"

	"github.com/example/product-catalog/domain/product"
)

// CreateProductRequest is the request for creating a product.
// Price is a decimal string in major units, e.g. "123.45".
type CreateProductRequest struct {
	Name      string     `json:"name"`
	Price     string     `json:"price"`
	Photo     *string    `json:"photo,omitempty"`
	PublishAt *time.Time `json:"publish_at,omitempty"`
}

// GetProductRequest is the request for getting a product.
type GetProductRequest struct {
	ID string `json:"id"`
	// IncludeDrafts lets admins read unpublished products.
	IncludeDrafts bool `json:"include_drafts,omitempty"`
}

// ProductResponse represents a product in responses. Price is in cents.
type ProductResponse struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Price          int64      `json:"price"`
	PriceFormatted string     `json:"price_formatted"`
	Photo          *string    `json:"photo,omitempty"`
	PublishAt      *time.Time `json:"publish_at,omitempty"`
	Published      bool       `json:"published"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ListProductsRequest is the request for listing published products.
type ListProductsRequest struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// ListProductsResponse is one page of published products.
type ListProductsResponse struct {
	Products []ProductResponse `json:"products"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	Total    int64             `json:"total"`
	LastPage int               `json:"last_page"`
}

// UpdateProductRequest is the request for updating a product.
type UpdateProductRequest struct {
	ID             string     `json:"id"`
	Name           *string    `json:"name,omitempty"`
	Price          *string    `json:"price,omitempty"`
	Photo          *string    `json:"photo,omitempty"`
	PublishAt      *time.Time `json:"publish_at,omitempty"`
	ClearPublishAt bool       `json:"clear_publish_at,omitempty"`
}

// DeleteProductRequest is the request for deleting a product.
type DeleteProductRequest struct {
	ID string `json:"id"`
}

// DeleteProductResponse is the response after deleting a product.
type DeleteProductResponse struct {
	Success bool `json:"success"`
}

// PublishProductRequest is the request for publishing a product now.
type PublishProductRequest struct {
	ID string `json:"id"`
}

// PublishProductResponse reports the outcome of a publish.
type PublishProductResponse struct {
	Product ProductResponse `json:"product"`
	Changed bool            `json:"changed"`
}

// ToResponse converts a product entity into its response form.
func ToResponse(p *product.Product, now time.Time) ProductResponse {
	created := p.CreatedAt
	return ProductResponse{
		ID:             p.ID,
		Name:           p.Name,
		Price:          p.Price.Cents(),
		PriceFormatted: p.Price.ToDecimalString(),
		Photo:          p.Photo,
		PublishAt:      p.PublishAt,
		Published:      p.IsPublished(now),
		CreatedAt:      &created,
		UpdatedAt:      p.UpdatedAt,
	}
}

// ToListResponse converts a page of products.
func ToListResponse(page *product.Page[*product.Product], now time.Time) ListProductsResponse {
	resp := ListProductsResponse{
		Products: make([]ProductResponse, 0, len(page.Items)),
		Page:     page.Page,
		PageSize: page.PageSize,
		Total:    page.Total,
		LastPage: page.LastPage(),
	}
	for _, p := range page.Items {
		resp.Products = append(resp.Products, ToResponse(p, now))
	}
	return resp
}
