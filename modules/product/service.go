package product

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/example/product-catalog/domain/money"
	"github.com/example/product-catalog/domain/product"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// DefaultPageSize is the number of products per listing page.
const DefaultPageSize = 10

// MaxNameLength bounds product names to the column size.
const MaxNameLength = 255

// Cache is the subset of the Redis cache used for product reads.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
}

// CreatedHook is invoked after a product has been persisted.
type CreatedHook func(ctx context.Context, p *product.Product) error

// CreateInput carries raw, unvalidated creation fields.
type CreateInput struct {
	Name      string
	Price     string
	Photo     *string
	PublishAt *time.Time
}

// UpdateInput carries a partial update. Nil fields are left unchanged.
type UpdateInput struct {
	Name           *string
	Price          *string
	Photo          *string
	PublishAt      *time.Time
	ClearPublishAt bool
}

// Service applies validation, caching and event emission around the repository.
type Service struct {
	repo      *Repository
	cache     Cache
	group     singleflight.Group
	onCreated CreatedHook
	now       func() time.Time
}

// NewService creates a product service. cache may be nil.
func NewService(repo *Repository, cache Cache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// OnCreated registers the hook fired after every successful Create.
func (s *Service) OnCreated(hook CreatedHook) {
	s.onCreated = hook
}

func cacheKey(id string) string {
	return "product:" + id
}

// ValidateCreate returns the validation error Create would return for in,
// without touching storage.
func (s *Service) ValidateCreate(in CreateInput) error {
	_, _, _, err := checkCreate(in)
	return err
}

// ValidateUpdate checks the fields present in in.
func (s *Service) ValidateUpdate(in UpdateInput) error {
	verr := product.NewValidationError()
	if in.Name != nil {
		validateName(verr, *in.Name)
	}
	if in.Price != nil {
		validatePrice(verr, *in.Price)
	}
	validatePhoto(verr, in.Photo)
	return verr.Err()
}

func checkCreate(in CreateInput) (string, money.Money, *string, error) {
	verr := product.NewValidationError()
	name := validateName(verr, in.Name)
	price := validatePrice(verr, in.Price)
	photo := validatePhoto(verr, in.Photo)
	return name, price, photo, verr.Err()
}

// Create validates input, normalizes the price to cents and persists a new product.
func (s *Service) Create(ctx context.Context, in CreateInput) (*product.Product, error) {
	name, price, photo, err := checkCreate(in)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate product id: %w", err)
	}

	now := s.now()
	p := &product.Product{
		ID:        id.String(),
		Name:      name,
		Price:     price,
		Photo:     photo,
		PublishAt: utc(in.PublishAt),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	if s.onCreated != nil {
		if err := s.onCreated(ctx, p); err != nil {
			log.Printf("[product] Failed to emit ProductCreated for %s: %v", p.ID, err)
		}
	}
	return p, nil
}

// Update applies a partial update, re-normalizing the price when present.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*product.Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	verr := product.NewValidationError()
	if in.Name != nil {
		p.Name = validateName(verr, *in.Name)
	}
	if in.Price != nil {
		p.Price = validatePrice(verr, *in.Price)
	}
	if in.Photo != nil {
		p.Photo = validatePhoto(verr, in.Photo)
	}
	switch {
	case in.ClearPublishAt:
		p.PublishAt = nil
	case in.PublishAt != nil:
		p.PublishAt = utc(in.PublishAt)
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	p.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	s.Invalidate(ctx, id)
	return p, nil
}

// Delete removes a product permanently.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.Invalidate(ctx, id)
	return nil
}

// GetByID returns a product, reading through the cache when one is configured.
// Concurrent misses for the same id share one database read.
func (s *Service) GetByID(ctx context.Context, id string) (*product.Product, error) {
	if s.cache == nil {
		return s.repo.GetByID(ctx, id)
	}

	var cached cachedProduct
	if found, err := s.cache.Get(ctx, cacheKey(id), &cached); err != nil {
		log.Printf("[product] Cache read failed for %s: %v", id, err)
	} else if found {
		if p, err := cached.toProduct(); err == nil {
			return p, nil
		}
	}

	v, err, _ := s.group.Do(id, func() (any, error) {
		p, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, cacheKey(id), newCachedProduct(p)); err != nil {
			log.Printf("[product] Cache write failed for %s: %v", id, err)
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	// Each caller gets its own copy of the shared result.
	p := *v.(*product.Product)
	return &p, nil
}

// GetVisible returns a product only if it is published at the current time.
func (s *Service) GetVisible(ctx context.Context, id string) (*product.Product, error) {
	p, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsPublished(s.now()) {
		return nil, product.ErrNotFound
	}
	return p, nil
}

// ListPublished returns one page of visible products. page starts at 1.
func (s *Service) ListPublished(ctx context.Context, page, pageSize int) (*product.Page[*product.Product], error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return s.repo.ListPublished(ctx, page, pageSize, s.now())
}

// MarkPublished makes the product visible now, reporting whether anything changed.
func (s *Service) MarkPublished(ctx context.Context, id string) (*product.Product, bool, error) {
	p, changed, err := s.repo.MarkPublished(ctx, id, s.now())
	if err != nil {
		return nil, false, err
	}
	if changed {
		s.Invalidate(ctx, id)
	}
	return p, changed, nil
}

// Invalidate drops the cached copy of a product.
func (s *Service) Invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cacheKey(id)); err != nil {
		log.Printf("[product] Cache invalidation failed for %s: %v", id, err)
	}
}

func validateName(verr *product.ValidationError, raw string) string {
	name := strings.TrimSpace(raw)
	switch {
	case name == "":
		verr.Add("name", "name is required")
	case len(name) > MaxNameLength:
		verr.Add("name", fmt.Sprintf("name must be at most %d characters", MaxNameLength))
	}
	return name
}

func validatePrice(verr *product.ValidationError, raw string) money.Money {
	price, err := money.FromDecimal(raw)
	if err != nil {
		verr.Add("price", "price must be a non-negative amount with at most 2 decimals")
	}
	return price
}

func validatePhoto(verr *product.ValidationError, raw *string) *string {
	if raw == nil {
		return nil
	}
	photo := strings.TrimSpace(*raw)
	if photo == "" {
		return nil
	}
	if strings.ContainsAny(photo, `/\`) {
		verr.Add("photo", "photo must be a plain filename")
	}
	return &photo
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// cachedProduct is the cache representation; Money has no exported fields.
type cachedProduct struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	PriceCents int64      `json:"price_cents"`
	Photo      *string    `json:"photo,omitempty"`
	PublishAt  *time.Time `json:"publish_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func newCachedProduct(p *product.Product) cachedProduct {
	return cachedProduct{
		ID:         p.ID,
		Name:       p.Name,
		PriceCents: p.Price.Cents(),
		Photo:      p.Photo,
		PublishAt:  p.PublishAt,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

func (c cachedProduct) toProduct() (*product.Product, error) {
	price, err := money.FromCents(c.PriceCents)
	if err != nil {
		return nil, errors.Join(errors.New("corrupt cached product"), err)
	}
	return &product.Product{
		ID:        c.ID,
		Name:      c.Name,
		Price:     price,
		Photo:     c.Photo,
		PublishAt: c.PublishAt,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}, nil
}
