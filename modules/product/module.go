package product

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/example/product-catalog/domain/product"
	"github.com/example/product-catalog/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ProductModule exposes catalog operations as request-reply services and
// emits ProductCreated after each creation.
type ProductModule struct {
	service  *Service
	eventBus mono.EventBus
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*ProductModule)(nil)
	_ mono.ServiceProviderModule = (*ProductModule)(nil)
	_ mono.EventBusAwareModule   = (*ProductModule)(nil)
	_ mono.EventEmitterModule    = (*ProductModule)(nil)
)

// NewModule creates a new ProductModule around service.
func NewModule(service *Service) *ProductModule {
	m := &ProductModule{service: service}
	service.OnCreated(m.publishCreated)
	return m
}

// Name returns the module name.
func (m *ProductModule) Name() string {
	return "product"
}

// Service returns the product service.
func (m *ProductModule) Service() *Service {
	return m.service
}

// SetEventBus receives the EventBus from the framework.
func (m *ProductModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *ProductModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.ProductCreatedV1.ToBase(),
	}
}

// RegisterServices registers request-reply services in the service container.
// Names are prefixed by the framework, so "create" becomes "services.product.create".
func (m *ProductModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "create", json.Unmarshal, json.Marshal, m.createProduct,
	); err != nil {
		return fmt.Errorf("failed to register create service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "get", json.Unmarshal, json.Marshal, m.getProduct,
	); err != nil {
		return fmt.Errorf("failed to register get service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "list", json.Unmarshal, json.Marshal, m.listProducts,
	); err != nil {
		return fmt.Errorf("failed to register list service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "update", json.Unmarshal, json.Marshal, m.updateProduct,
	); err != nil {
		return fmt.Errorf("failed to register update service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "delete", json.Unmarshal, json.Marshal, m.deleteProduct,
	); err != nil {
		return fmt.Errorf("failed to register delete service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "publish", json.Unmarshal, json.Marshal, m.publishProduct,
	); err != nil {
		return fmt.Errorf("failed to register publish service: %w", err)
	}

	log.Printf("[product] Registered services: services.product.{create,get,list,update,delete,publish}")
	return nil
}

// Start starts the module.
func (m *ProductModule) Start(_ context.Context) error {
	log.Println("[product] Module started")
	return nil
}

// Stop stops the module. The database connection is owned by the database module.
func (m *ProductModule) Stop(_ context.Context) error {
	log.Println("[product] Module stopped")
	return nil
}

func (m *ProductModule) publishCreated(_ context.Context, p *product.Product) error {
	if m.eventBus == nil {
		return nil
	}
	event := events.ProductCreatedEvent{
		ProductID:      p.ID,
		Name:           p.Name,
		PriceCents:     p.Price.Cents(),
		PriceFormatted: p.Price.ToDecimalString(),
		PublishAt:      p.PublishAt,
		CreatedAt:      p.CreatedAt,
	}
	if p.Photo != nil {
		event.Photo = *p.Photo
	}
	return events.ProductCreatedV1.Publish(m.eventBus, event, nil)
}

func (m *ProductModule) createProduct(ctx context.Context, req CreateProductRequest, _ *mono.Msg) (ProductResponse, error) {
	p, err := m.service.Create(ctx, CreateInput{
		Name:      req.Name,
		Price:     req.Price,
		Photo:     req.Photo,
		PublishAt: req.PublishAt,
	})
	if err != nil {
		return ProductResponse{}, err
	}
	return ToResponse(p, time.Now()), nil
}

func (m *ProductModule) getProduct(ctx context.Context, req GetProductRequest, _ *mono.Msg) (ProductResponse, error) {
	if req.ID == "" {
		return ProductResponse{}, fmt.Errorf("id is required")
	}

	var (
		p   *product.Product
		err error
	)
	if req.IncludeDrafts {
		p, err = m.service.GetByID(ctx, req.ID)
	} else {
		p, err = m.service.GetVisible(ctx, req.ID)
	}
	if err != nil {
		return ProductResponse{}, err
	}
	return ToResponse(p, time.Now()), nil
}

func (m *ProductModule) listProducts(ctx context.Context, req ListProductsRequest, _ *mono.Msg) (ListProductsResponse, error) {
	page, err := m.service.ListPublished(ctx, req.Page, req.PageSize)
	if err != nil {
		return ListProductsResponse{}, err
	}
	return ToListResponse(page, time.Now()), nil
}

func (m *ProductModule) updateProduct(ctx context.Context, req UpdateProductRequest, _ *mono.Msg) (ProductResponse, error) {
	if req.ID == "" {
		return ProductResponse{}, fmt.Errorf("id is required")
	}

	p, err := m.service.Update(ctx, req.ID, UpdateInput{
		Name:           req.Name,
		Price:          req.Price,
		Photo:          req.Photo,
		PublishAt:      req.PublishAt,
		ClearPublishAt: req.ClearPublishAt,
	})
	if err != nil {
		return ProductResponse{}, err
	}
	return ToResponse(p, time.Now()), nil
}

func (m *ProductModule) deleteProduct(ctx context.Context, req DeleteProductRequest, _ *mono.Msg) (DeleteProductResponse, error) {
	if req.ID == "" {
		return DeleteProductResponse{}, fmt.Errorf("id is required")
	}
	if err := m.service.Delete(ctx, req.ID); err != nil {
		return DeleteProductResponse{}, err
	}
	return DeleteProductResponse{Success: true}, nil
}

func (m *ProductModule) publishProduct(ctx context.Context, req PublishProductRequest, _ *mono.Msg) (PublishProductResponse, error) {
	if req.ID == "" {
		return PublishProductResponse{}, fmt.Errorf("id is required")
	}
	p, changed, err := m.service.MarkPublished(ctx, req.ID)
	if err != nil {
		return PublishProductResponse{}, err
	}
	return PublishProductResponse{Product: ToResponse(p, time.Now()), Changed: changed}, nil
}
