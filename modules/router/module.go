package router

import (
	"context"
	"fmt"
	"log"

	"github.com/example/product-catalog/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// Module subscribes the router to catalog events.
type Module struct {
	router *Router
}

var _ mono.Module = (*Module)(nil)
var _ mono.EventConsumerModule = (*Module)(nil)

func NewModule(router *Router) *Module {
	return &Module{router: router}
}

func (m *Module) Name() string {
	return "router"
}

func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.ProductCreatedV1, m.handleProductCreated, m); err != nil {
		return fmt.Errorf("failed to register ProductCreated consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.UserRegisteredV1, m.handleUserRegistered, m); err != nil {
		return fmt.Errorf("failed to register UserRegistered consumer: %w", err)
	}

	log.Printf("[router] Registered event consumers: ProductCreated, UserRegistered")
	return nil
}

func (m *Module) handleProductCreated(ctx context.Context, event events.ProductCreatedEvent, _ *mono.Msg) error {
	if _, err := m.router.OnProductCreated(ctx, event); err != nil {
		log.Printf("[router] Product %s: %v", event.ProductID, err)
		return err
	}
	return nil
}

func (m *Module) handleUserRegistered(ctx context.Context, event events.UserRegisteredEvent, _ *mono.Msg) error {
	if _, err := m.router.OnUserRegistered(ctx, event); err != nil {
		log.Printf("[router] User %s: %v", event.UserID, err)
		return err
	}
	return nil
}

func (m *Module) Start(_ context.Context) error {
	log.Println("[router] Module started - routing catalog events to notifications")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	log.Println("[router] Module stopped")
	return nil
}
