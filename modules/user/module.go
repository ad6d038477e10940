// Package user handles accounts, admin lookups and access tokens.
package user

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	domain "github.com/example/product-catalog/domain/user"
	"github.com/example/product-catalog/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// AdminSeed describes the admin account created at startup.
type AdminSeed struct {
	Name     string
	Email    string
	Password string
}

// UserModule exposes register and login and emits UserRegistered.
type UserModule struct {
	service  *Service
	seed     *AdminSeed
	eventBus mono.EventBus
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*UserModule)(nil)
	_ mono.ServiceProviderModule = (*UserModule)(nil)
	_ mono.EventBusAwareModule   = (*UserModule)(nil)
	_ mono.EventEmitterModule    = (*UserModule)(nil)
)

// NewModule creates the module. A nil seed or one without a password skips seeding.
func NewModule(service *Service, seed *AdminSeed) *UserModule {
	m := &UserModule{service: service, seed: seed}
	service.OnRegistered(m.publishRegistered)
	return m
}

// Name returns the module name.
func (m *UserModule) Name() string {
	return "user"
}

// Service returns the user service.
func (m *UserModule) Service() *Service {
	return m.service
}

// SetEventBus receives the EventBus from the framework.
func (m *UserModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *UserModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.UserRegisteredV1.ToBase(),
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *UserModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "register", json.Unmarshal, json.Marshal, m.handleRegister,
	); err != nil {
		return fmt.Errorf("failed to register register service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "login", json.Unmarshal, json.Marshal, m.handleLogin,
	); err != nil {
		return fmt.Errorf("failed to register login service: %w", err)
	}

	log.Printf("[user] Registered services: services.user.{register,login}")
	return nil
}

// Start seeds the admin account.
func (m *UserModule) Start(ctx context.Context) error {
	if m.seed != nil && m.seed.Password != "" {
		if _, err := m.service.EnsureAdmin(ctx, m.seed.Name, m.seed.Email, m.seed.Password); err != nil {
			return fmt.Errorf("failed to seed admin: %w", err)
		}
	}
	log.Println("[user] Module started")
	return nil
}

// Stop stops the module.
func (m *UserModule) Stop(_ context.Context) error {
	log.Println("[user] Module stopped")
	return nil
}

func (m *UserModule) publishRegistered(_ context.Context, u *domain.User) error {
	if m.eventBus == nil {
		return nil
	}
	return events.UserRegisteredV1.Publish(m.eventBus, events.UserRegisteredEvent{
		UserID:       u.ID,
		Name:         u.Name,
		Email:        u.Email,
		IsAdmin:      u.IsAdmin,
		RegisteredAt: u.CreatedAt,
	}, nil)
}

func (m *UserModule) handleRegister(ctx context.Context, req RegisterRequest, _ *mono.Msg) (UserResponse, error) {
	u, err := m.service.Register(ctx, req.Name, req.Email, req.Password)
	if err != nil {
		return UserResponse{}, err
	}
	return ToUserResponse(u), nil
}

func (m *UserModule) handleLogin(ctx context.Context, req LoginRequest, _ *mono.Msg) (LoginResponse, error) {
	s, err := m.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		return LoginResponse{}, err
	}
	return ToLoginResponse(s), nil
}
