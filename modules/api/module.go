// Package api serves the catalog over HTTP and websocket.
package api

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/example/product-catalog/domain/job"
	"github.com/example/product-catalog/modules/channel"
	"github.com/example/product-catalog/modules/photo"
	"github.com/example/product-catalog/modules/product"
	"github.com/example/product-catalog/modules/publisher"
	"github.com/example/product-catalog/modules/user"
	"github.com/go-monolith/mono"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Config holds HTTP server settings.
type Config struct {
	Port          int
	SpecFilePath  string
	MaxUploadSize int
	// RateLimit is the number of API requests allowed per client per RateWindow. Zero disables limiting.
	RateLimit  int
	RateWindow time.Duration
	// RateStorage shares limiter counters between instances; nil keeps them in memory.
	RateStorage fiber.Storage
}

// DefaultConfig returns the default HTTP settings.
func DefaultConfig() Config {
	return Config{
		Port:          3000,
		SpecFilePath:  "files/product-specification.pdf",
		MaxUploadSize: 10 * 1024 * 1024,
		RateLimit:     120,
		RateWindow:    time.Minute,
	}
}

// Photos stores and loads product photos.
type Photos interface {
	Store(ctx context.Context, filename string, data []byte, contentType string) (string, error)
	Open(ctx context.Context, filename string) (*photo.Photo, error)
}

// Services are the in-process collaborators behind the HTTP handlers.
type Services struct {
	Products      *product.Service
	Publisher     *publisher.Scheduler
	Users         *user.Service
	Notifications *channel.Module
	Photos        Photos
	Jobs          job.Store
}

// APIModule is the HTTP API module.
type APIModule struct {
	app      *fiber.App
	config   Config
	services Services
	now      func() time.Time
}

// Compile-time interface checks.
var _ mono.Module = (*APIModule)(nil)
var _ mono.HealthCheckableModule = (*APIModule)(nil)

// NewModule creates the module and its routes. The server starts listening in Start.
func NewModule(config Config, services Services) *APIModule {
	m := &APIModule{
		config:   config,
		services: services,
		now:      func() time.Time { return time.Now().UTC() },
	}

	bodyLimit := config.MaxUploadSize
	if bodyLimit <= 0 {
		bodyLimit = DefaultConfig().MaxUploadSize
	}
	m.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler,
		BodyLimit:             bodyLimit,
	})

	m.app.Use(recover.New())
	m.app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	m.app.Use(cors.New())

	m.setupRoutes()
	return m
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// App exposes the Fiber app, mainly for app.Test in tests.
func (m *APIModule) App() *fiber.App {
	return m.app
}

// Start starts the HTTP server in a goroutine.
func (m *APIModule) Start(_ context.Context) error {
	addr := fmt.Sprintf(":%d", m.config.Port)
	go func() {
		if err := m.app.Listen(addr); err != nil {
			log.Printf("[api] HTTP server error: %v", err)
		}
	}()

	log.Printf("[api] HTTP server started on %s", addr)
	return nil
}

// Stop shuts down the Fiber HTTP server.
func (m *APIModule) Stop(_ context.Context) error {
	log.Println("[api] Shutting down HTTP server...")
	return m.app.Shutdown()
}

// Health returns the health status of the module.
func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"port": m.config.Port,
		},
	}
}

// setupRoutes configures all API routes.
func (m *APIModule) setupRoutes() {
	tokens := m.services.Users.Tokens()

	m.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"module": "api",
		})
	})
	m.app.Get("/download", m.downloadSpecification)

	m.app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		claims, err := tokens.Validate(c.Query("token"))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Invalid or expired token",
			})
		}
		c.Locals(ClaimsContextKey, claims)
		return c.Next()
	})
	m.app.Get("/ws/notifications", websocket.New(m.handleNotificationsSocket))

	v1 := m.app.Group("/api/v1")
	if m.config.RateLimit > 0 {
		v1.Use(m.rateLimiter())
	}

	v1.Post("/register", m.register)
	v1.Post("/login", m.login)

	auth := AuthMiddleware(tokens)
	admin := RequireAdmin()

	products := v1.Group("/products")
	products.Get("/", m.listProducts)
	products.Post("/", auth, admin, m.createProduct)
	products.Get("/:id", OptionalAuth(tokens), m.getProduct)
	products.Put("/:id", auth, admin, m.updateProduct)
	products.Delete("/:id", auth, admin, m.deleteProduct)
	products.Post("/:id/publish", auth, admin, m.publishProduct)
	products.Get("/:id/photo", OptionalAuth(tokens), m.getProductPhoto)

	v1.Get("/notifications", auth, m.listNotifications)
	v1.Post("/notifications/:id/read", auth, m.markNotificationRead)
	v1.Get("/jobs/:id", auth, admin, m.getJob)
}

func (m *APIModule) rateLimiter() fiber.Handler {
	window := m.config.RateWindow
	if window <= 0 {
		window = time.Minute
	}
	return limiter.New(limiter.Config{
		Max:        m.config.RateLimit,
		Expiration: window,
		Storage:    m.config.RateStorage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{
				Error:   "rate_limited",
				Message: "Too many requests",
			})
		},
	})
}
