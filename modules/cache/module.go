package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-monolith/mono"
	"github.com/redis/go-redis/v9"
)

// Connect dials Redis and verifies the connection.
func Connect(ctx context.Context, cfg Config) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		PoolSize:     50,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Printf("[cache] Connected to Redis at %s (prefix: %s, TTL: %s)", cfg.RedisAddr, cfg.Prefix, cfg.TTL)
	return New(client, cfg.Prefix, cfg.TTL), nil
}

// Module ties a connected cache to the application lifecycle.
type Module struct {
	cache *Cache
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule wraps a connected cache.
func NewModule(c *Cache) *Module {
	return &Module{cache: c}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "cache"
}

// Cache returns the wrapped cache.
func (m *Module) Cache() *Cache {
	return m.cache
}

// Start starts the module.
func (m *Module) Start(_ context.Context) error {
	log.Println("[cache] Module started")
	return nil
}

// Stop closes the Redis connection.
func (m *Module) Stop(_ context.Context) error {
	if m.cache != nil {
		if err := m.cache.Close(); err != nil {
			log.Printf("[cache] Error closing Redis connection: %v", err)
			return fmt.Errorf("failed to close Redis connection: %w", err)
		}
	}
	log.Println("[cache] Module stopped")
	return nil
}

// Health reports Redis reachability along with hit statistics.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.cache == nil {
		return mono.HealthStatus{Healthy: false, Message: "cache not initialized"}
	}
	if err := m.cache.Ping(ctx); err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("redis ping failed: %v", err)}
	}
	stats := m.cache.GetStats()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"hits":     stats.Hits,
			"misses":   stats.Misses,
			"hit_rate": stats.HitRate,
		},
	}
}
