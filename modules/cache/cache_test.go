package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// Requires Redis on localhost:6379; tests skip otherwise.
const testRedisAddr = "localhost:6379"

func setupTestCache(t *testing.T, prefix string) *Cache {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: testRedisAddr})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available at %s: %v", testRedisAddr, err)
	}

	c := New(client, prefix, 5*time.Minute)
	_ = c.DeletePattern(ctx, "*")
	t.Cleanup(func() {
		_ = c.DeletePattern(context.Background(), "*")
		client.Close()
	})
	return c
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Prefix != "catalog:" {
		t.Errorf("Prefix = %q, want %q", cfg.Prefix, "catalog:")
	}
	if cfg.TTL != 5*time.Minute {
		t.Errorf("TTL = %v, want %v", cfg.TTL, 5*time.Minute)
	}
}

func TestCache_SetGetDelete(t *testing.T) {
	c := setupTestCache(t, "test:setget:")
	ctx := context.Background()

	type item struct {
		ID    string `json:"id"`
		Price int64  `json:"price"`
	}

	if err := c.Set(ctx, "product:1", item{ID: "1", Price: 12300}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var got item
	found, err := c.Get(ctx, "product:1", &got)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found || got.Price != 12300 {
		t.Fatalf("Get() = %+v, found=%v", got, found)
	}

	if err := c.Delete(ctx, "product:1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	found, _ = c.Get(ctx, "product:1", &got)
	if found {
		t.Error("expected miss after Delete")
	}

	stats := c.GetStats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Sets != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.HitRate != 50 {
		t.Errorf("HitRate = %v, want 50", stats.HitRate)
	}
}

func TestCache_SetWithTTL(t *testing.T) {
	c := setupTestCache(t, "test:ttl:")
	ctx := context.Background()

	if err := c.SetWithTTL(ctx, "expiring", "value", 100*time.Millisecond); err != nil {
		t.Fatalf("SetWithTTL() error = %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	var got string
	found, err := c.Get(ctx, "expiring", &got)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("expected key to expire")
	}
}

func TestCache_DeletePattern(t *testing.T) {
	c := setupTestCache(t, "test:pattern:")
	ctx := context.Background()

	for _, key := range []string{"product:1", "product:2", "user:1"} {
		if err := c.Set(ctx, key, key); err != nil {
			t.Fatalf("Set(%s) error = %v", key, err)
		}
	}

	if err := c.DeletePattern(ctx, "product:*"); err != nil {
		t.Fatalf("DeletePattern() error = %v", err)
	}

	var v string
	if found, _ := c.Get(ctx, "product:1", &v); found {
		t.Error("product:1 should be deleted")
	}
	if found, _ := c.Get(ctx, "user:1", &v); !found {
		t.Error("user:1 should survive")
	}
}

func TestModule_HealthWithoutCache(t *testing.T) {
	m := NewModule(nil)
	if m.Health(context.Background()).Healthy {
		t.Error("expected unhealthy module without a cache")
	}
	if err := m.Stop(context.Background()); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}
