package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseRedisAddr(t *testing.T) {
	tests := []struct {
		addr     string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{addr: "localhost:6379", wantHost: "localhost", wantPort: 6379},
		{addr: ":6380", wantHost: "127.0.0.1", wantPort: 6380},
		{addr: "redis", wantErr: true},
		{addr: "redis:abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			host, port, err := parseRedisAddr(tt.addr)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseRedisAddr(%q) expected error", tt.addr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseRedisAddr(%q) error = %v", tt.addr, err)
			}
			if host != tt.wantHost || port != tt.wantPort {
				t.Errorf("parseRedisAddr(%q) = %s:%d, want %s:%d", tt.addr, host, port, tt.wantHost, tt.wantPort)
			}
		})
	}
}

func TestRateLimiter_InMemory(t *testing.T) {
	env := newTestEnv(t)
	cfg := DefaultConfig()
	cfg.RateLimit = 2
	cfg.RateWindow = time.Minute
	m := NewModule(cfg, env.module.services)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := m.App().Test(httptest.NewRequest(http.MethodGet, "/api/v1/products", nil), -1)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("status codes = %v, want [200 200 429]", codes)
	}
}
