package api

import (
	"fmt"
	"net"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/storage/redis/v3"
)

// NewRedisRateStorage returns limiter storage backed by Redis at addr
// ("host:port"), so every instance shares the same counters.
func NewRedisRateStorage(addr string) (fiber.Storage, error) {
	host, port, err := parseRedisAddr(addr)
	if err != nil {
		return nil, err
	}
	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Database: 0,
		PoolSize: 10,
	}), nil
}

func parseRedisAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid redis address %q: %w", addr, err)
	}
	if host == "" {
		host = "127.0.0.1"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid redis port %q: %w", portStr, err)
	}
	return host, port, nil
}
