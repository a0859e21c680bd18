package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "rate_limit:"

// Gate serializes access to a domain. Check reports how long the caller must
// wait before touching the domain; Set arms the gate for a cooldown window.
type Gate interface {
	Check(ctx context.Context, domain string) (time.Duration, error)
	Set(ctx context.Context, domain string, ttl time.Duration) error
}

// RedisGate backs the gate with a per-domain Redis key. The key's remaining
// TTL is the wait; an absent key means the domain is free.
type RedisGate struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisGate connects a gate to an existing Redis client.
func NewRedisGate(client *redis.Client, logger *slog.Logger) *RedisGate {
	return &RedisGate{
		client: client,
		logger: logger.With("component", "rate_gate"),
	}
}

// NewClient parses a redis:// URL and returns a connected client.
func NewClient(rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("op=redis.parse_url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Check returns the remaining cooldown for the domain, or zero when the
// domain may be scraped immediately.
func (g *RedisGate) Check(ctx context.Context, domain string) (time.Duration, error) {
	ttl, err := g.client.TTL(ctx, keyPrefix+domain).Result()
	if err != nil {
		return 0, fmt.Errorf("op=rate_gate.check domain=%s: %w", domain, err)
	}
	// go-redis reports -1 (no expiry) and -2 (no key) as negative durations.
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// Set arms the cooldown for the domain. A non-positive TTL clears it.
func (g *RedisGate) Set(ctx context.Context, domain string, ttl time.Duration) error {
	key := keyPrefix + domain
	if ttl <= 0 {
		if err := g.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("op=rate_gate.clear domain=%s: %w", domain, err)
		}
		return nil
	}
	if err := g.client.SetEx(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("op=rate_gate.set domain=%s: %w", domain, err)
	}
	g.logger.Debug("cooldown armed", "domain", domain, "ttl", ttl)
	return nil
}
