// Package dedup provides the short-lived keyed flags that keep the pipeline
// from refetching and rerendering the same URL. Flags are advisory: a missing
// flag means "fresh", and occasional duplicates are tolerated downstream.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// TTLURLSeen is the window during which a URL counts as recently handled.
	TTLURLSeen = 12 * time.Hour
	// TTLContentHash is the window during which the last observed body hash
	// for a URL is remembered.
	TTLContentHash = 30 * 24 * time.Hour

	connectTimeout = 2 * time.Second
)

// URLSeenKey flags a URL as recently fetched.
func URLSeenKey(urlHash string) string { return "url_hash:" + urlHash }

// ContentHashKey stores the last observed body hash for a URL.
func ContentHashKey(urlHash string) string { return "content_hash:" + urlHash }

// RenderSeenKey flags a URL as recently enqueued for render.
func RenderSeenKey(urlHash string) string { return "render:url_hash:" + urlHash }

// Cache is a TTL'd key/value store backed by Redis.
type Cache struct {
	client *redis.Client
}

// New connects to Redis using a DSN like redis://host:6379/0.
func New(dsn string) (*Cache, error) {
	opts, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse keyvalue dsn: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to keyvalue store: %w", err)
	}

	return &Cache{client: client}, nil
}

// NewFromClient wraps an existing Redis client.
func NewFromClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Get returns the value stored under key. The second return is false when
// the key is absent or expired.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return val, true, nil
}

// Set stores value under key with the given TTL.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying client.
func (c *Cache) Close() error {
	return c.client.Close()
}
