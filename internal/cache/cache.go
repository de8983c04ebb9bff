// Package cache provides a Redis-backed cache for raw CRM contact
// fetches, keeping repeated scoring runs off the contacts API.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/lead-intelligence/internal/crm"
)

// ErrMiss is returned when a key is absent from the cache.
var ErrMiss = errors.New("cache: miss")

const keyPrefix = "leadintel:"

// ContactCache stores contact batches in Redis with a TTL.
type ContactCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewContactCache creates a cache over the given Redis client.
func NewContactCache(client *redis.Client, ttl time.Duration) *ContactCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ContactCache{client: client, ttl: ttl}
}

// Get returns the cached contact batch for key, or ErrMiss.
func (c *ContactCache) Get(ctx context.Context, key string) ([]crm.Contact, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("reading cache key %s: %w", key, err)
	}

	var contacts []crm.Contact
	if err := json.Unmarshal(data, &contacts); err != nil {
		return nil, fmt.Errorf("decoding cached contacts: %w", err)
	}
	return contacts, nil
}

// Set stores a contact batch under key with the configured TTL.
func (c *ContactCache) Set(ctx context.Context, key string, contacts []crm.Contact) error {
	data, err := json.Marshal(contacts)
	if err != nil {
		return fmt.Errorf("encoding contacts for cache: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("writing cache key %s: %w", key, err)
	}
	return nil
}

// Invalidate removes a cached batch, forcing the next fetch to hit the CRM.
func (c *ContactCache) Invalidate(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("invalidating cache key %s: %w", key, err)
	}
	return nil
}
