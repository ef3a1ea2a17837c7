package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every key written to Redis
const KeyPrefix = "options-monitor:"

// Redis is a Cache backed by a Redis server. Entries carry their own expiry
// next to the Redis key TTL so the expiry rule is the same as Memory's.
type Redis struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedis creates a Redis cache from an existing client
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, now: time.Now}
}

// Get returns the value for key unless it is missing or expired
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := r.client.Get(ctx, KeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cache entry: %w", err)
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false, fmt.Errorf("failed to decode cache entry: %w", err)
	}

	if e.expired(r.now()) {
		if err := r.client.Del(ctx, KeyPrefix+key).Err(); err != nil {
			return nil, false, fmt.Errorf("failed to evict cache entry: %w", err)
		}
		return nil, false, nil
	}
	return e.Data, true, nil
}

// Set stores data under key for ttl
func (r *Redis) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	raw, err := json.Marshal(entry{Data: data, Expiry: r.now().Add(ttl)})
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := r.client.Set(ctx, KeyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}
	return nil
}

// Ping checks the connection to the server
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client
func (r *Redis) Close() error {
	return r.client.Close()
}
