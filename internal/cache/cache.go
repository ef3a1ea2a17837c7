// Package cache provides the time-bounded key-value store that short-circuits
// data source fetches.
package cache

import (
	"context"
	"time"
)

// DefaultTTL matches the refresh cadence of the quote data
const DefaultTTL = 15 * time.Minute

// Cache stores opaque values until an absolute expiry. An expired entry is
// reported as absent and evicted when it is read.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// entry is the stored form of a value: the data plus its absolute expiry
type entry struct {
	Data   []byte    `json:"data"`
	Expiry time.Time `json:"expiry"`
}

func (e entry) expired(now time.Time) bool {
	return now.After(e.Expiry)
}
