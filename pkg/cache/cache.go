// Package cache stores encoded placement results between runs.
//
// Placement is deterministic: the same composition and seed always produce
// the same positions. Results are therefore cached under a key derived from
// the composition content and the options that affect the output.
//
// Three backends implement [Cache]:
//   - [FileCache]: sharded JSON files, used by the CLI
//   - [RedisCache]: a shared Redis instance, used by API deployments
//   - [NullCache]: stores nothing, used with --no-cache
package cache

import (
	"context"
	"time"
)

// Default TTLs for cached entries.
const (
	TTLPlacement = 7 * 24 * time.Hour
	TTLTopology  = 30 * 24 * time.Hour
)

// Cache is a byte-oriented key/value store with expiry.
type Cache interface {
	// Get returns the value stored under key. The second result is false
	// on a miss; misses are not errors.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// NullCache stores nothing; every Get misses.
type NullCache struct{}

// NewNullCache returns a cache that disables caching.
func NewNullCache() Cache { return NullCache{} }

func (NullCache) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (NullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NullCache) Delete(context.Context, string) error                     { return nil }
func (NullCache) Close() error                                             { return nil }
