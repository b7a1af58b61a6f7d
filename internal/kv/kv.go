// Package kv provides a small pluggable key/value abstraction; the node uses
// it for a periodically refreshed heartbeat key. It sits
// outside the floc core's own mutex-guarded state: the core never blocks on
// kv, which exists for state worth sharing or surviving a restart rather
// than for anything on the packet-forwarding path.
package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/abyssnet/flochub/internal/config"
)

// KV is a small key/value store with TTL support and a couple of list
// operations. Every method takes a context so a Redis-backed implementation
// can honor cancellation and deadlines; the in-memory implementation mostly
// ignores it.
type KV interface {
	Has(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Scan(ctx context.Context, cursor uint64, match string, count int64) ([]string, uint64, error)
	// RPush appends a value to a list stored under key. Returns the new length.
	RPush(ctx context.Context, key string, value []byte) (int64, error)
	// LDrain atomically returns all elements of the list and deletes the key.
	LDrain(ctx context.Context, key string) ([][]byte, error)
	Close() error
}

// MakeKV creates a new key-value store client, backed by Redis when enabled
// in configuration and by an in-process map otherwise.
func MakeKV(ctx context.Context, cfg *config.Config) (KV, error) {
	if cfg.Redis.Enabled {
		redisKV, err := makeRedisKV(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis kv: %w", err)
		}
		return redisKV, nil
	}

	return makeInMemoryKV(), nil
}
