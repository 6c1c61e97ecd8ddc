package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPersister stores the snapshot under a single Redis key, for
// deployments where the gateway's local disk is ephemeral.
type RedisPersister struct {
	client *redis.Client
	key    string
}

// NewRedisPersister creates a Redis-backed persister. prefix scopes the
// snapshot key so multiple caches can share one Redis instance.
func NewRedisPersister(client *redis.Client, prefix string) *RedisPersister {
	key := "snapshot"
	if prefix != "" {
		key = prefix + ":snapshot"
	}
	return &RedisPersister{client: client, key: key}
}

func (p *RedisPersister) Save(ctx context.Context, snapshot []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	// No TTL on the snapshot itself; entries carry their own expiry and
	// are purged at load time.
	if err := p.client.Set(ctx, p.key, snapshot, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (p *RedisPersister) Load(ctx context.Context) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, fmt.Errorf("context error: %w", err)
	}

	data, err := p.client.Get(ctx, p.key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}
	return data, true, nil
}

func (p *RedisPersister) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	return p.client.Del(ctx, p.key).Err()
}

// Ping checks the Redis connection so main can fail fast on a
// misconfigured address.
func (p *RedisPersister) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
