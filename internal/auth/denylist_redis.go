package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const denylistKeyPrefix = "auth:denylist:"

// RedisDenylist keeps revoked jti digests in Redis until the token would have expired.
type RedisDenylist struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedisDenylist(client redis.UniversalClient) *RedisDenylist {
	return &RedisDenylist{client: client, now: time.Now}
}

func (d *RedisDenylist) Revoke(ctx context.Context, key string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(d.now())
	if ttl <= 0 {
		return nil
	}

	if err := d.client.Set(ctx, denylistKeyPrefix+key, 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set denylist entry: %w", ErrStoreUnavailable, err)
	}
	return nil
}

func (d *RedisDenylist) IsRevoked(ctx context.Context, key string) (bool, error) {
	n, err := d.client.Exists(ctx, denylistKeyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: check denylist entry: %w", ErrStoreUnavailable, err)
	}
	return n > 0, nil
}
