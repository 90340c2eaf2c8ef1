package tokens

import (
	"context"
	"errors"
	"time"

	"github.com/fluxorio/todoapi/pkg/core"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisBlacklist caches revocations in Redis in front of a durable Blacklist.
// Revocations are written through; lookups hit Redis first and fall back to the
// durable store on a miss or a Redis failure. Only positive results are cached.
type RedisBlacklist struct {
	next   Blacklist
	client redis.Cmdable
	prefix string
	logger core.Logger
	now    func() time.Time
}

// NewRedisBlacklist wraps next with a Redis cache
func NewRedisBlacklist(next Blacklist, client redis.Cmdable, logger core.Logger) *RedisBlacklist {
	if logger == nil {
		logger = core.NewNopLogger()
	}
	return &RedisBlacklist{
		next:   next,
		client: client,
		prefix: "todoapi:blacklist:",
		logger: logger,
		now:    time.Now,
	}
}

func (b *RedisBlacklist) key(jti string) string {
	return b.prefix + jti
}

func (b *RedisBlacklist) Revoke(ctx context.Context, jti string, userID uuid.UUID, expiresAt time.Time) error {
	err := b.next.Revoke(ctx, jti, userID, expiresAt)
	if err != nil && !errors.Is(err, ErrAlreadyRevoked) {
		return err
	}
	b.remember(ctx, jti, expiresAt)
	return err
}

func (b *RedisBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := b.client.Exists(ctx, b.key(jti)).Result()
	if err == nil && n > 0 {
		return true, nil
	}
	if err != nil {
		b.logger.WithContext(ctx).Warnf("blacklist cache lookup failed, using database: %v", err)
	}

	revoked, err := b.next.IsRevoked(ctx, jti)
	if err != nil {
		return false, err
	}
	if revoked {
		// expiry unknown here; the refresh lifetime bounds how long the entry matters
		b.remember(ctx, jti, time.Time{})
	}
	return revoked, nil
}

func (b *RedisBlacklist) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	// cache entries expire on their own TTL
	return b.next.PurgeExpired(ctx, before)
}

func (b *RedisBlacklist) remember(ctx context.Context, jti string, expiresAt time.Time) {
	ttl := 24 * time.Hour
	if !expiresAt.IsZero() {
		ttl = expiresAt.Sub(b.now())
	}
	if ttl <= 0 {
		return
	}
	if err := b.client.Set(ctx, b.key(jti), "1", ttl).Err(); err != nil {
		b.logger.WithContext(ctx).Warnf("blacklist cache write failed: %v", err)
	}
}
