package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-booking-session/principal"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "booking"

var _ Store = (*Redis)(nil)

// Redis stores tokens as plain string keys with a native TTL.
type Redis struct {
	db    redis.UniversalClient
	scope string
}

// NewRedis creates a redis-backed store for scope.
func NewRedis(db redis.UniversalClient, scope string) (*Redis, error) {
	if db == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if scope == "" {
		return nil, ErrInvalidScope
	}
	return &Redis{db: db, scope: scope}, nil
}

// RedisProvider returns redis stores sharing one client.
func RedisProvider(db redis.UniversalClient) Provider {
	return func(scope string) (Store, error) {
		return NewRedis(db, scope)
	}
}

func (r *Redis) key(kind principal.Kind) string {
	return fmt.Sprintf("%s:%s:%s", redisKeyPrefix, r.scope, kind.StorageKey())
}

func (r *Redis) Save(ctx context.Context, kind principal.Kind, token string, ttl time.Duration) error {
	if !kind.Valid() {
		return ErrInvalidKind
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := r.db.Set(ctx, r.key(kind), token, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", kind, err)
	}
	return nil
}

func (r *Redis) Load(ctx context.Context, kind principal.Kind) (string, error) {
	token, err := r.db.Get(ctx, r.key(kind)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", kind, err)
	}
	return token, nil
}

func (r *Redis) Remove(ctx context.Context, kind principal.Kind) error {
	if err := r.db.Del(ctx, r.key(kind)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", kind, err)
	}
	return nil
}
