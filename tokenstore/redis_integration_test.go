package tokenstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-booking-session/principal"
	"github.com/jrsteele09/go-booking-session/tokenstore"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("integration test skipped: REDIS_URL is not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("integration test skipped: redis unreachable: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	client := redisClient(t)

	s, err := tokenstore.NewRedis(client, "test-"+uuid.NewString())
	require.NoError(t, err)

	_, err = s.Load(ctx, principal.KindUser)
	require.ErrorIs(t, err, tokenstore.ErrNotFound)

	require.NoError(t, s.Save(ctx, principal.KindUser, "T1", time.Minute))
	got, err := s.Load(ctx, principal.KindUser)
	require.NoError(t, err)
	require.Equal(t, "T1", got)

	require.NoError(t, s.Remove(ctx, principal.KindUser))
	_, err = s.Load(ctx, principal.KindUser)
	require.ErrorIs(t, err, tokenstore.ErrNotFound)
}

func TestNewRedisValidation(t *testing.T) {
	_, err := tokenstore.NewRedis(nil, "scope")
	require.Error(t, err)

	_, err = tokenstore.NewRedis(redis.NewClient(&redis.Options{}), "")
	require.ErrorIs(t, err, tokenstore.ErrInvalidScope)
}
