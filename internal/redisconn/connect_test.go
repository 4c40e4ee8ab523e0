package redisconn_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jrsteele09/go-booking-session/internal/config"
	"github.com/jrsteele09/go-booking-session/internal/redisconn"
	"github.com/stretchr/testify/require"
)

func TestConnectInvalidURL(t *testing.T) {
	_, err := redisconn.Connect(context.Background(), config.RedisConfig{ConnectionURL: "not a url"})
	require.ErrorIs(t, err, redisconn.ErrInvalidURL)
}

func TestConnectUnreachable(t *testing.T) {
	_, err := redisconn.Connect(context.Background(), config.RedisConfig{
		ConnectionURL:  "redis://127.0.0.1:1/0",
		RetryAttempts:  2,
		RetryInterval:  10 * time.Millisecond,
		ConnectTimeout: time.Second,
	})
	require.ErrorIs(t, err, redisconn.ErrNotReady)
}

func TestConnectIntegration(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	client, err := redisconn.Connect(context.Background(), config.RedisConfig{ConnectionURL: url, RetryAttempts: 1, ConnectTimeout: 5 * time.Second})
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, redisconn.Healthcheck(client)(context.Background()))
}
