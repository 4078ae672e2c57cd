package dedup

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCache(t *testing.T) {
	redisURL := os.Getenv("DEDUP_REDIS_TEST_URL")
	if redisURL == "" {
		t.Skip("DEDUP_REDIS_TEST_URL not set")
	}

	client, err := Connect(redisURL)
	require.NoError(t, err)

	logger := zerolog.Nop()
	c := NewRedisCache(client, 200*time.Millisecond, &logger)

	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))

	key := PublicKey(uuid.NewString())

	assert.False(t, c.Seen(ctx, key))
	c.Mark(ctx, key)
	assert.True(t, c.Seen(ctx, key))

	time.Sleep(400 * time.Millisecond)
	assert.False(t, c.Seen(ctx, key))
}

func TestRedisCacheUnreachableFailsOpen(t *testing.T) {
	client, err := Connect("127.0.0.1:1")
	require.NoError(t, err)

	logger := zerolog.Nop()
	c := NewRedisCache(client, time.Minute, &logger)

	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c.Mark(ctx, "k")
	assert.False(t, c.Seen(ctx, "k"))
	assert.Error(t, c.Ping(ctx))
}
