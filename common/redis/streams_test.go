package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestCreateConsumerGroup_Idempotent(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, CreateConsumerGroup(ctx, client, "ipal:changes", "monitor", "$"))
	require.NoError(t, CreateConsumerGroup(ctx, client, "ipal:changes", "monitor", "$"))
}

func TestPublishAndRead(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, CreateConsumerGroup(ctx, client, "ipal:changes", "monitor", "0"))

	_, err := PublishToStream(ctx, client, "ipal:changes", map[string]interface{}{
		"collection": "alerts",
		"ipal_id":    7,
		"priority":   true,
	})
	require.NoError(t, err)

	msgs, err := ReadFromStream(ctx, client, "ipal:changes", "monitor", "c1", 10, 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "alerts", msgs[0].Values["collection"])
	assert.Equal(t, "7", msgs[0].Values["ipal_id"])
	assert.Equal(t, "true", msgs[0].Values["priority"])

	require.NoError(t, Ack(ctx, client, "ipal:changes", "monitor", msgs[0].ID))
}
