package cache_test

import (
	"context"
	"testing"
	"time"

	"ipal-monitor/internal/aggregate"
	"ipal-monitor/internal/cache"
	"ipal-monitor/internal/counter"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSummaryCache_Keys(t *testing.T) {
	c := cache.NewSummaryCache(newFakeKVStore(), "", 0, zap.NewNop())
	assert.Equal(t, "ipal:7:alerts:summary", c.AlertsKey(7))
	assert.Equal(t, "ipal:7:alerts:counts", c.CountsKey(7))
	assert.Equal(t, "ipal:7:reading:latest", c.ReadingKey(7))
}

func TestSummaryCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := cache.NewSummaryCache(newFakeKVStore(), "plant", time.Minute, zap.NewNop())

	set := aggregate.Set{Total: 2, Severity: aggregate.SeverityCounts{Critical: 1, High: 1}}
	require.NoError(t, c.PutAlerts(ctx, cache.AlertSummary{IPALID: 7, Aggregates: set, NewAlertIDs: []string{"a9"}}))
	require.NoError(t, c.PutCounts(ctx, counter.Counts{FacilityID: 7, Total: 12, Active: 12, Critical: 3}))

	s, err := c.GetAlerts(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, set, s.Aggregates)
	assert.Equal(t, []string{"a9"}, s.NewAlertIDs)

	counts, err := c.GetCounts(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts.Critical)

	_, err = c.GetReading(ctx, 7)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	require.NoError(t, c.Clear(ctx, 7))
	_, err = c.GetAlerts(ctx, 7)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestSummaryCache_ExpiresWithTTL(t *testing.T) {
	ctx := context.Background()
	c := cache.NewSummaryCache(newFakeKVStore(), "", 20*time.Millisecond, zap.NewNop())

	require.NoError(t, c.PutReading(ctx, 3, aggregate.SummarizeReading(nil)))
	_, err := c.GetReading(ctx, 3)
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)
	_, err = c.GetReading(ctx, 3)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestRedisKVStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	kv := cache.NewRedisKVStore(client)

	_, err := kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	require.NoError(t, kv.Set(ctx, "k", "v", time.Minute))
	v, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
	assert.Equal(t, time.Minute, mr.TTL("k"))

	require.NoError(t, kv.Del(ctx, "k"))
	assert.False(t, mr.Exists("k"))
}
