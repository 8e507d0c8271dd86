// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// redisHarness wires a RedisCache to an in-process miniredis server.
func redisHarness(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()

	mr := miniredis.RunT(t)
	c := &RedisCache{
		client: redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		logger: zerolog.Nop(),
	}
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestRedisCache_RoundTrip(t *testing.T) {
	_, c := redisHarness(t)

	c.Set("events:nfl:20251102", []byte(`[{"id":"401671716"}]`), 5*time.Minute)

	got, ok := c.Get("events:nfl:20251102")
	require.True(t, ok)
	assert.Equal(t, `[{"id":"401671716"}]`, string(got))

	val, ok := c.Get("events:nhl:20251102")
	assert.False(t, ok)
	assert.Nil(t, val)

	c.Delete("events:nfl:20251102")
	_, ok = c.Get("events:nfl:20251102")
	assert.False(t, ok)
}

func TestRedisCache_TTLExpiry(t *testing.T) {
	mr, c := redisHarness(t)

	c.Set("schedule:134936", []byte("page"), 100*time.Millisecond)
	_, ok := c.Get("schedule:134936")
	require.True(t, ok)

	mr.FastForward(200 * time.Millisecond)

	_, ok = c.Get("schedule:134936")
	assert.False(t, ok, "redis TTL should expire the key")
}

func TestRedisCache_BytePayloadUnaltered(t *testing.T) {
	_, c := redisHarness(t)

	payload := []byte{0x00, 0xff, 0x10, '"', '\\', 0x7f}
	c.Set("blob", payload, time.Minute)

	got, ok := c.Get("blob")
	require.True(t, ok)
	assert.Equal(t, payload, got)
}

func TestRedisCache_StatsAndClear(t *testing.T) {
	_, c := redisHarness(t)

	c.Set("k1", []byte("v1"), time.Minute)
	c.Set("k2", []byte("v2"), time.Minute)
	c.Get("k1")
	c.Get("k1")
	c.Get("gone")

	st := c.Stats()
	assert.Equal(t, int64(2), st.Sets)
	assert.Equal(t, int64(2), st.Hits)
	assert.Equal(t, int64(1), st.Misses)
	assert.Equal(t, 2, st.CurrentSize)

	c.Clear()
	assert.Equal(t, 0, c.Stats().CurrentSize)
}

func TestRedisCache_ConcurrentWorkers(t *testing.T) {
	_, c := redisHarness(t)

	const workers, ops = 8, 25
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("worker:%d", id)
			for i := 0; i < ops; i++ {
				c.Set(key, []byte("v"), time.Minute)
				c.Get(key)
			}
		}(w)
	}
	wg.Wait()

	st := c.Stats()
	assert.Equal(t, int64(workers*ops), st.Sets)
	assert.Equal(t, int64(workers*ops), st.Hits)
}

func TestRedisCache_HealthCheck(t *testing.T) {
	mr, c := redisHarness(t)

	require.NoError(t, c.HealthCheck(context.Background()))

	mr.Close()
	assert.Error(t, c.HealthCheck(context.Background()))
}
