package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type score struct {
	Value float64 `json:"value"`
}

func TestMemoryCache_TypedRoundTrip(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "f", 0.8, time.Minute))
	var f float64
	require.NoError(t, c.Get(ctx, "f", &f))
	assert.Equal(t, 0.8, f)

	require.NoError(t, c.Set(ctx, "s", score{Value: 0.35}, time.Minute))
	var s score
	require.NoError(t, c.Get(ctx, "s", &s))
	assert.Equal(t, 0.35, s.Value)

	require.NoError(t, c.Set(ctx, "str", "plain", time.Minute))
	var str string
	require.NoError(t, c.Get(ctx, "str", &str))
	assert.Equal(t, "plain", str)
}

func TestMemoryCache_MissAndExpiry(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	var f float64
	assert.True(t, errors.Is(c.Get(ctx, "absent", &f), ErrCacheMiss))

	require.NoError(t, c.Set(ctx, "short", 1.0, time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	assert.True(t, errors.Is(c.Get(ctx, "short", &f), ErrCacheMiss))

	require.NoError(t, c.Set(ctx, "gone", 1.0, time.Minute))
	require.NoError(t, c.Delete(ctx, "gone"))
	assert.True(t, errors.Is(c.Get(ctx, "gone", &f), ErrCacheMiss))
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewMemoryCache(WithMemoryMaxSize(2))
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", 1, time.Minute))
	time.Sleep(time.Millisecond)
	require.NoError(t, c.Set(ctx, "b", 2, time.Minute))
	time.Sleep(time.Millisecond)

	var v int
	require.NoError(t, c.Get(ctx, "a", &v))
	time.Sleep(time.Millisecond)
	require.NoError(t, c.Set(ctx, "c", 3, time.Minute))

	assert.Equal(t, 2, c.Len())
	assert.True(t, errors.Is(c.Get(ctx, "b", &v), ErrCacheMiss))
	require.NoError(t, c.Get(ctx, "a", &v))
	assert.Equal(t, 1, v)
}

func TestMemoryCache_Lock(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	ok, err := c.TryLock(ctx, "pool", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.TryLock(ctx, "pool", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Unlock(ctx, "pool"))
	ok, err = c.TryLock(ctx, "pool", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLayeredCache_ReadsThroughToL2(t *testing.T) {
	l2 := NewMemoryCache()
	defer l2.Close()
	lc := NewLayeredCache(l2, WithLayeredMemoryTTL(time.Minute))
	defer lc.Close()
	ctx := context.Background()

	require.NoError(t, l2.Set(ctx, "k", 0.5, time.Minute))

	var f float64
	require.NoError(t, lc.Get(ctx, "k", &f))
	assert.Equal(t, 0.5, f)

	// now served from L1 even after L2 loses it
	require.NoError(t, l2.Delete(ctx, "k"))
	f = 0
	require.NoError(t, lc.Get(ctx, "k", &f))
	assert.Equal(t, 0.5, f)

	require.NoError(t, lc.Delete(ctx, "k"))
	assert.True(t, errors.Is(lc.Get(ctx, "k", &f), ErrCacheMiss))
}

func TestGenerateKey(t *testing.T) {
	assert.Equal(t, "trust:0xb0b", GenerateKey("trust", "0xb0b"))
}

func TestRedisConfig_Options(t *testing.T) {
	cfg := DefaultRedisConfig()
	for _, opt := range []RedisOption{
		WithRedisAddr(""),
		WithRedisPool(32, 0, 0),
		WithRedisPrefix("staging"),
	} {
		opt(&cfg)
	}
	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Equal(t, 32, cfg.PoolSize)
	assert.Equal(t, 4, cfg.MinIdleConns)
	assert.Equal(t, 5*time.Second, cfg.PoolTimeout)
	assert.Equal(t, "staging", cfg.Prefix)
}

func TestRedisCache_KeysAndValues(t *testing.T) {
	prefixed := &RedisCache{prefix: "defiguard"}
	assert.Equal(t, "defiguard:trust:0xb0b", prefixed.wrapKey("trust:0xb0b"))
	assert.Equal(t, []string{"defiguard:a", "defiguard:b"}, prefixed.wrapKeys("a", "b"))
	assert.Equal(t, "lock:pool:0x9001", (&RedisCache{}).wrapKey("lock:pool:0x9001"))

	raw, err := encodeValue("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", string(raw))

	raw, err = encodeValue(score{Value: 0.8})
	require.NoError(t, err)
	var got score
	require.NoError(t, decodeValue(raw, &got))
	assert.Equal(t, 0.8, got.Value)

	var s string
	require.NoError(t, decodeValue([]byte("plain"), &s))
	assert.Equal(t, "plain", s)
}

func TestRedisCache_UnlockWithoutLockIsNoop(t *testing.T) {
	c := &RedisCache{tokens: map[string]string{}}
	assert.NoError(t, c.Unlock(context.Background(), "lock:pool:0x9001"))
}
