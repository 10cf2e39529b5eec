package redis

import (
	"context"
	"testing"
	"time"

	"github.com/erain9/bookd/pkg/core"
	"github.com/erain9/bookd/pkg/store"
	"github.com/nikolaydubina/fpdecimal"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// setupTestRedis initializes a Redis client for testing.
// It assumes Redis is running on localhost:6379.
func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   0,
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		t.Skipf("Skipping Redis tests: Cannot connect to Redis (%v)", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func testKey(t *testing.T, client *redis.Client) string {
	key := "test:bookd:" + t.Name()
	require.NoError(t, client.Del(context.Background(), key).Err())
	t.Cleanup(func() { client.Del(context.Background(), key) })
	return key
}

func TestNewRedisBackend_Defaults(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	backend := NewRedisBackend(client, "", nil)
	assert.Equal(t, DefaultKey, backend.Key())
	assert.Equal(t, "redis:"+DefaultKey, backend.Name())
	assert.NotNil(t, backend.logger)
}

func TestRedisBackend_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	backend := NewRedisBackend(client, "k", zap.NewNop())
	ctx := context.Background()

	_, err := backend.LoadOrCreate(ctx)
	assert.ErrorIs(t, err, core.ErrIO)

	err = backend.Persist(ctx, core.NewSnapshot())
	assert.ErrorIs(t, err, core.ErrIO)

	_, err = backend.Reset(ctx)
	assert.ErrorIs(t, err, core.ErrIO)
}

func TestRedisBackend_PersistThenLoad(t *testing.T) {
	client := setupTestRedis(t)
	backend := NewRedisBackend(client, testKey(t, client), zap.NewNop())
	ctx := context.Background()

	snap, err := backend.LoadOrCreate(ctx)
	require.NoError(t, err)
	assert.True(t, snap.IsEmpty())

	book := core.NewLiveBook()
	o, err := core.NewOrder("X", 100, fpdecimal.FromInt(10), core.Buy, core.KindLimit, "b1")
	require.NoError(t, err)
	book.Add(*o)
	o, err = core.NewOrder("X", 3, fpdecimal.FromInt(11), core.Sell, core.KindLimit, "s1")
	require.NoError(t, err)
	book.Add(*o)
	snap = core.ToSnapshot(book)

	require.NoError(t, backend.Persist(ctx, snap))
	loaded, err := backend.LoadOrCreate(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap, loaded)
}

func TestRedisBackend_Corrupt(t *testing.T) {
	client := setupTestRedis(t)
	key := testKey(t, client)
	require.NoError(t, client.Set(context.Background(), key, "{nope", 0).Err())

	backend := NewRedisBackend(client, key, zap.NewNop())
	_, err := backend.LoadOrCreate(context.Background())
	assert.ErrorIs(t, err, core.ErrCorruptState)
}

func TestRedisBackend_Reset(t *testing.T) {
	client := setupTestRedis(t)
	backend := NewRedisBackend(client, testKey(t, client), zap.NewNop())
	ctx := context.Background()
	require.NoError(t, backend.Persist(ctx, core.NewSnapshot()))

	msg, err := backend.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.MsgResetDone, msg)

	msg, err = backend.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.MsgResetMissing, msg)
}
