package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Unwrenchable/fizz-caps/internal/config"
	"github.com/Unwrenchable/fizz-caps/internal/storage/redis"
	"github.com/Unwrenchable/fizz-caps/internal/store"
	"github.com/Unwrenchable/fizz-caps/internal/store/storetest"
	"github.com/Unwrenchable/fizz-caps/internal/testutil"
)

func TestStore(t *testing.T) {
	addr := testutil.NewRedisAddr(t)
	ctx := context.Background()

	client, err := redis.NewClient(ctx, config.RedisConfig{Addr: addr})
	require.NoError(t, err)
	s := redis.New(client, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = s.Close() })

	storetest.Run(t, s)

	t.Run("CompareAndSwapKeepsTTL", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "cas:ttl", []byte("a"), time.Hour))
		ok, err := s.CompareAndSwap(ctx, "cas:ttl", []byte("a"), []byte("b"), 200*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, ok)
		time.Sleep(400 * time.Millisecond)
		_, err = s.Get(ctx, "cas:ttl")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("KeysByPrefix", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, store.PlayerKey("alpha"), []byte("{}"), 0))
		require.NoError(t, s.Set(ctx, store.CooldownKey("alpha", "Hoover Dam"), []byte("t"), time.Hour))
		keys, err := s.Keys(ctx, store.PlayerPrefix)
		require.NoError(t, err)
		assert.Contains(t, keys, "player:alpha")
		assert.NotContains(t, keys, "cooldown:claim:alpha:hoover-dam")
	})
}

func TestNewClient_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := redis.NewClient(ctx, config.RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
