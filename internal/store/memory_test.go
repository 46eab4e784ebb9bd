package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Unwrenchable/fizz-caps/internal/store"
	"github.com/Unwrenchable/fizz-caps/internal/store/storetest"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemory_Conformance(t *testing.T) {
	storetest.Run(t, store.NewMemory())
}

func TestMemory_ExpiryWithClock(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := store.NewMemoryWithClock(clock.Now)
	ctx := context.Background()

	ok, err := m.SetIfAbsent(ctx, "cooldown:claim:w:spot", []byte("x"), 24*time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	clock.Advance(23*time.Hour + 59*time.Minute)
	exists, _ := m.Exists(ctx, "cooldown:claim:w:spot")
	assert.True(t, exists)

	clock.Advance(time.Minute)
	exists, _ = m.Exists(ctx, "cooldown:claim:w:spot")
	assert.False(t, exists, "expiry is closed at ttl")
}

func TestMemory_Sweep(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	m := store.NewMemoryWithClock(clock.Now)
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, m.Set(ctx, "b", []byte("1"), 0))
	clock.Advance(2 * time.Minute)
	n, err := m.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, m.Len())
}

func TestMemory_CancelledContext(t *testing.T) {
	m := store.NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, m.Ping(ctx), context.Canceled)
}

func TestMemory_ReturnsCopies(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	v := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", v, 0))
	v[0] = 'z'
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "player:W1", store.PlayerKey("W1"))
	assert.Equal(t, "cooldown:claim:W1:novac-motel", store.CooldownKey("W1", "Novac Motel"))
	assert.Equal(t, "cooldown:claim:W1:vault-77-secret", store.CooldownKey("W1", "Vault 77 (Secret)"))
	assert.NotEqual(t, store.PlayerKey("W1"), store.CooldownKey("W1", ""))
}

func TestMemory_KeysByPrefix(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	m := store.NewMemoryWithClock(clock.Now)
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, store.PlayerKey("b"), []byte("{}"), 0))
	require.NoError(t, m.Set(ctx, store.PlayerKey("a"), []byte("{}"), 0))
	require.NoError(t, m.Set(ctx, store.PlayerKey("gone"), []byte("{}"), time.Second))
	require.NoError(t, m.Set(ctx, store.CooldownKey("a", "Lucky 38"), []byte("t"), time.Hour))
	clock.Advance(time.Minute)

	keys, err := m.Keys(ctx, store.PlayerPrefix)
	require.NoError(t, err)
	assert.Equal(t, []string{"player:a", "player:b"}, keys)

	wallet, ok := store.WalletFromPlayerKey(keys[0])
	assert.True(t, ok)
	assert.Equal(t, "a", wallet)
	_, ok = store.WalletFromPlayerKey("cooldown:claim:a:lucky-38")
	assert.False(t, ok)
}
