// Package storetest provides a conformance suite that every store.Store
// backend runs from its own tests.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Unwrenchable/fizz-caps/internal/store"
)

// Run exercises s against the store.Store contract. Keys are prefixed with
// the test name so a shared backend can be reused across subtests.
func Run(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()
	key := func(t *testing.T, k string) string {
		return fmt.Sprintf("storetest:%s:%s", t.Name(), k)
	}

	t.Run("GetMissing", func(t *testing.T) {
		_, err := s.Get(ctx, key(t, "missing"))
		assert.ErrorIs(t, err, store.ErrNotFound)
		ok, err := s.Exists(ctx, key(t, "missing"))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("SetGetDelete", func(t *testing.T) {
		k := key(t, "k")
		require.NoError(t, s.Set(ctx, k, []byte("v1"), 0))
		got, err := s.Get(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), got)

		require.NoError(t, s.Set(ctx, k, []byte("v2"), 0))
		got, err = s.Get(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), got)

		require.NoError(t, s.Delete(ctx, k))
		_, err = s.Get(ctx, k)
		assert.ErrorIs(t, err, store.ErrNotFound)
		require.NoError(t, s.Delete(ctx, k), "deleting an absent key is not an error")
	})

	t.Run("SetIfAbsent", func(t *testing.T) {
		k := key(t, "k")
		ok, err := s.SetIfAbsent(ctx, k, []byte("first"), time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.SetIfAbsent(ctx, k, []byte("second"), time.Hour)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := s.Get(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, []byte("first"), got)
	})

	t.Run("SetIfAbsentConcurrent", func(t *testing.T) {
		k := key(t, "k")
		const workers = 32
		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ok, err := s.SetIfAbsent(ctx, k, []byte(fmt.Sprint(i)), time.Hour)
				assert.NoError(t, err)
				if ok {
					wins.Add(1)
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("CompareAndSwap", func(t *testing.T) {
		k := key(t, "k")
		ok, err := s.CompareAndSwap(ctx, k, []byte("x"), []byte("y"), 0)
		require.NoError(t, err)
		assert.False(t, ok, "swap on absent key must fail")

		require.NoError(t, s.Set(ctx, k, []byte("a"), 0))
		ok, err = s.CompareAndSwap(ctx, k, []byte("stale"), []byte("b"), 0)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = s.CompareAndSwap(ctx, k, []byte("a"), []byte("b"), 0)
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := s.Get(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, []byte("b"), got)
	})

	t.Run("CompareAndSwapCounter", func(t *testing.T) {
		k := key(t, "counter")
		require.NoError(t, s.Set(ctx, k, []byte("0"), 0))
		const workers, perWorker = 8, 10
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for n := 0; n < perWorker; n++ {
					for {
						cur, err := s.Get(ctx, k)
						if !assert.NoError(t, err) {
							return
						}
						var v int
						_, _ = fmt.Sscan(string(cur), &v)
						ok, err := s.CompareAndSwap(ctx, k, cur, []byte(fmt.Sprint(v+1)), 0)
						if !assert.NoError(t, err) {
							return
						}
						if ok {
							break
						}
					}
				}
			}()
		}
		wg.Wait()
		got, err := s.Get(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprint(workers*perWorker), string(got), "no increment may be lost")
	})

	t.Run("Expiry", func(t *testing.T) {
		k := key(t, "k")
		ok, err := s.SetIfAbsent(ctx, k, []byte("1"), time.Second)
		require.NoError(t, err)
		require.True(t, ok)
		exists, err := s.Exists(ctx, k)
		require.NoError(t, err)
		assert.True(t, exists)

		time.Sleep(1500 * time.Millisecond)

		exists, err = s.Exists(ctx, k)
		require.NoError(t, err)
		assert.False(t, exists, "key must expire after its ttl")
		ok, err = s.SetIfAbsent(ctx, k, []byte("2"), time.Second)
		require.NoError(t, err)
		assert.True(t, ok, "an expired key is absent for SetIfAbsent")
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, s.Ping(ctx))
	})
}
