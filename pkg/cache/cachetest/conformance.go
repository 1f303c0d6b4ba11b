// Package cachetest holds the behaviour every cache driver must share.
package cachetest

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthline/hearthline/pkg/cache"
)

// RunConformance runs the driver contract against caches built by newCache
// newCache must return an empty cache for each call.
func RunConformance(t *testing.T, newCache func(t *testing.T) cache.Cache) {
	t.Run("get missing key returns ErrNotFound", func(t *testing.T) {
		c := newCache(t)
		_, err := c.Get(context.Background(), "missing")
		assert.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("set then get", func(t *testing.T) {
		c := newCache(t)
		ctx := context.Background()
		require.NoError(t, c.Set(ctx, "k", "v", cache.NoExpiration))

		val, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v", val)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		c := newCache(t)
		ctx := context.Background()
		require.NoError(t, c.Set(ctx, "k", "v", cache.NoExpiration))
		require.NoError(t, c.Delete(ctx, "k"))
		require.NoError(t, c.Delete(ctx, "k"))

		_, err := c.Get(ctx, "k")
		assert.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("get by pattern", func(t *testing.T) {
		c := newCache(t)
		ctx := context.Background()
		require.NoError(t, c.Set(ctx, "assets:v1:/a", "1", cache.NoExpiration))
		require.NoError(t, c.Set(ctx, "assets:v1:/b", "2", cache.NoExpiration))
		require.NoError(t, c.Set(ctx, "assets:v2:/a", "3", cache.NoExpiration))

		got, err := c.GetByPattern(ctx, "assets:v1:*")
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"assets:v1:/a": "1", "assets:v1:/b": "2"}, got)
	})

	t.Run("update commits buffered writes", func(t *testing.T) {
		c := newCache(t)
		ctx := context.Background()
		require.NoError(t, c.Set(ctx, "a", "old", cache.NoExpiration))
		require.NoError(t, c.Set(ctx, "gone", "x", cache.NoExpiration))

		err := c.Update(ctx, func(tx cache.Tx) error {
			val, err := tx.Get("a")
			if err != nil {
				return err
			}
			tx.Set("a", val+"+new")
			tx.Set("b", "fresh")
			tx.Delete("gone")
			return nil
		}, "a", "b", "gone")
		require.NoError(t, err)

		a, err := c.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "old+new", a)

		b, err := c.Get(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, "fresh", b)

		_, err = c.Get(ctx, "gone")
		assert.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("update error discards writes", func(t *testing.T) {
		c := newCache(t)
		ctx := context.Background()
		require.NoError(t, c.Set(ctx, "a", "kept", cache.NoExpiration))

		boom := errors.New("boom")
		err := c.Update(ctx, func(tx cache.Tx) error {
			tx.Set("a", "overwritten")
			tx.Delete("a")
			return boom
		}, "a")
		assert.ErrorIs(t, err, boom)

		val, err := c.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "kept", val)
	})

	t.Run("update tx get missing key", func(t *testing.T) {
		c := newCache(t)
		err := c.Update(context.Background(), func(tx cache.Tx) error {
			_, err := tx.Get("missing")
			return err
		}, "missing")
		assert.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("concurrent updates lose nothing", func(t *testing.T) {
		c := newCache(t)
		ctx := context.Background()

		const workers, perWorker = 8, 5
		var wg sync.WaitGroup
		errs := make(chan error, workers*perWorker)
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					errs <- c.Update(ctx, func(tx cache.Tx) error {
						n := 0
						val, err := tx.Get("counter")
						switch {
						case errors.Is(err, cache.ErrNotFound):
						case err != nil:
							return err
						default:
							n, err = strconv.Atoi(val)
							if err != nil {
								return err
							}
						}
						tx.Set("counter", strconv.Itoa(n+1))
						return nil
					}, "counter")
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		val, err := c.Get(ctx, "counter")
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(workers*perWorker), val)
	})
}
