package topology

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResolverCacheStoresOnSuccess(t *testing.T) {
	c := newResolverCache[string, int]("test", time.Minute, 16, time.Second)

	var calls int32
	v, err := c.resolve(context.Background(), "a", "a", func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, v)

	v2, ok := c.peek("a")
	require.True(t, ok)
	require.Equal(t, 42, v2)

	v3, err := c.resolve(context.Background(), "a", "a", func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 99, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, v3, "cached value should be served without invoking fetch again")
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestResolverCacheDoesNotCacheFailure(t *testing.T) {
	c := newResolverCache[string, int]("test", time.Minute, 16, time.Second)

	_, err := c.resolve(context.Background(), "a", "a", func(ctx context.Context) (int, error) {
		return 0, errBoom
	})
	require.ErrorIs(t, err, errBoom)

	_, ok := c.peek("a")
	require.False(t, ok, "a failed fetch must not be cached as a negative result")
}

func TestResolverCacheSingleFlightDeduplicates(t *testing.T) {
	c := newResolverCache[string, int]("test", time.Minute, 16, time.Second)

	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_, _ = c.resolve(context.Background(), "k", "k", func(ctx context.Context) (int, error) {
			atomic.AddInt32(&calls, 1)
			close(started)
			<-release
			return 7, nil
		})
	}()

	<-started
	v, err := c.resolve(context.Background(), "k", "k", func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 8, nil
	})
	close(release)

	require.NoError(t, err)
	require.Equal(t, 7, v)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls), "concurrent resolves of the same key share one in-flight fetch")
}

var errBoom = &sentinelError{"boom"}

type sentinelError struct{ msg string }

func (e *sentinelError) Error() string { return e.msg }
