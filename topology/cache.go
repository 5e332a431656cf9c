package topology

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/graphops/gateway-core/metrics"
)

// resolverCache is the TTL cache behind the host, version, progress and
// cost-model resolvers (spec.md section 4.2). Its resolve method adds
// single-flight call deduplication and the per-call timeout, so concurrent
// resolutions of the same key share one in-flight request and a timed-out or
// failed call is retried on the next tick rather than cached as a negative
// result. The batched progress and cost-model resolvers use only peek and
// store.
type resolverCache[K comparable, V any] struct {
	name    string
	ttl     *lru.LRU[K, V]
	flight  singleflight.Group
	timeout time.Duration
}

func newResolverCache[K comparable, V any](name string, ttl time.Duration, capacity int, timeout time.Duration) *resolverCache[K, V] {
	return &resolverCache[K, V]{
		name:    name,
		ttl:     lru.NewLRU[K, V](capacity, nil, ttl),
		timeout: timeout,
	}
}

// peek returns a cached value without triggering a fetch, for callers that
// batch several keys and only need to fetch the ones missing from cache.
func (c *resolverCache[K, V]) peek(key K) (V, bool) {
	return c.ttl.Get(key)
}

// store inserts v under key directly, bypassing singleflight, for callers
// that resolve several keys from one batched fetch.
func (c *resolverCache[K, V]) store(key K, v V) {
	c.ttl.Add(key, v)
}

// resolve returns the cached value for key, or fetches it once under the
// singleflight key keyStr; callers must supply a stable string form of K
// (fmt.Stringer or similar) since singleflight.Group keys on string.
func (c *resolverCache[K, V]) resolve(ctx context.Context, key K, keyStr string, fetch func(context.Context) (V, error)) (V, error) {
	if v, ok := c.ttl.Get(key); ok {
		metrics.ResolverCacheHits.WithLabelValues(c.name, "hit").Inc()
		return v, nil
	}
	metrics.ResolverCacheHits.WithLabelValues(c.name, "miss").Inc()

	start := time.Now()
	resultCh := c.flight.DoChan(keyStr, func() (interface{}, error) {
		cctx := ctx
		var cancel context.CancelFunc
		if c.timeout > 0 {
			cctx, cancel = context.WithTimeout(context.Background(), c.timeout)
			defer cancel()
		}
		return fetch(cctx)
	})

	select {
	case res := <-resultCh:
		outcome := "ok"
		if res.Err != nil {
			outcome = "error"
		}
		metrics.ResolverLatency.WithLabelValues(c.name, outcome).Observe(time.Since(start).Seconds())
		if res.Err != nil {
			var zero V
			return zero, res.Err
		}
		v := res.Val.(V)
		// Negative results are never cached (spec.md 4.2): only store on success.
		c.ttl.Add(key, v)
		return v, nil
	case <-ctx.Done():
		var zero V
		metrics.ResolverLatency.WithLabelValues(c.name, "ctx_cancelled").Observe(time.Since(start).Seconds())
		return zero, ctx.Err()
	}
}
