package topology

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// hostLimitedTransport caps both concurrent connections per host (via
// http.Transport.MaxConnsPerHost) and request rate per host (via a
// golang.org/x/time/rate.Limiter keyed by host), the concrete shape of
// spec.md section 4.3's "per-host connection cap inherited from the shared
// HTTP client". Grounded on the teacher's single shared *http.Client per
// adminport client (admin_httpc.go), generalized to many indexer hosts.
type hostLimitedTransport struct {
	base http.RoundTripper

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	ratePerSecond float64
	burst         int
}

func newHostLimitedTransport(maxConnsPerHost int, ratePerSecond float64, burst int) *hostLimitedTransport {
	return &hostLimitedTransport{
		base: &http.Transport{
			MaxConnsPerHost:     maxConnsPerHost,
			MaxIdleConnsPerHost: maxConnsPerHost,
			IdleConnTimeout:     90 * time.Second,
		},
		limiters:      make(map[string]*rate.Limiter),
		ratePerSecond: ratePerSecond,
		burst:         burst,
	}
}

func (t *hostLimitedTransport) limiterFor(host string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(t.ratePerSecond), t.burst)
		t.limiters[host] = l
	}
	return l
}

// RoundTrip blocks until the per-host limiter admits the request, then
// delegates to the underlying transport.
func (t *hostLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	limiter := t.limiterFor(req.URL.Host)
	if err := limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}

// NewIndexerHTTPTransportClient builds the *http.Client every resolver in
// this package shares: per-host connection cap and per-host request-rate
// backpressure, with no overall per-call timeout (each resolver applies its
// own via context).
func NewIndexerHTTPTransportClient(maxConnsPerHost int, ratePerSecond float64, burst int) *http.Client {
	return &http.Client{
		Transport: newHostLimitedTransport(maxConnsPerHost, ratePerSecond, burst),
	}
}
