package topology

import (
	"context"
	"net"
	"time"
)

const (
	hostResolverTimeout = 1500 * time.Millisecond
	hostResolverTTL     = 20 * time.Minute
	hostResolverCap     = 4096
)

// HostResolver resolves an indexer's URL host to all its A/AAAA records
// (spec.md section 4.2).
type HostResolver struct {
	cache    *resolverCache[IndexerID, []string]
	resolver *net.Resolver
}

// NewHostResolver builds a HostResolver. resolver may be nil to use
// net.DefaultResolver.
func NewHostResolver(resolver *net.Resolver) *HostResolver {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &HostResolver{
		cache:    newResolverCache[IndexerID, []string]("host", hostResolverTTL, hostResolverCap, hostResolverTimeout),
		resolver: resolver,
	}
}

// Resolve returns all IPs for indexer's URL host.
func (r *HostResolver) Resolve(ctx context.Context, indexer Indexer) ([]string, error) {
	host := indexer.URL.Hostname()
	return r.cache.resolve(ctx, indexer.ID, indexer.ID.String(), func(cctx context.Context) ([]string, error) {
		addrs, err := r.resolver.LookupIPAddr(cctx, host)
		if err != nil {
			return nil, err
		}
		ips := make([]string, 0, len(addrs))
		for _, a := range addrs {
			ips = append(ips, a.IP.String())
		}
		if len(ips) == 0 {
			return nil, &IndexerError{Indexer: indexer.ID, Kind: IndexerHostResolutionFailed}
		}
		return ips, nil
	})
}
