package topology

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
)

const (
	versionResolverTimeout = 1500 * time.Millisecond
	versionResolverTTL     = 20 * time.Minute
	versionResolverCap     = 4096
)

// VersionResolver fetches and parses an indexer's agent/graph-node versions
// (spec.md section 4.2).
type VersionResolver struct {
	cache  *resolverCache[IndexerID, VersionInfo]
	client IndexerHTTPClient
}

// NewVersionResolver builds a VersionResolver over the given client.
func NewVersionResolver(client IndexerHTTPClient) *VersionResolver {
	return &VersionResolver{
		cache:  newResolverCache[IndexerID, VersionInfo]("version", versionResolverTTL, versionResolverCap, versionResolverTimeout),
		client: client,
	}
}

// Resolve fetches indexer's reported versions.
func (r *VersionResolver) Resolve(ctx context.Context, indexer Indexer) (VersionInfo, error) {
	return r.cache.resolve(ctx, indexer.ID, indexer.ID.String(), func(cctx context.Context) (VersionInfo, error) {
		info, err := r.client.GetVersion(cctx, indexer)
		if err != nil {
			return VersionInfo{}, &IndexerError{Indexer: indexer.ID, Kind: IndexerNoStatus}
		}
		return info, nil
	})
}

// CheckMinimums parses info's versions and reports whether both meet the
// configured minimums (spec.md section 4.3 step 4).
func CheckMinimums(info VersionInfo, minAgent, minGraphNode string) error {
	agent, err := semver.NewVersion(info.Version)
	if err != nil {
		return fmt.Errorf("topology: unparsable agent version %q: %w", info.Version, err)
	}
	graphNode, err := semver.NewVersion(info.GraphNodeVersion)
	if err != nil {
		return fmt.Errorf("topology: unparsable graph-node version %q: %w", info.GraphNodeVersion, err)
	}
	if minAgent != "" {
		min, err := semver.NewVersion(minAgent)
		if err == nil && agent.LessThan(min) {
			return fmt.Errorf("topology: agent version %s below minimum %s", agent, min)
		}
	}
	if minGraphNode != "" {
		min, err := semver.NewVersion(minGraphNode)
		if err == nil && graphNode.LessThan(min) {
			return fmt.Errorf("topology: graph-node version %s below minimum %s", graphNode, min)
		}
	}
	return nil
}
