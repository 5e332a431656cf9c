package topology

import (
	"context"
	"time"
)

const (
	poiResolverTimeout = 5 * time.Second
)

// PoiResolver queries indexers for their public proof-of-indexing at a
// specific block, to check against the PoI blocklist (spec.md section 4.2,
// POST /proofs-of-indexing/public). PoI results are never cached: each tick
// must observe the indexer's current state at the requested block.
type PoiResolver struct {
	client IndexerHTTPClient
}

// NewPoiResolver builds a PoiResolver over client.
func NewPoiResolver(client IndexerHTTPClient) *PoiResolver {
	return &PoiResolver{client: client}
}

// ResolveBatch fetches the reported PoI for each requested (deployment,
// block) pair against indexer, in one call.
func (r *PoiResolver) ResolveBatch(ctx context.Context, indexer Indexer, requests []PoiEntry) (map[IndexingID]PoiResult, error) {
	cctx, cancel := context.WithTimeout(ctx, poiResolverTimeout)
	defer cancel()

	results, err := r.client.GetPublicPoIs(cctx, indexer, requests)
	if err != nil {
		return nil, &IndexerError{Indexer: indexer.ID, Kind: IndexerNoStatus}
	}
	out := make(map[IndexingID]PoiResult, len(results))
	for _, res := range results {
		out[IndexingID{Indexer: indexer.ID, Deployment: res.Deployment}] = res
	}
	return out, nil
}
