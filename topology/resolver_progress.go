package topology

import (
	"context"
	"time"
)

const (
	progressResolverTimeout = 5 * time.Second
	progressResolverTTL     = 2 * time.Minute
	progressResolverCap     = 8192
)

// progressKey identifies one (indexer, deployment) indexing-status lookup.
type progressKey struct {
	Indexer    IndexerID
	Deployment DeploymentID
}

// ProgressResolver batches indexing-status lookups per indexer, the
// "status" endpoint of spec.md section 4.2/6.
type ProgressResolver struct {
	cache  *resolverCache[progressKey, IndexingProgress]
	client IndexerHTTPClient
}

// NewProgressResolver builds a ProgressResolver over client.
func NewProgressResolver(client IndexerHTTPClient) *ProgressResolver {
	return &ProgressResolver{
		cache:  newResolverCache[progressKey, IndexingProgress]("progress", progressResolverTTL, progressResolverCap, progressResolverTimeout),
		client: client,
	}
}

// ResolveBatch fetches indexing progress for every deployment not already
// cached in one call per indexer, bounded by progressResolverTimeout.
// Concurrent calls for the same keys are not deduplicated. Results are
// returned keyed by DeploymentID; a deployment missing from the response or
// erroring independently is reported via its own IndexingError.
func (r *ProgressResolver) ResolveBatch(ctx context.Context, indexer Indexer, deployments []DeploymentID) (map[DeploymentID]IndexingProgress, map[DeploymentID]error) {
	results := make(map[DeploymentID]IndexingProgress, len(deployments))
	errs := make(map[DeploymentID]error)

	missing := make([]DeploymentID, 0, len(deployments))
	for _, d := range deployments {
		key := progressKey{Indexer: indexer.ID, Deployment: d}
		if v, ok := r.cache.peek(key); ok {
			results[d] = v
			continue
		}
		missing = append(missing, d)
	}
	if len(missing) == 0 {
		return results, errs
	}

	cctx, cancel := context.WithTimeout(ctx, progressResolverTimeout)
	defer cancel()
	statuses, err := r.client.GetIndexingStatuses(cctx, indexer, missing)
	if err != nil {
		for _, d := range missing {
			errs[d] = &IndexerError{Indexer: indexer.ID, Kind: IndexerNoStatus}
		}
		return results, errs
	}

	byDeployment := make(map[DeploymentID]DeploymentStatus, len(statuses))
	for _, s := range statuses {
		byDeployment[s.Deployment] = s
	}
	for _, d := range missing {
		s, ok := byDeployment[d]
		if !ok {
			errs[d] = &IndexingError{ID: IndexingID{Indexer: indexer.ID, Deployment: d}, Kind: IndexingNoStatus}
			continue
		}
		if s.Err != nil {
			errs[d] = &IndexingError{ID: IndexingID{Indexer: indexer.ID, Deployment: d}, Kind: IndexingNoStatus, Cause: s.Err}
			continue
		}
		progress := IndexingProgress{
			Fresh:         true,
			LatestBlock:   s.LatestBlock,
			EarliestBlock: s.EarliestBlock,
		}
		key := progressKey{Indexer: indexer.ID, Deployment: d}
		r.cache.store(key, progress)
		results[d] = progress
	}
	return results, errs
}
