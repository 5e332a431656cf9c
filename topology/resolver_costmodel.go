package topology

import (
	"context"
	"time"
)

const (
	costModelResolverTimeout = 5 * time.Second
	costModelResolverTTL     = 5 * time.Minute
	costModelResolverCap     = 8192
)

// costModelKey identifies one (indexer, deployment) cost model lookup.
type costModelKey struct {
	Indexer    IndexerID
	Deployment DeploymentID
}

// CostModelResolver batches raw cost model source fetches per indexer
// (spec.md section 4.2/6, POST /cost).
type CostModelResolver struct {
	cache  *resolverCache[costModelKey, CostModelSource]
	client IndexerHTTPClient
}

// NewCostModelResolver builds a CostModelResolver over client.
func NewCostModelResolver(client IndexerHTTPClient) *CostModelResolver {
	return &CostModelResolver{
		cache:  newResolverCache[costModelKey, CostModelSource]("cost_model", costModelResolverTTL, costModelResolverCap, costModelResolverTimeout),
		client: client,
	}
}

// ResolveBatch fetches raw cost model sources for every deployment not
// already cached, in one call per indexer.
func (r *CostModelResolver) ResolveBatch(ctx context.Context, indexer Indexer, deployments []DeploymentID) (map[DeploymentID]CostModelSource, map[DeploymentID]error) {
	results := make(map[DeploymentID]CostModelSource, len(deployments))
	errs := make(map[DeploymentID]error)

	missing := make([]DeploymentID, 0, len(deployments))
	for _, d := range deployments {
		key := costModelKey{Indexer: indexer.ID, Deployment: d}
		if v, ok := r.cache.peek(key); ok {
			results[d] = v
			continue
		}
		missing = append(missing, d)
	}
	if len(missing) == 0 {
		return results, errs
	}

	cctx, cancel := context.WithTimeout(ctx, costModelResolverTimeout)
	defer cancel()
	sources, err := r.client.GetCostModels(cctx, indexer, missing)
	if err != nil {
		for _, d := range missing {
			errs[d] = &IndexingError{ID: IndexingID{Indexer: indexer.ID, Deployment: d}, Kind: IndexingNoCostModel}
		}
		return results, errs
	}

	byDeployment := make(map[DeploymentID]CostModelSource, len(sources))
	for _, s := range sources {
		byDeployment[s.Deployment] = s
	}
	for _, d := range missing {
		s, ok := byDeployment[d]
		if !ok {
			errs[d] = &IndexingError{ID: IndexingID{Indexer: indexer.ID, Deployment: d}, Kind: IndexingNoCostModel}
			continue
		}
		key := costModelKey{Indexer: indexer.ID, Deployment: d}
		r.cache.store(key, s)
		results[d] = s
	}
	return results, errs
}
