package topology

import "context"

// SubgraphIndexingRecord is one indexing entry as reported by the registry
// for a given deployment version (spec.md section 6).
type SubgraphIndexingRecord struct {
	Indexer           IndexerID
	URL               string
	LargestAllocation [20]byte
	AllocatedTokens   uint64
}

// DeploymentVersionRecord is one version of a subgraph as reported by the
// registry.
type DeploymentVersionRecord struct {
	Deployment DeploymentID
	Indexings  []SubgraphIndexingRecord
}

// SubgraphRecord is one subgraph page entry from the registry.
type SubgraphRecord struct {
	ID         SubgraphID
	Chain      string
	StartBlock uint64
	Versions   []DeploymentVersionRecord
}

// SubgraphRegistryClient is the opaque collaborator that serves the
// authoritative registry of subgraphs/indexers (spec.md section 1, "out of
// scope: the raw registry"). The builder paginates through it once per tick;
// if any page fails, the whole tick fails (spec.md section 4.3 step 1).
type SubgraphRegistryClient interface {
	FetchSubgraphs(ctx context.Context, pageCursor string) (records []SubgraphRecord, nextCursor string, err error)
}
