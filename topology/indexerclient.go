package topology

import "context"

// VersionInfo is the decoded response of an indexer's GET /version
// (spec.md section 6).
type VersionInfo struct {
	Version          string
	GraphNodeVersion string
}

// DeploymentStatus is one deployment's entry in a batched /status response.
type DeploymentStatus struct {
	Deployment    DeploymentID
	LatestBlock   uint64
	EarliestBlock uint64
	Err           error // non-nil if this deployment failed within an otherwise-successful batch
}

// PoiResult is one (deployment, block) entry in a batched PoI response.
type PoiResult struct {
	Deployment DeploymentID
	Block      uint64
	Poi        [32]byte
	Err        error
}

// CostModelSource is the raw, uncompiled cost model text for one
// (indexer, deployment) pair, as returned by POST /cost.
type CostModelSource struct {
	Deployment DeploymentID
	Model      string
	Variables  string
}

// IndexerHTTPClient is the opaque collaborator that talks to indexer
// endpoints (spec.md section 1, "out of scope: the indexers themselves").
// Each method corresponds to one of the three indexer-exposed endpoints in
// spec.md section 6; batched methods take many deployments per call so a
// resolver can satisfy spec.md 4.2's "the batch is the resolver's atomic
// unit" requirement.
type IndexerHTTPClient interface {
	GetVersion(ctx context.Context, indexer Indexer) (VersionInfo, error)
	GetIndexingStatuses(ctx context.Context, indexer Indexer, deployments []DeploymentID) ([]DeploymentStatus, error)
	GetCostModels(ctx context.Context, indexer Indexer, deployments []DeploymentID) ([]CostModelSource, error)
	GetPublicPoIs(ctx context.Context, indexer Indexer, requests []PoiEntry) ([]PoiResult, error)
}
