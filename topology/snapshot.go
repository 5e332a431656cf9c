package topology

import "time"

// NetworkTopologySnapshot is the immutable, fully-resolved view of the
// network published at the end of one successful tick (spec.md section 3).
// Readers never see a partially-built snapshot: the updater only publishes
// once a tick completes.
type NetworkTopologySnapshot struct {
	TakenAt     time.Time
	Subgraphs   map[SubgraphID]Subgraph
	Deployments map[DeploymentID]Deployment
	Indexers    map[IndexerID]Indexer

	// IndexerErrors and IndexingErrors record why a candidate was excluded
	// this tick, keyed for O(1) lookup by callers building diagnostics.
	IndexerErrors  map[IndexerID]*IndexerError
	IndexingErrors map[IndexingID]*IndexingError
}

// Indexing looks up one resolved indexing by id, reporting whether it was
// present (and error-free) in this snapshot.
func (s *NetworkTopologySnapshot) Indexing(id IndexingID) (Indexing, bool) {
	if s == nil {
		return Indexing{}, false
	}
	dep, ok := s.Deployments[id.Deployment]
	if !ok {
		return Indexing{}, false
	}
	res, ok := dep.Indexings[id]
	if !ok || res.Err != nil {
		return Indexing{}, false
	}
	return res.Indexing, true
}

// SubgraphDeployments returns the ordered deployment versions for subgraph,
// newest first, or nil if the subgraph is unknown this tick.
func (s *NetworkTopologySnapshot) SubgraphDeployments(id SubgraphID) []DeploymentID {
	if s == nil {
		return nil
	}
	sg, ok := s.Subgraphs[id]
	if !ok {
		return nil
	}
	return sg.Versions
}
