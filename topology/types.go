// Package topology implements the Network Topology Resolver: blocklists,
// per-stage resolvers, the cost model compiler, the snapshot builder, and
// the periodic updater (spec.md section 4.1-4.4).
package topology

import (
	"encoding/hex"
	"fmt"
	"net/url"

	"github.com/ipfs/go-cid"
)

// IndexerID is a 20-byte indexer address.
type IndexerID [20]byte

func (id IndexerID) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// ParseIndexerID parses a 0x-prefixed 40 hex character address.
func ParseIndexerID(s string) (IndexerID, error) {
	var id IndexerID
	if len(s) == 42 && s[0:2] == "0x" {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(id) {
		return id, fmt.Errorf("topology: invalid indexer id %q", s)
	}
	copy(id[:], b)
	return id, nil
}

// DeploymentID is the content-addressed id of a compiled subgraph, a CIDv0
// (e.g. "QmeYTH2fK2wv96XvnCGH2eyKFE8kmRfo53zYVy5dKysZtH").
type DeploymentID struct {
	c cid.Cid
}

func (id DeploymentID) String() string {
	if !id.c.Defined() {
		return ""
	}
	return id.c.String()
}

// IsZero reports whether id is the zero value (no deployment).
func (id DeploymentID) IsZero() bool { return !id.c.Defined() }

// ParseDeploymentID parses a CIDv0/IPFS-hash-style deployment id.
func ParseDeploymentID(s string) (DeploymentID, error) {
	c, err := cid.Decode(s)
	if err != nil {
		return DeploymentID{}, fmt.Errorf("topology: invalid deployment id %q: %w", s, err)
	}
	return DeploymentID{c: c}, nil
}

// SubgraphID is a 32-byte mutable-pointer identifier.
type SubgraphID [32]byte

func (id SubgraphID) String() string { return "0x" + hex.EncodeToString(id[:]) }

// IndexingID identifies one (indexer, deployment) pair. It is comparable and
// safe to use as a map key, matching the teacher's IndexingId-as-map-key
// idiom (common/cluster_info.go's node2group map keyed by NodeId).
type IndexingID struct {
	Indexer    IndexerID
	Deployment DeploymentID
}

func (id IndexingID) String() string {
	return fmt.Sprintf("%s/%s", id.Indexer, id.Deployment)
}

// Indexer is one indexing node's identity and endpoint metadata (spec.md
// section 3).
type Indexer struct {
	ID               IndexerID
	URL              *url.URL
	AgentVersion     string
	GraphNodeVersion string
	HostIPs          []string
}

// BlockPointer locates a specific chain height.
type BlockPointer struct {
	Number uint64
	Hash   string
}

// IndexingProgress is the freshness state of one indexing: either it
// reported a usable block range ("fresh") or it did not ("stale").
type IndexingProgress struct {
	Fresh         bool
	LatestBlock   uint64
	EarliestBlock uint64
}

// IndexingStatus is the outcome of resolving one indexing for a snapshot.
type IndexingStatus int

const (
	// IndexingOK means the indexing resolved cleanly.
	IndexingOK IndexingStatus = iota
	// IndexingErrored means resolution failed; the enclosing IndexingResult.Err
	// holds the reason.
	IndexingErrored
)

// Indexing is a specific (indexer, deployment) pair with its resolved state
// (spec.md section 3).
type Indexing struct {
	ID                   IndexingID
	LargestAllocation    [20]byte
	TotalAllocatedTokens uint64 // in GRT-wei-equivalent units, truncated to fit a machine word
	Progress             IndexingProgress
	CostModel            *CompiledCostModel
	Status               IndexingStatus
	Err                  error
}

// Deployment is an immutable, content-addressed compiled subgraph (spec.md
// section 3).
type Deployment struct {
	ID         DeploymentID
	Chain      string
	StartBlock uint64
	Subgraphs  map[SubgraphID]struct{}
	Indexings  map[IndexingID]IndexingResult
}

// IndexingResult is either a resolved Indexing or the error that excluded it.
type IndexingResult struct {
	Indexing Indexing
	Err      error
}

// Subgraph is a mutable pointer to an ordered sequence of deployment
// versions, all sharing one chain (spec.md section 3).
type Subgraph struct {
	ID         SubgraphID
	Chain      string
	StartBlock uint64
	Versions   []DeploymentID // ordered, newest first
	Indexings  map[IndexingID]IndexingResult
}
