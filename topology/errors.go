package topology

import "fmt"

// IndexerErrorKind enumerates why an entire indexer was excluded from a
// snapshot (spec.md section 7).
type IndexerErrorKind int

const (
	IndexerNoStatus IndexerErrorKind = iota
	IndexerWrongVersion
	IndexerHostResolutionFailed
	IndexerBlockedHost
	IndexerBlockedAddress
)

func (k IndexerErrorKind) String() string {
	switch k {
	case IndexerNoStatus:
		return "no_status"
	case IndexerWrongVersion:
		return "wrong_version"
	case IndexerHostResolutionFailed:
		return "host_resolution_failed"
	case IndexerBlockedHost:
		return "blocked_host"
	case IndexerBlockedAddress:
		return "blocked_address"
	default:
		return "unknown"
	}
}

// IndexerError reports why an indexer was excluded; all of its indexings
// become IndexingError{Kind: IndexingIndexerError}.
type IndexerError struct {
	Indexer IndexerID
	Kind    IndexerErrorKind
}

func (e *IndexerError) Error() string {
	return fmt.Sprintf("indexer %s: %s", e.Indexer, e.Kind)
}

// IndexingErrorKind enumerates why a single indexing was excluded.
type IndexingErrorKind int

const (
	IndexingIndexerError IndexingErrorKind = iota
	IndexingNoAllocation
	IndexingNoStatus
	IndexingMissingBlock
	IndexingBlockedPoi
	IndexingNoCostModel
)

func (k IndexingErrorKind) String() string {
	switch k {
	case IndexingIndexerError:
		return "indexer_error"
	case IndexingNoAllocation:
		return "no_allocation"
	case IndexingNoStatus:
		return "no_status"
	case IndexingMissingBlock:
		return "missing_block"
	case IndexingBlockedPoi:
		return "blocked_poi"
	case IndexingNoCostModel:
		return "no_cost_model"
	default:
		return "unknown"
	}
}

// IndexingError reports why a single indexing was excluded from a snapshot.
type IndexingError struct {
	ID     IndexingID
	Kind   IndexingErrorKind
	Cause  error // non-nil when Kind == IndexingIndexerError
}

func (e *IndexingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("indexing %s: %s: %v", e.ID, e.Kind, e.Cause)
	}
	return fmt.Sprintf("indexing %s: %s", e.ID, e.Kind)
}

func (e *IndexingError) Unwrap() error { return e.Cause }

// SubgraphError is a top-level subgraph resolution failure surfaced to callers.
type SubgraphError struct {
	ID    SubgraphID
	Cause error
}

func (e *SubgraphError) Error() string { return fmt.Sprintf("subgraph %s: %v", e.ID, e.Cause) }
func (e *SubgraphError) Unwrap() error { return e.Cause }

// DeploymentError is a top-level deployment resolution failure surfaced to callers.
type DeploymentError struct {
	ID    DeploymentID
	Cause error
}

func (e *DeploymentError) Error() string { return fmt.Sprintf("deployment %s: %v", e.ID, e.Cause) }
func (e *DeploymentError) Unwrap() error { return e.Cause }

// ErrTimeout is returned by SnapshotStore.WaitUntilReady when its done channel
// closes before the first publish. Resolver calls that exceed their per-call
// budget do not return ErrTimeout: they fail with the resolver's own error
// (an IndexerError or IndexingError, or the DNS lookup error for hosts).
var ErrTimeout = fmt.Errorf("topology: resolver call timed out")

// ErrRegistryUnavailable means a tick's registry fetch failed; the old
// snapshot remains current (spec.md section 7).
var ErrRegistryUnavailable = fmt.Errorf("topology: registry unavailable")
