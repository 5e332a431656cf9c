package allocation

import (
	"sync"

	"github.com/graphops/gateway-core/topology"
)

// Key identifies one (indexer, deployment) allocation/pool entry.
type Key struct {
	Indexer    topology.IndexerID
	Deployment topology.DeploymentID
}

// Entry is one topology-reported allocation fact: the currently active
// allocation address and its total collateral.
type Entry struct {
	Allocation [20]byte
	Collateral uint64
}

// Table is the single owner of per-(indexer,deployment) collateral pools
// (spec.md section 9's Open Question resolution: allocation.Table unifies
// what spec.md sections 4.5 and 4.7 describe as two overlapping objects).
// receipts.Signer holds a Table and is the only caller of Pool.Commit/
// Pool.Release; selection.Factors holds a read-only reference to the same
// pools purely to read TotalAllocation(). A single RWMutex guards the
// key set; each Pool has its own mutex for per-indexing operations, so
// distinct indexings never contend with each other (spec.md section 5).
type Table struct {
	mu    sync.RWMutex
	pools map[Key]*Pool
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{pools: make(map[Key]*Pool)}
}

// Update atomically retains only entries whose key is still present in
// entries, creates new Pools for newly appearing keys, and refreshes the
// allocation/collateral of existing ones (spec.md section 4.7,
// update_allocations). Pools for departed keys are dropped: any outstanding
// receipts against them can no longer be released, which is acceptable
// because those allocations have closed.
func (t *Table) Update(entries map[Key]Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for k := range t.pools {
		if _, ok := entries[k]; !ok {
			delete(t.pools, k)
		}
	}
	for k, e := range entries {
		if p, ok := t.pools[k]; ok {
			p.SetAllocation(e.Allocation, e.Collateral)
			continue
		}
		t.pools[k] = NewPool(e.Allocation, e.Collateral)
	}
}

// Get returns the Pool for key, or (nil, false) if the key has no active
// allocation this cycle (spec.md section 4.7, "missing allocation -> None").
func (t *Table) Get(key Key) (*Pool, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.pools[key]
	return p, ok
}

// Len reports how many (indexer, deployment) pairs currently have an active
// allocation, for tests and diagnostics.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.pools)
}
