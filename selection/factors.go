package selection

import (
	"sync"
	"time"

	"github.com/graphops/gateway-core/allocation"
	"github.com/graphops/gateway-core/topology"
)

// decayLambda weights older DecayBuffer buckets less; the original source's
// equivalent constant is not in the retrieved pack, so this is chosen to put
// meaningful weight (>5%) on roughly the last third of the ring.
const decayLambda = 0.85

// Factors is the per-indexing selection state: latency/reputation history,
// freshness, and a read-only view into that indexing's allocation pool
// (spec.md section 3, "SelectionFactors"). It is created on first
// observation of an indexing and retained across snapshot rebuilds so
// history survives topology churn (spec.md section 3, "Lifecycle").
type Factors struct {
	mu sync.RWMutex

	performance DecayBuffer[latencyBucket]
	reputation  DecayBuffer[reputationBucket]
	freshness   Freshness

	pool *allocation.Pool // read-only from this package's perspective; owned by receipts.Signer

	lastSeenTick uint64 // topology snapshot sequence number this indexing last appeared in
}

// NewFactors builds a fresh, empty Factors for one indexing.
func NewFactors() *Factors {
	return &Factors{
		performance: NewPerformance(),
		reputation:  NewReputation(),
	}
}

// SetPool attaches (or replaces) the read-only allocation.Pool reference
// Factors uses for price-efficiency/freshness's collateral-aware scoring.
func (f *Factors) SetPool(p *allocation.Pool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pool = p
}

// ObserveSuccessfulQuery records a completed, successful query's latency
// (spec.md section 4.5, "observe_successful_query").
func (f *Factors) ObserveSuccessfulQuery(latency time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ObserveQuery(&f.performance, latency, true)
	ObserveSuccess(&f.reputation)
}

// ObserveFailedQuery records a failed query's latency and marks the
// reputation bucket as a failure (spec.md section 4.5, "observe_failed_query").
func (f *Factors) ObserveFailedQuery(latency time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ObserveQuery(&f.performance, latency, false)
	ObserveFailure(&f.reputation)
}

// ObserveProgress updates freshness from the indexing's most recently
// resolved progress (spec.md section 4.5, freshness tracking).
func (f *Factors) ObserveProgress(latestKnown, indexingLatest uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.freshness.Observe(latestKnown, indexingLatest)
}

// Decay slides both the performance and reputation rings one step (spec.md
// section 4.5, "decay()"). Called once per topology tick, after observations
// for that tick have landed.
func (f *Factors) Decay() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.performance.Decay()
	f.reputation.Decay()
}

// MarkSeen records that this indexing was present in topology snapshot tick.
func (f *Factors) MarkSeen(tick uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSeenTick = tick
}

// AbsentSince reports how many ticks have passed since this indexing was
// last seen, given the current tick.
func (f *Factors) AbsentSince(currentTick uint64) uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if currentTick < f.lastSeenTick {
		return 0
	}
	return currentTick - f.lastSeenTick
}

// ExpectedPerformanceUtility reads the current performance weighted utility.
func (f *Factors) ExpectedPerformanceUtility(uA float64) float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ExpectedPerformanceUtility(&f.performance, decayLambda, uA)
}

// ExpectedReputationUtility reads the current reputation weighted utility.
func (f *Factors) ExpectedReputationUtility(uA float64) float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ExpectedReputationUtility(&f.reputation, decayLambda, uA)
}

// ExpectedFreshnessUtility reads the current freshness utility against req.
func (f *Factors) ExpectedFreshnessUtility(req BlockRequirements, uA float64, latestBlock uint64) float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ExpectedFreshnessUtility(req, uA, latestBlock, f.freshness.BlocksBehind())
}

// ExpectedPriceEfficiency evaluates model against ctx, unrelated to the
// locked fields above (spec.md's price_efficiency field sits outside
// "locked" in the original source, evaluated fresh per query).
func (f *Factors) ExpectedPriceEfficiency(model *topology.CompiledCostModel, ctx PriceContext) (price, utility float64, err error) {
	return ExpectedPriceEfficiency(model, ctx)
}

// TotalAllocation reads the indexing's current collateral ceiling through
// its attached allocation.Pool, or 0 if none is attached yet.
func (f *Factors) TotalAllocation() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.pool == nil {
		return 0
	}
	return f.pool.TotalAllocation()
}

// Table is the long-lived map[IndexingID]*Factors store (spec.md section 9,
// "key a separate long-lived map by IndexingId; snapshot rebuilds do not
// clear it"). A single RWMutex guards the map's key set; each Factors has
// its own RWMutex for per-indexing state, so distinct indexings never
// contend (spec.md section 5).
type Table struct {
	mu    sync.RWMutex
	byID  map[topology.IndexingID]*Factors
	tick  uint64
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{byID: make(map[topology.IndexingID]*Factors)}
}

// GetOrCreate returns the Factors for id, creating and storing an empty one
// on first observation (spec.md section 3, "created on first observation of
// the indexing").
func (t *Table) GetOrCreate(id topology.IndexingID) *Factors {
	t.mu.RLock()
	f, ok := t.byID[id]
	t.mu.RUnlock()
	if ok {
		return f
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if f, ok := t.byID[id]; ok {
		return f
	}
	f = NewFactors()
	t.byID[id] = f
	return f
}

// Get returns the Factors for id without creating one.
func (t *Table) Get(id topology.IndexingID) (*Factors, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	f, ok := t.byID[id]
	return f, ok
}

// MarkPresent bumps the current tick counter and marks every id in present
// as seen this tick; call once per topology snapshot before GC.
func (t *Table) MarkPresent(present []topology.IndexingID) {
	t.mu.Lock()
	t.tick++
	tick := t.tick
	t.mu.Unlock()

	for _, id := range present {
		t.GetOrCreate(id).MarkSeen(tick)
	}
}

// GC evicts any Factors absent from the last presentInLastN consecutive
// snapshots (spec.md section 9's open question, resolved with N configurable
// via config.Config.SelectionFactorsAbsenceLimit). Call once per topology
// tick, after MarkPresent.
func (t *Table) GC(presentInLastN uint64) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	evicted := 0
	for id, f := range t.byID {
		if f.AbsentSince(t.tick) >= presentInLastN {
			delete(t.byID, id)
			evicted++
		}
	}
	return evicted
}

// Len reports how many indexings currently have Factors tracked.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}
