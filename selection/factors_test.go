package selection

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/graphops/gateway-core/allocation"
	"github.com/graphops/gateway-core/topology"
)

func testIndexingID(b byte) topology.IndexingID {
	dep, err := topology.ParseDeploymentID("QmeYTH2fK2wv96XvnCGH2eyKFE8kmRfo53zYVy5dKysZtH")
	if err != nil {
		panic(err)
	}
	return topology.IndexingID{Indexer: topology.IndexerID{b}, Deployment: dep}
}

func TestFactorsConcurrentObservationsAreNotLost(t *testing.T) {
	f := NewFactors()

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			f.ObserveSuccessfulQuery(time.Millisecond)
		}()
	}
	wg.Wait()

	require.EqualValues(t, n, f.performance.Current().count)
	require.EqualValues(t, n, f.reputation.Current().successes)
}

func TestFactorsTotalAllocationWithoutPoolIsZero(t *testing.T) {
	f := NewFactors()
	require.EqualValues(t, 0, f.TotalAllocation())
}

func TestFactorsTotalAllocationReadsAttachedPool(t *testing.T) {
	f := NewFactors()
	pool := allocation.NewPool([20]byte{1}, 500)
	f.SetPool(pool)
	require.EqualValues(t, 500, f.TotalAllocation())
}

func TestTableGetOrCreateIsIdempotent(t *testing.T) {
	table := NewTable()
	id := testIndexingID(1)

	f1 := table.GetOrCreate(id)
	f2 := table.GetOrCreate(id)
	require.Same(t, f1, f2)
	require.Equal(t, 1, table.Len())
}

func TestTableGetWithoutCreate(t *testing.T) {
	table := NewTable()
	_, ok := table.Get(testIndexingID(1))
	require.False(t, ok)
}

func TestTableMarkPresentAndGC(t *testing.T) {
	table := NewTable()
	present := testIndexingID(1)
	absent := testIndexingID(2)

	table.GetOrCreate(present)
	table.GetOrCreate(absent)

	// present appears every tick; absent never does again. GC should evict
	// absent once it has been missing for 3 consecutive snapshots.
	for i := 0; i < 3; i++ {
		table.MarkPresent([]topology.IndexingID{present})
		evicted := table.GC(3)
		if i < 2 {
			require.Equal(t, 0, evicted, "tick %d should not evict yet", i)
		} else {
			require.Equal(t, 1, evicted, "tick %d should evict the long-absent indexing", i)
		}
	}

	require.Equal(t, 1, table.Len())
	_, ok := table.Get(present)
	require.True(t, ok)
}

func TestTableGCDoesNotEvictRecentlyPresent(t *testing.T) {
	table := NewTable()
	id := testIndexingID(1)
	table.MarkPresent([]topology.IndexingID{id})

	evicted := table.GC(3)
	require.Equal(t, 0, evicted)
	require.Equal(t, 1, table.Len())
}
