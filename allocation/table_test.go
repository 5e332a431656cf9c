package allocation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphops/gateway-core/topology"
)

func keyFor(indexer byte, deployment topology.DeploymentID) Key {
	id := topology.IndexerID{}
	id[0] = indexer
	return Key{Indexer: id, Deployment: deployment}
}

func TestTableUpdateCreatesPoolsForNewKeys(t *testing.T) {
	tbl := NewTable()
	k := keyFor(1, topology.DeploymentID{})

	tbl.Update(map[Key]Entry{k: {Allocation: [20]byte{0xaa}, Collateral: 50}})

	p, ok := tbl.Get(k)
	require.True(t, ok)
	require.Equal(t, uint64(50), p.TotalAllocation())
	require.Equal(t, 1, tbl.Len())
}

func TestTableUpdateDropsDepartedKeys(t *testing.T) {
	tbl := NewTable()
	k1 := keyFor(1, topology.DeploymentID{})
	k2 := keyFor(2, topology.DeploymentID{})

	tbl.Update(map[Key]Entry{
		k1: {Allocation: [20]byte{0xaa}, Collateral: 50},
		k2: {Allocation: [20]byte{0xbb}, Collateral: 50},
	})
	require.Equal(t, 2, tbl.Len())

	tbl.Update(map[Key]Entry{k1: {Allocation: [20]byte{0xaa}, Collateral: 50}})

	require.Equal(t, 1, tbl.Len())
	_, ok := tbl.Get(k2)
	require.False(t, ok)
}

func TestTableUpdateResultHasExactlyTheKeySetOfInput(t *testing.T) {
	tbl := NewTable()
	k1 := keyFor(1, topology.DeploymentID{})
	k2 := keyFor(2, topology.DeploymentID{})
	k3 := keyFor(3, topology.DeploymentID{})

	tbl.Update(map[Key]Entry{
		k1: {Allocation: [20]byte{0xaa}, Collateral: 10},
		k2: {Allocation: [20]byte{0xbb}, Collateral: 10},
	})
	tbl.Update(map[Key]Entry{
		k2: {Allocation: [20]byte{0xbb}, Collateral: 10},
		k3: {Allocation: [20]byte{0xcc}, Collateral: 10},
	})

	_, ok1 := tbl.Get(k1)
	_, ok2 := tbl.Get(k2)
	_, ok3 := tbl.Get(k3)
	require.False(t, ok1)
	require.True(t, ok2)
	require.True(t, ok3)
	require.Equal(t, 2, tbl.Len())
}

func TestTableUpdateRefreshesExistingPoolInPlace(t *testing.T) {
	tbl := NewTable()
	k := keyFor(1, topology.DeploymentID{})
	tbl.Update(map[Key]Entry{k: {Allocation: [20]byte{0xaa}, Collateral: 10}})

	p1, _ := tbl.Get(k)
	// borrow against the pool before the refresh to confirm identity is preserved.
	_, err := p1.Commit(5)
	require.NoError(t, err)

	tbl.Update(map[Key]Entry{k: {Allocation: [20]byte{0xbb}, Collateral: 20}})

	p2, ok := tbl.Get(k)
	require.True(t, ok)
	require.Same(t, p1, p2)
	require.Equal(t, [20]byte{0xbb}, p2.Allocation())
	require.Equal(t, uint64(20), p2.TotalAllocation())
}

func TestTableGetMissingKeyReturnsFalse(t *testing.T) {
	tbl := NewTable()
	_, ok := tbl.Get(keyFor(9, topology.DeploymentID{}))
	require.False(t, ok)
}
