package receipts

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphops/gateway-core/allocation"
	"github.com/graphops/gateway-core/topology"
)

func testIndexer(b byte) topology.IndexerID {
	var id topology.IndexerID
	id[0] = b
	return id
}

func testDeployment(t *testing.T) topology.DeploymentID {
	t.Helper()
	id, err := topology.ParseDeploymentID("QmeYTH2fK2wv96XvnCGH2eyKFE8kmRfo53zYVy5dKysZtH")
	require.NoError(t, err)
	return id
}

// newTestAllocationTable builds an allocation.Table with a single entry for
// (indexer, testDeployment) so CreateReceipt/CreateLegacyReceipt have an
// allocation to look up.
func newTestAllocationTable(t *testing.T, signer [20]byte, allocationAddr [20]byte, collateral uint64) *allocation.Table {
	t.Helper()
	tbl := allocation.NewTable()
	tbl.Update(map[allocation.Key]allocation.Entry{
		{Indexer: testIndexer(0x01), Deployment: testDeployment(t)}: {
			Allocation: allocationAddr,
			Collateral: collateral,
		},
	})
	return tbl
}

func TestCreateReceiptReturnsNilWithoutAllocation(t *testing.T) {
	key, err := DeriveSignerKey(testMnemonic)
	require.NoError(t, err)
	tbl := allocation.NewTable() // empty: no allocation for this indexer/deployment
	signer := NewSigner(key, key, testDomain(), tbl)

	r := signer.CreateReceipt(testIndexer(0x99), testDeployment(t), 100)
	require.Nil(t, r)
}

func TestCreateLegacyReceiptReturnsNilWithoutAllocation(t *testing.T) {
	key, err := DeriveSignerKey(testMnemonic)
	require.NoError(t, err)
	tbl := allocation.NewTable()
	signer := NewSigner(key, key, testDomain(), tbl)

	r := signer.CreateLegacyReceipt(testIndexer(0x99), testDeployment(t), 100)
	require.Nil(t, r)
}

func TestCreateLegacyReceiptBytesCarryAllocationPrefix(t *testing.T) {
	key, err := DeriveSignerKey(testMnemonic)
	require.NoError(t, err)
	allocAddr := [20]byte{0xa1}
	tbl := newTestAllocationTable(t, key.Address(), allocAddr, 1000)
	signer := NewSigner(key, key, testDomain(), tbl)

	r := signer.CreateLegacyReceipt(testIndexer(0x01), testDeployment(t), 100)
	require.NotNil(t, r)
	require.Equal(t, allocAddr, r.Allocation())
	require.Equal(t, uint64(100), r.GRTValue())
}

func TestRecordReceiptReleasesLegacyPoolBorrow(t *testing.T) {
	key, err := DeriveSignerKey(testMnemonic)
	require.NoError(t, err)
	tbl := newTestAllocationTable(t, key.Address(), [20]byte{0xa1}, 100)
	signer := NewSigner(key, key, testDomain(), tbl)

	r := signer.CreateLegacyReceipt(testIndexer(0x01), testDeployment(t), 100)
	require.NotNil(t, r)

	pool, ok := tbl.Get(allocation.Key{Indexer: testIndexer(0x01), Deployment: testDeployment(t)})
	require.True(t, ok)
	require.Equal(t, uint64(0), pool.Remaining())

	signer.RecordReceipt(testIndexer(0x01), testDeployment(t), r, allocation.StatusSuccess)
	require.Equal(t, uint64(100), pool.Remaining())
}

func TestRecordReceiptIsNoOpForTAPReceipts(t *testing.T) {
	key, err := DeriveSignerKey(testMnemonic)
	require.NoError(t, err)
	tbl := newTestAllocationTable(t, key.Address(), [20]byte{0xa1}, 1000)
	signer := NewSigner(key, key, testDomain(), tbl)

	r := signer.CreateReceipt(testIndexer(0x01), testDeployment(t), 100)
	require.NotNil(t, r)

	// must not panic or affect any pool state; TAP settlement is off-band.
	require.NotPanics(t, func() {
		signer.RecordReceipt(testIndexer(0x01), testDeployment(t), r, allocation.StatusSuccess)
	})
}

func TestUpdateAllocationsDropsBlockedIndexerAndCreateReceiptReturnsNil(t *testing.T) {
	key, err := DeriveSignerKey(testMnemonic)
	require.NoError(t, err)
	tbl := newTestAllocationTable(t, key.Address(), [20]byte{0xa1}, 1000)
	signer := NewSigner(key, key, testDomain(), tbl)

	r := signer.CreateReceipt(testIndexer(0x01), testDeployment(t), 100)
	require.NotNil(t, r)

	// simulate the indexer getting address-blocklisted on the next snapshot:
	// update_allocations retracts its entry (spec.md section 8, scenario 2).
	signer.UpdateAllocations(map[allocation.Key]allocation.Entry{})

	r2 := signer.CreateReceipt(testIndexer(0x01), testDeployment(t), 100)
	require.Nil(t, r2)
}
