package allocation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoolCommitReturnsReceiptWithAllocationPrefix(t *testing.T) {
	addr := [20]byte{0x01}
	p := NewPool(addr, 100)

	receipt, err := p.Commit(10)
	require.NoError(t, err)
	require.Len(t, receipt, 52)
	require.Equal(t, addr[:], receipt[:20])
}

func TestPoolCommitRejectsFeeExceedingCollateral(t *testing.T) {
	p := NewPool([20]byte{0x02}, 10)

	_, err := p.Commit(5)
	require.NoError(t, err)

	_, err = p.Commit(6)
	require.ErrorIs(t, err, ErrInsufficientCollateral)
}

func TestPoolReleaseFreesCollateralForReuse(t *testing.T) {
	p := NewPool([20]byte{0x03}, 10)

	r1, err := p.Commit(10)
	require.NoError(t, err)
	require.Equal(t, uint64(0), p.Remaining())

	require.NoError(t, p.Release(r1, StatusSuccess))
	require.Equal(t, uint64(10), p.Remaining())

	_, err = p.Commit(10)
	require.NoError(t, err)
}

func TestPoolReleaseOfUnknownReceiptIsIdempotentNoOp(t *testing.T) {
	p := NewPool([20]byte{0x04}, 10)

	r1, err := p.Commit(10)
	require.NoError(t, err)
	require.NoError(t, p.Release(r1, StatusFailure))

	// second release of the same (already-released) receipt must not error
	// or double-credit collateral (spec.md section 9's open question).
	require.NoError(t, p.Release(r1, StatusUnknown))
	require.Equal(t, uint64(10), p.Remaining())
}

func TestPoolReleaseRejectsMalformedReceipt(t *testing.T) {
	p := NewPool([20]byte{0x05}, 10)
	require.Error(t, p.Release([]byte{1, 2, 3}, StatusSuccess))
}

func TestPoolUnknownStatusStillReleasesCollateral(t *testing.T) {
	p := NewPool([20]byte{0x06}, 10)
	r1, err := p.Commit(10)
	require.NoError(t, err)

	require.NoError(t, p.Release(r1, StatusUnknown))
	require.Equal(t, uint64(10), p.Remaining())
}

func TestPoolSetAllocationUpdatesAddressAndCeiling(t *testing.T) {
	p := NewPool([20]byte{0x07}, 10)
	newAddr := [20]byte{0x08}
	p.SetAllocation(newAddr, 50)

	require.Equal(t, newAddr, p.Allocation())
	require.Equal(t, uint64(50), p.TotalAllocation())
}

func TestPoolConcurrentCommitsNeverOverdrawCollateral(t *testing.T) {
	p := NewPool([20]byte{0x09}, 100)

	var wg sync.WaitGroup
	commits := make([][]byte, 20)
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := p.Commit(10)
			if err == nil {
				commits[i] = r
			}
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, r := range commits {
		if r != nil {
			succeeded++
		}
	}
	require.Equal(t, 10, succeeded) // exactly 100/10 commits can be satisfied
	require.Equal(t, uint64(0), p.Remaining())
}
