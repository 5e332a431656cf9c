// Package allocation owns per-(indexer, deployment) collateral accounting:
// the active allocation address and, for the legacy receipt scheme, a pool
// of in-flight borrows against that collateral (spec.md section 3,
// "Allocation / Receipt state"; section 4.5, "Allocations"; section 9's
// Open Question resolution unifying this with the receipt signer's
// legacy_pools table — see DESIGN.md).
package allocation

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/graphops/gateway-core/gatewaylog"
)

var poolLog = gatewaylog.New("allocation.pool")

// Status is the outcome a released receipt is reconciled against (spec.md
// section 4.5, "release(receipt_bytes, status)").
type Status int

const (
	// StatusSuccess means the downstream query succeeded.
	StatusSuccess Status = iota
	// StatusFailure means the downstream query failed in a way attributable
	// to the indexer (counts against reputation).
	StatusFailure
	// StatusUnknown means the outcome could not be determined (e.g. a
	// timeout); it still counts as a release for collateral-accounting
	// purposes (spec.md section 3 invariant: "unknown counts as release").
	StatusUnknown
)

// borrow is one commit()'d receipt still awaiting release.
type borrow struct {
	fee uint64
}

// Pool tracks in-flight legacy-receipt borrows against one allocation's
// collateral (spec.md section 4.5, "Allocations"). Every Pool has its own
// mutex so distinct indexings never contend (spec.md section 5, "Shared
// mutable state").
type Pool struct {
	mu sync.Mutex

	allocation [20]byte
	collateral uint64
	borrowed   uint64
	inFlight   map[string]borrow
}

// NewPool builds a Pool for the given active allocation and its total
// collateral (spec.md section 3, Indexing.total_allocated_tokens).
func NewPool(allocationAddr [20]byte, collateral uint64) *Pool {
	return &Pool{
		allocation: allocationAddr,
		collateral: collateral,
		inFlight:   make(map[string]borrow),
	}
}

// SetAllocation updates the active allocation and collateral ceiling in
// place, called when a topology refresh reports a changed allocation for an
// indexing that already has a Pool (spec.md section 4.7, update_allocations
// "atomically retains" semantics, generalized to the unified Table).
func (p *Pool) SetAllocation(allocationAddr [20]byte, collateral uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allocation = allocationAddr
	p.collateral = collateral
}

// ErrInsufficientCollateral is returned by Commit when the requested fee
// would exceed the pool's remaining collateral.
var ErrInsufficientCollateral = fmt.Errorf("allocation: insufficient collateral")

// Commit reserves fee against the pool's remaining collateral and returns
// opaque receipt bytes: the allocation address (20 bytes) followed by a
// fresh random commitment secret (32 bytes) that is never sent to the
// indexer (spec.md section 3, "Receipt"; section 6, legacy header is only
// the first len-32 bytes). Every receipt returned here must eventually reach
// exactly one Release call (spec.md section 8 invariant).
func (p *Pool) Commit(fee uint64) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.borrowed+fee > p.collateral {
		return nil, ErrInsufficientCollateral
	}

	var secret [32]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return nil, fmt.Errorf("allocation: generating receipt commitment: %w", err)
	}

	receipt := make([]byte, 0, 20+32)
	receipt = append(receipt, p.allocation[:]...)
	receipt = append(receipt, secret[:]...)

	p.borrowed += fee
	p.inFlight[hex.EncodeToString(secret[:])] = borrow{fee: fee}
	return receipt, nil
}

// Release reconciles a previously committed receipt by outcome, freeing its
// reserved collateral. A receipt unknown to this pool (already released, or
// never committed here) is an idempotent no-op logged at warn level — this
// module's resolution of spec.md section 9's open question on double-release
// behavior.
func (p *Pool) Release(receipt []byte, status Status) error {
	if len(receipt) != 20+32 {
		return fmt.Errorf("allocation: malformed receipt: want 52 bytes, got %d", len(receipt))
	}
	secret := hex.EncodeToString(receipt[20:])

	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok := p.inFlight[secret]
	if !ok {
		poolLog.Warnf("release of unknown or already-released receipt %s: ignoring", secret[:8])
		return nil
	}
	delete(p.inFlight, secret)
	if b.fee > p.borrowed {
		p.borrowed = 0
	} else {
		p.borrowed -= b.fee
	}
	_ = status // outcome only affects the caller's reputation bookkeeping, not collateral math
	return nil
}

// Remaining returns the pool's unborrowed collateral.
func (p *Pool) Remaining() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.borrowed > p.collateral {
		return 0
	}
	return p.collateral - p.borrowed
}

// TotalAllocation returns the pool's total collateral ceiling, read by
// selection.Factors for price-efficiency/freshness scoring (spec.md
// section 9's unification note: "selection.Factors holds a read-only
// reference into the same allocation.Pool purely to read TotalAllocation()").
func (p *Pool) TotalAllocation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.collateral
}

// Allocation returns the pool's current active allocation address.
func (p *Pool) Allocation() [20]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocation
}
