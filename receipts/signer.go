package receipts

import (
	"time"

	"github.com/graphops/gateway-core/allocation"
	"github.com/graphops/gateway-core/gatewaylog"
	"github.com/graphops/gateway-core/metrics"
	"github.com/graphops/gateway-core/topology"
)

var signerLog = gatewaylog.New("receipts.signer")

// Signer mints receipts and owns the allocation.Table both receipt formats
// draw on (spec.md section 4.7). It holds two signing keys: signerKey for
// TAP receipts and legacySignerKey for the legacy pool scheme, since the two
// schemes historically came from different signing domains (spec.md
// section 4.7, "signer_key... legacy_signer_key").
type Signer struct {
	signerKey       *SignerKey
	legacySignerKey *SignerKey
	domain          Domain

	table *allocation.Table
}

// NewSigner builds a Signer. table is the single allocation.Table this
// Signer is the sole mutator of (spec.md section 9's unification note).
func NewSigner(signerKey, legacySignerKey *SignerKey, domain Domain, table *allocation.Table) *Signer {
	return &Signer{signerKey: signerKey, legacySignerKey: legacySignerKey, domain: domain, table: table}
}

// Table exposes the underlying allocation.Table so other components
// (selection.Factors, via Table.Get) can attach a read-only Pool reference.
func (s *Signer) Table() *allocation.Table { return s.table }

// CreateReceipt mints a TAP EIP-712 signed receipt for (indexer, deployment,
// fee). Returns nil if there is no active allocation for this indexing
// (spec.md section 4.7, "looks up the allocation; if absent, returns None").
// Signing failure is treated as a programmer error (invariant violation of
// key material) and is fatal (spec.md section 4.7).
func (s *Signer) CreateReceipt(indexer topology.IndexerID, deployment topology.DeploymentID, fee uint64) *TAPReceipt {
	pool, ok := s.table.Get(allocation.Key{Indexer: indexer, Deployment: deployment})
	if !ok {
		return nil
	}
	allocationAddr := pool.Allocation()

	nonce, err := cryptoRandNonce()
	if err != nil {
		signerLog.Fatalf("generating tap receipt nonce: %v", err)
	}
	msg := TAPMessage{
		AllocationID: allocationAddr,
		TimestampNs:  uint64(time.Now().UnixNano()),
		Nonce:        nonce,
		Value:        fee,
	}
	_, sig := signDigest(s.signerKey.priv, s.domain, msg)
	metrics.ReceiptsIssued.WithLabelValues("tap").Inc()
	return &TAPReceipt{Message: msg, Signature: sig}
}

// CreateLegacyReceipt mints a legacy pool-based receipt by delegating to the
// indexing's Pool.Commit. Returns nil if there is no active allocation, or
// if the pool's collateral is exhausted (spec.md section 4.7).
func (s *Signer) CreateLegacyReceipt(indexer topology.IndexerID, deployment topology.DeploymentID, fee uint64) *LegacyReceipt {
	pool, ok := s.table.Get(allocation.Key{Indexer: indexer, Deployment: deployment})
	if !ok {
		return nil
	}
	bytes, err := pool.Commit(fee)
	if err != nil {
		return nil
	}
	metrics.ReceiptsIssued.WithLabelValues("legacy").Inc()
	return &LegacyReceipt{Fee: fee, Bytes: bytes}
}

// RecordReceipt reconciles a minted receipt by outcome. Legacy receipts
// release their pool borrow; TAP receipts are no-ops since TAP settlement is
// off-band (spec.md section 4.7, "record_receipt").
func (s *Signer) RecordReceipt(indexer topology.IndexerID, deployment topology.DeploymentID, receipt ScalarReceipt, status allocation.Status) {
	legacy, ok := receipt.(*LegacyReceipt)
	if !ok {
		return
	}
	pool, ok := s.table.Get(allocation.Key{Indexer: indexer, Deployment: deployment})
	if !ok {
		return
	}
	if err := pool.Release(legacy.Bytes, status); err != nil {
		signerLog.Warnf("releasing legacy receipt for %s/%s: %v", indexer, deployment, err)
	}
}

// UpdateAllocations refreshes the underlying allocation.Table from a fresh
// topology snapshot's reported allocations (spec.md section 4.7,
// "update_allocations").
func (s *Signer) UpdateAllocations(entries map[allocation.Key]allocation.Entry) {
	s.table.Update(entries)
}
