// Package gateway wires the topology updater, selection engine, and receipt
// signer into the single published-reader facade external callers use
// (spec.md section 2, "Published readers + glue").
package gateway

import (
	"context"

	"github.com/graphops/gateway-core/allocation"
	"github.com/graphops/gateway-core/config"
	"github.com/graphops/gateway-core/gatewaylog"
	"github.com/graphops/gateway-core/receipts"
	"github.com/graphops/gateway-core/selection"
	"github.com/graphops/gateway-core/topology"
)

var gatewayLog = gatewaylog.New("gateway")

// Gateway is the top-level facade: a running topology Updater feeding a
// selection Engine backed by a receipts Signer, matching the data flow in
// spec.md section 2 ("Registry -> SnapshotBuilder ... -> NetworkTopologySnapshot
// -> Selection Engine -> ... -> ReceiptSigner -> ... -> Selection Engine").
type Gateway struct {
	cfg config.Config

	store    *topology.SnapshotStore
	updater  *topology.Updater
	factors  *selection.Table
	signer   *receipts.Signer
	engine   *selection.Engine
}

// New wires a Gateway from its collaborators. builder and the two opaque
// clients it depends on are constructed by the caller (spec.md section 1,
// "out of scope: the raw registry / the indexers themselves").
func New(cfg config.Config, builder *topology.Builder, signerKey, legacySignerKey *receipts.SignerKey) *Gateway {
	store := topology.NewSnapshotStore()
	factorsTable := selection.NewTable()
	allocTable := allocation.NewTable()

	domain := receipts.Domain{
		Name:              "TAP",
		Version:           "1",
		ChainID:           cfg.ChainID,
		VerifyingContract: cfg.VerifyingContract,
	}
	signer := receipts.NewSigner(signerKey, legacySignerKey, domain, allocTable)
	engine := selection.NewEngine(store, factorsTable, signer, cfg.IndexerSelectionRetryLimit)

	updater := topology.NewUpdater(builder, store, cfg.UpdateInterval)

	g := &Gateway{
		cfg:     cfg,
		store:   store,
		updater: updater,
		factors: factorsTable,
		signer:  signer,
		engine:  engine,
	}
	updater.OnPublish = g.onPublish
	return g
}

// Run starts the periodic topology updater; it blocks until ctx is
// cancelled (spec.md section 4.4).
func (g *Gateway) Run(ctx context.Context) {
	g.updater.Run(ctx)
}

// WaitUntilReady blocks until the first topology snapshot has published
// (spec.md section 4.4, "Initial state").
func (g *Gateway) WaitUntilReady(ctx context.Context) error {
	return g.updater.WaitUntilReady(ctx)
}

// Select runs the selection engine's ranking + retry algorithm for query,
// invoking attempt against each candidate in turn (spec.md section 4.6).
func (g *Gateway) Select(ctx context.Context, query *selection.Query, attempt selection.AttemptFunc) (*selection.Result, error) {
	return g.engine.Select(ctx, query, attempt)
}

// Snapshot returns the currently published topology snapshot, or nil if
// none has published yet.
func (g *Gateway) Snapshot() *topology.NetworkTopologySnapshot {
	return g.store.Current()
}

// SelectionFactorsCount reports how many indexings currently have tracked
// selection state, for admin/status surfaces.
func (g *Gateway) SelectionFactorsCount() int {
	return g.factors.Len()
}

// onPublish synchronizes the long-lived selection.Table and the receipt
// signer's allocation.Table with a freshly published snapshot: marking
// presence, refreshing allocations, attaching pool references, decaying
// history, and evicting long-absent indexings (spec.md section 9, "key a
// separate long-lived map by IndexingId; snapshot rebuilds do not clear it").
func (g *Gateway) onPublish(snapshot *topology.NetworkTopologySnapshot) {
	var present []topology.IndexingID
	allocations := make(map[allocation.Key]allocation.Entry)

	for _, dep := range snapshot.Deployments {
		// The gateway has no chain-head RPC of its own (out of scope, spec.md
		// section 1); it approximates "latest known block" per deployment as
		// the furthest-along indexing reporting fresh progress this tick.
		var latestKnown uint64
		for _, res := range dep.Indexings {
			if res.Err == nil && res.Indexing.Progress.Fresh && res.Indexing.Progress.LatestBlock > latestKnown {
				latestKnown = res.Indexing.Progress.LatestBlock
			}
		}

		for id, res := range dep.Indexings {
			if res.Err != nil {
				continue
			}
			present = append(present, id)
			allocations[allocation.Key{Indexer: id.Indexer, Deployment: id.Deployment}] = allocation.Entry{
				Allocation: res.Indexing.LargestAllocation,
				Collateral: res.Indexing.TotalAllocatedTokens,
			}

			f := g.factors.GetOrCreate(id)
			if res.Indexing.Progress.Fresh {
				f.ObserveProgress(latestKnown, res.Indexing.Progress.LatestBlock)
			}
			// Decay once per topology tick, after this tick's observations
			// have landed (spec.md section 4.5, "decay()").
			f.Decay()
		}
	}

	g.signer.UpdateAllocations(allocations)
	for id := range allocations {
		if f, ok := g.factors.Get(topology.IndexingID{Indexer: id.Indexer, Deployment: id.Deployment}); ok {
			if pool, ok := g.signer.Table().Get(id); ok {
				f.SetPool(pool)
			}
		}
	}

	g.factors.MarkPresent(present)
	evicted := g.factors.GC(uint64(g.cfg.SelectionFactorsAbsenceLimit))
	if evicted > 0 {
		gatewayLog.Infof("evicted %d long-absent selection factors", evicted)
	}
}
