package selection

import (
	"context"
	"sort"
	"time"

	"github.com/graphops/gateway-core/allocation"
	"github.com/graphops/gateway-core/gatewaylog"
	"github.com/graphops/gateway-core/metrics"
	"github.com/graphops/gateway-core/receipts"
	"github.com/graphops/gateway-core/topology"
)

var engineLog = gatewaylog.New("selection.engine")

// Weights are the per-factor weights (spec.md section 4.6, "u_a") passed to
// the performance, reputation and freshness expected-utility functions, where
// each sets how sharply that factor's utility responds. The PriceEfficiency
// weight is not read: price-efficiency utility is computed without a weight.
type Weights struct {
	Performance     float64
	Reputation      float64
	Freshness       float64
	PriceEfficiency float64
}

// DefaultWeights weighs every factor equally.
func DefaultWeights() Weights {
	return Weights{Performance: 1, Reputation: 1, Freshness: 1, PriceEfficiency: 1}
}

// ReceiptFormat selects which receipt scheme the engine mints for the
// winning candidate (spec.md section 4.7 supports both concurrently; a
// given deployment/indexer is provisioned for one or the other).
type ReceiptFormat int

const (
	ReceiptFormatTAP ReceiptFormat = iota
	ReceiptFormatLegacy
)

// Query describes one selection request: which deployment or subgraph to
// serve, the block range it needs, a price context/budget, and per-factor
// weights (spec.md section 4.6, "a query referencing (deployment or
// subgraph, block requirements, budget)").
//
// A query targets exactly one of Deployment or Subgraph; set HasSubgraph to
// resolve against the subgraph's indexings (every version it currently
// points to) instead of a single deployment's.
type Query struct {
	Deployment   topology.DeploymentID
	Subgraph     topology.SubgraphID
	HasSubgraph  bool
	Requirements BlockRequirements
	Price        PriceContext
	Weights      Weights
	Format       ReceiptFormat
	LatestBlock  uint64
}

// Candidate is one ranked indexing, with its composed utility and the price
// its cost model quoted.
type Candidate struct {
	Indexing topology.IndexingID
	Utility  float64
	Price    float64
}

// AttemptFunc issues the actual downstream query against candidate using
// receipt, and reports whether it succeeded. Actual query execution is an
// out-of-scope collaborator (spec.md section 1, "the HTTP front end"); the
// engine only owns ranking, receipt minting, and the retry loop around this
// callback (spec.md section 4.6 step 5).
type AttemptFunc func(ctx context.Context, candidate Candidate, receipt receipts.ScalarReceipt) (success bool, latency time.Duration, err error)

// Result is the outcome of a successful Select: the winning candidate, the
// receipt minted for it, and how many candidates were tried.
type Result struct {
	Candidate Candidate
	Receipt   receipts.ScalarReceipt
	Attempts  int
}

// Engine ranks candidates for a query and mints a receipt for the winner,
// retrying against the next-ranked candidate on downstream failure (spec.md
// section 4.6).
type Engine struct {
	snapshots  *topology.SnapshotStore
	factors    *Table
	signer     *receipts.Signer
	retryLimit int
}

// NewEngine wires an Engine from its collaborators. retryLimit is
// config.Config.IndexerSelectionRetryLimit.
func NewEngine(snapshots *topology.SnapshotStore, factors *Table, signer *receipts.Signer, retryLimit int) *Engine {
	return &Engine{snapshots: snapshots, factors: factors, signer: signer, retryLimit: retryLimit}
}

// Select resolves candidates for query from the current snapshot, ranks
// them, and attempts each in order (minting a receipt and invoking attempt)
// until one succeeds or the retry limit is exhausted (spec.md section 4.6).
func (e *Engine) Select(ctx context.Context, query *Query, attempt AttemptFunc) (*Result, error) {
	snapshot := e.snapshots.Current()
	if snapshot == nil {
		metrics.SelectionOutcomes.WithLabelValues("no_snapshot").Inc()
		return nil, ErrNoIndexers
	}

	candidates := e.rankCandidates(snapshot, query)
	if len(candidates) == 0 {
		metrics.SelectionOutcomes.WithLabelValues("no_candidates").Inc()
		return nil, ErrNoIndexers
	}

	maxAttempts := e.retryLimit + 1
	if maxAttempts > len(candidates) {
		maxAttempts = len(candidates)
	}

	for i := 0; i < maxAttempts; i++ {
		c := candidates[i]
		receipt := e.mintReceipt(query.Format, c.Indexing, query.Price.Budget)
		if receipt == nil {
			engineLog.Warnf("no receipt available for %s, trying next candidate", c.Indexing)
			continue
		}

		ok, latency, err := attempt(ctx, c, receipt)
		status := allocation.StatusSuccess
		if err != nil {
			status = allocation.StatusUnknown
		} else if !ok {
			status = allocation.StatusFailure
		}
		e.signer.RecordReceipt(c.Indexing.Indexer, c.Indexing.Deployment, receipt, status)

		if f, found := e.factors.Get(c.Indexing); found {
			if ok {
				f.ObserveSuccessfulQuery(latency)
			} else {
				f.ObserveFailedQuery(latency)
			}
		}

		if ok {
			metrics.SelectionOutcomes.WithLabelValues("success").Inc()
			return &Result{Candidate: c, Receipt: receipt, Attempts: i + 1}, nil
		}
		engineLog.Warnf("candidate %s failed downstream attempt %d/%d", c.Indexing, i+1, maxAttempts)
	}

	metrics.SelectionOutcomes.WithLabelValues("exhausted").Inc()
	return nil, ErrNoIndexers
}

// mintReceipt dispatches to the configured receipt format, returning nil if
// minting failed for any reason (no allocation, exhausted collateral).
func (e *Engine) mintReceipt(format ReceiptFormat, id topology.IndexingID, fee float64) receipts.ScalarReceipt {
	feeInt := uint64(fee)
	if format == ReceiptFormatLegacy {
		r := e.signer.CreateLegacyReceipt(id.Indexer, id.Deployment, feeInt)
		if r == nil {
			return nil
		}
		return r
	}
	r := e.signer.CreateReceipt(id.Indexer, id.Deployment, feeInt)
	if r == nil {
		return nil
	}
	return r
}

// rankCandidates resolves every Ok indexing for query.Deployment or
// query.Subgraph, scores it, drops hard failures (any factor utility of
// exactly 0), and returns them sorted by descending utility with a
// deterministic IndexerID tie-break (spec.md section 4.6 steps 1-4).
func (e *Engine) rankCandidates(snapshot *topology.NetworkTopologySnapshot, query *Query) []Candidate {
	indexings := e.resolveIndexings(snapshot, query)
	if indexings == nil {
		return nil
	}

	var candidates []Candidate
	for id, res := range indexings {
		if res.Err != nil {
			continue
		}
		indexing := res.Indexing

		f := e.factors.GetOrCreate(id)
		price, priceUtility, err := f.ExpectedPriceEfficiency(indexing.CostModel, query.Price)
		if err != nil {
			continue
		}

		perf := f.ExpectedPerformanceUtility(query.Weights.Performance)
		rep := f.ExpectedReputationUtility(query.Weights.Reputation)
		fresh := f.ExpectedFreshnessUtility(query.Requirements, query.Weights.Freshness, query.LatestBlock)

		if perf == 0 || rep == 0 || fresh == 0 || priceUtility == 0 {
			continue
		}

		utility := perf * rep * fresh * priceUtility
		candidates = append(candidates, Candidate{Indexing: id, Utility: utility, Price: price})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Utility != candidates[j].Utility {
			return candidates[i].Utility > candidates[j].Utility
		}
		return candidates[i].Indexing.Indexer.String() < candidates[j].Indexing.Indexer.String()
	})
	return candidates
}

// resolveIndexings gathers the pool of candidate indexings a query may be
// served from. A deployment query resolves directly; a subgraph query walks
// every deployment version the subgraph currently points to via
// NetworkTopologySnapshot.SubgraphDeployments and merges their indexings,
// so an indexer serving any version of the subgraph is eligible (spec.md
// section 4.6, "a query referencing (deployment or subgraph...)").
func (e *Engine) resolveIndexings(snapshot *topology.NetworkTopologySnapshot, query *Query) map[topology.IndexingID]topology.IndexingResult {
	if query.HasSubgraph {
		deploymentIDs := snapshot.SubgraphDeployments(query.Subgraph)
		if len(deploymentIDs) == 0 {
			return nil
		}
		merged := make(map[topology.IndexingID]topology.IndexingResult)
		for _, did := range deploymentIDs {
			dep, ok := snapshot.Deployments[did]
			if !ok {
				continue
			}
			for id, res := range dep.Indexings {
				merged[id] = res
			}
		}
		if len(merged) == 0 {
			return nil
		}
		return merged
	}

	dep, ok := snapshot.Deployments[query.Deployment]
	if !ok {
		return nil
	}
	return dep.Indexings
}
