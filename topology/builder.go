package topology

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/graphops/gateway-core/gatewaylog"
)

var buildLog = gatewaylog.New("topology.builder")

// Blocklists bundles the three blocklists applied during a build (spec.md
// section 4.1); any may be nil.
type Blocklists struct {
	Address *AddressBlocklist
	Host    *HostBlocklist
	Poi     *PoiBlocklist
}

// BuildConfig carries the per-tick knobs the builder needs from config.Config
// without importing it directly, keeping topology free of a config dependency
// cycle.
type BuildConfig struct {
	MinIndexerVersion   string
	MinGraphNodeVersion string
	StaleBlocksBehind   uint64
}

// Builder assembles one NetworkTopologySnapshot per tick (spec.md section 4.3).
type Builder struct {
	registry SubgraphRegistryClient
	indexers IndexerHTTPClient

	hosts     *HostResolver
	versions  *VersionResolver
	progress  *ProgressResolver
	costs     *CostModelResolver
	pois      *PoiResolver

	blocklists Blocklists
	config     BuildConfig
}

// NewBuilder wires a Builder from its resolvers and collaborators.
func NewBuilder(registry SubgraphRegistryClient, indexers IndexerHTTPClient, hosts *HostResolver, versions *VersionResolver, progress *ProgressResolver, costs *CostModelResolver, pois *PoiResolver, blocklists Blocklists, cfg BuildConfig) *Builder {
	return &Builder{
		registry:   registry,
		indexers:   indexers,
		hosts:      hosts,
		versions:   versions,
		progress:   progress,
		costs:      costs,
		pois:       pois,
		blocklists: blocklists,
		config:     cfg,
	}
}

// Build runs the full six-step pipeline once and returns the resulting
// snapshot, or an error if step 1 (registry fetch) failed outright.
func (b *Builder) Build(ctx context.Context) (*NetworkTopologySnapshot, error) {
	// Step 1: fetch all registry pages; any page failing fails the tick.
	records, err := b.fetchAllPages(ctx)
	if err != nil {
		buildLog.Warnf("registry fetch failed, keeping prior snapshot: %v", err)
		return nil, ErrRegistryUnavailable
	}

	// Step 2: derive the candidate universe.
	indexers := make(map[IndexerID]Indexer)
	subgraphs := make(map[SubgraphID]Subgraph, len(records))
	deployments := make(map[DeploymentID]Deployment)

	for _, rec := range records {
		sg := Subgraph{ID: rec.ID, Chain: rec.Chain, StartBlock: rec.StartBlock, Indexings: make(map[IndexingID]IndexingResult)}
		for _, ver := range rec.Versions {
			sg.Versions = append(sg.Versions, ver.Deployment)
			dep, ok := deployments[ver.Deployment]
			if !ok {
				dep = Deployment{ID: ver.Deployment, Chain: rec.Chain, StartBlock: rec.StartBlock, Subgraphs: make(map[SubgraphID]struct{}), Indexings: make(map[IndexingID]IndexingResult)}
			}
			dep.Subgraphs[rec.ID] = struct{}{}
			for _, idxRec := range ver.Indexings {
				u, uerr := url.Parse(idxRec.URL)
				if uerr != nil {
					continue
				}
				if _, ok := indexers[idxRec.Indexer]; !ok {
					indexers[idxRec.Indexer] = Indexer{ID: idxRec.Indexer, URL: u}
				}
				id := IndexingID{Indexer: idxRec.Indexer, Deployment: ver.Deployment}
				dep.Indexings[id] = IndexingResult{Indexing: Indexing{
					ID:                   id,
					LargestAllocation:    idxRec.LargestAllocation,
					TotalAllocatedTokens: idxRec.AllocatedTokens,
				}}
			}
			deployments[ver.Deployment] = dep
		}
		subgraphs[rec.ID] = sg
	}

	indexerErrs := make(map[IndexerID]*IndexerError)
	indexingErrs := make(map[IndexingID]*IndexingError)

	// Step 3: address blocklist, applied immediately.
	for id := range indexers {
		if b.blocklists.Address.IsBlocked(id) {
			ierr := &IndexerError{Indexer: id, Kind: IndexerBlockedAddress}
			indexerErrs[id] = ierr
			delete(indexers, id)
		}
	}

	// Step 4: per-indexer host + version resolution, concurrent across indexers.
	goodIndexers := make(map[IndexerID]Indexer, len(indexers))
	var mu4 sync.Mutex
	g4, gctx4 := errgroup.WithContext(ctx)
	for _, idx := range indexers {
		idx := idx
		g4.Go(func() error {
			kind, ok := b.resolveIndexer(gctx4, idx)
			mu4.Lock()
			defer mu4.Unlock()
			if !ok {
				indexerErrs[idx.ID] = &IndexerError{Indexer: idx.ID, Kind: kind}
				return nil
			}
			goodIndexers[idx.ID] = idx
			return nil
		})
	}
	_ = g4.Wait()

	for id, ierr := range indexerErrs {
		for did, dep := range deployments {
			for iid, res := range dep.Indexings {
				if iid.Indexer == id {
					indexingErrs[iid] = &IndexingError{ID: iid, Kind: IndexingIndexerError, Cause: ierr}
					res.Err = indexingErrs[iid]
					res.Indexing.Status = IndexingErrored
					dep.Indexings[iid] = res
				}
			}
			deployments[did] = dep
		}
	}

	// Step 5: per-indexing progress/cost-model/PoI resolution, concurrent
	// across indexers (batched per indexer within each resolver).
	cc := newCompileCache()
	poiEntries := b.blocklists.Poi.Entries()

	g5, gctx5 := errgroup.WithContext(ctx)
	var mu5 sync.Mutex
	for id, idx := range goodIndexers {
		id, idx := id, idx
		deps := deploymentsFor(deployments, id)
		if len(deps) == 0 {
			continue
		}
		g5.Go(func() error {
			b.resolveIndexings(gctx5, idx, deps, deployments, cc, poiEntries, &mu5, indexingErrs)
			return nil
		})
	}
	_ = g5.Wait()

	// Step 5b: per-deployment staleness threshold (spec.md section 4.3 step
	// 5: "progress older than a configured threshold is also Stale"), applied
	// after every indexer's progress has resolved so the furthest-along
	// fresh indexing of each deployment is known.
	if b.config.StaleBlocksBehind > 0 {
		for did, dep := range deployments {
			var latestKnown uint64
			for _, res := range dep.Indexings {
				if res.Err == nil && res.Indexing.Progress.Fresh && res.Indexing.Progress.LatestBlock > latestKnown {
					latestKnown = res.Indexing.Progress.LatestBlock
				}
			}
			if latestKnown == 0 {
				continue
			}
			for iid, res := range dep.Indexings {
				if res.Err != nil || !res.Indexing.Progress.Fresh {
					continue
				}
				if latestKnown-res.Indexing.Progress.LatestBlock > b.config.StaleBlocksBehind {
					res.Indexing.Progress.Fresh = false
					res.Indexing.Status = IndexingErrored
					ierr := &IndexingError{ID: iid, Kind: IndexingMissingBlock}
					indexingErrs[iid] = ierr
					res.Err = ierr
					dep.Indexings[iid] = res
				}
			}
			deployments[did] = dep
		}
	}

	// Step 5c: populate each subgraph's own indexings view by merging the
	// indexings of every deployment version it points to (spec.md section 3,
	// "Subgraph: {... indexings: map<IndexingId, Result<Indexing,
	// IndexingError>>}"). Done last so it reflects step 5b's staleness pass.
	for sgid, sg := range subgraphs {
		for _, did := range sg.Versions {
			dep, ok := deployments[did]
			if !ok {
				continue
			}
			for id, res := range dep.Indexings {
				sg.Indexings[id] = res
			}
		}
		subgraphs[sgid] = sg
	}

	snapshot := &NetworkTopologySnapshot{
		TakenAt:        time.Now(),
		Subgraphs:      subgraphs,
		Deployments:    deployments,
		Indexers:       goodIndexers,
		IndexerErrors:  indexerErrs,
		IndexingErrors: indexingErrs,
	}
	return snapshot, nil
}

func deploymentsFor(deployments map[DeploymentID]Deployment, indexer IndexerID) []DeploymentID {
	var out []DeploymentID
	for did, dep := range deployments {
		if _, ok := dep.Indexings[IndexingID{Indexer: indexer, Deployment: did}]; ok {
			out = append(out, did)
		}
	}
	return out
}

// fetchAllPages paginates through the registry client until nextCursor is empty.
func (b *Builder) fetchAllPages(ctx context.Context) ([]SubgraphRecord, error) {
	var all []SubgraphRecord
	cursor := ""
	for {
		page, next, err := b.registry.FetchSubgraphs(ctx, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if next == "" {
			break
		}
		cursor = next
	}
	return all, nil
}

// resolveIndexer runs step 4 for one indexer: host resolve, host blocklist,
// version resolve, minimum-version check.
func (b *Builder) resolveIndexer(ctx context.Context, idx Indexer) (IndexerErrorKind, bool) {
	ips, err := b.hosts.Resolve(ctx, idx)
	if err != nil {
		return IndexerHostResolutionFailed, false
	}
	if b.blocklists.Host.IsBlockedAny(ips) {
		return IndexerBlockedHost, false
	}
	info, err := b.versions.Resolve(ctx, idx)
	if err != nil {
		return IndexerNoStatus, false
	}
	if err := CheckMinimums(info, b.config.MinIndexerVersion, b.config.MinGraphNodeVersion); err != nil {
		return IndexerWrongVersion, false
	}
	return 0, true
}

// resolveIndexings runs step 5 for every deployment indexer indexes.
func (b *Builder) resolveIndexings(ctx context.Context, idx Indexer, deps []DeploymentID, deployments map[DeploymentID]Deployment, cc *compileCache, poiEntries []PoiEntry, mu *sync.Mutex, indexingErrs map[IndexingID]*IndexingError) {
	progressByDep, progressErrs := b.progress.ResolveBatch(ctx, idx, deps)
	costsByDep, costErrs := b.costs.ResolveBatch(ctx, idx, deps)

	var poiResults map[IndexingID]PoiResult
	if !b.blocklists.Poi.Empty() {
		poiResults, _ = b.pois.ResolveBatch(ctx, idx, poiEntries)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, d := range deps {
		id := IndexingID{Indexer: idx.ID, Deployment: d}
		dep := deployments[d]
		res := dep.Indexings[id]

		if perr, ok := progressErrs[d]; ok {
			indexingErrs[id] = &IndexingError{ID: id, Kind: IndexingNoStatus, Cause: perr}
			res.Err = indexingErrs[id]
			dep.Indexings[id] = res
			continue
		}
		progress := progressByDep[d]
		stale := !progress.Fresh
		res.Indexing.Progress = progress
		res.Indexing.Status = IndexingOK
		if stale {
			indexingErrs[id] = &IndexingError{ID: id, Kind: IndexingMissingBlock}
			res.Err = indexingErrs[id]
			res.Indexing.Status = IndexingErrored
		}

		if src, ok := costsByDep[d]; ok {
			model, err := cc.compile(src)
			if err == nil {
				res.Indexing.CostModel = model
			} else if res.Err == nil {
				indexingErrs[id] = &IndexingError{ID: id, Kind: IndexingNoCostModel, Cause: err}
				res.Err = indexingErrs[id]
				res.Indexing.Status = IndexingErrored
			}
		} else if cerr, ok := costErrs[d]; ok && res.Err == nil {
			indexingErrs[id] = &IndexingError{ID: id, Kind: IndexingNoCostModel, Cause: cerr}
			res.Err = indexingErrs[id]
			res.Indexing.Status = IndexingErrored
		}

		if poiResults != nil {
			if pr, ok := poiResults[id]; ok && pr.Err == nil {
				if b.blocklists.Poi.IsBlocked(d, pr.Block, pr.Poi) {
					indexingErrs[id] = &IndexingError{ID: id, Kind: IndexingBlockedPoi}
					res.Err = indexingErrs[id]
					res.Indexing.Status = IndexingErrored
				}
			}
		}

		dep.Indexings[id] = res
	}
}
