package selection

// BlockRequirements is the block range a query needs an indexing to be able
// to serve, either a minimum height or "latest observed by the gateway"
// (spec.md section 4.5/4.6).
type BlockRequirements struct {
	MinBlock     uint64
	HasMinBlock  bool
	NeedsLatest  bool
}

// Freshness tracks one indexing's distance behind the chain head (spec.md
// section 4.5, "Freshness"). Unlike Performance/Reputation it is not a
// DecayBuffer: blocks-behind is a point-in-time fact refreshed every
// topology tick, not something to integrate over history.
type Freshness struct {
	blocksBehind     uint64
	latestKnownBlock uint64
}

// Observe updates the freshness state from the indexing's most recently
// resolved progress against the gateway's view of the chain head.
func (f *Freshness) Observe(latestKnown, indexingLatest uint64) {
	f.latestKnownBlock = latestKnown
	if indexingLatest >= latestKnown {
		f.blocksBehind = 0
		return
	}
	f.blocksBehind = latestKnown - indexingLatest
}

// BlocksBehind returns the last observed lag.
func (f *Freshness) BlocksBehind() uint64 { return f.blocksBehind }

// freshnessUtilityScale sets how quickly utility decays with blocks behind:
// utility = 1 / (1 + blocksBehind/scale).
const freshnessUtilityScale = 50.0

// ExpectedFreshnessUtility returns 0 if the indexing cannot serve req given
// latestBlock/blocksBehind, otherwise a decreasing function of blocksBehind
// scaled by uA (spec.md section 4.5: "returns 0 if the indexing cannot serve
// the requested block range; otherwise a decreasing function of
// blocks_behind").
//
// latestBlock is the gateway's view of chain head, blocksBehind is this
// indexing's lag behind it (as of its last observed progress); the
// indexing's own reachable block is therefore latestBlock-blocksBehind, NOT
// latestBlock itself (spec.md section 8 scenario 3: an indexing at block
// 1000 must be rejected for a query requiring block >= 1040 even though the
// network's chain head is 1050).
func ExpectedFreshnessUtility(req BlockRequirements, uA float64, latestBlock, blocksBehind uint64) float64 {
	if req.HasMinBlock {
		var indexingLatest uint64
		if blocksBehind < latestBlock {
			indexingLatest = latestBlock - blocksBehind
		}
		if indexingLatest < req.MinBlock {
			return 0
		}
	}
	scale := freshnessUtilityScale
	if uA > 0 {
		scale = freshnessUtilityScale / uA
	}
	return 1.0 / (1.0 + float64(blocksBehind)/scale)
}
