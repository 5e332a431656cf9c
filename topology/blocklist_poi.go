package topology

// PoiEntry is one blocked proof-of-indexing: an indexer reporting poiHash at
// (deployment, block) is blocked for that deployment only (spec.md 4.1).
type PoiEntry struct {
	Deployment  DeploymentID
	Block       uint64
	ExpectedPoi [32]byte
}

type poiKey struct {
	deployment DeploymentID
	block      uint64
}

// PoiBlocklist is an immutable set of (deployment, block, expected-poi)
// triples.
type PoiBlocklist struct {
	byKey map[poiKey][32]byte
}

// NewPoiBlocklist builds a PoiBlocklist from a fixed list of entries.
func NewPoiBlocklist(entries []PoiEntry) *PoiBlocklist {
	b := &PoiBlocklist{byKey: make(map[poiKey][32]byte, len(entries))}
	for _, e := range entries {
		b.byKey[poiKey{e.Deployment, e.Block}] = e.ExpectedPoi
	}
	return b
}

// Empty reports whether the blocklist has no entries, letting the builder
// skip the PoI resolution stage entirely (spec.md section 4.3 step 5).
func (b *PoiBlocklist) Empty() bool {
	return b == nil || len(b.byKey) == 0
}

// Entries returns the (deployment, block) pairs this blocklist cares about,
// the input to the batched PoI resolver.
func (b *PoiBlocklist) Entries() []PoiEntry {
	if b == nil {
		return nil
	}
	out := make([]PoiEntry, 0, len(b.byKey))
	for k, poi := range b.byKey {
		out = append(out, PoiEntry{Deployment: k.deployment, Block: k.block, ExpectedPoi: poi})
	}
	return out
}

// IsBlocked reports whether reportedPoi mismatches the expected PoI for
// (deployment, block). A (deployment, block) pair with no blocklist entry is
// never blocked.
func (b *PoiBlocklist) IsBlocked(deployment DeploymentID, block uint64, reportedPoi [32]byte) bool {
	if b == nil {
		return false
	}
	expected, ok := b.byKey[poiKey{deployment, block}]
	if !ok {
		return false
	}
	return expected != reportedPoi
}
