package topology

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/graphops/gateway-core/gatewaylog"
	"github.com/graphops/gateway-core/metrics"
)

var updaterLog = gatewaylog.New("topology.updater")

// Updater drives periodic rebuilds of the NetworkTopologySnapshot on a fixed
// cadence, publishing each successful build to a SnapshotStore (spec.md
// section 4.4). Its state machine is Idle -> Fetching -> Publishing -> Idle;
// a tick that fires while the previous tick is still Fetching is dropped
// rather than queued ("skip missed ticks"), matching the teacher's
// cluster_info_lite.go refresh ticker and manager.go's 10s rebalance loop.
type Updater struct {
	builder  *Builder
	store    *SnapshotStore
	interval time.Duration

	// OnPublish, if set, is called synchronously after every successful
	// publish, before the next tick can start. The gateway package uses this
	// to synchronize selection.Table/allocation.Table with the new snapshot
	// (spec.md section 9, "key a separate long-lived map by IndexingId").
	OnPublish func(*NetworkTopologySnapshot)

	busy atomic.Bool
}

// NewUpdater wires an Updater around builder, publishing into store every
// interval.
func NewUpdater(builder *Builder, store *SnapshotStore, interval time.Duration) *Updater {
	return &Updater{builder: builder, store: store, interval: interval}
}

// Run blocks, ticking every u.interval until ctx is cancelled. It fires one
// tick immediately on entry so WaitUntilReady callers aren't stuck waiting a
// full interval for the first snapshot.
func (u *Updater) Run(ctx context.Context) {
	u.tick(ctx)

	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			u.tick(ctx)
		}
	}
}

// tick runs one Fetching->Publishing cycle, skipping entirely if a previous
// tick is still in flight. A tick that runs longer than u.interval is logged
// as a warning but is never cancelled, so a slow registry can't starve
// readers of a snapshot entirely (spec.md section 4.4/5, "Cancellation").
func (u *Updater) tick(ctx context.Context) {
	if !u.busy.CompareAndSwap(false, true) {
		metrics.TicksSkipped.Inc()
		updaterLog.Warnf("skipping tick: previous fetch still in progress")
		return
	}
	defer u.busy.Store(false)

	start := time.Now()
	budget := time.AfterFunc(u.interval, func() {
		updaterLog.Warnf("tick exceeded update_interval (%s); fetch continues uncancelled", u.interval)
	})
	defer budget.Stop()

	snapshot, err := u.builder.Build(ctx)
	metrics.TickDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		updaterLog.Errorf("tick failed, keeping prior snapshot: %v", err)
		return
	}
	u.store.Publish(snapshot)
	updaterLog.Infof("published snapshot: %d deployments, %d indexers, %d indexing errors",
		len(snapshot.Deployments), len(snapshot.Indexers), len(snapshot.IndexingErrors))

	if u.OnPublish != nil {
		u.OnPublish(snapshot)
	}
}

// WaitUntilReady blocks until the first snapshot is published or ctx is
// cancelled.
func (u *Updater) WaitUntilReady(ctx context.Context) error {
	return u.store.WaitUntilReady(ctx.Done())
}
