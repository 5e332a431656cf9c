package selection

import "time"

// latencyBucket accumulates query count and total latency for one decay
// slice. A simple running sum (rather than a full histogram with explicit
// bins) is enough to compute mean latency per bucket, which is all the
// expected-utility integration in spec.md section 4.5 needs.
type latencyBucket struct {
	count        uint64
	totalSeconds float64
	successes    uint64
	failures     uint64
}

// Performance is the per-indexing latency DecayBuffer (spec.md section 4.5,
// "Performance"). K=performanceBuckets (24, roughly one bucket per update
// cycle at the updater's default cadence) matches the teacher's convention
// of keeping a bounded rolling window rather than unbounded history.
const performanceBuckets = 24

// NewPerformance builds an empty Performance decay buffer.
func NewPerformance() DecayBuffer[latencyBucket] {
	return NewDecayBuffer(performanceBuckets, func() latencyBucket { return latencyBucket{} })
}

// ObserveQuery records one completed query's latency and outcome into the
// current bucket.
func ObserveQuery(p *DecayBuffer[latencyBucket], latency time.Duration, success bool) {
	cur := p.Current()
	cur.count++
	cur.totalSeconds += latency.Seconds()
	if success {
		cur.successes++
	} else {
		cur.failures++
	}
}

// meanLatency returns a bucket's average latency in seconds, or
// performanceUtilityFloorLatency (an optimistic prior) if the bucket is empty.
func (b latencyBucket) meanLatency() float64 {
	if b.count == 0 {
		return performanceUtilityFloorLatency
	}
	return b.totalSeconds / float64(b.count)
}

// performanceUtilityFloorLatency is the latency assumed for a bucket with no
// observations, chosen low enough that a never-queried indexing isn't
// penalized below indexers with a thin history of fast responses.
const performanceUtilityFloorLatency = 0.1 // 100ms

// performanceUtilityScale sets how quickly utility falls off with latency:
// utility = 1 / (1 + latencySeconds/scale). At scale seconds, utility is 0.5.
const performanceUtilityScale = 1.0 // 1s

// ExpectedPerformanceUtility integrates mean latency over every bucket with
// exponential weight lambda (older buckets contribute less), converting the
// weighted-average latency into a utility in (0, 1] via a smooth decreasing
// function. u_a scales the curve's sensitivity per spec.md section 4.6's
// per-factor weight.
func ExpectedPerformanceUtility(p *DecayBuffer[latencyBucket], lambda, uA float64) float64 {
	meanSeconds := WeightedSum(p, lambda, latencyBucket.meanLatency)
	scale := performanceUtilityScale
	if uA > 0 {
		scale = performanceUtilityScale / uA
	}
	return 1.0 / (1.0 + meanSeconds/scale)
}
