package selection

import "math"

// reputationBucket counts successes and failures within one decay slice
// (spec.md section 4.5, "Reputation").
type reputationBucket struct {
	successes uint64
	failures  uint64
}

// reputationBuckets matches performanceBuckets so the two decay in lockstep
// under a single Factors.decay() call.
const reputationBuckets = performanceBuckets

// NewReputation builds an empty Reputation decay buffer.
func NewReputation() DecayBuffer[reputationBucket] {
	return NewDecayBuffer(reputationBuckets, func() reputationBucket { return reputationBucket{} })
}

// ObserveSuccess records one successful query in the current bucket.
func ObserveSuccess(r *DecayBuffer[reputationBucket]) { r.Current().successes++ }

// ObserveFailure records one failed query in the current bucket.
func ObserveFailure(r *DecayBuffer[reputationBucket]) { r.Current().failures++ }

// ratio returns this bucket's success ratio, or reputationUtilityNeutral (an
// unopinionated prior) if it has no observations at all.
func (b reputationBucket) ratio() float64 {
	total := b.successes + b.failures
	if total == 0 {
		return reputationUtilityNeutral
	}
	return float64(b.successes) / float64(total)
}

// reputationUtilityNeutral is the ratio assumed for a bucket with zero
// queries: neither rewarded nor punished for being unobserved.
const reputationUtilityNeutral = 1.0

// ExpectedReputationUtility integrates the success ratio over every bucket
// that has observations, with exponential weight lambda (an indexing with no
// observations at all gets the neutral ratio), monotonic in the ratio: 0 on
// pure failures, approaching 1 as successes dominate (spec.md section 4.5).
func ExpectedReputationUtility(r *DecayBuffer[reputationBucket], lambda, uA float64) float64 {
	var sum, totalWeight float64
	w := 1.0
	for i := 0; i < r.Len(); i++ {
		if b := r.At(i); b.successes+b.failures > 0 {
			sum += w * b.ratio()
			totalWeight += w
		}
		w *= lambda
	}
	ratio := reputationUtilityNeutral
	if totalWeight > 0 {
		ratio = sum / totalWeight
	}
	if uA <= 0 {
		uA = 1
	}
	// Raise to a power >1 to punish low ratios harder than a bare linear
	// interpolation would (a 50% success rate should read as far worse than
	// "half as good" -- spec.md's "monotonic function... 0 on pure failures").
	return math.Pow(ratio, 2.0/uA)
}
