package selection

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestObserveSuccessAndFailure(t *testing.T) {
	r := NewReputation()
	ObserveSuccess(&r)
	ObserveSuccess(&r)
	ObserveFailure(&r)

	cur := r.Current()
	require.EqualValues(t, 2, cur.successes)
	require.EqualValues(t, 1, cur.failures)
	require.InDelta(t, 2.0/3.0, cur.ratio(), 1e-9)
}

func TestEmptyReputationBucketIsNeutral(t *testing.T) {
	var b reputationBucket
	require.Equal(t, reputationUtilityNeutral, b.ratio())
}

func TestExpectedReputationUtilityPureFailuresIsZero(t *testing.T) {
	r := NewReputation()
	for i := 0; i < 5; i++ {
		ObserveFailure(&r)
	}
	require.Equal(t, 0.0, ExpectedReputationUtility(&r, decayLambda, 1.0))
}

func TestExpectedReputationUtilityPureSuccessesApproachesOne(t *testing.T) {
	r := NewReputation()
	for i := 0; i < 5; i++ {
		ObserveSuccess(&r)
	}
	require.InDelta(t, 1.0, ExpectedReputationUtility(&r, decayLambda, 1.0), 1e-9)
}

func TestExpectedReputationUtilityPunishesMixedHarderThanLinear(t *testing.T) {
	r := NewReputation()
	ObserveSuccess(&r)
	ObserveFailure(&r)

	utility := ExpectedReputationUtility(&r, decayLambda, 1.0)
	require.Less(t, utility, 0.5, "a 50%% ratio should read worse than a linear half-credit")
}
