package selection

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphops/gateway-core/topology"
)

func TestExpectedPriceEfficiencyNilModelIsFree(t *testing.T) {
	price, utility, err := ExpectedPriceEfficiency(nil, PriceContext{Budget: 1})
	require.NoError(t, err)
	require.Equal(t, 0.0, price)
	require.Equal(t, priceEfficiencyUtilityFloor, utility)
}

func TestExpectedPriceEfficiencyCheapRelativeToBudget(t *testing.T) {
	model, err := topology.CompileCostModel(topology.CostModelSource{Model: `default => 1;`})
	require.NoError(t, err)

	price, utility, err := ExpectedPriceEfficiency(model, PriceContext{Budget: 100})
	require.NoError(t, err)
	require.Equal(t, 1.0, price)
	require.InDelta(t, 0.99, utility, 1e-9)
}

func TestExpectedPriceEfficiencyOverBudgetIsZero(t *testing.T) {
	model, err := topology.CompileCostModel(topology.CostModelSource{Model: `default => 10;`})
	require.NoError(t, err)

	_, utility, err := ExpectedPriceEfficiency(model, PriceContext{Budget: 1})
	require.NoError(t, err)
	require.Equal(t, 0.0, utility)
}

func TestExpectedPriceEfficiencyZeroBudgetIsZero(t *testing.T) {
	model, err := topology.CompileCostModel(topology.CostModelSource{Model: `default => 0;`})
	require.NoError(t, err)

	_, utility, err := ExpectedPriceEfficiency(model, PriceContext{Budget: 0})
	require.NoError(t, err)
	require.Equal(t, 0.0, utility)
}

func TestExpectedPriceEfficiencyPropagatesEvalError(t *testing.T) {
	model, err := topology.CompileCostModel(topology.CostModelSource{Model: `default => undefined_var;`})
	require.NoError(t, err)

	_, _, err = ExpectedPriceEfficiency(model, PriceContext{Budget: 10})
	require.Error(t, err)
}
