package topology

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompileCostModelDefaultClause(t *testing.T) {
	model, err := CompileCostModel(CostModelSource{
		Model:     `default => (10 + gas);`,
		Variables: `{"gas": 3}`,
	})
	require.NoError(t, err)

	price, err := model.Price(nil)
	require.NoError(t, err)
	require.Equal(t, 13.0, price)
}

func TestCompileCostModelQueryVariableOverridesDefault(t *testing.T) {
	model, err := CompileCostModel(CostModelSource{
		Model:     `default => gas * 2;`,
		Variables: `{"gas": 3}`,
	})
	require.NoError(t, err)

	price, err := model.Price(map[string]float64{"gas": 10})
	require.NoError(t, err)
	require.Equal(t, 20.0, price)
}

func TestCompileCostModelMissingDefaultClause(t *testing.T) {
	_, err := CompileCostModel(CostModelSource{Model: `other => 1;`})
	require.Error(t, err)
}

func TestCompileCostModelUndefinedVariable(t *testing.T) {
	model, err := CompileCostModel(CostModelSource{Model: `default => missing;`})
	require.NoError(t, err)

	_, err = model.Price(nil)
	require.Error(t, err)
}

func TestCompileCostModelDivisionByZero(t *testing.T) {
	model, err := CompileCostModel(CostModelSource{Model: `default => 1 / zero;`, Variables: `{"zero": 0}`})
	require.NoError(t, err)

	_, err = model.Price(nil)
	require.Error(t, err)
}

func TestCompileCostModelPriceIsMemoized(t *testing.T) {
	model, err := CompileCostModel(CostModelSource{Model: `default => a + b;`})
	require.NoError(t, err)

	vars := map[string]float64{"a": 1, "b": 2}
	first, err := model.Price(vars)
	require.NoError(t, err)

	// Mutating the caller's map after the fact must not perturb the memoized
	// result for the same key.
	vars["a"] = 99
	second, err := model.Price(map[string]float64{"a": 1, "b": 2})
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestCompileCache(t *testing.T) {
	cc := newCompileCache()
	src := CostModelSource{Model: `default => 1 + 1;`}

	m1, err := cc.compile(src)
	require.NoError(t, err)

	m2, err := cc.compile(src)
	require.NoError(t, err)
	require.Same(t, m1, m2, "identical source should hit the within-tick cache")
}

func TestCompileCacheBadModelIsCachedAsKnownBad(t *testing.T) {
	cc := newCompileCache()
	src := CostModelSource{Model: `no default clause here`}

	_, err1 := cc.compile(src)
	require.Error(t, err1)

	_, err2 := cc.compile(src)
	require.Error(t, err2)
}
