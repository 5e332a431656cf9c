package selection

import "github.com/graphops/gateway-core/topology"

// PriceContext carries the query-time variables a cost model needs to
// compute a price (e.g. estimated result size, chain, whatever the deployed
// cost model declares), plus the caller's budget for this query (spec.md
// section 4.5, "Price efficiency").
type PriceContext struct {
	Variables map[string]float64
	Budget    float64
}

// priceEfficiencyUtilityFloor is the highest price-efficiency utility. It is
// returned as-is for a nil model and reached exactly when price is 0; utility
// falls linearly from it to 0 as price rises to the budget.
const priceEfficiencyUtilityFloor = 1.0

// ExpectedPriceEfficiency evaluates model against ctx's variables and
// returns (price, utility): utility is high when price << budget and 0 when
// price > budget (spec.md section 4.5). A nil model (indexing reported no
// cost model) is treated as free: price 0, full utility, matching the
// teacher's convention of degrading gracefully rather than hard-failing on
// optional metadata.
func ExpectedPriceEfficiency(model *topology.CompiledCostModel, ctx PriceContext) (price float64, utility float64, err error) {
	if model == nil {
		return 0, priceEfficiencyUtilityFloor, nil
	}
	price, err = model.Price(ctx.Variables)
	if err != nil {
		return 0, 0, err
	}
	if ctx.Budget <= 0 || price > ctx.Budget {
		return price, 0, nil
	}
	return price, priceEfficiencyUtilityFloor * (1 - price/ctx.Budget), nil
}
