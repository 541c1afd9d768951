package engine

import (
	"math"

	"github.com/gdtan02/swift-trader/internal/apperr"
)

// CostModel charges commission on every fill and derives affordable BUY
// quantities from a sized cash amount.
type CostModel struct {
	rate          float64
	minCommission float64
}

// NewCostModel creates a CostModel with the given thresholds.
//
//   - rate: commission as a fraction of traded notional, in [0, 1)
//     (e.g. 0.0006 for 6 bps).
//   - minCommission: floor applied to every fill, >= 0.
func NewCostModel(rate, minCommission float64) (CostModel, error) {
	if !(rate >= 0 && rate < 1) {
		return CostModel{}, apperr.Newf(apperr.CodeInvalidRange, "commission rate %v", rate)
	}
	if !(minCommission >= 0) || math.IsInf(minCommission, 0) {
		return CostModel{}, apperr.Newf(apperr.CodeInvalidRange, "minimum commission %v", minCommission)
	}
	return CostModel{rate: rate, minCommission: minCommission}, nil
}

// Commission returns max(rate × amount, minCommission).
func (c CostModel) Commission(amount float64) float64 {
	return math.Max(c.rate*amount, c.minCommission)
}

// BuyQuantity returns the quantity bought with commit cash at price, after
// commission, and the commission itself. ok is false when commission eats
// the whole amount.
func (c CostModel) BuyQuantity(commit, price float64) (qty, commission float64, ok bool) {
	commission = c.Commission(commit)
	net := commit - commission
	if !(net > 0) || !(price > 0) {
		return 0, commission, false
	}
	return net / price, commission, true
}
