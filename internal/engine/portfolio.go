package engine

import (
	"time"

	"github.com/gdtan02/swift-trader/internal/domain"
	"github.com/gdtan02/swift-trader/internal/metrics"
)

// TradeEntry is one order in a run's trade history, rejected ones included.
type TradeEntry struct {
	Time  time.Time    `json:"time"`
	Order domain.Order `json:"order"`
}

// Portfolio is the result of a single run. It is built privately by Run and
// handed to the caller only after the loop finishes.
type Portfolio struct {
	Label          string                  `json:"label"`
	Symbol         string                  `json:"symbol"`
	InitialCapital float64                 `json:"initialCapital"`
	Cash           float64                 `json:"cash"`
	PeakEquity     float64                 `json:"peakEquity"`
	Start          time.Time               `json:"startDate"`
	End            time.Time               `json:"endDate"`
	Positions      []domain.Position       `json:"positions"`
	Trades         []TradeEntry            `json:"trades"`
	Equity         []domain.Point          `json:"equityCurve"`
	Drawdown       []domain.Point          `json:"drawdownCurve"`
	PnL            []domain.Point          `json:"pnl"`
	Performance    metrics.Performance     `json:"performanceMetrics"`
	Statistics     metrics.TradeStatistics `json:"tradeStatistics"`
}

// Orders returns the orders of the trade history in order.
func (p *Portfolio) Orders() []domain.Order {
	out := make([]domain.Order, len(p.Trades))
	for i, t := range p.Trades {
		out[i] = t.Order
	}
	return out
}

// FinalEquity returns the last point of the equity curve, or the initial
// capital for an empty run.
func (p *Portfolio) FinalEquity() float64 {
	if len(p.Equity) == 0 {
		return p.InitialCapital
	}
	return p.Equity[len(p.Equity)-1].Value
}

// firstDifference returns the bar-over-bar change of curve, first value 0.
func firstDifference(curve []domain.Point) []domain.Point {
	out := make([]domain.Point, len(curve))
	for i, pt := range curve {
		out[i] = domain.Point{Time: pt.Time}
		if i > 0 {
			out[i].Value = pt.Value - curve[i-1].Value
		}
	}
	return out
}
