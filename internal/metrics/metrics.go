// Package metrics computes performance metrics and trade statistics from a
// finished run's equity history and order history.
package metrics

import (
	"encoding/json"
	"math"

	"github.com/gdtan02/swift-trader/internal/apperr"
	"github.com/gdtan02/swift-trader/internal/domain"
)

// Common bars-per-year values.
const (
	DailyBarsPerYear  = 252
	HourlyBarsPerYear = 8760
)

// Performance summarises a run. Ratios are nil when undefined.
type Performance struct {
	TotalReturn          float64  `json:"totalReturn"`
	TotalReturnPct       float64  `json:"totalReturnPct"`
	FinalEquity          float64  `json:"finalEquity"`
	AnnualizedReturn     float64  `json:"annualizedReturn"`
	AnnualizedVolatility float64  `json:"annualizedVolatility"`
	SharpeRatio          *float64 `json:"sharpeRatio"`
	SortinoRatio         *float64 `json:"sortinoRatio"`
	CalmarRatio          *float64 `json:"calmarRatio"`
	MaxDrawdown          float64  `json:"maxDrawdown"`
	MaxDrawdownPct       float64  `json:"maxDrawdownPct"`
	DurationYears        float64  `json:"backtestDuration"`
}

// MarshalJSON writes non-finite values as null. Annualising a short,
// high-frequency window can overflow the annualised return.
func (p Performance) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		TotalReturn          *float64 `json:"totalReturn"`
		TotalReturnPct       *float64 `json:"totalReturnPct"`
		FinalEquity          *float64 `json:"finalEquity"`
		AnnualizedReturn     *float64 `json:"annualizedReturn"`
		AnnualizedVolatility *float64 `json:"annualizedVolatility"`
		SharpeRatio          *float64 `json:"sharpeRatio"`
		SortinoRatio         *float64 `json:"sortinoRatio"`
		CalmarRatio          *float64 `json:"calmarRatio"`
		MaxDrawdown          *float64 `json:"maxDrawdown"`
		MaxDrawdownPct       *float64 `json:"maxDrawdownPct"`
		DurationYears        *float64 `json:"backtestDuration"`
	}{
		TotalReturn:          finite(p.TotalReturn),
		TotalReturnPct:       finite(p.TotalReturnPct),
		FinalEquity:          finite(p.FinalEquity),
		AnnualizedReturn:     finite(p.AnnualizedReturn),
		AnnualizedVolatility: finite(p.AnnualizedVolatility),
		SharpeRatio:          p.SharpeRatio,
		SortinoRatio:         p.SortinoRatio,
		CalmarRatio:          p.CalmarRatio,
		MaxDrawdown:          finite(p.MaxDrawdown),
		MaxDrawdownPct:       finite(p.MaxDrawdownPct),
		DurationYears:        finite(p.DurationYears),
	})
}

// TradeStatistics aggregates closed trades (completed SELL orders).
type TradeStatistics struct {
	AveragePnL       float64 `json:"averagePnl"`
	ProfitableTrades int     `json:"profitableTrades"`
	LosingTrades     int     `json:"losingTrades"`
	WinRate          float64 `json:"winRate"`
	TotalTrades      int     `json:"totalTrades"`
}

// Input is the finished history of one run.
type Input struct {
	InitialCapital float64
	Equity         []domain.Point
	Drawdown       []domain.Point
	PnL            []domain.Point
	Orders         []domain.Order
}

// Calculator annualises with an explicit bars-per-year constant.
type Calculator struct {
	barsPerYear int
}

// NewCalculator returns a Calculator for barsPerYear bars per year.
func NewCalculator(barsPerYear int) (*Calculator, error) {
	if barsPerYear <= 0 {
		return nil, apperr.Newf(apperr.CodeInvalidBarsPerYear, "got %d", barsPerYear)
	}
	return &Calculator{barsPerYear: barsPerYear}, nil
}

// BarsPerYear returns the annualisation constant.
func (c *Calculator) BarsPerYear() int { return c.barsPerYear }

// Compute derives Performance and TradeStatistics from in.
func (c *Calculator) Compute(in Input) (Performance, TradeStatistics, error) {
	if len(in.Equity) == 0 {
		return Performance{}, TradeStatistics{}, apperr.New(apperr.CodeEmptyWindow)
	}
	if !(in.InitialCapital > 0) {
		return Performance{}, TradeStatistics{}, apperr.Newf(apperr.CodeInvalidRange, "initial capital %v", in.InitialCapital)
	}

	equity := domain.Values(in.Equity)
	final := equity[len(equity)-1]
	annualFactor := math.Sqrt(float64(c.barsPerYear))

	var p Performance
	p.FinalEquity = final
	p.TotalReturn = final - in.InitialCapital
	p.TotalReturnPct = p.TotalReturn / in.InitialCapital

	p.DurationYears = float64(len(equity)) / float64(c.barsPerYear)
	p.AnnualizedReturn = math.Pow(final/in.InitialCapital, 1/p.DurationYears) - 1

	returns := barReturns(equity, in.PnL)
	if vol := sampleStd(returns) * annualFactor; isFinite(vol) {
		p.AnnualizedVolatility = vol
		p.SharpeRatio = ratio(p.AnnualizedReturn, vol)
	}

	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) > 0 {
		p.SortinoRatio = ratio(p.AnnualizedReturn, sampleStd(downside)*annualFactor)
	}

	if len(in.Drawdown) > 0 {
		mdd := in.Drawdown[0].Value
		for _, d := range in.Drawdown[1:] {
			mdd = math.Min(mdd, d.Value)
		}
		p.MaxDrawdown = mdd
		p.MaxDrawdownPct = mdd * 100
		p.CalmarRatio = ratio(p.AnnualizedReturn, math.Abs(mdd))
	}

	return p, Statistics(in.Orders), nil
}

// Statistics aggregates the completed SELL orders in orders. With no closed
// trades every field is zero.
func Statistics(orders []domain.Order) TradeStatistics {
	var s TradeStatistics
	var sum float64
	for i := range orders {
		o := &orders[i]
		if !o.IsClosedTrade() {
			continue
		}
		pnl := o.RealizedPnL()
		s.TotalTrades++
		sum += pnl
		switch {
		case pnl > 0:
			s.ProfitableTrades++
		case pnl < 0:
			s.LosingTrades++
		}
	}
	if s.TotalTrades > 0 {
		s.AveragePnL = sum / float64(s.TotalTrades)
		s.WinRate = float64(s.ProfitableTrades) / float64(s.TotalTrades)
	}
	return s
}

// barReturns converts the per-bar P&L into returns on the previous bar's
// equity, with a leading 0. When pnl is not aligned with equity it is
// rederived as the first difference of equity.
func barReturns(equity []float64, pnl []domain.Point) []float64 {
	out := make([]float64, len(equity))
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			continue
		}
		delta := equity[i] - equity[i-1]
		if len(pnl) == len(equity) {
			delta = pnl[i].Value
		}
		out[i] = delta / equity[i-1]
	}
	return out
}

// sampleStd is the n-1 standard deviation; NaN for fewer than two values.
func sampleStd(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))

	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(xs)-1))
}

// ratio returns num/den, or nil when den is zero or not finite.
func ratio(num, den float64) *float64 {
	if den == 0 || !isFinite(den) || !isFinite(num) {
		return nil
	}
	v := num / den
	return &v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finite(v float64) *float64 {
	if !isFinite(v) {
		return nil
	}
	return &v
}
