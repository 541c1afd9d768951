package metrics

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdtan02/swift-trader/internal/apperr"
	"github.com/gdtan02/swift-trader/internal/domain"
)

func curve(vals ...float64) []domain.Point {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	pts := make([]domain.Point, len(vals))
	for i, v := range vals {
		pts[i] = domain.Point{Time: start.AddDate(0, 0, i), Value: v}
	}
	return pts
}

func sell(t *testing.T, pnl float64) domain.Order {
	t.Helper()
	o, err := domain.NewOrder(domain.OrderRequest{Symbol: "BTC", Side: domain.OrderSideSell, Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, o.Fill(100, time.Time{}))
	_, err = o.RealizePnL(100 - pnl)
	require.NoError(t, err)
	return *o
}

func TestNewCalculatorRequiresBarsPerYear(t *testing.T) {
	_, err := NewCalculator(0)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidBarsPerYear))

	c, err := NewCalculator(HourlyBarsPerYear)
	require.NoError(t, err)
	assert.Equal(t, 8760, c.BarsPerYear())
}

func TestComputeEmptyEquity(t *testing.T) {
	c, _ := NewCalculator(DailyBarsPerYear)
	_, _, err := c.Compute(Input{InitialCapital: 100})
	assert.True(t, apperr.Is(err, apperr.CodeEmptyWindow))
}

func TestComputeFlatCurveHasNullRatios(t *testing.T) {
	c, _ := NewCalculator(DailyBarsPerYear)
	perf, stats, err := c.Compute(Input{
		InitialCapital: 100,
		Equity:         curve(100, 100, 100),
		Drawdown:       curve(0, 0, 0),
		PnL:            curve(0, 0, 0),
	})
	require.NoError(t, err)

	assert.Equal(t, 0.0, perf.TotalReturn)
	assert.Equal(t, 0.0, perf.AnnualizedReturn)
	assert.Equal(t, 0.0, perf.AnnualizedVolatility)
	assert.Nil(t, perf.SharpeRatio)
	assert.Nil(t, perf.SortinoRatio)
	assert.Nil(t, perf.CalmarRatio)
	assert.Equal(t, TradeStatistics{}, stats)
}

func TestComputeKnownCurve(t *testing.T) {
	// Four bars with four bars per year is exactly one year.
	c, _ := NewCalculator(4)
	perf, _, err := c.Compute(Input{
		InitialCapital: 100,
		Equity:         curve(100, 110, 99, 121),
		Drawdown:       curve(0, 0, -0.1, 0),
		PnL:            curve(0, 10, -11, 22),
	})
	require.NoError(t, err)

	assert.InDelta(t, 21.0, perf.TotalReturn, 1e-9)
	assert.InDelta(t, 0.21, perf.TotalReturnPct, 1e-12)
	assert.Equal(t, 121.0, perf.FinalEquity)
	assert.InDelta(t, 1.0, perf.DurationYears, 1e-12)
	assert.InDelta(t, 0.21, perf.AnnualizedReturn, 1e-12)

	returns := []float64{0, 0.1, -0.1, 22.0 / 99}
	wantVol := sampleStd(returns) * 2
	assert.InDelta(t, wantVol, perf.AnnualizedVolatility, 1e-12)
	require.NotNil(t, perf.SharpeRatio)
	assert.InDelta(t, 0.21/wantVol, *perf.SharpeRatio, 1e-12)

	// A single negative bar has no sample deviation.
	assert.Nil(t, perf.SortinoRatio)

	assert.Equal(t, -0.1, perf.MaxDrawdown)
	assert.InDelta(t, -10.0, perf.MaxDrawdownPct, 1e-12)
	require.NotNil(t, perf.CalmarRatio)
	assert.InDelta(t, 2.1, *perf.CalmarRatio, 1e-12)
}

func TestComputeSortino(t *testing.T) {
	c, _ := NewCalculator(DailyBarsPerYear)
	// No PnL series: returns are rederived from equity.
	perf, _, err := c.Compute(Input{
		InitialCapital: 100,
		Equity:         curve(100, 90, 72, 79.2),
		Drawdown:       curve(0, -0.1, -0.28, -0.208),
	})
	require.NoError(t, err)
	require.NotNil(t, perf.SortinoRatio)
	want := perf.AnnualizedReturn / (sampleStd([]float64{-0.1, -0.2}) * math.Sqrt(DailyBarsPerYear))
	assert.InDelta(t, want, *perf.SortinoRatio, 1e-9)
}

func TestStatisticsNoClosedTrades(t *testing.T) {
	buy, err := domain.NewOrder(domain.OrderRequest{Side: domain.OrderSideBuy, Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, buy.Fill(10, time.Time{}))

	s := Statistics([]domain.Order{*buy})
	assert.Equal(t, 0, s.TotalTrades)
	assert.Equal(t, 0.0, s.WinRate)
	assert.Equal(t, 0.0, s.AveragePnL)
}

func TestStatisticsMixed(t *testing.T) {
	rejected, err := domain.NewOrder(domain.OrderRequest{Side: domain.OrderSideBuy, Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, rejected.Reject(domain.RejectInsufficientCash))

	s := Statistics([]domain.Order{sell(t, 30), sell(t, -10), sell(t, 0), *rejected, sell(t, 20)})
	assert.Equal(t, 4, s.TotalTrades)
	assert.Equal(t, 2, s.ProfitableTrades)
	assert.Equal(t, 1, s.LosingTrades)
	assert.InDelta(t, 0.5, s.WinRate, 1e-12)
	assert.InDelta(t, 10.0, s.AveragePnL, 1e-12)
}

func TestPerformanceJSONOmitsNonFinite(t *testing.T) {
	sharpe := 1.5
	p := Performance{
		TotalReturn:      10,
		FinalEquity:      110,
		AnnualizedReturn: math.Inf(1),
		SharpeRatio:      &sharpe,
	}
	b, err := json.Marshal(p)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Nil(t, got["annualizedReturn"])
	assert.Nil(t, got["sortinoRatio"])
	assert.Equal(t, 1.5, got["sharpeRatio"])
	assert.Equal(t, 110.0, got["finalEquity"])

	var back Performance
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, 10.0, back.TotalReturn)
	assert.Equal(t, 0.0, back.AnnualizedReturn)
	require.NotNil(t, back.SharpeRatio)
	assert.Equal(t, 1.5, *back.SharpeRatio)
}
