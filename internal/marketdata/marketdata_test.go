package marketdata

import (
	"context"
	"math"
	"testing"
	"time"

	alpacamd "github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdtan02/swift-trader/internal/apperr"
	"github.com/gdtan02/swift-trader/internal/domain"
	"github.com/gdtan02/swift-trader/internal/store"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func hourlyBars(closes ...float64) []domain.Bar {
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{Symbol: "BTC/USD", Timestamp: t0.Add(time.Duration(i) * time.Hour), Close: c}
	}
	return bars
}

func TestParseTimeframe(t *testing.T) {
	for in, want := range map[string]Timeframe{"1h": Hour, "1Hour": Hour, "daily": Day, "1D": Day, "1min": Minute} {
		got, err := ParseTimeframe(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseTimeframe("fortnight")
	assert.True(t, apperr.Is(err, apperr.CodeInvalidData))

	assert.Equal(t, alpacamd.OneHour, Hour.Alpaca())
	assert.Equal(t, alpacamd.OneDay, Day.Alpaca())
}

func TestTableColumns(t *testing.T) {
	tbl := NewTable("BTC/USD", Hour, hourlyBars(1, 2, 3))
	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, []float64{1, 2, 3}, tbl.Closes())

	_, err := tbl.Column("signal")
	assert.True(t, apperr.Is(err, apperr.CodeMissingColumns))

	err = tbl.SetColumn("signal", []float64{1, 0})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidData))

	require.NoError(t, tbl.SetColumn("signal", []float64{1, 0, -1}))
	require.NoError(t, tbl.SetColumn("regime", []float64{3, 3, 2}))
	assert.True(t, tbl.HasColumn("signal"))
	assert.Equal(t, []string{"regime", "signal"}, tbl.ColumnNames())

	pts, err := tbl.Points("regime")
	require.NoError(t, err)
	assert.Equal(t, domain.Point{Time: t0.Add(2 * time.Hour), Value: 2}, pts[2])
}

func TestTableSpanAndWindow(t *testing.T) {
	tbl := NewTable("BTC/USD", Hour, hourlyBars(10, 11, 12, 13, 14))
	require.NoError(t, tbl.SetColumn("signal", []float64{1, 0, 0, -1, 0}))

	lo, hi, err := tbl.Span(t0.Add(time.Hour), t0.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, lo)
	assert.Equal(t, 4, hi)

	w, err := tbl.Window(t0.Add(90*time.Minute), t0.Add(4*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []float64{12, 13, 14}, w.Closes())
	col, err := w.Column("signal")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, -1, 0}, col)

	_, err = tbl.Window(t0.Add(-time.Hour), t0.Add(time.Hour))
	assert.True(t, apperr.Is(err, apperr.CodeDateOutOfRange))
	assert.Equal(t, apperr.KindDataRange, apperr.KindOf(err))

	_, err = tbl.Window(t0, t0.Add(5*time.Hour))
	assert.True(t, apperr.Is(err, apperr.CodeDateOutOfRange))

	_, err = tbl.Window(t0.Add(10*time.Minute), t0.Add(20*time.Minute))
	assert.True(t, apperr.Is(err, apperr.CodeEmptyWindow))
}

func TestTableValidate(t *testing.T) {
	assert.NoError(t, NewTable("X", Day, hourlyBars(1, 2)).Validate())

	bad := hourlyBars(1, 0)
	assert.True(t, apperr.Is(NewTable("X", Day, bad).Validate(), apperr.CodeInvalidData))

	unordered := hourlyBars(1, 2)
	unordered[1].Timestamp = unordered[0].Timestamp
	assert.True(t, apperr.Is(NewTable("X", Day, unordered).Validate(), apperr.CodeInvalidData))
}

func TestStoreProviderLoad(t *testing.T) {
	ctx := context.Background()
	ps := store.NewParquetStore(t.TempDir())
	require.NoError(t, ps.WriteBars(ctx, string(Hour), hourlyBars(100, 101, 102)))
	require.NoError(t, ps.WriteFeature(ctx, "BTC/USD", "signal", []domain.Point{
		{Time: t0, Value: 1},
		{Time: t0.Add(2 * time.Hour), Value: -1},
	}))

	p := NewStoreProvider(ps, ps, nil)
	tbl, err := p.Load(ctx, Query{
		Symbol:    "BTC/USD",
		Timeframe: Hour,
		Start:     t0,
		End:       t0.Add(2 * time.Hour),
		Columns:   []string{"signal"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.Len())

	col, err := tbl.Column("signal")
	require.NoError(t, err)
	assert.Equal(t, 1.0, col[0])
	assert.True(t, math.IsNaN(col[1]))
	assert.Equal(t, -1.0, col[2])

	_, err = p.Load(ctx, Query{Symbol: "BTC/USD", Timeframe: Hour, Start: t0, End: t0, Columns: []string{"regime"}})
	assert.True(t, apperr.Is(err, apperr.CodeMissingColumns))

	_, err = p.Load(ctx, Query{Symbol: "ETH/USD", Timeframe: Hour, Start: t0, End: t0})
	assert.True(t, apperr.Is(err, apperr.CodeDataNotFound))

	full, err := p.Load(ctx, Query{Symbol: "BTC/USD", Timeframe: Hour, Columns: []string{"signal"}})
	require.NoError(t, err)
	assert.Equal(t, 3, full.Len())
	assert.True(t, full.Bars[0].Timestamp.Equal(t0))

	_, err = p.Load(ctx, Query{Symbol: "ETH/USD", Timeframe: Hour})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "in storage")
}

func TestAlpacaFetcherRequiresCredentials(t *testing.T) {
	_, err := NewAlpacaFetcher(AlpacaConfig{APIKey: "key"}, nil, nil)
	assert.True(t, apperr.Is(err, apperr.CodeMissingAPIKey))

	f, err := NewAlpacaFetcher(AlpacaConfig{APIKey: "key", APISecret: "secret"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "iex", f.feed)
	assert.Equal(t, 3, f.retries)
}

func TestIsCrypto(t *testing.T) {
	assert.True(t, IsCrypto("BTC/USD"))
	assert.False(t, IsCrypto("AAPL"))
}

func TestFromAlpacaBars(t *testing.T) {
	stock := fromStockBars("aapl", []alpacamd.Bar{{Timestamp: t0, Close: 185.5, Volume: 1200, TradeCount: 40, VWAP: 185.2}})
	require.Len(t, stock, 1)
	assert.Equal(t, "AAPL", stock[0].Symbol)
	assert.Equal(t, 1200.0, stock[0].Volume)
	assert.Equal(t, int64(40), stock[0].TradeCount)

	crypto := fromCryptoBars("btc/usd", []alpacamd.CryptoBar{{Timestamp: t0, Close: 42000, Volume: 0.25}})
	require.Len(t, crypto, 1)
	assert.Equal(t, "BTC/USD", crypto[0].Symbol)
	assert.Equal(t, 0.25, crypto[0].Volume)
}
