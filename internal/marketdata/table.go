// Package marketdata models the time-ordered price table consumed by a run
// and the providers that load it from storage or the Alpaca API.
package marketdata

import (
	"math"
	"sort"
	"strings"
	"time"

	alpacamd "github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"github.com/gdtan02/swift-trader/internal/apperr"
	"github.com/gdtan02/swift-trader/internal/domain"
)

// Timeframe is the bar width. Values use Alpaca's spelling so they double as
// storage directory names.
type Timeframe string

const (
	Minute Timeframe = "1Min"
	Hour   Timeframe = "1Hour"
	Day    Timeframe = "1Day"
)

// ParseTimeframe accepts the canonical names and the short forms 1m, 1h
// and 1d, case-insensitively.
func ParseTimeframe(s string) (Timeframe, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1min", "1m", "minute":
		return Minute, nil
	case "1hour", "1h", "hour", "hourly":
		return Hour, nil
	case "1day", "1d", "day", "daily":
		return Day, nil
	}
	return "", apperr.Newf(apperr.CodeInvalidData, "unknown timeframe %q", s)
}

// Alpaca returns the SDK timeframe.
func (tf Timeframe) Alpaca() alpacamd.TimeFrame {
	switch tf {
	case Minute:
		return alpacamd.OneMin
	case Hour:
		return alpacamd.OneHour
	}
	return alpacamd.OneDay
}

// Table is a time-ordered set of bars for one symbol plus named per-bar
// feature columns aligned to the same index. A Table is not modified once a
// run starts and may be shared between parallel runs.
type Table struct {
	Symbol    string
	Timeframe Timeframe
	Bars      []domain.Bar
	columns   map[string][]float64
}

// NewTable wraps bars, which must already be sorted by time.
func NewTable(symbol string, tf Timeframe, bars []domain.Bar) *Table {
	return &Table{
		Symbol:    symbol,
		Timeframe: tf,
		Bars:      bars,
		columns:   make(map[string][]float64),
	}
}

// Len returns the number of bars.
func (t *Table) Len() int { return len(t.Bars) }

// Times returns the bar timestamps.
func (t *Table) Times() []time.Time {
	out := make([]time.Time, len(t.Bars))
	for i, b := range t.Bars {
		out[i] = b.Timestamp
	}
	return out
}

// Closes returns the close prices.
func (t *Table) Closes() []float64 {
	out := make([]float64, len(t.Bars))
	for i, b := range t.Bars {
		out[i] = b.Close
	}
	return out
}

// Column returns the named feature column.
func (t *Table) Column(name string) ([]float64, error) {
	col, ok := t.columns[name]
	if !ok {
		return nil, apperr.Newf(apperr.CodeMissingColumns, "column %q", name)
	}
	return col, nil
}

// HasColumn reports whether the named column is present.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// SetColumn adds or replaces a column. vals must have one value per bar.
func (t *Table) SetColumn(name string, vals []float64) error {
	if len(vals) != len(t.Bars) {
		return apperr.Newf(apperr.CodeInvalidData, "column %q has %d values for %d bars", name, len(vals), len(t.Bars))
	}
	t.columns[name] = vals
	return nil
}

// ColumnNames returns the column names in sorted order.
func (t *Table) ColumnNames() []string {
	names := make([]string, 0, len(t.columns))
	for name := range t.columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Points returns the named column as timestamped points.
func (t *Table) Points(name string) ([]domain.Point, error) {
	col, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Point, len(col))
	for i, v := range col {
		out[i] = domain.Point{Time: t.Bars[i].Timestamp, Value: v}
	}
	return out, nil
}

// Span returns the half-open index range [lo, hi) of the bars within
// [start, end]. The requested range must lie inside the table's first and
// last timestamps.
func (t *Table) Span(start, end time.Time) (lo, hi int, err error) {
	if len(t.Bars) == 0 {
		return 0, 0, apperr.Newf(apperr.CodeDataNotFound, "no bars for %s", t.Symbol)
	}
	first, last := t.Bars[0].Timestamp, t.Bars[len(t.Bars)-1].Timestamp
	if start.Before(first) || end.After(last) {
		return 0, 0, apperr.Newf(apperr.CodeDateOutOfRange,
			"requested %s to %s, data covers %s to %s",
			start.Format(time.RFC3339), end.Format(time.RFC3339),
			first.Format(time.RFC3339), last.Format(time.RFC3339))
	}

	lo = sort.Search(len(t.Bars), func(i int) bool { return !t.Bars[i].Timestamp.Before(start) })
	hi = sort.Search(len(t.Bars), func(i int) bool { return t.Bars[i].Timestamp.After(end) })
	if lo >= hi {
		return 0, 0, apperr.Newf(apperr.CodeEmptyWindow, "%s to %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return lo, hi, nil
}

// Window returns the sub-table within [start, end]. Bars and columns are
// shared with t, not copied.
func (t *Table) Window(start, end time.Time) (*Table, error) {
	lo, hi, err := t.Span(start, end)
	if err != nil {
		return nil, err
	}
	w := NewTable(t.Symbol, t.Timeframe, t.Bars[lo:hi:hi])
	for name, col := range t.columns {
		w.columns[name] = col[lo:hi:hi]
	}
	return w, nil
}

// Validate checks that timestamps strictly increase and close prices are
// positive and finite.
func (t *Table) Validate() error {
	for i, b := range t.Bars {
		if !(b.Close > 0) || math.IsInf(b.Close, 0) {
			return apperr.Newf(apperr.CodeInvalidData, "bar %d (%s) has close %v", i, b.Timestamp.Format(time.RFC3339), b.Close)
		}
		if i > 0 && !b.Timestamp.After(t.Bars[i-1].Timestamp) {
			return apperr.Newf(apperr.CodeInvalidData, "bar %d (%s) is not after bar %d", i, b.Timestamp.Format(time.RFC3339), i-1)
		}
	}
	return nil
}
