package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/gdtan02/swift-trader/internal/domain"
)

// Compile-time interface checks.
var _ BarStore = (*ParquetStore)(nil)
var _ FeatureStore = (*ParquetStore)(nil)
var _ SeriesWriter = (*ParquetStore)(nil)

// ParquetStore implements BarStore, FeatureStore and SeriesWriter using
// Parquet files on disk.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a new ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// BarRecord is the Parquet schema for bar data.
type BarRecord struct {
	Symbol     string  `parquet:"symbol"`
	Timestamp  int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open       float64 `parquet:"open"`
	High       float64 `parquet:"high"`
	Low        float64 `parquet:"low"`
	Close      float64 `parquet:"close"`
	Volume     float64 `parquet:"volume"`
	TradeCount int64   `parquet:"trade_count"`
	VWAP       float64 `parquet:"vwap"`
}

// FeatureRecord is the Parquet schema for one value of a feature column.
type FeatureRecord struct {
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Value     float64 `parquet:"value"`
}

// EquityRecord is the Parquet schema for one bar of an emitted run.
type EquityRecord struct {
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Equity    float64 `parquet:"equity"`
	Drawdown  float64 `parquet:"drawdown"`
	PnL       float64 `parquet:"pnl"`
}

// OrderRecord is the Parquet schema for one order of an emitted run.
type OrderRecord struct {
	ID             string   `parquet:"id"`
	Timestamp      int64    `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Symbol         string   `parquet:"symbol"`
	Type           string   `parquet:"order_type"`
	Side           string   `parquet:"side"`
	Status         string   `parquet:"status"`
	Quantity       float64  `parquet:"quantity"`
	ExecutionPrice float64  `parquet:"execution_price"`
	Commission     float64  `parquet:"commission"`
	PnL            *float64 `parquet:"pnl"`
	CancelReason   string   `parquet:"cancel_reason"`
}

// ---------------------------------------------------------------------------
// BarStore implementation
// ---------------------------------------------------------------------------

// WriteBars writes bar data to Parquet files organized by symbol, timeframe
// and year. Each combination produces a separate file at:
//
//	<DataDir>/<SYMBOL>/<timeframe>/<YYYY>.parquet
//
// Existing files are merged, with incoming bars replacing stored ones at the
// same timestamp.
func (s *ParquetStore) WriteBars(_ context.Context, timeframe string, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	type key struct {
		symbol string
		year   int
	}
	groups := make(map[key][]BarRecord)
	for _, b := range bars {
		ts := b.Timestamp.UTC()
		k := key{symbol: b.Symbol, year: ts.Year()}
		groups[k] = append(groups[k], BarRecord{
			Symbol:     b.Symbol,
			Timestamp:  ts.UnixMilli(),
			Open:       b.Open,
			High:       b.High,
			Low:        b.Low,
			Close:      b.Close,
			Volume:     b.Volume,
			TradeCount: b.TradeCount,
			VWAP:       b.VWAP,
		})
	}

	for k, records := range groups {
		path := s.barPath(k.symbol, timeframe, k.year)

		existing, err := readParquetFile[BarRecord](path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("reading existing bars for %s/%d: %w", k.symbol, k.year, err)
		}
		merged := mergeByTimestamp(existing, records, func(r BarRecord) int64 { return r.Timestamp })

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing bars for %s/%d: %w", k.symbol, k.year, err)
		}
	}
	return nil
}

// ReadBars reads bar data from Parquet files for the given symbol and time
// range. A zero start or end leaves that side of the range open, so zero
// bounds read the symbol's whole history.
func (s *ParquetStore) ReadBars(_ context.Context, symbol, timeframe string, start, end time.Time) ([]domain.Bar, error) {
	years, err := s.barYears(symbol, timeframe)
	if err != nil {
		return nil, err
	}

	var bars []domain.Bar
	for _, year := range years {
		if (!start.IsZero() && year < start.UTC().Year()) || (!end.IsZero() && year > end.UTC().Year()) {
			continue
		}
		path := s.barPath(symbol, timeframe, year)

		records, err := readParquetFile[BarRecord](path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}

		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp).UTC()
			if !inRange(ts, start, end) {
				continue
			}
			bars = append(bars, domain.Bar{
				Symbol:     r.Symbol,
				Timestamp:  ts,
				Open:       r.Open,
				High:       r.High,
				Low:        r.Low,
				Close:      r.Close,
				Volume:     r.Volume,
				TradeCount: r.TradeCount,
				VWAP:       r.VWAP,
			})
		}
	}
	return bars, nil
}

// barYears lists the years that have a bar file, ascending.
func (s *ParquetStore) barYears(symbol, timeframe string) ([]int, error) {
	files, err := filepath.Glob(filepath.Join(filepath.Dir(s.barPath(symbol, timeframe, 0)), "*.parquet"))
	if err != nil {
		return nil, err
	}
	years := make([]int, 0, len(files))
	for _, f := range files {
		year, err := strconv.Atoi(strings.TrimSuffix(filepath.Base(f), ".parquet"))
		if err != nil {
			continue
		}
		years = append(years, year)
	}
	sort.Ints(years)
	return years, nil
}

// inRange reports whether ts lies in [start, end], a zero bound being open.
func inRange(ts, start, end time.Time) bool {
	if !start.IsZero() && ts.Before(start) {
		return false
	}
	if !end.IsZero() && ts.After(end) {
		return false
	}
	return true
}

// ListSymbols lists all symbols that have bar data of timeframe. The symbol
// is read back from the stored records so that names containing a path
// separator (crypto pairs) survive.
func (s *ParquetStore) ListSymbols(_ context.Context, timeframe string) ([]string, error) {
	entries, err := os.ReadDir(s.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if !e.IsDir() || e.Name() == runsDir {
			continue
		}
		files, err := filepath.Glob(filepath.Join(s.DataDir, e.Name(), strings.ToLower(timeframe), "*.parquet"))
		if err != nil || len(files) == 0 {
			continue
		}
		records, err := readParquetFile[BarRecord](files[0])
		if err != nil || len(records) == 0 {
			continue
		}
		symbols = append(symbols, records[0].Symbol)
	}
	sort.Strings(symbols)
	return symbols, nil
}

// ---------------------------------------------------------------------------
// FeatureStore implementation
// ---------------------------------------------------------------------------

// WriteFeature merges pts into <DataDir>/<SYMBOL>/features/<name>.parquet.
func (s *ParquetStore) WriteFeature(_ context.Context, symbol, name string, pts []domain.Point) error {
	if len(pts) == 0 {
		return nil
	}
	path := s.featurePath(symbol, name)

	records := make([]FeatureRecord, len(pts))
	for i, p := range pts {
		records[i] = FeatureRecord{Timestamp: p.Time.UnixMilli(), Value: p.Value}
	}

	existing, err := readParquetFile[FeatureRecord](path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading feature %s/%s: %w", symbol, name, err)
	}
	merged := mergeByTimestamp(existing, records, func(r FeatureRecord) int64 { return r.Timestamp })

	if err := writeParquetFile(path, merged); err != nil {
		return fmt.Errorf("writing feature %s/%s: %w", symbol, name, err)
	}
	return nil
}

// ReadFeature reads the named column of symbol within [start, end], zero
// bounds being open. A missing column yields os.ErrNotExist.
func (s *ParquetStore) ReadFeature(_ context.Context, symbol, name string, start, end time.Time) ([]domain.Point, error) {
	records, err := readParquetFile[FeatureRecord](s.featurePath(symbol, name))
	if err != nil {
		return nil, fmt.Errorf("reading feature %s/%s: %w", symbol, name, err)
	}

	var pts []domain.Point
	for _, r := range records {
		ts := time.UnixMilli(r.Timestamp).UTC()
		if !inRange(ts, start, end) {
			continue
		}
		pts = append(pts, domain.Point{Time: ts, Value: r.Value})
	}
	return pts, nil
}

// ---------------------------------------------------------------------------
// SeriesWriter implementation
// ---------------------------------------------------------------------------

// WriteRunSeries writes the equity curve and order history of one run to
//
//	<DataDir>/runs/<runID>/<label>/equity.parquet
//	<DataDir>/runs/<runID>/<label>/orders.parquet
func (s *ParquetStore) WriteRunSeries(_ context.Context, runID, label string, series RunSeries) error {
	if len(series.Drawdown) != len(series.Equity) || len(series.PnL) != len(series.Equity) {
		return fmt.Errorf("run series of %s/%s are not aligned", runID, label)
	}
	dir := s.runDir(runID, label)

	equity := make([]EquityRecord, len(series.Equity))
	for i, p := range series.Equity {
		equity[i] = EquityRecord{
			Timestamp: p.Time.UnixMilli(),
			Equity:    p.Value,
			Drawdown:  series.Drawdown[i].Value,
			PnL:       series.PnL[i].Value,
		}
	}
	if err := writeParquetFile(filepath.Join(dir, "equity.parquet"), equity); err != nil {
		return fmt.Errorf("writing equity of %s/%s: %w", runID, label, err)
	}

	orders := make([]OrderRecord, len(series.Orders))
	for i, o := range series.Orders {
		orders[i] = OrderRecord{
			ID:             o.ID,
			Timestamp:      o.Timestamp.UnixMilli(),
			Symbol:         o.Symbol,
			Type:           string(o.Type),
			Side:           string(o.Side),
			Status:         string(o.Status),
			Quantity:       o.Quantity,
			ExecutionPrice: o.ExecutionPrice,
			Commission:     o.Commission,
			PnL:            o.PnL,
			CancelReason:   o.CancelReason,
		}
	}
	if err := writeParquetFile(filepath.Join(dir, "orders.parquet"), orders); err != nil {
		return fmt.Errorf("writing orders of %s/%s: %w", runID, label, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

const runsDir = "runs"

// symbolDir maps a symbol to its directory name. Crypto pairs such as
// BTC/USD become BTC-USD.
func symbolDir(symbol string) string {
	return strings.ReplaceAll(strings.ToUpper(symbol), "/", "-")
}

// barPath returns the filesystem path for a bar Parquet file.
// Layout: <dataDir>/<SYMBOL>/<timeframe>/<YYYY>.parquet
func (s *ParquetStore) barPath(symbol, timeframe string, year int) string {
	return filepath.Join(s.DataDir, symbolDir(symbol), strings.ToLower(timeframe), fmt.Sprintf("%d.parquet", year))
}

// featurePath returns the filesystem path for a feature Parquet file.
// Layout: <dataDir>/<SYMBOL>/features/<name>.parquet
func (s *ParquetStore) featurePath(symbol, name string) string {
	return filepath.Join(s.DataDir, symbolDir(symbol), "features", name+".parquet")
}

// runDir returns the directory holding the emitted series of one run window.
// Layout: <dataDir>/runs/<runID>/<label>
func (s *ParquetStore) runDir(runID, label string) string {
	return filepath.Join(s.DataDir, runsDir, runID, label)
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeByTimestamp deduplicates records by timestamp, preferring incoming
// records over existing ones. Results are sorted by timestamp.
func mergeByTimestamp[T any](existing, incoming []T, ts func(T) int64) []T {
	seen := make(map[int64]T, len(existing)+len(incoming))
	for _, r := range existing {
		seen[ts(r)] = r
	}
	for _, r := range incoming {
		seen[ts(r)] = r
	}

	merged := make([]T, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return ts(merged[i]) < ts(merged[j])
	})
	return merged
}
