// Package store defines storage interfaces for bars, feature columns, emitted
// run series and run history, with Parquet, SQLite and bbolt
// implementations.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gdtan02/swift-trader/internal/domain"
	"github.com/gdtan02/swift-trader/internal/metrics"
)

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars of one timeframe.
	WriteBars(ctx context.Context, timeframe string, bars []domain.Bar) error

	// ReadBars returns bars for symbol and timeframe within [start, end],
	// sorted by timestamp. A zero bound leaves that side open.
	ReadBars(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols that have bars of timeframe.
	ListSymbols(ctx context.Context, timeframe string) ([]string, error)
}

// FeatureStore persists named per-bar columns produced outside the
// backtester (model signals, regime labels, indicators).
type FeatureStore interface {
	// WriteFeature merges pts into the named column of symbol.
	WriteFeature(ctx context.Context, symbol, name string, pts []domain.Point) error

	// ReadFeature returns the named column of symbol within [start, end].
	// A zero bound leaves that side open.
	ReadFeature(ctx context.Context, symbol, name string, start, end time.Time) ([]domain.Point, error)
}

// RunSeries is the computed output of one run, emitted for inspection.
type RunSeries struct {
	Equity   []domain.Point
	Drawdown []domain.Point
	PnL      []domain.Point
	Orders   []domain.Order
}

// SeriesWriter emits run series to storage.
type SeriesWriter interface {
	WriteRunSeries(ctx context.Context, runID, label string, series RunSeries) error
}

// RunResult is the stored outcome of one window of a run.
type RunResult struct {
	Label       string                  `json:"label"`
	Start       time.Time               `json:"startDate"`
	End         time.Time               `json:"endDate"`
	Performance metrics.Performance     `json:"performanceMetrics"`
	Statistics  metrics.TradeStatistics `json:"tradeStatistics"`
	Orders      []domain.Order          `json:"orders,omitempty"`
}

// RunRecord is one persisted backtest request and its results.
type RunRecord struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"createdAt"`
	Strategy  string          `json:"strategyName"`
	Symbol    string          `json:"symbol"`
	Timeframe string          `json:"timeframe"`
	Request   json.RawMessage `json:"request,omitempty"`
	Results   []RunResult     `json:"results"`
}

// RunSummary is a listing row of the run history.
type RunSummary struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"createdAt"`
	Strategy       string    `json:"strategyName"`
	Symbol         string    `json:"symbol"`
	Timeframe      string    `json:"timeframe"`
	TotalReturnPct float64   `json:"totalReturnPct"`
	SharpeRatio    *float64  `json:"sharpeRatio"`
	TotalTrades    int       `json:"totalTrades"`
}

// RunStore persists and retrieves backtest run history.
type RunStore interface {
	// SaveRun inserts a run with all of its results.
	SaveRun(ctx context.Context, run *RunRecord) error

	// GetRun retrieves a run by ID.
	GetRun(ctx context.Context, id string) (*RunRecord, error)

	// ListRuns returns the most recent runs, newest first, up to limit.
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
}

// RunStoreCloser is a RunStore backed by an open database.
type RunStoreCloser interface {
	RunStore
	Close() error
}

// OpenRunStore opens the run store named by driver, "sqlite" (the default)
// or "bolt", at path.
func OpenRunStore(driver, path string) (RunStoreCloser, error) {
	switch driver {
	case "", "sqlite":
		s, err := NewSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "bolt":
		s, err := NewBoltStore(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown run store %q", driver)
}
