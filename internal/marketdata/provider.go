package marketdata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/gdtan02/swift-trader/internal/apperr"
	"github.com/gdtan02/swift-trader/internal/store"
)

// Query selects the bars and feature columns of one symbol. A zero Start or
// End leaves that side open; zero bounds load the full history.
type Query struct {
	Symbol    string
	Timeframe Timeframe
	Start     time.Time
	End       time.Time
	Columns   []string
}

func (q Query) describeRange() string {
	if q.Start.IsZero() && q.End.IsZero() {
		return "in storage"
	}
	from, to := "the first bar", "the last bar"
	if !q.Start.IsZero() {
		from = q.Start.Format(time.DateOnly)
	}
	if !q.End.IsZero() {
		to = q.End.Format(time.DateOnly)
	}
	return "between " + from + " and " + to
}

// Provider loads a Table.
type Provider interface {
	Load(ctx context.Context, q Query) (*Table, error)
}

// Compile-time interface check.
var _ Provider = (*StoreProvider)(nil)

// StoreProvider loads bars and feature columns from storage.
type StoreProvider struct {
	bars     store.BarStore
	features store.FeatureStore
	log      *slog.Logger
}

// NewStoreProvider creates a StoreProvider. features may be nil when no
// query asks for columns.
func NewStoreProvider(bars store.BarStore, features store.FeatureStore, logger *slog.Logger) *StoreProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreProvider{
		bars:     bars,
		features: features,
		log:      logger.With("component", "marketdata"),
	}
}

// Load reads the bars of q and aligns each requested column to them by
// timestamp. Bars without a column value get NaN.
func (p *StoreProvider) Load(ctx context.Context, q Query) (*Table, error) {
	bars, err := p.bars.ReadBars(ctx, q.Symbol, string(q.Timeframe), q.Start, q.End)
	if err != nil {
		return nil, fmt.Errorf("loading %s bars: %w", q.Symbol, err)
	}
	if len(bars) == 0 {
		return nil, apperr.Newf(apperr.CodeDataNotFound, "no %s bars for %s %s", q.Timeframe, q.Symbol, q.describeRange())
	}

	t := NewTable(q.Symbol, q.Timeframe, bars)
	if err := t.Validate(); err != nil {
		return nil, err
	}

	for _, name := range q.Columns {
		if p.features == nil {
			return nil, apperr.Newf(apperr.CodeMissingColumns, "column %q: no feature store", name)
		}
		pts, err := p.features.ReadFeature(ctx, q.Symbol, name, q.Start, q.End)
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.Newf(apperr.CodeMissingColumns, "column %q for %s", name, q.Symbol)
		}
		if err != nil {
			return nil, err
		}

		byTime := make(map[int64]float64, len(pts))
		for _, pt := range pts {
			byTime[pt.Time.UnixMilli()] = pt.Value
		}
		col := make([]float64, len(bars))
		missing := 0
		for i, b := range bars {
			v, ok := byTime[b.Timestamp.UnixMilli()]
			if !ok {
				v = math.NaN()
				missing++
			}
			col[i] = v
		}
		if err := t.SetColumn(name, col); err != nil {
			return nil, err
		}
		if missing > 0 {
			p.log.Debug("column has gaps", "symbol", q.Symbol, "column", name, "missing", missing)
		}
	}

	p.log.Info("table loaded", "symbol", q.Symbol, "timeframe", q.Timeframe, "bars", len(bars), "columns", len(q.Columns))
	return t, nil
}
