package builtins

import (
	"context"

	"github.com/gdtan02/swift-trader/internal/domain"
	"github.com/gdtan02/swift-trader/internal/marketdata"
	"github.com/gdtan02/swift-trader/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*ColumnSignal)(nil)

// DefaultSignalColumn is the column written by the external model pipeline.
const DefaultSignalColumn = "signal"

// ColumnSignal replays a signal column produced outside the backtester, for
// example by a trained classifier. Each value maps to its sign.
type ColumnSignal struct {
	name   string
	column string
}

// NewColumnSignal creates a ColumnSignal registered as name that reads
// column.
func NewColumnSignal(name, column string) *ColumnSignal {
	return &ColumnSignal{name: name, column: column}
}

// Name returns the registered name.
func (c *ColumnSignal) Name() string { return c.name }

// Columns returns the signal column.
func (c *ColumnSignal) Columns() []string { return []string{c.column} }

// GenerateSignals reads the column; a missing column is
// feature/missing-columns.
func (c *ColumnSignal) GenerateSignals(_ context.Context, t *marketdata.Table) ([]domain.Signal, error) {
	vals, err := t.Column(c.column)
	if err != nil {
		return nil, err
	}
	return strategy.SignalsFromValues(vals), nil
}

// NewDefaultRegistry returns a registry holding the built-in strategies:
// "xgb" (model signal column) and "sma-cross" (20/50).
func NewDefaultRegistry() *strategy.Registry {
	r := strategy.NewRegistry()
	r.Register(NewColumnSignal("xgb", DefaultSignalColumn))
	if s, err := NewSMACross(20, 50); err == nil {
		r.Register(s)
	}
	return r
}
