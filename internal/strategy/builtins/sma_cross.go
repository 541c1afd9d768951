// Package builtins provides built-in strategy implementations that ship with
// swift-trader.
package builtins

import (
	"context"
	"fmt"

	"github.com/gdtan02/swift-trader/internal/apperr"
	"github.com/gdtan02/swift-trader/internal/domain"
	"github.com/gdtan02/swift-trader/internal/marketdata"
	"github.com/gdtan02/swift-trader/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

// SMACross implements a simple moving average crossover strategy. It generates
// a long signal on the bar where the short-period SMA crosses above the
// long-period SMA, and a short signal where it crosses below.
type SMACross struct {
	shortPeriod int
	longPeriod  int
}

// NewSMACross creates a new SMACross strategy with the specified short and
// long moving average periods. short must be positive and less than long.
func NewSMACross(short, long int) (*SMACross, error) {
	if short < 1 || long <= short {
		return nil, apperr.Newf(apperr.CodeInvalidThreshold, "sma periods short=%d long=%d", short, long)
	}
	return &SMACross{
		shortPeriod: short,
		longPeriod:  long,
	}, nil
}

// Name returns "sma-cross".
func (s *SMACross) Name() string {
	return "sma-cross"
}

// Columns returns nil: only close prices are used.
func (s *SMACross) Columns() []string { return nil }

// String describes the configured periods.
func (s *SMACross) String() string {
	return fmt.Sprintf("sma-cross(%d,%d)", s.shortPeriod, s.longPeriod)
}

// GenerateSignals emits +1/-1 on crossover bars and 0 elsewhere, including
// the warm-up bars before the long SMA is defined.
func (s *SMACross) GenerateSignals(ctx context.Context, t *marketdata.Table) ([]domain.Signal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	closes := t.Closes()
	short := sma(closes, s.shortPeriod)
	long := sma(closes, s.longPeriod)

	out := make([]domain.Signal, len(closes))
	// The first comparable bar is longPeriod-1; a crossover needs one before it.
	for i := s.longPeriod; i < len(closes); i++ {
		prev := short[i-1] - long[i-1]
		cur := short[i] - long[i]
		switch {
		case prev <= 0 && cur > 0:
			out[i] = domain.SignalLong
		case prev >= 0 && cur < 0:
			out[i] = domain.SignalShort
		}
	}
	return out, nil
}

// sma returns the rolling mean over period bars. Values before the first
// full window are 0 and must not be read.
func sma(xs []float64, period int) []float64 {
	out := make([]float64, len(xs))
	var sum float64
	for i, x := range xs {
		sum += x
		if i >= period {
			sum -= xs[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}
