// Package domain holds the value types shared across the backtester: bars,
// signals, curve points, orders and position snapshots.
package domain

import "time"

// Bar is one OHLCV observation of a single asset.
type Bar struct {
	Symbol     string    `json:"symbol"`
	Timestamp  time.Time `json:"timestamp"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     float64   `json:"volume"`
	TradeCount int64     `json:"tradeCount"`
	VWAP       float64   `json:"vwap"`
}

// Signal is the directional intent for one bar.
type Signal int8

const (
	SignalShort Signal = -1 // short / exit
	SignalHold  Signal = 0
	SignalLong  Signal = 1
)

// Valid reports whether s is one of the three defined signal values.
func (s Signal) Valid() bool {
	return s >= SignalShort && s <= SignalLong
}

func (s Signal) String() string {
	switch s {
	case SignalShort:
		return "short"
	case SignalHold:
		return "hold"
	case SignalLong:
		return "long"
	}
	return "invalid"
}

// Point is one timestamped sample of a curve (equity, drawdown, P&L).
type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Values returns the values of pts in order.
func Values(pts []Point) []float64 {
	out := make([]float64, len(pts))
	for i, p := range pts {
		out[i] = p.Value
	}
	return out
}

// Position is a read-only snapshot of one asset's holding.
type Position struct {
	Symbol        string  `json:"symbol"`
	Quantity      float64 `json:"quantity"`
	AvgEntryPrice float64 `json:"avgEntryPrice"`
	CurrentPrice  float64 `json:"currentPrice"`
	UnrealizedPnL float64 `json:"unrealizedPnl"`
	RealizedPnL   float64 `json:"realizedPnl"`
}

// MarketValue returns quantity × current price.
func (p Position) MarketValue() float64 {
	return p.Quantity * p.CurrentPrice
}

// IsFlat reports whether nothing is held.
func (p Position) IsFlat() bool {
	return p.Quantity == 0
}
