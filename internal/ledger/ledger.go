// Package ledger tracks per-asset holdings for a single simulation run.
//
// A Ledger is owned by exactly one run and is not safe for concurrent use.
package ledger

import (
	"sort"

	"github.com/gdtan02/swift-trader/internal/apperr"
	"github.com/gdtan02/swift-trader/internal/domain"
)

type position struct {
	quantity      float64
	avgEntryPrice float64
	currentPrice  float64
	unrealizedPnL float64
	realizedPnL   float64
}

func (p *position) revalue() {
	if p.quantity <= 0 {
		p.unrealizedPnL = 0
		return
	}
	p.unrealizedPnL = (p.currentPrice - p.avgEntryPrice) * p.quantity
}

// Ledger maps asset symbols to positions. Positions are created lazily on
// first reference and only mutated through ApplyFill and Mark.
type Ledger struct {
	positions map[string]*position
}

// New returns an empty Ledger.
func New() *Ledger {
	return &Ledger{positions: make(map[string]*position)}
}

func (l *Ledger) get(symbol string) *position {
	p, ok := l.positions[symbol]
	if !ok {
		p = &position{}
		l.positions[symbol] = p
	}
	return p
}

// ApplyFill updates the position of order.Symbol with a completed order.
//
// A SELL larger than the held quantity is a ledger invariant violation and
// leaves the position untouched.
func (l *Ledger) ApplyFill(order domain.Order) error {
	if order.Status != domain.OrderStatusCompleted {
		return apperr.Newf(apperr.CodeOrderNotFilled, "order %s is %s", order.ID, order.Status)
	}
	p := l.get(order.Symbol)

	switch order.Side {
	case domain.OrderSideBuy:
		totalCost := p.avgEntryPrice*p.quantity + order.Value()
		p.quantity += order.Quantity
		p.avgEntryPrice = totalCost / p.quantity

	case domain.OrderSideSell:
		if order.Quantity > p.quantity {
			return apperr.Newf(apperr.CodeInsufficientQuantity,
				"sell %v %s with %v held", order.Quantity, order.Symbol, p.quantity)
		}
		p.realizedPnL += (order.ExecutionPrice-p.avgEntryPrice)*order.Quantity - order.Commission
		p.quantity -= order.Quantity
		if p.quantity <= 0 {
			p.quantity = 0
			p.avgEntryPrice = 0
		}

	default:
		return apperr.Newf(apperr.CodeInvalidOrder, "unknown side %q", order.Side)
	}

	p.currentPrice = order.ExecutionPrice
	p.revalue()
	return nil
}

// Mark records the latest market price of symbol and recomputes its
// unrealized P&L.
func (l *Ledger) Mark(symbol string, price float64) {
	p := l.get(symbol)
	p.currentPrice = price
	p.revalue()
}

// Position returns a snapshot of symbol's position. Unseen symbols yield a
// flat position.
func (l *Ledger) Position(symbol string) domain.Position {
	p := l.get(symbol)
	return domain.Position{
		Symbol:        symbol,
		Quantity:      p.quantity,
		AvgEntryPrice: p.avgEntryPrice,
		CurrentPrice:  p.currentPrice,
		UnrealizedPnL: p.unrealizedPnL,
		RealizedPnL:   p.realizedPnL,
	}
}

// Quantity returns the quantity held of symbol.
func (l *Ledger) Quantity(symbol string) float64 {
	return l.get(symbol).quantity
}

// MarketValue returns Σ quantity × current price over all positions.
func (l *Ledger) MarketValue() float64 {
	var total float64
	for _, sym := range l.Symbols() {
		p := l.positions[sym]
		total += float64(p.quantity * p.currentPrice)
	}
	return total
}

// Symbols returns the referenced symbols in sorted order.
func (l *Ledger) Symbols() []string {
	syms := make([]string, 0, len(l.positions))
	for s := range l.positions {
		syms = append(syms, s)
	}
	sort.Strings(syms)
	return syms
}

// Positions returns snapshots of all referenced positions, sorted by symbol.
func (l *Ledger) Positions() []domain.Position {
	syms := l.Symbols()
	out := make([]domain.Position, 0, len(syms))
	for _, s := range syms {
		out = append(out, l.Position(s))
	}
	return out
}
