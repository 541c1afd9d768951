// Package broker settles orders for a simulation run. The Simulator owns the
// run's cash balance and its position ledger; it is not safe for concurrent
// use and must not be shared between runs.
package broker

import (
	"time"

	"github.com/gdtan02/swift-trader/internal/apperr"
	"github.com/gdtan02/swift-trader/internal/domain"
	"github.com/gdtan02/swift-trader/internal/ledger"
)

// Simulator fills market orders at the bar price.
type Simulator struct {
	cash   float64
	ledger *ledger.Ledger
}

// NewSimulator creates a Simulator holding cash and an empty ledger.
func NewSimulator(cash float64) *Simulator {
	return &Simulator{
		cash:   cash,
		ledger: ledger.New(),
	}
}

// Name returns "simulator".
func (b *Simulator) Name() string {
	return "simulator"
}

// Cash returns the available cash balance.
func (b *Simulator) Cash() float64 {
	return b.cash
}

// Ledger returns the ledger owned by the simulator.
func (b *Simulator) Ledger() *ledger.Ledger {
	return b.ledger
}

// Buy settles a pending BUY at price and ts. The order is rejected, not
// failed, when its notional exceeds available cash. On fill, the notional
// plus commission is debited, so cash follows from the order history alone.
func (b *Simulator) Buy(order *domain.Order, price float64, ts time.Time) error {
	if order.Side != domain.OrderSideBuy {
		return apperr.Newf(apperr.CodeInvalidOrder, "Buy called with a %s order", order.Side)
	}
	if price*order.Quantity > b.cash {
		return order.Reject(domain.RejectInsufficientCash)
	}
	if err := order.Fill(price, ts); err != nil {
		return err
	}
	if err := b.ledger.ApplyFill(*order); err != nil {
		return err
	}
	b.cash -= float64(order.Quantity*price) + order.Commission
	return nil
}

// Sell settles a pending SELL at price and ts, realizing P&L against the
// position's average entry price and crediting proceeds net of commission.
func (b *Simulator) Sell(order *domain.Order, price float64, ts time.Time) error {
	if order.Side != domain.OrderSideSell {
		return apperr.Newf(apperr.CodeInvalidOrder, "Sell called with a %s order", order.Side)
	}
	held := b.ledger.Position(order.Symbol)
	if order.Quantity > held.Quantity {
		return apperr.Newf(apperr.CodeInsufficientQuantity,
			"sell %v %s with %v held", order.Quantity, order.Symbol, held.Quantity)
	}
	if err := order.Fill(price, ts); err != nil {
		return err
	}
	if _, err := order.RealizePnL(held.AvgEntryPrice); err != nil {
		return err
	}
	if err := b.ledger.ApplyFill(*order); err != nil {
		return err
	}
	b.cash += float64(order.Quantity*price) - order.Commission
	return nil
}

// Equity marks symbol at price and returns cash plus the market value of all
// holdings.
func (b *Simulator) Equity(symbol string, price float64) float64 {
	b.ledger.Mark(symbol, price)
	return b.cash + b.ledger.MarketValue()
}
