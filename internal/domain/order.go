package domain

import (
	"math"
	"time"

	"github.com/gdtan02/swift-trader/internal/apperr"
)

// OrderSide is buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType is the order kind. Only market orders are executed by the
// engine; the others exist so requests can round-trip.
type OrderType string

const (
	OrderTypeMarket     OrderType = "market"
	OrderTypeLimit      OrderType = "limit"
	OrderTypeStop       OrderType = "stop"
	OrderTypeStopLimit  OrderType = "stop-limit"
	OrderTypeTakeProfit OrderType = "take-profit"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s OrderStatus) Terminal() bool {
	return s != OrderStatusPending
}

// RejectInsufficientCash is the cancel reason for BUY orders whose notional
// exceeds available cash.
const RejectInsufficientCash = "insufficient cash"

// OrderRequest carries the caller-supplied fields of a new order.
type OrderRequest struct {
	ID         string
	Timestamp  time.Time
	Symbol     string
	Type       OrderType
	Side       OrderSide
	Quantity   float64
	Price      float64 // requested price; 0 means none
	Commission float64
}

// Order is a trade intent with a pending → completed | rejected lifecycle.
type Order struct {
	ID             string      `json:"id"`
	Timestamp      time.Time   `json:"timestamp"`
	Symbol         string      `json:"asset"`
	Type           OrderType   `json:"orderType"`
	Side           OrderSide   `json:"orderSide"`
	Status         OrderStatus `json:"status"`
	Quantity       float64     `json:"quantity"`
	Price          float64     `json:"price,omitempty"`
	ExecutionPrice float64     `json:"executionPrice,omitempty"`
	ExecutionTime  time.Time   `json:"executionTimestamp,omitzero"`
	Commission     float64     `json:"commissionFee"`
	CancelReason   string      `json:"cancelReason,omitempty"`
	PnL            *float64    `json:"pnl"`
}

// NewOrder validates req and returns a pending order.
func NewOrder(req OrderRequest) (*Order, error) {
	switch req.Side {
	case OrderSideBuy, OrderSideSell:
	default:
		return nil, apperr.Newf(apperr.CodeInvalidOrder, "unknown side %q", req.Side)
	}
	if req.Type == "" {
		req.Type = OrderTypeMarket
	}
	switch req.Type {
	case OrderTypeMarket, OrderTypeLimit, OrderTypeStop, OrderTypeStopLimit, OrderTypeTakeProfit:
	default:
		return nil, apperr.Newf(apperr.CodeInvalidOrder, "unknown order type %q", req.Type)
	}
	if !(req.Quantity > 0) || math.IsInf(req.Quantity, 0) {
		return nil, apperr.Newf(apperr.CodeInvalidOrderQuantity, "quantity %v", req.Quantity)
	}
	if req.Price < 0 || math.IsNaN(req.Price) || math.IsInf(req.Price, 0) {
		return nil, apperr.Newf(apperr.CodeInvalidOrderPrice, "price %v", req.Price)
	}
	if !(req.Commission >= 0) {
		return nil, apperr.Newf(apperr.CodeInvalidCommission, "commission %v", req.Commission)
	}

	return &Order{
		ID:         req.ID,
		Timestamp:  req.Timestamp,
		Symbol:     req.Symbol,
		Type:       req.Type,
		Side:       req.Side,
		Status:     OrderStatusPending,
		Quantity:   req.Quantity,
		Price:      req.Price,
		Commission: req.Commission,
	}, nil
}

// Fill completes a pending order at price and ts.
func (o *Order) Fill(price float64, ts time.Time) error {
	if o.Status.Terminal() {
		return apperr.Newf(apperr.CodeOrderNotPending, "order %s is %s", o.ID, o.Status)
	}
	if !(price > 0) || math.IsInf(price, 0) {
		return apperr.Newf(apperr.CodeInvalidOrderPrice, "execution price %v", price)
	}
	o.Status = OrderStatusCompleted
	o.ExecutionPrice = price
	o.ExecutionTime = ts
	return nil
}

// Reject moves a pending order to rejected with reason.
func (o *Order) Reject(reason string) error {
	if o.Status.Terminal() {
		return apperr.Newf(apperr.CodeOrderNotPending, "order %s is %s", o.ID, o.Status)
	}
	o.Status = OrderStatusRejected
	o.CancelReason = reason
	return nil
}

// RealizePnL sets and returns the realized P&L of a completed SELL against
// the average entry price of the position it closes.
func (o *Order) RealizePnL(avgEntryPrice float64) (float64, error) {
	if o.Side != OrderSideSell || o.Status != OrderStatusCompleted {
		return 0, apperr.Newf(apperr.CodeOrderNotFilled, "order %s is a %s %s order", o.ID, o.Status, o.Side)
	}
	pnl := (o.ExecutionPrice-avgEntryPrice)*o.Quantity - o.Commission
	o.PnL = &pnl
	return pnl, nil
}

// Value returns the notional of the order at its execution price, or at the
// requested price when not yet executed.
func (o *Order) Value() float64 {
	switch {
	case o.ExecutionPrice > 0:
		return o.Quantity * o.ExecutionPrice
	case o.Price > 0:
		return o.Quantity * o.Price
	}
	return 0
}

// IsClosedTrade reports whether o is a completed SELL.
func (o *Order) IsClosedTrade() bool {
	return o.Side == OrderSideSell && o.Status == OrderStatusCompleted
}

// RealizedPnL returns the realized P&L, or 0 when unset.
func (o *Order) RealizedPnL() float64 {
	if o.PnL == nil {
		return 0
	}
	return *o.PnL
}
