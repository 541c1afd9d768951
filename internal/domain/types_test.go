package domain

import (
	"testing"
	"time"

	"github.com/gdtan02/swift-trader/internal/apperr"
)

func TestTypesExist(t *testing.T) {
	// Verify Bar can be instantiated with zero values.
	bar := Bar{}
	if bar.Symbol != "" {
		t.Error("expected empty Symbol for zero-value Bar")
	}
	if !bar.Timestamp.IsZero() {
		t.Error("expected zero Timestamp for zero-value Bar")
	}
	if bar.Open != 0 || bar.High != 0 || bar.Low != 0 || bar.Close != 0 {
		t.Error("expected zero OHLC values for zero-value Bar")
	}

	// Zero-value position is flat.
	pos := Position{Symbol: "BTC"}
	if !pos.IsFlat() {
		t.Error("expected zero-value Position to be flat")
	}
	if pos.MarketValue() != 0 {
		t.Errorf("MarketValue() = %v, want 0", pos.MarketValue())
	}

	// Verify enum constants are defined correctly.
	if OrderSideBuy != "buy" || OrderSideSell != "sell" {
		t.Error("OrderSide constants have unexpected values")
	}
	if OrderTypeStopLimit != "stop-limit" || OrderTypeTakeProfit != "take-profit" {
		t.Error("OrderType constants have unexpected values")
	}
	if SignalShort != -1 || SignalHold != 0 || SignalLong != 1 {
		t.Error("Signal constants have unexpected values")
	}
}

func TestSignalValid(t *testing.T) {
	for _, s := range []Signal{-1, 0, 1} {
		if !s.Valid() {
			t.Errorf("Signal(%d).Valid() = false, want true", s)
		}
	}
	for _, s := range []Signal{-2, 2} {
		if s.Valid() {
			t.Errorf("Signal(%d).Valid() = true, want false", s)
		}
	}
}

func TestNewOrderValidation(t *testing.T) {
	ts := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		req  OrderRequest
		code apperr.Code
	}{
		{"zero quantity", OrderRequest{Side: OrderSideBuy, Quantity: 0}, apperr.CodeInvalidOrderQuantity},
		{"negative quantity", OrderRequest{Side: OrderSideSell, Quantity: -1}, apperr.CodeInvalidOrderQuantity},
		{"negative price", OrderRequest{Side: OrderSideBuy, Quantity: 1, Price: -5}, apperr.CodeInvalidOrderPrice},
		{"negative commission", OrderRequest{Side: OrderSideBuy, Quantity: 1, Commission: -0.1}, apperr.CodeInvalidCommission},
		{"unknown side", OrderRequest{Side: "hold", Quantity: 1}, apperr.CodeInvalidOrder},
		{"unknown type", OrderRequest{Side: OrderSideBuy, Type: "iceberg", Quantity: 1}, apperr.CodeInvalidOrder},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.Timestamp = ts
			_, err := NewOrder(tt.req)
			if !apperr.Is(err, tt.code) {
				t.Errorf("NewOrder error = %v, want code %q", err, tt.code)
			}
		})
	}
}

func TestOrderLifecycle(t *testing.T) {
	ts := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	o, err := NewOrder(OrderRequest{
		ID:        "bt-000001",
		Timestamp: ts,
		Symbol:    "BTC",
		Side:      OrderSideSell,
		Quantity:  500,
		Price:     120,
	})
	if err != nil {
		t.Fatalf("NewOrder: %v", err)
	}
	if o.Status != OrderStatusPending {
		t.Fatalf("Status = %q, want pending", o.Status)
	}
	if o.Type != OrderTypeMarket {
		t.Errorf("Type = %q, want market default", o.Type)
	}
	if got := o.Value(); got != 60000 {
		t.Errorf("Value() before fill = %v, want 60000", got)
	}

	if _, err := o.RealizePnL(100); err == nil {
		t.Error("RealizePnL on a pending order should fail")
	}

	if err := o.Fill(120, ts); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if err := o.Fill(121, ts); !apperr.Is(err, apperr.CodeOrderNotPending) {
		t.Errorf("second Fill error = %v, want %q", err, apperr.CodeOrderNotPending)
	}
	if err := o.Reject("late"); !apperr.Is(err, apperr.CodeOrderNotPending) {
		t.Errorf("Reject after Fill error = %v, want %q", err, apperr.CodeOrderNotPending)
	}

	pnl, err := o.RealizePnL(100)
	if err != nil {
		t.Fatalf("RealizePnL: %v", err)
	}
	if pnl != 10000 || o.RealizedPnL() != 10000 {
		t.Errorf("pnl = %v / %v, want 10000", pnl, o.RealizedPnL())
	}
	if !o.IsClosedTrade() {
		t.Error("completed SELL should be a closed trade")
	}
}

func TestOrderRejectKeepsNoPnL(t *testing.T) {
	o, err := NewOrder(OrderRequest{Side: OrderSideBuy, Quantity: 1})
	if err != nil {
		t.Fatalf("NewOrder: %v", err)
	}
	if err := o.Reject(RejectInsufficientCash); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if o.Status != OrderStatusRejected || o.CancelReason != RejectInsufficientCash {
		t.Errorf("order = %+v, want rejected with reason", o)
	}
	if o.PnL != nil || o.IsClosedTrade() {
		t.Error("rejected BUY should carry no P&L and is not a closed trade")
	}
}

func TestValues(t *testing.T) {
	pts := []Point{{Value: 1}, {Value: 2.5}}
	got := Values(pts)
	if len(got) != 2 || got[0] != 1 || got[1] != 2.5 {
		t.Errorf("Values = %v, want [1 2.5]", got)
	}
}
