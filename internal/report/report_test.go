package report

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/gdtan02/swift-trader/internal/backtest"
	"github.com/gdtan02/swift-trader/internal/domain"
	"github.com/gdtan02/swift-trader/internal/metrics"
	"github.com/gdtan02/swift-trader/internal/store"
)

func TestMoney(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.00"},
		{999, "999.00"},
		{1000, "1,000.00"},
		{1234567.891, "1,234,567.89"},
		{-1234.5, "-1,234.50"},
		{math.NaN(), "-"},
		{math.Inf(1), "-"},
	}
	for _, tt := range tests {
		if got := Money(tt.in); got != tt.want {
			t.Errorf("Money(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0.1234, "12.34%"},
		{-0.05, "-5.00%"},
		{12.5, "1,250.00%"},
		{math.Inf(-1), "-"},
	}
	for _, tt := range tests {
		if got := Percent(tt.in); got != tt.want {
			t.Errorf("Percent(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRatioAndQuantity(t *testing.T) {
	if got := Ratio(nil); got != "-" {
		t.Errorf("Ratio(nil) = %q", got)
	}
	v := 1.5
	if got := Ratio(&v); got != "1.500" {
		t.Errorf("Ratio(1.5) = %q", got)
	}
	if got := Quantity(800); got != "800" {
		t.Errorf("Quantity(800) = %q", got)
	}
	if got := Quantity(0.25); got != "0.25" {
		t.Errorf("Quantity(0.25) = %q", got)
	}
}

func sampleResult() *backtest.Result {
	pnl := 10000.0
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &backtest.Result{
		Label:     backtest.LabelBacktest,
		StartDate: start,
		EndDate:   start.AddDate(0, 0, 5),
		Performance: metrics.Performance{
			TotalReturn:    10000,
			TotalReturnPct: 0.1,
			FinalEquity:    110000,
		},
		Statistics: metrics.TradeStatistics{TotalTrades: 1, ProfitableTrades: 1, WinRate: 1, AveragePnL: 10000},
		FinalCash:  110000,
		Positions:  []domain.Position{{Symbol: "AAPL"}},
		Orders: []domain.Order{
			{ID: "1", Timestamp: start, Side: domain.OrderSideBuy, Status: domain.OrderStatusCompleted, Quantity: 500, ExecutionPrice: 100},
			{ID: "2", Timestamp: start.AddDate(0, 0, 2), Side: domain.OrderSideSell, Status: domain.OrderStatusCompleted, Quantity: 500, ExecutionPrice: 120, PnL: &pnl},
		},
	}
}

func TestWriteResponse(t *testing.T) {
	var buf bytes.Buffer
	resp := &backtest.Response{RunID: "run-1", BacktestResult: sampleResult()}
	if err := WriteResponse(&buf, resp, Options{Orders: true}); err != nil {
		t.Fatalf("WriteResponse: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"run run-1", "[backtest] 2024-01-01 00:00 to 2024-01-06 00:00", "110,000.00", "10.00%", "1 (1 won, 0 lost)", "10,000.00"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "open position") {
		t.Errorf("flat position should not be listed:\n%s", out)
	}
	if !strings.Contains(out, "COMMISSION") {
		t.Errorf("orders table missing:\n%s", out)
	}
}

func TestWriteSweepMarksBest(t *testing.T) {
	var buf bytes.Buffer
	resp := &backtest.SweepResponse{
		Results: []backtest.SweepResult{
			{Params: backtest.Params{Proportion: 0.25, EntryExitMode: "trend-following"}, Result: sampleResult()},
			{Params: backtest.Params{Proportion: 0.5, EntryExitMode: "mean-reversion"}, Result: sampleResult()},
		},
		Best: 1,
	}
	if err := WriteSweep(&buf, resp); err != nil {
		t.Fatalf("WriteSweep: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}
	if strings.Contains(lines[1], "*") {
		t.Errorf("first row should not be marked: %q", lines[1])
	}
	if !strings.Contains(lines[2], "*") || !strings.Contains(lines[2], "mean-reversion") {
		t.Errorf("best row not marked: %q", lines[2])
	}
}

func TestWriteRuns(t *testing.T) {
	var buf bytes.Buffer
	runs := []store.RunSummary{{
		ID:             "abc",
		CreatedAt:      time.Now(),
		Strategy:       "momentum",
		Symbol:         "AAPL",
		Timeframe:      "1Day",
		TotalReturnPct: 0.1,
		TotalTrades:    2,
	}}
	if err := WriteRuns(&buf, runs); err != nil {
		t.Fatalf("WriteRuns: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"abc", "momentum", "AAPL", "10.00%"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteRun(t *testing.T) {
	res := sampleResult()
	run := &store.RunRecord{
		ID:        "abc",
		CreatedAt: time.Now(),
		Strategy:  "momentum",
		Symbol:    "AAPL",
		Timeframe: "1Day",
		Results: []store.RunResult{{
			Label:       res.Label,
			Start:       res.StartDate,
			End:         res.EndDate,
			Performance: res.Performance,
			Statistics:  res.Statistics,
		}},
	}
	var buf bytes.Buffer
	if err := WriteRun(&buf, run, Options{}); err != nil {
		t.Fatalf("WriteRun: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"run abc", "momentum", "[backtest]", "10.00%"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "final cash") {
		t.Errorf("stored runs carry no cash:\n%s", out)
	}
}
