package main

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gdtan02/swift-trader/internal/config"
	"github.com/gdtan02/swift-trader/internal/store"
)

const barsCSV = `timestamp,open,high,low,close,volume,trade_count,vwap
2024-01-02,99,101,98,100,1000,10,100
2024-01-03,100,111,99,110,1200,12,108
2024-01-04,110,121,109,120,900,,
`

func TestReadBars(t *testing.T) {
	bars, err := readBars(strings.NewReader(barsCSV), "AAPL")
	if err != nil {
		t.Fatalf("readBars: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("got %d bars, want 3", len(bars))
	}
	if bars[1].Close != 110 || bars[1].TradeCount != 12 || bars[1].Symbol != "AAPL" {
		t.Errorf("bar 1 = %+v", bars[1])
	}
	if bars[2].VWAP != 0 || bars[2].TradeCount != 0 {
		t.Errorf("blank optional cells should be zero: %+v", bars[2])
	}
	if want := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC); !bars[1].Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", bars[1].Timestamp, want)
	}
}

func TestReadBarsMissingColumn(t *testing.T) {
	_, err := readBars(strings.NewReader("timestamp,open,close\n2024-01-02,1,2\n"), "AAPL")
	if err == nil || !strings.Contains(err.Error(), "high") {
		t.Fatalf("expected missing column error, got %v", err)
	}
}

func TestReadPoints(t *testing.T) {
	in := "Timestamp,Regime\n2024-01-02T00:00:00Z,3\n2024-01-03T00:00:00Z,\n"
	pts, err := readPoints(strings.NewReader(in), "timestamp", "regime")
	if err != nil {
		t.Fatalf("readPoints: %v", err)
	}
	if len(pts) != 2 {
		t.Fatalf("got %d points", len(pts))
	}
	if pts[0].Value != 3 {
		t.Errorf("value = %v, want 3", pts[0].Value)
	}
	if !math.IsNaN(pts[1].Value) {
		t.Errorf("blank value = %v, want NaN", pts[1].Value)
	}

	if _, err := readPoints(strings.NewReader("timestamp,x\nbad,1\n"), "timestamp", "x"); err == nil {
		t.Error("expected error for bad timestamp")
	}
}

func TestImportAndList(t *testing.T) {
	dir := t.TempDir()
	barsPath := filepath.Join(dir, "bars.csv")
	featPath := filepath.Join(dir, "signal.csv")
	if err := os.WriteFile(barsPath, []byte(barsCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(featPath, []byte("timestamp,signal\n2024-01-02,1\n2024-01-03,0\n2024-01-04,-1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	cfg := config.Default()
	pstore := store.NewParquetStore(filepath.Join(dir, "data"))

	var out bytes.Buffer
	if err := run(ctx, cfg, pstore, "import-bars", []string{"-symbol", "aapl", "-timeframe", "1Day", "-file", barsPath}, &out); err != nil {
		t.Fatalf("import-bars: %v", err)
	}
	if err := run(ctx, cfg, pstore, "import-feature", []string{"-symbol", "AAPL", "-name", "signal", "-file", featPath}, &out); err != nil {
		t.Fatalf("import-feature: %v", err)
	}
	if !strings.Contains(out.String(), "imported 3 bars for AAPL") || !strings.Contains(out.String(), "imported 3 signal values") {
		t.Errorf("output = %q", out.String())
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	bars, err := pstore.ReadBars(ctx, "AAPL", "1Day", start, end)
	if err != nil || len(bars) != 3 {
		t.Fatalf("ReadBars = %d bars, %v", len(bars), err)
	}
	pts, err := pstore.ReadFeature(ctx, "AAPL", "signal", start, end)
	if err != nil || len(pts) != 3 || pts[2].Value != -1 {
		t.Fatalf("ReadFeature = %v, %v", pts, err)
	}

	out.Reset()
	if err := run(ctx, cfg, pstore, "symbols", []string{"-timeframe", "1Day"}, &out); err != nil {
		t.Fatalf("symbols: %v", err)
	}
	if strings.TrimSpace(out.String()) != "AAPL" {
		t.Errorf("symbols = %q", out.String())
	}
}

func TestRunUsageErrors(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	pstore := store.NewParquetStore(t.TempDir())

	if err := run(ctx, cfg, pstore, "bogus", nil, &bytes.Buffer{}); !errors.Is(err, errUsage) {
		t.Errorf("unknown command: got %v", err)
	}
	if err := run(ctx, cfg, pstore, "import-feature", []string{"-symbol", "AAPL"}, &bytes.Buffer{}); !errors.Is(err, errUsage) {
		t.Errorf("missing flags: got %v", err)
	}
	if err := run(ctx, cfg, pstore, "sync", []string{"-symbols", ""}, &bytes.Buffer{}); !errors.Is(err, errUsage) {
		t.Errorf("no symbols: got %v", err)
	}
}

func TestSplitSymbols(t *testing.T) {
	got := splitSymbols(" aapl, btc/usd ,,")
	if len(got) != 2 || got[0] != "AAPL" || got[1] != "BTC/USD" {
		t.Errorf("got %v", got)
	}
}
